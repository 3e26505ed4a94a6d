package vigo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrong_RawVote(t *testing.T) {
	assert := assert.New(t)

	fs, _ := twoPixelSet(t, []int64{5}, []int64{1})
	sc := &StrongClassifier{
		Stumps: []WeakClassifier{
			{Feature: 0, Threshold: 3, Polarity: Positive},
			{Feature: 0, Threshold: 6, Polarity: Negative},
		},
		Alphas: []float64{0.7, 0.3},
	}

	ii, err := NewIntegralImage([]int64{0, 5}, 2, 1)
	assert.NoError(err)

	// 0.7*(5-3) - 0.3*(5-6) = 1.7
	assert.InDelta(1.7, sc.raw(fs, ii), 1e-12)

	sc.Threshold = 1.5
	assert.Equal(Face, sc.Evaluate(fs, ii))
	sc.Threshold = 2.0
	assert.Equal(NonFace, sc.Evaluate(fs, ii))
}

func TestStrong_CalibrationPercentile(t *testing.T) {
	assert := assert.New(t)

	fs, set := twoPixelSet(t, []int64{2, 4, 9, 20}, []int64{1})
	stump := WeakClassifier{Feature: 0, Threshold: 0, Polarity: Positive}

	testCases := []struct {
		percentile float64
		threshold  float64
	}{
		{0, 2},
		{0.05, 2},
		{0.5, 9},
		{1, 20},
	}
	for _, tc := range testCases {
		sc := &StrongClassifier{}
		err := sc.AddWeakClassifier(fs, set, stump, 1, tc.percentile)
		assert.NoError(err)
		assert.Equal(tc.threshold, sc.Threshold, "percentile %g", tc.percentile)
	}

	// At the default percentile every face passes and the lone background
	// window stays out.
	sc := &StrongClassifier{}
	assert.NoError(sc.AddWeakClassifier(fs, set, stump, 1, 0.05))
	for i := range set.Samples {
		s := &set.Samples[i]
		assert.Equal(s.Label, sc.Evaluate(fs, s.Integral))
	}
}

func TestStrong_CalibrationNeedsFaces(t *testing.T) {
	fs, set := twoPixelSet(t, nil, []int64{1, 2})
	sc := &StrongClassifier{}
	err := sc.AddWeakClassifier(fs, set, WeakClassifier{Feature: 0}, 1, 0.05)
	assert.ErrorIs(t, err, ErrNoFaceSamples)
}

func TestStrong_ComputeError(t *testing.T) {
	assert := assert.New(t)

	fs, set := twoPixelSet(t, []int64{5, 7, 3}, []int64{1, 6})
	sc := &StrongClassifier{
		Stumps: []WeakClassifier{{Feature: 0, Threshold: 5, Polarity: Positive}},
		Alphas: []float64{1},
	}

	// The committee passes scores at or above 5: one face below slips
	// through as a miss, one background above as a false positive.
	fpr, fnr, overall := sc.ComputeError(fs, set)
	assert.InDelta(0.5, fpr, 1e-12)
	assert.InDelta(1.0/3.0, fnr, 1e-12)
	assert.InDelta(0.4, overall, 1e-12)
}

func TestStrong_CommitteeErrorMonotonic(t *testing.T) {
	assert := assert.New(t)

	// Feature 0 leaves one background window above its cut; feature 1
	// separates the backgrounds cleanly. Folding it in with enough weight
	// repairs the committee, and a further append cannot break it again.
	fs, set := columnSet(t,
		[][]int64{{6, 1, 1}, {10, 1, 0}},
		[][]int64{{2, 1, 9}, {8, 1, 5}},
	)

	sc := &StrongClassifier{}
	appends := []struct {
		stump WeakClassifier
		alpha float64
	}{
		{WeakClassifier{Feature: 0, Threshold: 5, Polarity: Positive}, 1},
		{WeakClassifier{Feature: 1, Threshold: 0, Polarity: Positive}, 10},
		{WeakClassifier{Feature: 1, Threshold: 0, Polarity: Positive}, 1},
	}

	overalls := make([]float64, 0, len(appends))
	for _, a := range appends {
		assert.NoError(sc.AddWeakClassifier(fs, set, a.stump, a.alpha, DefaultCalibrationPercentile))
		_, _, overall := sc.ComputeError(fs, set)
		overalls = append(overalls, overall)
	}

	assert.Equal([]float64{0.25, 0, 0}, overalls)
	for i := 1; i < len(overalls); i++ {
		assert.LessOrEqual(overalls[i], overalls[i-1])
	}
}

func TestStrong_ComputeErrorOneSidedSets(t *testing.T) {
	assert := assert.New(t)

	sc := &StrongClassifier{
		Stumps: []WeakClassifier{{Feature: 0, Threshold: 5, Polarity: Positive}},
		Alphas: []float64{1},
	}

	fs, faces := twoPixelSet(t, []int64{5, 3}, nil)
	fpr, fnr, overall := sc.ComputeError(fs, faces)
	assert.Equal(0.0, fpr)
	assert.InDelta(0.5, fnr, 1e-12)
	assert.InDelta(0.5, overall, 1e-12)

	fs, backgrounds := twoPixelSet(t, nil, []int64{1, 2})
	fpr, fnr, overall = sc.ComputeError(fs, backgrounds)
	assert.Equal(0.0, fpr)
	assert.Equal(0.0, fnr)
	assert.Equal(0.0, overall)
}
