package vigo

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoost_UniformDistribution(t *testing.T) {
	assert := assert.New(t)

	dist := uniformDistribution(4)
	assert.Len(dist, 4)
	for _, w := range dist {
		assert.InDelta(0.25, w, 1e-12)
	}
}

func TestBoost_Reweight(t *testing.T) {
	assert := assert.New(t)

	fs, set := twoPixelSet(t, []int64{5, 7}, []int64{1, 3})
	dist := uniformDistribution(set.Len())

	// A stump labeling everything correctly shrinks every weight by the
	// same factor; normalization folds it right back to uniform.
	perfect := WeakClassifier{Feature: 0, Threshold: 5, Polarity: Positive}
	next, err := reweight(dist, fs, set, perfect, 0.5)
	assert.NoError(err)
	for _, w := range next {
		assert.InDelta(0.25, w, 1e-12)
	}

	// A cut at 7 misses the face scoring 5; its weight grows against the
	// three correctly labeled windows.
	missing := WeakClassifier{Feature: 0, Threshold: 7, Polarity: Positive}
	next, err = reweight(dist, fs, set, missing, 0.5)
	assert.NoError(err)
	assert.InDelta(math.E/(math.E+3), next[0], 1e-12)
	for _, w := range next[1:] {
		assert.InDelta(1/(math.E+3), w, 1e-12)
	}

	var sum float64
	for _, w := range next {
		sum += w
	}
	assert.InDelta(1.0, sum, 1e-12)

	// The input distribution stays untouched.
	for _, w := range dist {
		assert.InDelta(0.25, w, 1e-12)
	}
}

func TestBoost_ReweightCollapse(t *testing.T) {
	fs, set := twoPixelSet(t, []int64{5, 7}, []int64{1, 3})
	perfect := WeakClassifier{Feature: 0, Threshold: 5, Polarity: Positive}

	_, err := reweight(uniformDistribution(set.Len()), fs, set, perfect, math.Inf(1))
	assert.ErrorIs(t, err, ErrVanishingWeights)
}

// boostTrainer builds a trainer over the 1x3 test window with the given
// stage stopping rules.
func boostTrainer(t *testing.T, opts TrainerOptions, log *bytes.Buffer) *Trainer {
	t.Helper()

	opts.WindowWidth = 1
	opts.WindowHeight = 3
	opts.MaxDepth = 1
	opts.CalibrationPercentile = DefaultCalibrationPercentile
	if log != nil {
		opts.Log = log
	}
	tr, err := NewTrainer(&opts)
	assert.NoError(t, err)
	return tr
}

func TestBoost_PerfectStumpClosesStage(t *testing.T) {
	assert := assert.New(t)

	var log bytes.Buffer
	tr := boostTrainer(t, TrainerOptions{MaxRounds: 5}, &log)

	// Feature 0 separates the classes on its own: faces score 8 and 6,
	// backgrounds 1 and 3.
	_, set := columnSet(t,
		[][]int64{{9, 1, 5}, {7, 1, 0}},
		[][]int64{{2, 1, 0}, {4, 1, 5}},
	)

	sc, err := tr.boost(set, 1)
	assert.NoError(err)

	assert.Equal([]WeakClassifier{{Feature: 0, Threshold: 6, Polarity: Positive}}, sc.Stumps)
	assert.Equal([]float64{1}, sc.Alphas)
	assert.Equal(0.0, sc.Threshold)
	assert.Contains(log.String(), "separates the whole set")

	for i := range set.Samples {
		s := &set.Samples[i]
		assert.Equal(s.Label, sc.Evaluate(tr.Features(), s.Integral))
	}
}

func TestBoost_MaxRoundsCap(t *testing.T) {
	assert := assert.New(t)

	tr := boostTrainer(t, TrainerOptions{MaxRounds: 2}, nil)

	// Interleaved classes: no single cut is clean, so boosting runs both
	// rounds and the reweighted second round settles on the other side of
	// the overlap.
	_, set := columnSet(t,
		[][]int64{{1, 0, 0}, {3, 0, 0}},
		[][]int64{{2, 0, 0}, {4, 0, 0}},
	)

	sc, err := tr.boost(set, 1)
	assert.NoError(err)

	assert.Equal([]WeakClassifier{
		{Feature: 0, Threshold: 2, Polarity: Negative},
		{Feature: 0, Threshold: 3, Polarity: Positive},
	}, sc.Stumps)
	assert.Len(sc.Alphas, 2)
	for _, alpha := range sc.Alphas {
		assert.InDelta(0.5*math.Log(3), alpha, 1e-9)
	}
}

func TestBoost_StageTargetAndMinRounds(t *testing.T) {
	assert := assert.New(t)

	faces := [][]int64{{1, 0, 0}, {3, 0, 0}}
	backgrounds := [][]int64{{2, 0, 0}, {4, 0, 0}}

	// The first round already lands on the stage target, so one stump
	// suffices.
	tr := boostTrainer(t, TrainerOptions{TargetStageFPR: 0.5}, nil)
	_, set := columnSet(t, faces, backgrounds)
	sc, err := tr.boost(set, 1)
	assert.NoError(err)
	assert.Equal([]WeakClassifier{{Feature: 0, Threshold: 2, Polarity: Negative}}, sc.Stumps)

	// A round floor keeps the stage boosting past its target.
	tr = boostTrainer(t, TrainerOptions{TargetStageFPR: 0.5, MinRounds: 3, MaxRounds: 3}, nil)
	sc, err = tr.boost(set, 1)
	assert.NoError(err)
	assert.Len(sc.Stumps, 3)
	assert.Equal(WeakClassifier{Feature: 0, Threshold: 2, Polarity: Negative}, sc.Stumps[0])
	assert.Equal(WeakClassifier{Feature: 0, Threshold: 3, Polarity: Positive}, sc.Stumps[1])
}
