package vigo

import (
	"errors"
	"math"
	"sort"

	"github.com/esimov/vigo/utils"
)

// ErrNoFaceSamples is returned when a training set holds no face windows.
var ErrNoFaceSamples = errors.New("vigo: training set contains no face samples")

// StrongClassifier is the weighted committee of decision stumps produced by
// one boosting stage. Every stump votes with the signed distance between its
// feature score and its threshold, scaled by the alpha weight earned during
// boosting, and the committee passes a window once the combined vote reaches
// the calibrated decision threshold.
type StrongClassifier struct {
	Stumps    []WeakClassifier
	Alphas    []float64
	Threshold float64
}

// raw returns the combined committee vote over one integral image.
func (sc *StrongClassifier) raw(fs *FeatureSet, ii *IntegralImage) float64 {
	var sum float64
	for i, w := range sc.Stumps {
		score := fs.At(w.Feature).Evaluate(ii)
		sum += sc.Alphas[i] * float64(multiplier(w.Polarity)) * float64(score-w.Threshold)
	}
	return sum
}

// Evaluate labels a single integral image.
func (sc *StrongClassifier) Evaluate(fs *FeatureSet, ii *IntegralImage) Classification {
	if sc.raw(fs, ii) >= sc.Threshold {
		return Face
	}
	return NonFace
}

// AddWeakClassifier appends a stump with its alpha weight and recalibrates
// the decision threshold against the face samples of the training set.
func (sc *StrongClassifier) AddWeakClassifier(fs *FeatureSet, set *TrainingSet, w WeakClassifier, alpha, percentile float64) error {
	sc.Stumps = append(sc.Stumps, w)
	sc.Alphas = append(sc.Alphas, alpha)
	return sc.calibrate(fs, set, percentile)
}

// calibrate settles the decision threshold on a low percentile of the
// sorted face votes, so nearly every face the committee was trained on
// keeps passing it. The percentile index is clamped into the vote slice,
// which keeps single-face sets and percentiles near the ends usable.
func (sc *StrongClassifier) calibrate(fs *FeatureSet, set *TrainingSet, percentile float64) error {
	votes := make([]float64, 0, set.Len())
	for i := range set.Samples {
		s := &set.Samples[i]
		if s.Label == Face {
			votes = append(votes, sc.raw(fs, s.Integral))
		}
	}
	if len(votes) == 0 {
		return ErrNoFaceSamples
	}
	sort.Float64s(votes)

	idx := utils.Clamp(int(math.Round(percentile*float64(len(votes)))), 0, len(votes)-1)
	sc.Threshold = votes[idx]
	return nil
}

// ComputeError reports the false positive rate, the false negative rate and
// the overall misclassification rate of the committee over a training set.
// A rate whose reference class is absent from the set reports zero.
func (sc *StrongClassifier) ComputeError(fs *FeatureSet, set *TrainingSet) (fpr, fnr, overall float64) {
	var falsePos, falseNeg, wrong int
	for i := range set.Samples {
		s := &set.Samples[i]
		got := sc.Evaluate(fs, s.Integral)
		if got == s.Label {
			continue
		}
		wrong++
		if got == Face {
			falsePos++
		} else {
			falseNeg++
		}
	}
	if negatives := set.Negatives(); negatives > 0 {
		fpr = float64(falsePos) / float64(negatives)
	}
	if positives := set.Positives(); positives > 0 {
		fnr = float64(falseNeg) / float64(positives)
	}
	if set.Len() > 0 {
		overall = float64(wrong) / float64(set.Len())
	}
	return fpr, fnr, overall
}
