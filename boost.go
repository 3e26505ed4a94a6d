package vigo

import (
	"errors"
	"fmt"
	"math"

	"github.com/esimov/vigo/utils"
)

var (
	// ErrVanishingWeights is returned when every sample weight decays to zero.
	ErrVanishingWeights = errors.New("vigo: sample distribution collapsed to zero")
	// ErrStumpError is returned when a boosting round yields an unusable error rate.
	ErrStumpError = errors.New("vigo: weak classifier error out of range")
)

// uniformDistribution spreads unit weight evenly over n samples.
func uniformDistribution(n int) []float64 {
	dist := make([]float64, n)
	for i := range dist {
		dist[i] = 1 / float64(n)
	}
	return dist
}

// reweight derives the next sample distribution from the current one: the
// weight of every sample the stump labeled correctly shrinks by e^-alpha
// while every miss grows by e^alpha, and the result is normalized back to
// unit mass. The input distribution is left untouched.
func reweight(dist []float64, fs *FeatureSet, set *TrainingSet, w WeakClassifier, alpha float64) ([]float64, error) {
	next := make([]float64, len(dist))
	for i := range set.Samples {
		s := &set.Samples[i]
		agreement := float64(unit(s.Label)) * float64(unit(w.Classify(fs, s.Integral)))
		next[i] = dist[i] * math.Exp(-alpha*agreement)
	}

	sum := utils.Sum(next)
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, ErrVanishingWeights
	}
	for i := range next {
		next[i] /= sum
	}
	return next, nil
}

// boost trains one cascade stage over the current training set. Every round
// picks the stump with the lowest weighted error, folds it into the stage
// committee with the weight 0.5*ln((1-e)/e) and shifts the sample weights
// towards the windows the stump got wrong. A stump separating the weighted
// set on its own closes the stage as its only member; otherwise the rounds
// continue until one of the configured stopping rules fires.
func (t *Trainer) boost(set *TrainingSet, stage int) (*StrongClassifier, error) {
	dist := uniformDistribution(set.Len())
	sc := &StrongClassifier{}

	for round := 1; ; round++ {
		stump, e, err := bestStump(t.features, set, dist, t.opts.Workers, t.opts.Progress)
		if err != nil {
			return nil, err
		}

		if e == 0 {
			sc = &StrongClassifier{}
			if err := sc.AddWeakClassifier(t.features, set, stump, 1, t.opts.CalibrationPercentile); err != nil {
				return nil, err
			}
			t.logf("stage %d round %d: feature %d separates the whole set, closing the stage",
				stage, round, stump.Feature)
			return sc, nil
		}
		if e >= 1 || math.IsNaN(e) {
			return nil, fmt.Errorf("%w: %g at stage %d round %d", ErrStumpError, e, stage, round)
		}

		alpha := 0.5 * math.Log((1-e)/e)
		if err := sc.AddWeakClassifier(t.features, set, stump, alpha, t.opts.CalibrationPercentile); err != nil {
			return nil, err
		}
		if dist, err = reweight(dist, t.features, set, stump, alpha); err != nil {
			return nil, err
		}

		fpr, fnr, overall := sc.ComputeError(t.features, set)
		t.logf("stage %d round %d: feature %d error %.4f alpha %.4f fpr %.4f fnr %.4f overall %.4f",
			stage, round, stump.Feature, e, alpha, fpr, fnr, overall)

		if t.opts.MaxRounds > 0 && round >= t.opts.MaxRounds {
			return sc, nil
		}
		if t.opts.TargetStageFPR > 0 && fpr <= t.opts.TargetStageFPR && round >= t.opts.MinRounds {
			return sc, nil
		}
	}
}
