package vigo

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/esimov/vigo/utils"
)

// ErrDistributionLength is returned when a sample distribution does not
// cover the training set.
var ErrDistributionLength = errors.New("vigo: distribution does not match the training set")

// WeakClassifier is a one-feature decision stump. Feature indexes the
// catalog the stump was trained against. The stump votes face whenever the
// signed distance between the feature score and its threshold is
// non-negative, with the polarity picking the side of the threshold the
// faces live on.
type WeakClassifier struct {
	Feature   int
	Threshold int64
	Polarity  Sign
}

// Classify labels a single integral image.
func (w WeakClassifier) Classify(fs *FeatureSet, ii *IntegralImage) Classification {
	score := fs.At(w.Feature).Evaluate(ii)
	if int64(multiplier(w.Polarity))*(score-w.Threshold) >= 0 {
		return Face
	}
	return NonFace
}

// scored pairs a feature score with the weight and label of its sample.
type scored struct {
	score  int64
	weight float64
	label  Classification
}

// optimalStump returns the threshold and polarity with the lowest weighted
// error for the feature at catalog index fi, together with that error.
//
// The sweep sorts the sample scores and visits every distinct score once,
// treating it as the threshold of a candidate stump. At each boundary the
// error of the stump voting face at and above the threshold is the face
// weight below it plus the background weight at and above it; flipping the
// polarity complements both terms, so the two candidate errors always sum to
// the total weight and the better one never exceeds half of it. Duplicate
// scores are skipped: a cut between two equal scores cannot separate them.
// Among equal errors the lowest boundary with positive polarity wins.
func optimalStump(fi int, fs *FeatureSet, set *TrainingSet, dist []float64) (WeakClassifier, float64) {
	f := fs.At(fi)

	samples := make([]scored, set.Len())
	var tPos, tNeg float64
	for i := range set.Samples {
		s := &set.Samples[i]
		samples[i] = scored{
			score:  f.Evaluate(s.Integral),
			weight: dist[i],
			label:  s.Label,
		}
		if s.Label == Face {
			tPos += dist[i]
		} else {
			tNeg += dist[i]
		}
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].score < samples[j].score
	})

	best := WeakClassifier{Feature: fi}
	bestErr := math.Inf(1)

	var sPos, sNeg float64
	for i := range samples {
		if i == 0 || samples[i].score != samples[i-1].score {
			errPos := sPos + (tNeg - sNeg)
			errNeg := sNeg + (tPos - sPos)
			if errPos < bestErr {
				bestErr = errPos
				best.Threshold = samples[i].score
				best.Polarity = Positive
			}
			if errNeg < bestErr {
				bestErr = errNeg
				best.Threshold = samples[i].score
				best.Polarity = Negative
			}
		}
		if samples[i].label == Face {
			sPos += samples[i].weight
		} else {
			sNeg += samples[i].weight
		}
	}
	return best, bestErr
}

// stumpResult carries the winning stump of one worker.
type stumpResult struct {
	stump WeakClassifier
	err   float64
}

// better reports whether r beats o: a strictly smaller error wins, equal
// errors fall back to the lower catalog index.
func (r stumpResult) better(o stumpResult) bool {
	if r.err != o.err {
		return r.err < o.err
	}
	return r.stump.Feature < o.stump.Feature
}

// BestStump scans the whole catalog and returns the stump with the smallest
// weighted error over the training set, together with that error. The scan
// fans out over worker goroutines; ties between features resolve to the
// lowest catalog index, so the result never depends on scheduling.
func BestStump(fs *FeatureSet, set *TrainingSet, dist []float64, workers int) (WeakClassifier, float64, error) {
	return bestStump(fs, set, dist, workers, nil)
}

// bestStump runs the catalog scan and reports its progress to the optional
// callback, first with done == 0 and afterwards once per scanned feature,
// possibly from multiple goroutines.
func bestStump(fs *FeatureSet, set *TrainingSet, dist []float64, workers int, progress func(done, total int)) (WeakClassifier, float64, error) {
	if len(dist) != set.Len() {
		return WeakClassifier{}, 0, fmt.Errorf("%w: %d weights for %d samples",
			ErrDistributionLength, len(dist), set.Len())
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = utils.Min(workers, fs.Len())

	total := fs.Len()
	if progress != nil {
		progress(0, total)
	}

	indices := make(chan int)
	go func() {
		defer close(indices)
		for fi := 0; fi < total; fi++ {
			indices <- fi
		}
	}()

	var completed atomic.Int64
	results := make(chan stumpResult, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()

			local := stumpResult{
				stump: WeakClassifier{Feature: total},
				err:   math.Inf(1),
			}
			for fi := range indices {
				stump, e := optimalStump(fi, fs, set, dist)
				if r := (stumpResult{stump: stump, err: e}); r.better(local) {
					local = r
				}
				if progress != nil {
					progress(int(completed.Add(1)), total)
				}
			}
			results <- local
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	best := stumpResult{
		stump: WeakClassifier{Feature: total},
		err:   math.Inf(1),
	}
	for r := range results {
		if r.better(best) {
			best = r
		}
	}
	return best.stump, best.err, nil
}
