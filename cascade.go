package vigo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/esimov/vigo/utils"
)

// ErrInvalidConfig is returned when a trainer configuration cannot produce a
// terminating training run.
var ErrInvalidConfig = errors.New("vigo: invalid trainer configuration")

// Default training parameters, matching the canonical 64x64 face window setup.
const (
	DefaultTargetStageFPR        = 0.35
	DefaultMinRounds             = 3
	DefaultMaxDepth              = 10
	DefaultCalibrationPercentile = 0.05
)

// TrainerOptions bundle every tunable of a cascade training run. At least
// one of TargetStageFPR and MaxRounds must be set, or the boosting rounds of
// a stage would never stop.
type TrainerOptions struct {
	// WindowWidth and WindowHeight fix the extent of every training sample.
	WindowWidth  int
	WindowHeight int

	// MinFeatureWidth and MinFeatureHeight bound the smallest enumerated
	// base rectangle. Zero falls back to single pixel rectangles.
	MinFeatureWidth  int
	MinFeatureHeight int

	// MaxDepth caps the number of cascade stages.
	MaxDepth int

	// TargetStageFPR ends the boosting rounds of a stage once the stage
	// false positive rate sinks to it and MinRounds rounds have run.
	// Zero disables the rule.
	TargetStageFPR float64

	// MinRounds keeps a stage boosting even after it reached its false
	// positive target.
	MinRounds int

	// MaxRounds hard-caps the boosting rounds of a stage. Zero disables
	// the cap.
	MaxRounds int

	// TargetCascadeFPR ends the stage loop early once the whole cascade
	// reaches this false positive rate over the original training set.
	// Zero disables the rule.
	TargetCascadeFPR float64

	// CalibrationPercentile places the stage decision threshold at this
	// percentile of the sorted face votes.
	CalibrationPercentile float64

	// ExpectedSamples, when set, rejects training sets of any other size.
	ExpectedSamples int

	// Workers caps the goroutines of the per-round feature scan.
	// Zero picks the number of CPUs.
	Workers int

	// Log receives the round and stage reports of the run.
	Log io.Writer

	// Progress, when set, is called during the feature scan of every round:
	// first with done == 0, afterwards once per scanned feature, possibly
	// from multiple goroutines.
	Progress func(done, total int)
}

// DefaultTrainerOptions returns the canonical training configuration for
// 64x64 face windows.
func DefaultTrainerOptions() *TrainerOptions {
	return &TrainerOptions{
		WindowWidth:           64,
		WindowHeight:          64,
		MinFeatureWidth:       4,
		MinFeatureHeight:      4,
		MaxDepth:              DefaultMaxDepth,
		TargetStageFPR:        DefaultTargetStageFPR,
		MinRounds:             DefaultMinRounds,
		CalibrationPercentile: DefaultCalibrationPercentile,
		Workers:               runtime.NumCPU(),
		Log:                   io.Discard,
	}
}

// Trainer drives the full cascade training pipeline over one feature catalog.
type Trainer struct {
	opts     TrainerOptions
	features *FeatureSet
}

// NewTrainer validates the configuration and enumerates the feature catalog.
func NewTrainer(opts *TrainerOptions) (*Trainer, error) {
	if opts == nil {
		opts = DefaultTrainerOptions()
	}
	o := *opts

	if o.Log == nil {
		o.Log = io.Discard
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.MinFeatureWidth <= 0 {
		o.MinFeatureWidth = 1
	}
	if o.MinFeatureHeight <= 0 {
		o.MinFeatureHeight = 1
	}

	if o.MaxDepth <= 0 {
		return nil, fmt.Errorf("%w: max depth %d", ErrInvalidConfig, o.MaxDepth)
	}
	if o.TargetStageFPR < 0 || o.TargetStageFPR >= 1 {
		return nil, fmt.Errorf("%w: stage false positive target %g", ErrInvalidConfig, o.TargetStageFPR)
	}
	if o.TargetCascadeFPR < 0 || o.TargetCascadeFPR >= 1 {
		return nil, fmt.Errorf("%w: cascade false positive target %g", ErrInvalidConfig, o.TargetCascadeFPR)
	}
	if o.TargetStageFPR == 0 && o.MaxRounds <= 0 {
		return nil, fmt.Errorf("%w: neither a stage false positive target nor a round cap is set", ErrInvalidConfig)
	}
	if o.MinRounds < 0 || (o.MaxRounds > 0 && o.MinRounds > o.MaxRounds) {
		return nil, fmt.Errorf("%w: min rounds %d with max rounds %d", ErrInvalidConfig, o.MinRounds, o.MaxRounds)
	}
	if o.CalibrationPercentile < 0 || o.CalibrationPercentile > 1 {
		return nil, fmt.Errorf("%w: calibration percentile %g", ErrInvalidConfig, o.CalibrationPercentile)
	}
	if o.ExpectedSamples < 0 {
		return nil, fmt.Errorf("%w: expected samples %d", ErrInvalidConfig, o.ExpectedSamples)
	}

	fs, err := NewFeatureSet(o.MinFeatureWidth, o.MinFeatureHeight, o.WindowWidth, o.WindowHeight)
	if err != nil {
		return nil, err
	}
	return &Trainer{opts: o, features: fs}, nil
}

// Features exposes the enumerated feature catalog of the trainer.
func (t *Trainer) Features() *FeatureSet {
	return t.features
}

func (t *Trainer) logf(format string, args ...any) {
	fmt.Fprintf(t.opts.Log, format+"\n", args...)
}

// Train runs the stage loop until the cascade reaches its configured depth,
// runs out of background windows to prune, or hits the cascade-wide false
// positive target. Every stage trains on the windows the earlier stages let
// through, and the returned report scores the finished cascade against the
// original, unfiltered set. A failing stage returns the partial cascade,
// marked incomplete, together with the error.
func (t *Trainer) Train(set *TrainingSet) (*Cascade, *TrainingReport, error) {
	if set == nil || set.Len() == 0 {
		return nil, nil, ErrEmptyTrainingSet
	}
	if set.Width != t.opts.WindowWidth || set.Height != t.opts.WindowHeight {
		return nil, nil, fmt.Errorf("%w: %dx%d samples for a %dx%d window",
			ErrDimensionMismatch, set.Width, set.Height, t.opts.WindowWidth, t.opts.WindowHeight)
	}
	if t.opts.ExpectedSamples > 0 && set.Len() != t.opts.ExpectedSamples {
		return nil, nil, fmt.Errorf("%w: %d samples, expected %d",
			ErrSampleCount, set.Len(), t.opts.ExpectedSamples)
	}

	casc := &Cascade{
		Width:    t.opts.WindowWidth,
		Height:   t.opts.WindowHeight,
		features: t.features,
	}

	start := time.Now()
	current := set
	for stage := 1; stage <= t.opts.MaxDepth; stage++ {
		t.logf("stage %d: boosting over %d windows (%d faces, %d backgrounds) and %d features",
			stage, current.Len(), current.Positives(), current.Negatives(), t.features.Len())

		sc, err := t.boost(current, stage)
		if err != nil {
			return casc, nil, fmt.Errorf("stage %d: %w", stage, err)
		}
		casc.Stages = append(casc.Stages, sc)

		current = survivors(t.features, sc, current)
		if current.Positives() == 0 {
			return casc, nil, fmt.Errorf("stage %d filtered out every face window: %w", stage, ErrNoFaceSamples)
		}
		if current.Negatives() == 0 {
			t.logf("stage %d: no background window survives, cascade is done", stage)
			break
		}
		if t.opts.TargetCascadeFPR > 0 {
			if fpr := casc.report(set, 0).FalsePositiveRate; fpr <= t.opts.TargetCascadeFPR {
				t.logf("stage %d: cascade false positive rate %.4f reached the target", stage, fpr)
				break
			}
		}
	}
	casc.Complete = true

	report := casc.report(set, time.Since(start))
	t.logf("trained %d stages in %s: detection rate %.4f, false positive rate %.4f",
		report.Stages, utils.FormatTime(report.Elapsed), report.DetectionRate, report.FalsePositiveRate)
	return casc, report, nil
}

// survivors keeps the samples a freshly trained stage still classifies as
// faces. The earlier stages have already pruned everything else, so the
// filtered set can only shrink.
func survivors(fs *FeatureSet, sc *StrongClassifier, set *TrainingSet) *TrainingSet {
	kept := make([]Sample, 0, set.Len())
	for i := range set.Samples {
		if sc.Evaluate(fs, set.Samples[i].Integral) == Face {
			kept = append(kept, set.Samples[i])
		}
	}
	return &TrainingSet{Width: set.Width, Height: set.Height, Samples: kept}
}

// Cascade is an ordered chain of strong classifiers sharing one feature
// catalog. A window counts as a face only when every stage votes for it and
// the first rejecting stage ends its evaluation. Complete marks cascades
// whose training ran to the end; a partial cascade left behind by a failed
// run still classifies, but carries only the stages trained so far.
type Cascade struct {
	Width    int
	Height   int
	Stages   []*StrongClassifier
	Complete bool

	features *FeatureSet
}

// Classify labels a single integral image. A cascade without stages lets
// every window through.
func (c *Cascade) Classify(ii *IntegralImage) (Classification, error) {
	if ii.Width != c.Width || ii.Height != c.Height {
		return NonFace, fmt.Errorf("%w: %dx%d window for a %dx%d cascade",
			ErrDimensionMismatch, ii.Width, ii.Height, c.Width, c.Height)
	}
	return c.classify(ii), nil
}

// classify skips the window check for samples validated on entry.
func (c *Cascade) classify(ii *IntegralImage) Classification {
	for _, sc := range c.Stages {
		if sc.Evaluate(c.features, ii) == NonFace {
			return NonFace
		}
	}
	return Face
}

// TrainingReport scores a cascade against a labeled training set.
type TrainingReport struct {
	Stages            int
	DetectionRate     float64
	FalsePositiveRate float64
	Elapsed           time.Duration
}

// Report scores the cascade against a labeled set of matching extent.
func (c *Cascade) Report(set *TrainingSet) (*TrainingReport, error) {
	if set.Width != c.Width || set.Height != c.Height {
		return nil, fmt.Errorf("%w: %dx%d samples for a %dx%d cascade",
			ErrDimensionMismatch, set.Width, set.Height, c.Width, c.Height)
	}
	return c.report(set, 0), nil
}

func (c *Cascade) report(set *TrainingSet, elapsed time.Duration) *TrainingReport {
	var detected, falsePos int
	for i := range set.Samples {
		s := &set.Samples[i]
		if c.classify(s.Integral) == Face {
			if s.Label == Face {
				detected++
			} else {
				falsePos++
			}
		}
	}

	r := &TrainingReport{Stages: len(c.Stages), Elapsed: elapsed}
	if positives := set.Positives(); positives > 0 {
		r.DetectionRate = float64(detected) / float64(positives)
	}
	if negatives := set.Negatives(); negatives > 0 {
		r.FalsePositiveRate = float64(falsePos) / float64(negatives)
	}
	return r
}

// cascadeJSON is the on-disk layout of a trained cascade.
type cascadeJSON struct {
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Complete bool        `json:"complete"`
	Stages   []stageJSON `json:"stages"`
}

type stageJSON struct {
	Stumps    []stumpJSON `json:"weak_classifiers"`
	Weights   []float64   `json:"weights"`
	Threshold float64     `json:"threshold"`
}

type stumpJSON struct {
	Feature   HaarFeature `json:"feature"`
	Threshold int64       `json:"threshold"`
	Polarity  Sign        `json:"polarity"`
}

// Save writes the cascade as indented JSON. Stump feature indices are
// resolved into their full descriptors, so the file stands on its own.
func (c *Cascade) Save(w io.Writer) error {
	out := cascadeJSON{
		Width:    c.Width,
		Height:   c.Height,
		Complete: c.Complete,
		Stages:   make([]stageJSON, 0, len(c.Stages)),
	}
	for _, sc := range c.Stages {
		st := stageJSON{Weights: sc.Alphas, Threshold: sc.Threshold}
		for _, stump := range sc.Stumps {
			st.Stumps = append(st.Stumps, stumpJSON{
				Feature:   c.features.At(stump.Feature),
				Threshold: stump.Threshold,
				Polarity:  stump.Polarity,
			})
		}
		out.Stages = append(out.Stages, st)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("vigo: encoding cascade: %w", err)
	}
	return nil
}

// LoadCascade reads a persisted cascade back. The loader rebuilds a compact
// catalog holding only the persisted features, so the stump indices of a
// loaded cascade need not match the ones of the trainer that produced the
// file; the classifications do.
func LoadCascade(r io.Reader) (*Cascade, error) {
	var in cascadeJSON
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("vigo: decoding cascade: %w", err)
	}
	if in.Width <= 0 || in.Height <= 0 {
		return nil, fmt.Errorf("%w: window %dx%d", ErrInvalidWindow, in.Width, in.Height)
	}

	casc := &Cascade{Width: in.Width, Height: in.Height, Complete: in.Complete}
	var arena []HaarFeature
	for si, st := range in.Stages {
		if len(st.Weights) != len(st.Stumps) {
			return nil, fmt.Errorf("vigo: stage %d carries %d weights for %d weak classifiers",
				si+1, len(st.Weights), len(st.Stumps))
		}
		sc := &StrongClassifier{Alphas: st.Weights, Threshold: st.Threshold}
		for _, stump := range st.Stumps {
			if !stump.Feature.fits(in.Width, in.Height) {
				return nil, fmt.Errorf("%w: stage %d feature %+v does not fit %dx%d",
					ErrInvalidWindow, si+1, stump.Feature, in.Width, in.Height)
			}
			arena = append(arena, stump.Feature)
			sc.Stumps = append(sc.Stumps, WeakClassifier{
				Feature:   len(arena) - 1,
				Threshold: stump.Threshold,
				Polarity:  stump.Polarity,
			})
		}
		casc.Stages = append(casc.Stages, sc)
	}
	casc.features = &FeatureSet{width: in.Width, height: in.Height, features: arena}
	return casc, nil
}
