package vigo

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"
	"github.com/esimov/vigo/utils"
	_ "golang.org/x/image/bmp"
)

var (
	// ErrEmptyTrainingSet is returned when no training sample is available.
	ErrEmptyTrainingSet = errors.New("vigo: empty training set")
	// ErrDimensionMismatch is returned when window extents disagree.
	ErrDimensionMismatch = errors.New("vigo: window dimensions mismatch")
	// ErrSampleCount is returned when the training set size differs from the configured one.
	ErrSampleCount = errors.New("vigo: unexpected training set size")
)

// Classification is the binary label of a training window.
type Classification int

const (
	NonFace Classification = iota
	Face
)

func (c Classification) String() string {
	if c == Face {
		return "face"
	}
	return "non-face"
}

// unit maps a label onto its +-1 arithmetic value.
func unit(c Classification) int {
	if c == Face {
		return 1
	}
	return -1
}

// Sample pairs the integral image of one training window with its label.
type Sample struct {
	Integral *IntegralImage
	Label    Classification
}

// TrainingSet is an ordered collection of uniformly sized training samples.
// The slice order is part of the set's identity: training over the same
// samples in the same order reproduces the same cascade.
type TrainingSet struct {
	Width   int
	Height  int
	Samples []Sample
}

// NewTrainingSet wraps the samples after checking that every window shares
// one extent.
func NewTrainingSet(samples []Sample) (*TrainingSet, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	w, h := samples[0].Integral.Width, samples[0].Integral.Height
	for i := range samples {
		ii := samples[i].Integral
		if ii.Width != w || ii.Height != h {
			return nil, fmt.Errorf("%w: sample %d is %dx%d, the set is %dx%d",
				ErrDimensionMismatch, i, ii.Width, ii.Height, w, h)
		}
	}
	return &TrainingSet{Width: w, Height: h, Samples: samples}, nil
}

// Len returns the number of samples.
func (ts *TrainingSet) Len() int {
	return len(ts.Samples)
}

// Positives returns the number of face samples.
func (ts *TrainingSet) Positives() int {
	var n int
	for i := range ts.Samples {
		if ts.Samples[i].Label == Face {
			n++
		}
	}
	return n
}

// Negatives returns the number of background samples.
func (ts *TrainingSet) Negatives() int {
	return len(ts.Samples) - ts.Positives()
}

// LoaderOptions control how raw images are turned into training samples.
type LoaderOptions struct {
	// Width and Height of the produced training windows. Source images with
	// a different extent get resampled.
	Width  int
	Height int

	// FlipFaces doubles the face samples with their mirrored twins.
	FlipFaces bool

	// Workers caps the number of concurrently decoded images.
	// Zero picks the number of CPUs.
	Workers int
}

// DefaultLoaderOptions returns the loader configuration producing the
// canonical 64x64 training windows.
func DefaultLoaderOptions() *LoaderOptions {
	return &LoaderOptions{
		Width:   64,
		Height:  64,
		Workers: runtime.NumCPU(),
	}
}

// loadTask routes one source image to its slot in the sample slice.
type loadTask struct {
	slot  int
	path  string
	label Classification
}

// validExtensions lists the supported source image formats.
var validExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif"}

// LoadTrainingSet reads every supported image below facesDir and
// backgroundDir and turns them into labeled training windows: each file is
// decoded, resampled to the window extent when needed, grayscaled and
// condensed into an integral image. Face windows are optionally doubled with
// their mirrored twins. Decoding fans out over worker goroutines, but the
// samples keep the lexical walk order of their directories, so loading the
// same tree always produces the same set.
func LoadTrainingSet(facesDir, backgroundDir string, opts *LoaderOptions) (*TrainingSet, error) {
	if opts == nil {
		opts = DefaultLoaderOptions()
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: window %dx%d", ErrEmptyImage, opts.Width, opts.Height)
	}

	faces, err := collectImagePaths(facesDir)
	if err != nil {
		return nil, err
	}
	backgrounds, err := collectImagePaths(backgroundDir)
	if err != nil {
		return nil, err
	}
	if len(faces)+len(backgrounds) == 0 {
		return nil, ErrEmptyTrainingSet
	}

	perFace := 1
	if opts.FlipFaces {
		perFace = 2
	}
	samples := make([]Sample, len(faces)*perFace+len(backgrounds))

	tasks := make([]loadTask, 0, len(faces)+len(backgrounds))
	for i, p := range faces {
		tasks = append(tasks, loadTask{slot: i * perFace, path: p, label: Face})
	}
	for i, p := range backgrounds {
		tasks = append(tasks, loadTask{slot: len(faces)*perFace + i, path: p, label: NonFace})
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = utils.Min(workers, len(tasks))

	var (
		errOnce sync.Once
		loadErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { loadErr = err })
	}

	done := make(chan struct{})
	defer close(done)

	paths := make(chan loadTask)
	go func() {
		defer close(paths)
		for _, t := range tasks {
			select {
			case <-done:
				return
			case paths <- t:
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for t := range paths {
				img, err := decodeWindow(t.path, opts.Width, opts.Height)
				if err != nil {
					fail(fmt.Errorf("%s: %w", t.path, err))
					return
				}
				ii, err := integralWindow(img)
				if err != nil {
					fail(fmt.Errorf("%s: %w", t.path, err))
					return
				}
				samples[t.slot] = Sample{Integral: ii, Label: t.label}

				if t.label == Face && opts.FlipFaces {
					fii, err := integralWindow(imaging.FlipH(img))
					if err != nil {
						fail(fmt.Errorf("%s: %w", t.path, err))
						return
					}
					samples[t.slot+1] = Sample{Integral: fii, Label: Face}
				}
			}
		}()
	}
	wg.Wait()

	if loadErr != nil {
		return nil, loadErr
	}
	return NewTrainingSet(samples)
}

// LoadWindow reads a single image file and condenses it into an integral
// image of the given extent, prepared the same way the training set loader
// prepares its samples.
func LoadWindow(path string, width, height int) (*IntegralImage, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: window %dx%d", ErrEmptyImage, width, height)
	}
	img, err := decodeWindow(path, width, height)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return integralWindow(img)
}

// collectImagePaths walks a directory tree and returns the paths of every
// supported image file in lexical order.
func collectImagePaths(dir string) ([]string, error) {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if isValidExtension(filepath.Ext(info.Name()), validExtensions) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return paths, nil
}

// isValidExtension checks for the supported extensions.
func isValidExtension(ext string, extensions []string) bool {
	for _, ex := range extensions {
		if ex == ext {
			return true
		}
	}
	return false
}

// decodeWindow reads one source image and resamples it to the window extent.
func decodeWindow(path string, width, height int) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	if b := src.Bounds(); b.Dx() == width && b.Dy() == height {
		return imaging.Clone(src), nil
	}
	return imaging.Resize(src, width, height, imaging.Lanczos), nil
}

// integralWindow grayscales one window and builds its summed-area table.
func integralWindow(img *image.NRGBA) (*IntegralImage, error) {
	bounds := img.Bounds()
	gray := pigo.RgbToGrayscale(img)

	pix := make([]int64, len(gray))
	for i, v := range gray {
		pix[i] = int64(v)
	}
	return NewIntegralImage(pix, bounds.Dx(), bounds.Dy())
}
