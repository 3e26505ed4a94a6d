package vigo

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidWindow is returned when a feature window configuration cannot
// produce a usable catalog.
var ErrInvalidWindow = errors.New("vigo: invalid feature window configuration")

// FeatureType identifies one of the four rectangular Haar feature layouts.
type FeatureType int

const (
	// TwoVertical stacks a second rectangle below the base one.
	TwoVertical FeatureType = iota
	// TwoHorizontal places a second rectangle right of the base one.
	TwoHorizontal
	// ThreeHorizontal places two more rectangles right of the base one.
	ThreeHorizontal
	// TwoByTwo completes the base rectangle into a checkerboard of four.
	TwoByTwo
)

func (t FeatureType) String() string {
	switch t {
	case TwoVertical:
		return "two_vertical"
	case TwoHorizontal:
		return "two_horizontal"
	case ThreeHorizontal:
		return "three_horizontal"
	case TwoByTwo:
		return "two_by_two"
	}
	return fmt.Sprintf("FeatureType(%d)", int(t))
}

// MarshalJSON encodes the feature type under its readable name.
func (t FeatureType) MarshalJSON() ([]byte, error) {
	switch t {
	case TwoVertical, TwoHorizontal, ThreeHorizontal, TwoByTwo:
		return json.Marshal(t.String())
	}
	return nil, fmt.Errorf("vigo: unknown feature type %d", int(t))
}

// UnmarshalJSON decodes a feature type from its readable name.
func (t *FeatureType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "two_vertical":
		*t = TwoVertical
	case "two_horizontal":
		*t = TwoHorizontal
	case "three_horizontal":
		*t = ThreeHorizontal
	case "two_by_two":
		*t = TwoByTwo
	default:
		return fmt.Errorf("vigo: unknown feature type %q", s)
	}
	return nil
}

// Sign orients the comparison of a decision stump: a positive stump votes
// face when the feature score sits at or above its threshold, a negative one
// when it sits at or below.
type Sign int

const (
	Positive Sign = iota
	Negative
)

func (s Sign) String() string {
	if s == Negative {
		return "negative"
	}
	return "positive"
}

// MarshalJSON encodes the sign under its readable name.
func (s Sign) MarshalJSON() ([]byte, error) {
	switch s {
	case Positive, Negative:
		return json.Marshal(s.String())
	}
	return nil, fmt.Errorf("vigo: unknown sign %d", int(s))
}

// UnmarshalJSON decodes a sign from its readable name.
func (s *Sign) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "positive":
		*s = Positive
	case "negative":
		*s = Negative
	default:
		return fmt.Errorf("vigo: unknown sign %q", name)
	}
	return nil
}

// multiplier maps a sign onto its +-1 scale factor.
func multiplier(s Sign) int {
	if s == Negative {
		return -1
	}
	return 1
}

// HaarFeature is a single rectangular feature anchored inside the training
// window. X and Y locate the top-left corner of the base rectangle, W and H
// give its extent, and the feature type dictates how many adjacent copies of
// the base rectangle take part in the evaluation and with which signs.
type HaarFeature struct {
	Type FeatureType `json:"type"`
	X    int         `json:"x"`
	Y    int         `json:"y"`
	W    int         `json:"width"`
	H    int         `json:"height"`
}

// extent returns the total width and height covered by the feature.
func (f HaarFeature) extent() (int, int) {
	switch f.Type {
	case TwoVertical:
		return f.W, 2 * f.H
	case TwoHorizontal:
		return 2 * f.W, f.H
	case ThreeHorizontal:
		return 3 * f.W, f.H
	case TwoByTwo:
		return 2 * f.W, 2 * f.H
	}
	return 0, 0
}

// fits reports whether the feature lies fully inside a window of the given
// extent.
func (f HaarFeature) fits(width, height int) bool {
	if f.X < 0 || f.Y < 0 || f.W <= 0 || f.H <= 0 {
		return false
	}
	w, h := f.extent()
	return w > 0 && h > 0 && f.X+w <= width && f.Y+h <= height
}

// Evaluate computes the signed sub-rectangle sum of the feature over one
// integral image. Every layout weights its sub-rectangles so that the
// contributions cancel out exactly on a constant image: the three horizontal
// strips count the middle one twice against its two neighbours, the other
// layouts pair each rectangle with an opposite-signed one of the same size.
// The integral image must cover the feature; the catalog guarantees this for
// windows matching its extent.
func (f HaarFeature) Evaluate(ii *IntegralImage) int64 {
	x, y, w, h := f.X, f.Y, f.W, f.H
	switch f.Type {
	case TwoVertical:
		return ii.area(x, y, x+w, y+h) - ii.area(x, y+h, x+w, y+2*h)
	case TwoHorizontal:
		return ii.area(x+w, y, x+2*w, y+h) - ii.area(x, y, x+w, y+h)
	case ThreeHorizontal:
		mid := ii.area(x+w, y, x+2*w, y+h)
		return 2*mid - ii.area(x, y, x+w, y+h) - ii.area(x+2*w, y, x+3*w, y+h)
	case TwoByTwo:
		return ii.area(x+w, y, x+2*w, y+h) + ii.area(x, y+h, x+w, y+2*h) -
			ii.area(x, y, x+w, y+h) - ii.area(x+w, y+h, x+2*w, y+2*h)
	}
	return 0
}

// FeatureSet is the immutable catalog of every Haar feature fitting a
// training window. Features are enumerated in a fixed order, so an index
// into the catalog identifies the same feature across runs and the catalog
// can be shared read-only between goroutines.
type FeatureSet struct {
	width    int
	height   int
	features []HaarFeature
}

// NewFeatureSet enumerates every feature whose base rectangle measures at
// least minW x minH inside a width x height window. The enumeration walks
// base extents, then anchors, then layouts, and the catalog size grows with
// roughly the square of the window area.
func NewFeatureSet(minW, minH, width, height int) (*FeatureSet, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: window %dx%d", ErrInvalidWindow, width, height)
	}
	if minW <= 0 || minH <= 0 || minW > width || minH > height {
		return nil, fmt.Errorf("%w: base extent %dx%d does not fit a %dx%d window",
			ErrInvalidWindow, minW, minH, width, height)
	}

	fs := &FeatureSet{width: width, height: height}
	for w := minW; w <= width; w++ {
		for h := minH; h <= height; h++ {
			for x := 0; x+w <= width; x++ {
				for y := 0; y+h <= height; y++ {
					if y+2*h <= height {
						fs.features = append(fs.features, HaarFeature{Type: TwoVertical, X: x, Y: y, W: w, H: h})
					}
					if x+2*w <= width {
						fs.features = append(fs.features, HaarFeature{Type: TwoHorizontal, X: x, Y: y, W: w, H: h})
					}
					if x+3*w <= width {
						fs.features = append(fs.features, HaarFeature{Type: ThreeHorizontal, X: x, Y: y, W: w, H: h})
					}
					if x+2*w <= width && y+2*h <= height {
						fs.features = append(fs.features, HaarFeature{Type: TwoByTwo, X: x, Y: y, W: w, H: h})
					}
				}
			}
		}
	}
	if len(fs.features) == 0 {
		return nil, fmt.Errorf("%w: no %dx%d feature fits a %dx%d window",
			ErrInvalidWindow, minW, minH, width, height)
	}
	return fs, nil
}

// Len returns the number of enumerated features.
func (fs *FeatureSet) Len() int {
	return len(fs.features)
}

// At returns the feature stored at catalog index i.
func (fs *FeatureSet) At(i int) HaarFeature {
	return fs.features[i]
}

// Window returns the training window extent the catalog was built for.
func (fs *FeatureSet) Window() (int, int) {
	return fs.width, fs.height
}
