package vigo

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrEmptyImage is returned when an image with a non-positive extent is used.
	ErrEmptyImage = errors.New("vigo: image dimensions must be positive")
	// ErrPixelCount is returned when a pixel buffer does not cover its declared extent.
	ErrPixelCount = errors.New("vigo: pixel buffer length does not match the image dimensions")
	// ErrInvalidRegion is returned when a region reaches outside the integral image.
	ErrInvalidRegion = errors.New("vigo: region exceeds the integral image bounds")
)

// IntegralImage is the summed-area table of a single grayscale training
// window. The table carries an extra zero row and column, so a table built
// for a WxH image holds (W+1)x(H+1) cells and At(x, y) returns the sum of
// every pixel with column < x and row < y. The padding keeps the four corner
// lookups uniform for rectangles touching the image origin.
type IntegralImage struct {
	Width  int
	Height int
	cells  []int64
}

// NewIntegralImage builds the summed-area table of a row-major grayscale
// pixel buffer of the given extent.
func NewIntegralImage(pix []int64, width, height int) (*IntegralImage, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyImage, width, height)
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("%w: %d pixels for a %dx%d image",
			ErrPixelCount, len(pix), width, height)
	}

	stride := width + 1
	cells := make([]int64, stride*(height+1))
	for y := 0; y < height; y++ {
		copy(cells[(y+1)*stride+1:(y+2)*stride], pix[y*width:(y+1)*width])
	}
	for y := 1; y <= height; y++ {
		for x := 2; x <= width; x++ {
			cells[y*stride+x] += cells[y*stride+x-1]
		}
	}
	for y := 2; y <= height; y++ {
		for x := 1; x <= width; x++ {
			cells[y*stride+x] += cells[(y-1)*stride+x]
		}
	}

	return &IntegralImage{
		Width:  width,
		Height: height,
		cells:  cells,
	}, nil
}

// At returns the table cell (x, y), the sum of every pixel with column < x
// and row < y. Coordinates run from (0, 0) up to and including
// (Width, Height); row and column zero are always zero.
func (ii *IntegralImage) At(x, y int) int64 {
	return ii.cells[y*(ii.Width+1)+x]
}

// Area returns the pixel sum over r, expressed in image coordinates with
// Min as the inclusive top-left corner and Max as the exclusive bottom-right
// one. Rectangles without width or height sum to zero; rectangles with
// inverted corners or reaching outside the image are rejected.
func (ii *IntegralImage) Area(r image.Rectangle) (int64, error) {
	if r.Min.X > r.Max.X || r.Min.Y > r.Max.Y {
		return 0, fmt.Errorf("%w: inverted corners %v", ErrInvalidRegion, r)
	}
	if r.Min.X < 0 || r.Min.Y < 0 || r.Max.X > ii.Width || r.Max.Y > ii.Height {
		return 0, fmt.Errorf("%w: %v does not fit a %dx%d image",
			ErrInvalidRegion, r, ii.Width, ii.Height)
	}
	if r.Dx() == 0 || r.Dy() == 0 {
		return 0, nil
	}
	return ii.area(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y), nil
}

// area computes the four corner lookups without any bounds check.
// Callers guarantee 0 <= x0 <= x1 <= Width and 0 <= y0 <= y1 <= Height.
func (ii *IntegralImage) area(x0, y0, x1, y1 int) int64 {
	stride := ii.Width + 1
	return ii.cells[y1*stride+x1] - ii.cells[y0*stride+x1] -
		ii.cells[y1*stride+x0] + ii.cells[y0*stride+x0]
}
