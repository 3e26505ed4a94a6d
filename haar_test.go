package vigo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

// uniformIntegral builds the integral image of a width x height window
// filled with a single value.
func uniformIntegral(t *testing.T, width, height int, value int64) *IntegralImage {
	t.Helper()

	pix := make([]int64, width*height)
	for i := range pix {
		pix[i] = value
	}
	ii, err := NewIntegralImage(pix, width, height)
	assert.NoError(t, err)
	return ii
}

func TestFeatureSet_EnumerationOrder(t *testing.T) {
	assert := assert.New(t)

	fs, err := NewFeatureSet(1, 1, 2, 2)
	assert.NoError(err)

	expected := []HaarFeature{
		{Type: TwoVertical, X: 0, Y: 0, W: 1, H: 1},
		{Type: TwoHorizontal, X: 0, Y: 0, W: 1, H: 1},
		{Type: TwoByTwo, X: 0, Y: 0, W: 1, H: 1},
		{Type: TwoHorizontal, X: 0, Y: 1, W: 1, H: 1},
		{Type: TwoVertical, X: 1, Y: 0, W: 1, H: 1},
		{Type: TwoHorizontal, X: 0, Y: 0, W: 1, H: 2},
		{Type: TwoVertical, X: 0, Y: 0, W: 2, H: 1},
	}
	assert.Equal(len(expected), fs.Len())
	for i, f := range expected {
		assert.Equal(f, fs.At(i), "catalog index %d", i)
	}

	w, h := fs.Window()
	assert.Equal(2, w)
	assert.Equal(2, h)
}

func TestFeatureSet_Deterministic(t *testing.T) {
	a, err := NewFeatureSet(2, 2, 8, 8)
	assert.NoError(t, err)
	b, err := NewFeatureSet(2, 2, 8, 8)
	assert.NoError(t, err)

	assert.Equal(t, a.features, b.features)
}

func TestFeatureSet_InvalidConfiguration(t *testing.T) {
	_, err := NewFeatureSet(1, 1, 0, 8)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewFeatureSet(0, 1, 8, 8)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewFeatureSet(9, 1, 8, 8)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	// The base rectangle fills the window, leaving no room for any layout.
	_, err = NewFeatureSet(8, 8, 8, 8)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestFeature_UniformImageScoresZero(t *testing.T) {
	assert := assert.New(t)

	fs, err := NewFeatureSet(1, 1, 6, 6)
	assert.NoError(err)
	ii := uniformIntegral(t, 6, 6, 7)

	for i := 0; i < fs.Len(); i++ {
		f := fs.At(i)
		assert.Equal(int64(0), f.Evaluate(ii), "feature %d (%s)", i, f.Type)
	}
}

func TestFeature_TwoVerticalSplit(t *testing.T) {
	assert := assert.New(t)

	// The top two rows hold 9, the bottom two hold 2.
	pix := make([]int64, 4*4)
	for i := range pix {
		if i < 8 {
			pix[i] = 9
		} else {
			pix[i] = 2
		}
	}
	ii, err := NewIntegralImage(pix, 4, 4)
	assert.NoError(err)

	split := HaarFeature{Type: TwoVertical, X: 1, Y: 0, W: 2, H: 2}
	assert.Equal(int64((9-2)*2*2), split.Evaluate(ii))

	top := HaarFeature{Type: TwoVertical, X: 0, Y: 0, W: 3, H: 1}
	assert.Equal(int64(0), top.Evaluate(ii))

	bottom := HaarFeature{Type: TwoVertical, X: 2, Y: 2, W: 1, H: 1}
	assert.Equal(int64(0), bottom.Evaluate(ii))
}

func TestFeature_EvaluateTexture(t *testing.T) {
	assert := assert.New(t)

	ii, err := NewIntegralImage(canonicalPix, 4, 4)
	assert.NoError(err)

	twoH := HaarFeature{Type: TwoHorizontal, X: 0, Y: 0, W: 1, H: 1}
	assert.Equal(int64(1), twoH.Evaluate(ii))

	twoV := HaarFeature{Type: TwoVertical, X: 0, Y: 0, W: 1, H: 1}
	assert.Equal(int64(-4), twoV.Evaluate(ii))

	tex := []int64{
		5, 1, 7,
		2, 8, 3,
		9, 4, 6,
	}
	tii, err := NewIntegralImage(tex, 3, 3)
	assert.NoError(err)

	// The middle strip counts twice against its neighbours.
	threeH := HaarFeature{Type: ThreeHorizontal, X: 0, Y: 0, W: 1, H: 1}
	assert.Equal(int64(2*1-5-7), threeH.Evaluate(tii))

	twoByTwo := HaarFeature{Type: TwoByTwo, X: 1, Y: 1, W: 1, H: 1}
	assert.Equal(int64(3+4-8-6), twoByTwo.Evaluate(tii))
}

func TestFeature_JSONRoundTrip(t *testing.T) {
	assert := assert.New(t)

	f := HaarFeature{Type: ThreeHorizontal, X: 3, Y: 1, W: 5, H: 2}
	data, err := json.Marshal(f)
	assert.NoError(err)
	assert.JSONEq(`{"type":"three_horizontal","x":3,"y":1,"width":5,"height":2}`, string(data))

	var back HaarFeature
	assert.NoError(json.Unmarshal(data, &back))
	assert.Equal(f, back)

	assert.Error(json.Unmarshal([]byte(`{"type":"five_sided"}`), &back))

	_, err = json.Marshal(HaarFeature{Type: FeatureType(9)})
	assert.Error(err)
}

func TestSign_JSON(t *testing.T) {
	assert := assert.New(t)

	data, err := json.Marshal([]Sign{Positive, Negative})
	assert.NoError(err)
	assert.JSONEq(`["positive","negative"]`, string(data))

	var back []Sign
	assert.NoError(json.Unmarshal(data, &back))
	assert.Equal([]Sign{Positive, Negative}, back)

	var s Sign
	assert.Error(json.Unmarshal([]byte(`"sideways"`), &s))

	_, err = json.Marshal(Sign(3))
	assert.Error(err)
}
