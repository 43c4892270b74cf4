package transform

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageTensorLayout(t *testing.T) {
	data := make([]float32, 12)
	for i := range data {
		data[i] = float32(i)
	}
	tensor := &ImageTensor{Data: data, Channels: 3, Height: 2, Width: 2}

	c, h, w := tensor.Dims()
	assert.Equal(t, 3, c)
	assert.Equal(t, 2, h)
	assert.Equal(t, 2, w)

	assert.Equal(t, float32(0), tensor.At(0, 0, 0))
	assert.Equal(t, float32(1), tensor.At(0, 0, 1))
	assert.Equal(t, float32(2), tensor.At(0, 1, 0))
	assert.Equal(t, float32(5), tensor.At(1, 0, 1))
	assert.Equal(t, float32(11), tensor.At(2, 1, 1))
}

func TestToNormalizedTensorScalesChannels(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 0, G: 255, B: 102, A: 255})

	identityMean := [3]float32{0, 0, 0}
	identityStd := [3]float32{1, 1, 1}
	tensor := toNormalizedTensor(img, identityMean, identityStd)

	assert.InDelta(t, 1.0, float64(tensor.At(0, 0, 0)), 1e-6)
	assert.InDelta(t, 0.0, float64(tensor.At(1, 0, 0)), 1e-6)
	assert.InDelta(t, 0.2, float64(tensor.At(2, 0, 0)), 1e-6)
	assert.InDelta(t, 0.0, float64(tensor.At(0, 0, 1)), 1e-6)
	assert.InDelta(t, 1.0, float64(tensor.At(1, 0, 1)), 1e-6)
	assert.InDelta(t, 0.4, float64(tensor.At(2, 0, 1)), 1e-6)
}

func TestToNormalizedTensorAppliesStatistics(t *testing.T) {
	img := newGrayImage(2, 2, 128)
	tensor := toNormalizedTensor(img, ImageNetMean, ImageNetStd)
	for c := 0; c < 3; c++ {
		want := (128.0/255 - float64(ImageNetMean[c])) / float64(ImageNetStd[c])
		assert.InDelta(t, want, float64(tensor.At(c, 1, 1)), 1e-5, "channel %d", c)
	}
}

func TestGomlxTensor(t *testing.T) {
	tensor := toNormalizedTensor(newGradientImage(4, 3), [3]float32{0, 0, 0}, [3]float32{1, 1, 1})
	require.NotNil(t, tensor.Gomlx())
}

func TestToImageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		mean [3]float32
		std  [3]float32
	}{
		{"identity", [3]float32{0, 0, 0}, [3]float32{1, 1, 1}},
		{"imagenet", ImageNetMean, ImageNetStd},
	}

	src := newGradientImage(6, 5)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tensor := toNormalizedTensor(src, tc.mean, tc.std)
			back := tensor.ToImage(tc.mean, tc.std)

			require.Equal(t, src.Bounds(), back.Bounds())
			for y := 0; y < 5; y++ {
				for x := 0; x < 6; x++ {
					assert.Equal(t, src.NRGBAAt(x, y), back.NRGBAAt(x, y), "pixel (%d,%d)", x, y)
				}
			}
		})
	}
}
