package transform

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// ImageTensor is a normalized image in CHW layout: Data[c*H*W + y*W + x]
// holds channel c of the pixel at (x, y).
type ImageTensor struct {
	Data     []float32
	Channels int
	Height   int
	Width    int
}

// At returns the value of channel c at pixel (x, y).
func (t *ImageTensor) At(c, y, x int) float32 {
	return t.Data[c*t.Height*t.Width+y*t.Width+x]
}

// Dims returns the tensor dimensions as (channels, height, width).
func (t *ImageTensor) Dims() (c, h, w int) {
	return t.Channels, t.Height, t.Width
}

// Gomlx converts the tensor to a gomlx tensor of shape [C, H, W]. The data
// is copied, so the receiver stays independent.
func (t *ImageTensor) Gomlx() *tensors.Tensor {
	plane := t.Height * t.Width
	chw := make([][][]float32, t.Channels)
	for c := 0; c < t.Channels; c++ {
		rows := make([][]float32, t.Height)
		base := c * plane
		for y := 0; y < t.Height; y++ {
			start := base + y*t.Width
			rows[y] = t.Data[start : start+t.Width]
		}
		chw[c] = rows
	}
	return tensors.FromAnyValue(chw)
}

// ToImage reverses the channel normalization and returns the tensor as an
// image, clamping each channel to [0, 255]. Useful for previewing augmented
// samples.
func (t *ImageTensor) ToImage(mean, std [3]float32) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			var px [3]uint8
			for c := 0; c < 3 && c < t.Channels; c++ {
				v := (t.At(c, y, x)*std[c] + mean[c]) * 255
				if v < 0 {
					v = 0
				}
				if v > 255 {
					v = 255
				}
				px[c] = uint8(v + 0.5)
			}
			img.SetNRGBA(x, y, color.NRGBA{R: px[0], G: px[1], B: px[2], A: 255})
		}
	}
	return img
}

// toNormalizedTensor converts an image to a CHW float32 tensor, scaling
// each channel to [0, 1] and then normalizing with (v - mean) / std.
func toNormalizedTensor(img image.Image, mean, std [3]float32) *ImageTensor {
	src := imaging.Clone(img)
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()

	t := &ImageTensor{
		Data:     make([]float32, 3*h*w),
		Channels: 3,
		Height:   h,
		Width:    w,
	}
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := src.PixOffset(x, y)
			idx := y*w + x
			for c := 0; c < 3; c++ {
				v := float32(src.Pix[off+c]) / 255
				t.Data[c*plane+idx] = (v - mean[c]) / std[c]
			}
		}
	}
	return t
}
