package transform

import (
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/disintegration/imaging"
)

// resizeTo scales the image to exactly s using bilinear filtering.
func resizeTo(s Size) op {
	return func(_ *rand.Rand, img image.Image) image.Image {
		return imaging.Resize(img, s.Width, s.Height, imaging.Linear)
	}
}

// cropCenterTo cuts the centered s-sized region out of the image. Images
// smaller than s in either dimension are first centered on a black canvas,
// so the result is always exactly s.
func cropCenterTo(s Size) op {
	return func(_ *rand.Rand, img image.Image) image.Image {
		if img.Bounds().Dx() < s.Width || img.Bounds().Dy() < s.Height {
			img = padToMin(img, s)
		}
		return imaging.CropCenter(img, s.Width, s.Height)
	}
}

// padToMin centers img on a black canvas measuring at least s in both
// dimensions.
func padToMin(img image.Image, s Size) image.Image {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if w < s.Width {
		w = s.Width
	}
	if h < s.Height {
		h = s.Height
	}
	canvas := imaging.New(w, h, color.Black)
	return imaging.PasteCenter(canvas, img)
}

// randomRotation rotates by a uniform angle in [-maxDeg, +maxDeg]. The
// canvas expands to fit the rotated frame; the pipeline's center crop
// restores the working size afterwards.
func randomRotation(maxDeg float64) op {
	return func(rng *rand.Rand, img image.Image) image.Image {
		angle := (rng.Float64()*2 - 1) * maxDeg
		return imaging.Rotate(img, angle, color.Black)
	}
}

// randomHorizontalFlip mirrors the image left-right with probability p.
func randomHorizontalFlip(p float64) op {
	return func(rng *rand.Rand, img image.Image) image.Image {
		if rng.Float64() < p {
			return imaging.FlipH(img)
		}
		return img
	}
}

// randomColorJitter, with probability p, shifts brightness by a uniform
// percentage in [-brightnessPct, +brightnessPct] and contrast by a uniform
// percentage in [-contrastPct, +contrastPct].
func randomColorJitter(p, brightnessPct, contrastPct float64) op {
	return func(rng *rand.Rand, img image.Image) image.Image {
		if rng.Float64() >= p {
			return img
		}
		out := imaging.AdjustBrightness(img, (rng.Float64()*2-1)*brightnessPct)
		return imaging.AdjustContrast(out, (rng.Float64()*2-1)*contrastPct)
	}
}

// randomPerspective, with probability p, warps the image so its corners land
// on a random inner quadrilateral. Each corner moves inward by up to
// scale*dimension/2 pixels; uncovered regions are filled with black.
func randomPerspective(scale, p float64) op {
	return func(rng *rand.Rand, img image.Image) image.Image {
		if rng.Float64() >= p {
			return img
		}
		src := imaging.Clone(img)
		w := src.Bounds().Dx()
		h := src.Bounds().Dy()
		if w < 2 || h < 2 {
			return src
		}
		dst := randomQuad(rng, w, h, scale)
		corners := quad{
			{0, 0},
			{float64(w - 1), 0},
			{float64(w - 1), float64(h - 1)},
			{0, float64(h - 1)},
		}
		coeffs, ok := perspectiveCoeffs(dst, corners)
		if !ok {
			return src
		}
		return warpPerspective(src, coeffs)
	}
}

// quad holds the corners of a quadrilateral in top-left, top-right,
// bottom-right, bottom-left order.
type quad [4][2]float64

// randomQuad draws a quadrilateral whose corners are displaced inward from
// the image corners by uniform integer offsets in [0, scale*dimension/2].
func randomQuad(rng *rand.Rand, w, h int, scale float64) quad {
	halfW := float64(w) / 2
	halfH := float64(h) / 2
	dx := func() float64 { return float64(rng.Intn(int(scale*halfW) + 1)) }
	dy := func() float64 { return float64(rng.Intn(int(scale*halfH) + 1)) }
	maxX := float64(w - 1)
	maxY := float64(h - 1)
	return quad{
		{dx(), dy()},
		{maxX - dx(), dy()},
		{maxX - dx(), maxY - dy()},
		{dx(), maxY - dy()},
	}
}

// perspectiveCoeffs solves for the homography (a..h) that maps destination
// coordinates to source coordinates:
//
//	sx = (a*x + b*y + c) / (g*x + h*y + 1)
//	sy = (d*x + e*y + f) / (g*x + h*y + 1)
//
// constrained by the four corner correspondences dst[i] -> src[i]. It
// reports false when the corners are degenerate and the system has no
// unique solution.
func perspectiveCoeffs(dst, src quad) ([8]float64, bool) {
	var m [8][9]float64
	for i := 0; i < 4; i++ {
		x, y := dst[i][0], dst[i][1]
		sx, sy := src[i][0], src[i][1]
		m[2*i] = [9]float64{x, y, 1, 0, 0, 0, -x * sx, -y * sx, sx}
		m[2*i+1] = [9]float64{0, 0, 0, x, y, 1, -x * sy, -y * sy, sy}
	}

	// Gaussian elimination with partial pivoting.
	for col := 0; col < 8; col++ {
		pivot := col
		for row := col + 1; row < 8; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < 1e-10 {
			return [8]float64{}, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		for row := 0; row < 8; row++ {
			if row == col {
				continue
			}
			factor := m[row][col] / m[col][col]
			for k := col; k < 9; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}

	var coeffs [8]float64
	for i := 0; i < 8; i++ {
		coeffs[i] = m[i][8] / m[i][i]
	}
	return coeffs, true
}

// warpPerspective resamples src through the homography coefficients,
// bilinearly interpolating source pixels. Destination pixels that map
// outside the source stay black.
func warpPerspective(src *image.NRGBA, coeffs [8]float64) *image.NRGBA {
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}

	maxX := float64(w - 1)
	maxY := float64(h - 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx, fy := float64(x), float64(y)
			den := coeffs[6]*fx + coeffs[7]*fy + 1
			if den == 0 {
				continue
			}
			sx := (coeffs[0]*fx + coeffs[1]*fy + coeffs[2]) / den
			sy := (coeffs[3]*fx + coeffs[4]*fy + coeffs[5]) / den
			if sx < 0 || sy < 0 || sx > maxX || sy > maxY {
				continue
			}
			dst.SetNRGBA(x, y, bilinearNRGBA(src, sx, sy))
		}
	}
	return dst
}

// bilinearNRGBA samples src at fractional coordinates (x, y), clamping to
// the image edges.
func bilinearNRGBA(src *image.NRGBA, x, y float64) color.NRGBA {
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	clamp := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v > hi {
			return hi
		}
		return v
	}
	x0 = clamp(x0, w-1)
	y0 = clamp(y0, h-1)
	x1 := clamp(x0+1, w-1)
	y1 := clamp(y0+1, h-1)

	w00 := (1 - fx) * (1 - fy)
	w10 := fx * (1 - fy)
	w01 := (1 - fx) * fy
	w11 := fx * fy

	var out color.NRGBA
	for c := 0; c < 4; c++ {
		v := w00*float64(src.Pix[src.PixOffset(x0, y0)+c]) +
			w10*float64(src.Pix[src.PixOffset(x1, y0)+c]) +
			w01*float64(src.Pix[src.PixOffset(x0, y1)+c]) +
			w11*float64(src.Pix[src.PixOffset(x1, y1)+c])
		b := uint8(math.Round(v))
		switch c {
		case 0:
			out.R = b
		case 1:
			out.G = b
		case 2:
			out.B = b
		case 3:
			out.A = b
		}
	}
	return out
}
