package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrInvalidImage is returned for images the pipeline cannot read.
var ErrInvalidImage = errors.New("invalid image")

// Channels returns the number of colour channels of img, or 0 when its
// layout is not supported (alpha-only, CMYK or unbounded images).
func Channels(img image.Image) int {
	switch src := img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.NYCbCrA:
		return 4
	case *image.YCbCr:
		return 3
	case *image.Paletted:
		return 3
	case *image.Alpha, *image.Alpha16, *image.CMYK, *image.Uniform:
		return 0
	case nil:
		return 0
	default:
		switch src.ColorModel() {
		case color.GrayModel, color.Gray16Model:
			return 1
		case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model:
			return 4
		case color.YCbCrModel:
			return 3
		}
		if _, ok := src.ColorModel().(color.Palette); ok {
			return 3
		}
	}
	return 0
}

// Validate checks that img is non-empty with a supported channel layout.
func Validate(img image.Image) error {
	if img == nil {
		return fmt.Errorf("nil image: %w", ErrInvalidImage)
	}
	if Channels(img) == 0 {
		return fmt.Errorf("unsupported image type %T: %w", img, ErrInvalidImage)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("image has zero area (%dx%d): %w", b.Dx(), b.Dy(), ErrInvalidImage)
	}
	return nil
}

// FromBuffer wraps an interleaved 8-bit pixel buffer. channels must be 1
// (gray), 3 (RGB) or 4 (RGBA). The buffer is copied.
func FromBuffer(pix []byte, width, height, channels int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("image has zero area (%dx%d): %w", width, height, ErrInvalidImage)
	}
	if want := width * height * channels; channels > 0 && len(pix) != want {
		return nil, fmt.Errorf("buffer has %d bytes, want %d: %w", len(pix), want, ErrInvalidImage)
	}
	r := image.Rect(0, 0, width, height)

	switch channels {
	case 1:
		g := image.NewGray(r)
		copy(g.Pix, pix)
		return g, nil
	case 3:
		out := image.NewNRGBA(r)
		for i, j := 0, 0; i < len(pix); i, j = i+3, j+4 {
			out.Pix[j] = pix[i]
			out.Pix[j+1] = pix[i+1]
			out.Pix[j+2] = pix[i+2]
			out.Pix[j+3] = 0xff
		}
		return out, nil
	case 4:
		out := image.NewNRGBA(r)
		copy(out.Pix, pix)
		return out, nil
	}
	return nil, fmt.Errorf("unsupported channel count %d: %w", channels, ErrInvalidImage)
}
