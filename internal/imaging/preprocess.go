package imaging

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/parallel"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"

	"github.com/gramaziokohler/td2d/pkg/raster"
)

// ThresholdMethod selects how the grayscale plane is binarized.
type ThresholdMethod string

const (
	ThresholdFixed    ThresholdMethod = "fixed"
	ThresholdAdaptive ThresholdMethod = "adaptive"
	ThresholdOtsu     ThresholdMethod = "otsu"
)

// DenoiseMethod selects the smoothing filter applied before thresholding.
type DenoiseMethod string

const (
	DenoiseGaussian DenoiseMethod = "gaussian"
	DenoiseMedian   DenoiseMethod = "median"
	DenoiseNone     DenoiseMethod = "none"
)

// Options configures Preprocess.
type Options struct {
	Method ThresholdMethod
	// Level is the fixed threshold; pixels at or above it are foreground.
	Level uint8
	// BlurKernel is the odd smoothing aperture; 0 disables smoothing.
	BlurKernel int
	Denoise    DenoiseMethod
	// AdaptiveBlock is the odd side of the local-mean window.
	AdaptiveBlock int
	// AdaptiveOffset is how far above the local mean a pixel must be.
	AdaptiveOffset float64
	// Invert selects dark tiles on a bright background.
	Invert          bool
	CloseIterations int
	OpenIterations  int
}

// Preprocessed holds the outputs of the preprocessing stage.
type Preprocessed struct {
	// Gray is the smoothed intensity plane used by later stages.
	Gray *raster.Plane
	// Mask is the binary foreground, same size as the input.
	Mask *Mask
	// Level is the global threshold applied, or -1 for adaptive.
	Level int
}

// Preprocess converts img to grayscale, smooths it, binarizes it and cleans
// the mask with morphology. It does not modify img.
func Preprocess(img image.Image, opts Options) (*Preprocessed, error) {
	if err := Validate(img); err != nil {
		return nil, err
	}
	if opts.BlurKernel < 0 || (opts.BlurKernel > 0 && opts.BlurKernel%2 == 0) {
		return nil, fmt.Errorf("blur kernel must be odd or zero, got %d", opts.BlurKernel)
	}

	var smoothed image.Image = imaging.Grayscale(img)
	if opts.BlurKernel > 1 {
		switch opts.Denoise {
		case DenoiseGaussian, "":
			smoothed = imaging.Blur(smoothed, kernelSigma(opts.BlurKernel))
		case DenoiseMedian:
			smoothed = effect.Median(smoothed, float64(opts.BlurKernel/2))
		case DenoiseNone:
		default:
			return nil, fmt.Errorf("unknown denoise method %q", opts.Denoise)
		}
	}
	gray := raster.FromImage(smoothed)

	var (
		mask  *Mask
		level = -1
	)
	switch opts.Method {
	case ThresholdFixed:
		level = int(opts.Level)
		mask = globalThreshold(gray, level, opts.Invert)
	case ThresholdOtsu, "":
		// Otsu separates classes at t with foreground strictly above t.
		t := Otsu(gray)
		if t < 0 {
			// A uniform plane has no foreground class.
			mask = NewMask(gray.W, gray.H)
			break
		}
		level = t + 1
		mask = globalThreshold(gray, level, opts.Invert)
	case ThresholdAdaptive:
		block := opts.AdaptiveBlock
		if block < 3 || block%2 == 0 {
			return nil, fmt.Errorf("adaptive block must be odd and at least 3, got %d", block)
		}
		mask = AdaptiveThreshold(gray, block, opts.AdaptiveOffset, opts.Invert)
	default:
		return nil, fmt.Errorf("unknown threshold method %q", opts.Method)
	}

	for i := 0; i < opts.CloseIterations; i++ {
		mask = Close(mask)
	}
	for i := 0; i < opts.OpenIterations; i++ {
		mask = Open(mask)
	}

	return &Preprocessed{Gray: gray, Mask: mask, Level: level}, nil
}

// Luminance converts img to grayscale and reads it into a Plane.
func Luminance(img image.Image) *raster.Plane {
	return raster.FromImage(imaging.Grayscale(img))
}

// kernelSigma derives the gaussian sigma for an odd aperture the way
// OpenCV's getGaussianKernel does.
func kernelSigma(k int) float64 {
	return 0.3*((float64(k)-1)*0.5-1) + 0.8
}

// globalThreshold marks pixels >= level as foreground, or < level when
// inverted.
func globalThreshold(p *raster.Plane, level int, invert bool) *Mask {
	m := NewMask(p.W, p.H)
	if level > 255 {
		// Nothing reaches the level.
		if invert {
			for i := range m.Pix {
				m.Pix[i] = true
			}
		}
		return m
	}
	if level < 0 {
		level = 0
	}
	bin := segment.Threshold(p.Gray(), uint8(level))
	parallel.Line(p.H, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < p.W; x++ {
				on := bin.Pix[y*bin.Stride+x] == 255
				m.Pix[y*p.W+x] = on != invert
			}
		}
	})
	return m
}

// Otsu returns the threshold t maximizing the between-class variance of the
// classes [0, t] and (t, 255], or -1 when the plane holds a single value.
func Otsu(p *raster.Plane) int {
	var hist [256]float64
	for _, v := range p.Pix {
		hist[clamp(int(v+0.5), 0, 255)]++
	}
	total := float64(len(p.Pix))
	if total == 0 {
		return -1
	}

	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i) * c
	}

	var (
		wB, sumB float64
		best     = -1.0
		lo, hi   int
	)
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * hist[t]
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		switch {
		case between > best+1e-9:
			best, lo, hi = between, t, t
		case between >= best-1e-9:
			hi = t
		}
	}
	if best < 0 {
		return -1
	}
	return (lo + hi) / 2
}

// AdaptiveThreshold compares every pixel with the mean of the block×block
// window around it, computed from an integral image. A pixel is foreground
// when it exceeds the local mean by more than offset (or falls below it when
// inverted). Uniform regions are therefore background.
func AdaptiveThreshold(p *raster.Plane, block int, offset float64, invert bool) *Mask {
	w, h := p.W, p.H
	stride := w + 1
	integral := make([]float64, stride*(h+1))
	for y := 0; y < h; y++ {
		var row float64
		for x := 0; x < w; x++ {
			row += p.Pix[y*w+x]
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + row
		}
	}

	r := block / 2
	m := NewMask(w, h)
	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			y0, y1 := clamp(y-r, 0, h-1), clamp(y+r, 0, h-1)+1
			for x := 0; x < w; x++ {
				x0, x1 := clamp(x-r, 0, w-1), clamp(x+r, 0, w-1)+1
				sum := integral[y1*stride+x1] - integral[y0*stride+x1] - integral[y1*stride+x0] + integral[y0*stride+x0]
				mean := sum / float64((y1-y0)*(x1-x0))
				d := p.Pix[y*w+x] - mean
				if invert {
					d = -d
				}
				m.Pix[y*w+x] = d > offset
			}
		}
	})
	return m
}

// Dilate grows the foreground by one pixel in all eight directions.
func Dilate(m *Mask) *Mask {
	return maskFromImage(effect.Dilate(m.Gray(), 1))
}

// Erode shrinks the foreground by one pixel in all eight directions.
func Erode(m *Mask) *Mask {
	return maskFromImage(effect.Erode(m.Gray(), 1))
}

// Close fills small holes and gaps: dilate then erode.
func Close(m *Mask) *Mask {
	return Erode(Dilate(m))
}

// Open removes specks: erode then dilate.
func Open(m *Mask) *Mask {
	return Dilate(Erode(m))
}
