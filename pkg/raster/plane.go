// Package raster holds the floating-point intensity plane shared by the
// preprocessing stage and the pattern matchers.
//
// A Plane is a width, a height and a row-major slice of intensities. Build
// one from any image.Image with FromImage, or fill Pix directly.
package raster

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/parallel"
)

// Plane is a single-channel intensity image with values in [0, 255].
//
// Pixel (x, y) is stored at Pix[y*W+x]. Coordinates are relative to the
// source image's Bounds().Min, so (0, 0) is always the top-left pixel.
type Plane struct {
	W, H int
	Pix  []float64
}

// NewPlane allocates a zero plane.
func NewPlane(w, h int) *Plane {
	return &Plane{W: w, H: h, Pix: make([]float64, w*h)}
}

// At returns the value at (x, y), replicating edge pixels outside the plane.
func (p *Plane) At(x, y int) float64 {
	return p.Pix[clamp(y, 0, p.H-1)*p.W+clamp(x, 0, p.W-1)]
}

// Bilinear samples the plane at a sub-pixel location. Pixel centres sit at
// integer coordinates.
func (p *Plane) Bilinear(x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)
	a := p.At(x0, y0)*(1-fx) + p.At(x0+1, y0)*fx
	b := p.At(x0, y0+1)*(1-fx) + p.At(x0+1, y0+1)*fx
	return a*(1-fy) + b*fy
}

// Gray renders the plane as an 8-bit grayscale image.
func (p *Plane) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, p.W, p.H))
	for i, v := range p.Pix {
		g.Pix[i] = uint8(math.Round(math.Max(0, math.Min(255, v))))
	}
	return g
}

// Mean returns the average intensity.
func (p *Plane) Mean() float64 {
	if len(p.Pix) == 0 {
		return 0
	}
	var s float64
	for _, v := range p.Pix {
		s += v
	}
	return s / float64(len(p.Pix))
}

// FromImage reads the luminance of any image into a Plane, with the weights
// of color.GrayModel. The result is indexed from the top-left of
// img.Bounds().
func FromImage(img image.Image) *Plane {
	b := img.Bounds()
	p := NewPlane(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.Gray:
		parallel.Line(p.H, func(start, end int) {
			for y := start; y < end; y++ {
				row := src.Pix[y*src.Stride : y*src.Stride+p.W]
				for x, v := range row {
					p.Pix[y*p.W+x] = float64(v)
				}
			}
		})
	case *image.NRGBA:
		parallel.Line(p.H, func(start, end int) {
			for y := start; y < end; y++ {
				off := y * src.Stride
				for x := 0; x < p.W; x++ {
					px := src.Pix[off+4*x : off+4*x+4 : off+4*x+4]
					r, g, b, _ := color.NRGBA{R: px[0], G: px[1], B: px[2], A: px[3]}.RGBA()
					p.Pix[y*p.W+x] = luma(r, g, b)
				}
			}
		})
	case *image.RGBA:
		parallel.Line(p.H, func(start, end int) {
			for y := start; y < end; y++ {
				off := y * src.Stride
				for x := 0; x < p.W; x++ {
					px := src.Pix[off+4*x : off+4*x+4 : off+4*x+4]
					r, g, b, _ := color.RGBA{R: px[0], G: px[1], B: px[2], A: px[3]}.RGBA()
					p.Pix[y*p.W+x] = luma(r, g, b)
				}
			}
		})
	default:
		parallel.Line(p.H, func(start, end int) {
			for y := start; y < end; y++ {
				for x := 0; x < p.W; x++ {
					g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
					p.Pix[y*p.W+x] = float64(g.Y)
				}
			}
		})
	}
	return p
}

// luma mirrors color.GrayModel on 16-bit premultiplied channels.
func luma(r, g, b uint32) float64 {
	return float64((19595*r + 38470*g + 7471*b + 1<<15) >> 24)
}

func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
