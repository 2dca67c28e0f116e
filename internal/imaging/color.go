package imaging

import (
	"fmt"
	"image"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/gramaziokohler/td2d/pkg/geometry"
)

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// LabColor is a CIE L*a*b* triple under D65.
type LabColor struct {
	L float64 `json:"l"`
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// ColorResult contains a color value in multiple representations.
type ColorResult struct {
	Hex string   `json:"hex"`
	RGB RGBColor `json:"rgb"`
	Lab LabColor `json:"lab"`
}

// Describe renders c in all supported representations.
func Describe(c colorful.Color) ColorResult {
	r, g, b := c.Clamped().RGB255()
	l, a, bb := c.Lab()
	return ColorResult{
		Hex: c.Clamped().Hex(),
		RGB: RGBColor{R: r, G: g, B: b},
		Lab: LabColor{L: l, A: a, B: bb},
	}
}

// SampleColor extracts the color value at a specific pixel coordinate.
func SampleColor(img image.Image, x, y int) (*ColorResult, error) {
	bounds := img.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
		return nil, fmt.Errorf("coordinates (%d,%d) outside image bounds", x, y)
	}
	c, _ := colorful.MakeColor(img.At(x, y))
	res := Describe(c)
	return &res, nil
}

// MeanColor averages the pixels inside poly after shrinking it towards its
// centroid by inset (a fraction in [0, 1)), which keeps the tile's edge
// pixels out of the estimate. Averaging happens in linear RGB.
func MeanColor(img image.Image, poly geometry.Polygon, inset float64) (colorful.Color, bool) {
	if len(poly) < 3 {
		return colorful.Color{}, false
	}
	c := poly.Centroid()
	shrunk := make(geometry.Polygon, len(poly))
	for i, p := range poly {
		shrunk[i] = geometry.Lerp(p, c, inset)
	}

	b := img.Bounds()
	r := shrunk.Bounds()
	x0 := clamp(int(math.Floor(r.X.Lo)), 0, b.Dx()-1)
	x1 := clamp(int(math.Ceil(r.X.Hi)), 0, b.Dx()-1)
	y0 := clamp(int(math.Floor(r.Y.Lo)), 0, b.Dy()-1)
	y1 := clamp(int(math.Ceil(r.Y.Hi)), 0, b.Dy()-1)

	var sr, sg, sb float64
	n := 0
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if !shrunk.Contains(geometry.Pt(float64(x), float64(y))) {
				continue
			}
			px, ok := colorful.MakeColor(img.At(b.Min.X+x, b.Min.Y+y))
			if !ok {
				continue
			}
			lr, lg, lb := px.LinearRgb()
			sr += lr
			sg += lg
			sb += lb
			n++
		}
	}
	if n == 0 {
		return colorful.Color{}, false
	}
	k := float64(n)
	return colorful.LinearRgb(sr/k, sg/k, sb/k), true
}
