package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/gramaziokohler/td2d/pkg/geometry"
)

// OverlayShape is one outline drawn by Overlay.
type OverlayShape struct {
	Polygon geometry.Polygon
	Label   string
	// Color is "#RRGGBB"; empty or invalid values fall back to red.
	Color string
}

// Overlay draws polygon outlines with their labels on a copy of img.
func Overlay(img image.Image, shapes []OverlayShape) (*CropResult, error) {
	bounds := img.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)

	labelColor := color.RGBA{255, 255, 255, 255}
	bgColor := color.RGBA{0, 0, 0, 180}
	for _, s := range shapes {
		c := color.RGBA{255, 0, 0, 255}
		if parsed, err := colorful.Hex(s.Color); err == nil {
			r, g, b := parsed.RGB255()
			c = color.RGBA{r, g, b, 255}
		}
		n := len(s.Polygon)
		for i := 0; i < n; i++ {
			drawLine(result, s.Polygon[i], s.Polygon[(i+1)%n], c)
		}
		if s.Label != "" && n > 0 {
			at := s.Polygon.Centroid()
			drawLabel(result, int(at.X)-7*len(s.Label)/2, int(at.Y)-6, s.Label, labelColor, bgColor)
		}
	}
	return Encode(result)
}

// drawLine rasterizes a segment with Bresenham's algorithm.
func drawLine(img *image.RGBA, a, b geometry.Point, c color.RGBA) {
	x0, y0 := int(math.Round(a.X)), int(math.Round(a.Y))
	x1, y1 := int(math.Round(b.X)), int(math.Round(b.Y))
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	bounds := img.Bounds()
	for {
		if image.Pt(x0, y0).In(bounds) {
			img.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawLabel renders text in basicfont's 7x13 face on a filled background.
// (x, y) is the top-left of the box.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	box := image.Rect(x-1, y-1, x+width+1, y+face.Height+1).Intersect(img.Bounds())
	draw.Draw(img, box, image.NewUniform(bg), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(text)
}
