package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/parallel"

	"github.com/gramaziokohler/td2d/pkg/geometry"
	"github.com/gramaziokohler/td2d/pkg/raster"
)

// CanonicalCorners returns the corners of a size×size patch in the order
// top-left, top-right, bottom-right, bottom-left, at pixel centres.
func CanonicalCorners(size int) []geometry.Point {
	s := float64(size) - 1
	return []geometry.Point{geometry.Pt(0, 0), geometry.Pt(s, 0), geometry.Pt(s, s), geometry.Pt(0, s)}
}

// Rectify returns the homography mapping patch coordinates onto the quad
// given by corners, in the order of CanonicalCorners.
func Rectify(corners []geometry.Point, size int) (geometry.Homography, error) {
	return geometry.EstimateHomography(CanonicalCorners(size), corners)
}

// Warp samples p through h (patch to image) into a size×size patch.
func Warp(p *raster.Plane, h geometry.Homography, size int) *raster.Plane {
	out := raster.NewPlane(size, size)
	parallel.Line(size, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < size; x++ {
				q := h.Apply(geometry.Pt(float64(x), float64(y)))
				if math.IsNaN(q.X) {
					continue
				}
				out.Pix[y*size+x] = p.Bilinear(q.X, q.Y)
			}
		}
	})
	return out
}

// WarpImage samples a colour image through h into a size×size patch with
// nearest-neighbour lookup. Samples outside img are transparent.
func WarpImage(img image.Image, h geometry.Homography, size int) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, size, size))
	parallel.Line(size, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < size; x++ {
				q := h.Apply(geometry.Pt(float64(x), float64(y)))
				if math.IsNaN(q.X) {
					continue
				}
				sx := b.Min.X + int(math.Round(q.X))
				sy := b.Min.Y + int(math.Round(q.Y))
				if sx < b.Min.X || sy < b.Min.Y || sx >= b.Max.X || sy >= b.Max.Y {
					continue
				}
				c := color.NRGBAModel.Convert(img.At(sx, sy)).(color.NRGBA)
				out.SetNRGBA(x, y, c)
			}
		}
	})
	return out
}
