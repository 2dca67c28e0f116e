package imaging

import (
	"math"

	"github.com/anthonynsimon/bild/parallel"

	"github.com/gramaziokohler/td2d/pkg/raster"
)

var (
	sobelX = [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY = [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
)

// Gradients holds the Sobel derivatives of a plane.
type Gradients struct {
	X, Y *raster.Plane
}

// Sobel computes the horizontal and vertical derivatives of p with 3x3 Sobel
// kernels. Border pixels use replicated edge values.
func Sobel(p *raster.Plane) Gradients {
	gx := raster.NewPlane(p.W, p.H)
	gy := raster.NewPlane(p.W, p.H)
	parallel.Line(p.H, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < p.W; x++ {
				var sx, sy float64
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						v := p.At(x+kx, y+ky)
						sx += v * sobelX[ky+1][kx+1]
						sy += v * sobelY[ky+1][kx+1]
					}
				}
				gx.Pix[y*p.W+x] = sx
				gy.Pix[y*p.W+x] = sy
			}
		}
	})
	return Gradients{X: gx, Y: gy}
}

// Magnitude returns the gradient magnitude at (x, y).
func (g Gradients) Magnitude(x, y int) float64 {
	return math.Hypot(g.X.At(x, y), g.Y.At(x, y))
}
