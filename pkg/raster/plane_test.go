package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromImageMatchesGrayModel(t *testing.T) {
	colours := []color.NRGBA{
		{R: 255, G: 0, B: 0, A: 255},
		{R: 0, G: 200, B: 40, A: 255},
		{R: 90, G: 90, B: 90, A: 255},
		{R: 10, G: 20, B: 250, A: 128},
	}
	nrgba := image.NewNRGBA(image.Rect(0, 0, len(colours), 1))
	rgba := image.NewRGBA(image.Rect(0, 0, len(colours), 1))
	for x, c := range colours {
		nrgba.SetNRGBA(x, 0, c)
		rgba.Set(x, 0, c)
	}

	for name, img := range map[string]image.Image{"nrgba": nrgba, "rgba": rgba} {
		p := FromImage(img)
		require.Equal(t, len(colours), p.W, name)
		for x := range colours {
			want := color.GrayModel.Convert(img.At(x, 0)).(color.Gray).Y
			assert.Equal(t, float64(want), p.At(x, 0), "%s pixel %d", name, x)
		}
	}
}

func TestFromImageSubImage(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range g.Pix {
		g.Pix[i] = uint8(i)
	}
	sub := g.SubImage(image.Rect(3, 4, 7, 9)).(*image.Gray)

	p := FromImage(sub)
	assert.Equal(t, 4, p.W)
	assert.Equal(t, 5, p.H)
	assert.Equal(t, float64(43), p.At(0, 0))
	assert.Equal(t, float64(86), p.At(3, 4))

	// The generic path agrees with the fast one.
	gray16 := image.NewGray16(image.Rect(0, 0, 2, 1))
	gray16.SetGray16(1, 0, color.Gray16{Y: 0xffff})
	q := FromImage(gray16)
	assert.Equal(t, []float64{0, 255}, q.Pix)
}

func TestPlaneSampling(t *testing.T) {
	p := NewPlane(3, 2)
	copy(p.Pix, []float64{0, 10, 20, 30, 40, 50})

	// Outside pixels replicate the edge.
	assert.Equal(t, 0.0, p.At(-5, -5))
	assert.Equal(t, 50.0, p.At(9, 9))

	assert.InDelta(t, 20, p.Bilinear(0.5, 0.5), 1e-12)
	assert.InDelta(t, 10, p.Bilinear(1, 0), 1e-12)
	assert.InDelta(t, 25, p.Mean(), 1e-12)
	assert.Zero(t, (&Plane{}).Mean())
}

func TestPlaneGray(t *testing.T) {
	p := NewPlane(3, 1)
	copy(p.Pix, []float64{-4, 127.6, 300})
	g := p.Gray()
	assert.Equal(t, []uint8{0, 128, 255}, g.Pix)
}
