package imaging

import (
	"image"
)

// Mask is a binary foreground image.
type Mask struct {
	W, H int
	Pix  []bool
}

// NewMask allocates an empty mask.
func NewMask(w, h int) *Mask {
	return &Mask{W: w, H: h, Pix: make([]bool, w*h)}
}

// Get reports whether (x, y) is foreground. Outside pixels are background.
func (m *Mask) Get(x, y int) bool {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return false
	}
	return m.Pix[y*m.W+x]
}

// Set marks (x, y).
func (m *Mask) Set(x, y int, v bool) {
	m.Pix[y*m.W+x] = v
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Gray renders foreground as 255 and background as 0.
func (m *Mask) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.W, m.H))
	for i, v := range m.Pix {
		if v {
			g.Pix[i] = 255
		}
	}
	return g
}

// maskFromImage marks pixels whose red channel is at least half intensity.
func maskFromImage(img image.Image) *Mask {
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < m.H; y++ {
			for x := 0; x < m.W; x++ {
				m.Pix[y*m.W+x] = src.Pix[y*src.Stride+x] >= 128
			}
		}
	case *image.RGBA:
		for y := 0; y < m.H; y++ {
			for x := 0; x < m.W; x++ {
				m.Pix[y*m.W+x] = src.Pix[y*src.Stride+4*x] >= 128
			}
		}
	default:
		for y := 0; y < m.H; y++ {
			for x := 0; x < m.W; x++ {
				r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				m.Pix[y*m.W+x] = r >= 0x8000
			}
		}
	}
	return m
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
