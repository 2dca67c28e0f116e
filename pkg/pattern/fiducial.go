package pattern

import (
	"fmt"
	"image"
	"math"

	"github.com/gramaziokohler/td2d/pkg/raster"
)

const (
	checksumBits = 4
	// checksumMask keeps an all-black payload from decoding as code 0.
	checksumMask = 0x9
	// minContrast is the smallest cell mean spread, in grey levels, that
	// can carry a code.
	minContrast = 40
)

// Fiducial describes a square marker: a GridSize×GridSize cell grid inside a
// quiet margin, with a ring of black border cells. The inner cells are read
// row-major, most significant bit first, white = 1, as the code followed by
// a 4-bit checksum.
type Fiducial struct {
	GridSize int
	// Margin is the quiet zone on each side as a fraction of the patch.
	Margin float64
}

// Validate checks the layout.
func (f Fiducial) Validate() error {
	if f.GridSize < 5 || f.GridSize > 7 {
		return fmt.Errorf("fiducial grid size must be between 5 and 7, got %d", f.GridSize)
	}
	if f.Margin < 0 || f.Margin >= 0.5 {
		return fmt.Errorf("fiducial margin must be in [0, 0.5), got %g", f.Margin)
	}
	return nil
}

// Bits returns the width of the code.
func (f Fiducial) Bits() int {
	inner := f.GridSize - 2
	return inner*inner - checksumBits
}

// Checksum is the CRC-4 (x⁴+x+1) of the code bits, xored with a fixed mask.
func (f Fiducial) Checksum(code int) int {
	crc := 0
	for i := f.Bits() - 1; i >= 0; i-- {
		bit := (code>>i)&1 ^ (crc>>3)&1
		crc = (crc << 1) & 0xF
		if bit == 1 {
			crc ^= 0x3
		}
	}
	return crc ^ checksumMask
}

// Encode renders code as a size×size marker in canonical orientation.
func (f Fiducial) Encode(code, size int) (*image.Gray, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if code < 0 || code >= 1<<f.Bits() {
		return nil, fmt.Errorf("code %d does not fit in %d bits", code, f.Bits())
	}
	n := f.GridSize
	g := f.grid(code)
	white := func(row, col int) bool {
		if row == 0 || col == 0 || row == n-1 || col == n-1 {
			return false
		}
		return g[row-1][col-1]
	}

	img := image.NewGray(image.Rect(0, 0, size, size))
	m0, cw := f.layout(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			u := (float64(x) - m0) / cw
			v := (float64(y) - m0) / cw
			var val uint8 = 255
			if u >= 0 && v >= 0 && u < float64(n) && v < float64(n) && !white(int(v), int(u)) {
				val = 0
			}
			img.Pix[y*img.Stride+x] = val
		}
	}
	return img, nil
}

// layout returns the patch coordinate of the grid's outer edge and the cell
// width. Pixel centres are at integer coordinates.
func (f Fiducial) layout(size int) (float64, float64) {
	s := float64(size)
	return f.Margin*s - 0.5, s * (1 - 2*f.Margin) / float64(f.GridSize)
}

// Decoded is the result of reading a marker.
type Decoded struct {
	Code        int
	Orientation int
	// Score is the smallest cell contrast relative to the threshold, in [0, 1].
	Score float64
	// Ambiguous is set when valid orientations disagree on the code.
	Ambiguous bool
}

// Decode reads a marker from a canonical patch, trying each orientation in
// turns. It reports false when the patch does not hold a valid marker.
func (f Fiducial) Decode(p *raster.Plane, turns []int) (Decoded, bool) {
	n := f.GridSize
	m0, cw := f.layout(p.W)

	means := make([]float64, n*n)
	lo, hi := math.Inf(1), math.Inf(-1)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			// 3×3 samples over the central half of the cell.
			var sum float64
			for sy := -1; sy <= 1; sy++ {
				for sx := -1; sx <= 1; sx++ {
					x := m0 + (float64(col)+0.5+float64(sx)*0.25)*cw
					y := m0 + (float64(row)+0.5+float64(sy)*0.25)*cw
					sum += p.Bilinear(x, y)
				}
			}
			v := sum / 9
			means[row*n+col] = v
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if hi-lo < minContrast {
		return Decoded{}, false
	}
	thr := (lo + hi) / 2

	score := 1.0
	inner := n - 2
	bits := make([][]bool, inner)
	for i := range bits {
		bits[i] = make([]bool, inner)
	}
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			v := means[row*n+col]
			score = math.Min(score, math.Abs(v-thr)/((hi-lo)/2))
			isWhite := v > thr
			if row == 0 || col == 0 || row == n-1 || col == n-1 {
				if isWhite {
					return Decoded{}, false
				}
				continue
			}
			bits[row-1][col-1] = isWhite
		}
	}

	return f.read(bits, turns, score)
}

// read checks the inner bit grid in each orientation.
func (f Fiducial) read(bits [][]bool, turns []int, score float64) (Decoded, bool) {
	var valid []Decoded
	for _, turn := range turns {
		// Content rotated clockwise by turn reads canonically after the same
		// number of counter-clockwise turns.
		g := bits
		for i := 0; i < turn; i++ {
			g = rotateCCW(g)
		}
		payload := 0
		for _, row := range g {
			for _, b := range row {
				payload <<= 1
				if b {
					payload |= 1
				}
			}
		}
		code := payload >> checksumBits
		if payload&(1<<checksumBits-1) == f.Checksum(code) {
			valid = append(valid, Decoded{Code: code, Orientation: turn, Score: score})
		}
	}

	switch len(valid) {
	case 0:
		return Decoded{}, false
	case 1:
		return valid[0], true
	}
	out := valid[0]
	out.Orientation = -1
	for _, v := range valid[1:] {
		if v.Code != out.Code {
			out.Ambiguous = true
		}
	}
	return out, true
}

// Unambiguous reports whether code reads back as itself in every
// orientation of a square tile. Other codes decode as unidentified once
// rotated and should not be printed.
func (f Fiducial) Unambiguous(code int) bool {
	d, ok := f.read(f.grid(code), []int{0, 1, 2, 3}, 1)
	return ok && !d.Ambiguous
}

// grid lays out the payload of code as inner cells, white = true.
func (f Fiducial) grid(code int) [][]bool {
	inner := f.GridSize - 2
	payload := code<<checksumBits | f.Checksum(code)
	g := make([][]bool, inner)
	for r := range g {
		g[r] = make([]bool, inner)
		for c := range g[r] {
			i := r*inner + c
			g[r][c] = (payload>>(inner*inner-1-i))&1 == 1
		}
	}
	return g
}

func rotateCCW(g [][]bool) [][]bool {
	k := len(g)
	out := make([][]bool, k)
	for r := range out {
		out[r] = make([]bool, k)
		for c := range out[r] {
			out[r][c] = g[c][k-1-r]
		}
	}
	return out
}
