package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrDegenerate is returned when a transform cannot be estimated or inverted.
var ErrDegenerate = errors.New("degenerate geometry")

// Homography is a 3x3 projective transform stored row-major.
type Homography [9]float64

// Identity returns the identity homography.
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Apply maps p through h. Points on the line at infinity map to NaN.
func (h Homography) Apply(p Point) Point {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-15 {
		return Pt(math.NaN(), math.NaN())
	}
	return Pt(
		(h[0]*p.X+h[1]*p.Y+h[2])/w,
		(h[3]*p.X+h[4]*p.Y+h[5])/w,
	)
}

// Mul returns h*o, the transform applying o first.
func (h Homography) Mul(o Homography) Homography {
	var c mat.Dense
	c.Mul(h.dense(), o.dense())
	return fromDense(&c)
}

// Inverse returns h⁻¹.
func (h Homography) Inverse() (Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.dense()); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return Homography{}, fmt.Errorf("failed to invert homography: %w", ErrDegenerate)
		}
		if math.IsInf(float64(cond), 0) {
			return Homography{}, fmt.Errorf("failed to invert homography: %w", ErrDegenerate)
		}
	}
	return fromDense(&inv).normalized(), nil
}

func (h Homography) dense() *mat.Dense {
	data := make([]float64, 9)
	copy(data, h[:])
	return mat.NewDense(3, 3, data)
}

func (h Homography) normalized() Homography {
	if math.Abs(h[8]) < 1e-15 {
		return h
	}
	s := h[8]
	for i := range h {
		h[i] /= s
	}
	return h
}

func fromDense(m mat.Matrix) Homography {
	var h Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r*3+c] = m.At(r, c)
		}
	}
	return h
}

// EstimateHomography computes the homography mapping src[i] to dst[i] with
// the normalized direct linear transform. At least four correspondences are
// required; more are solved in the least-squares sense.
func EstimateHomography(src, dst []Point) (Homography, error) {
	if len(src) != len(dst) {
		return Homography{}, fmt.Errorf("point count mismatch %d != %d: %w", len(src), len(dst), ErrDegenerate)
	}
	n := len(src)
	if n < 4 {
		return Homography{}, fmt.Errorf("need at least 4 correspondences, got %d: %w", n, ErrDegenerate)
	}

	ts, okS := normalizer(src)
	td, okD := normalizer(dst)
	if !okS || !okD {
		return Homography{}, fmt.Errorf("coincident points: %w", ErrDegenerate)
	}

	// Pad to at least 9 rows so the full SVD exposes the null space.
	rows := 2 * n
	if rows < 9 {
		rows = 9
	}
	a := mat.NewDense(rows, 9, nil)
	for i := 0; i < n; i++ {
		p := ts.Apply(src[i])
		q := td.Apply(dst[i])
		x, y, u, v := p.X, p.Y, q.X, q.Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return Homography{}, fmt.Errorf("failed to factorize DLT system: %w", ErrDegenerate)
	}
	values := svd.Values(nil)
	// A rank below 8 leaves more than one solution.
	if len(values) < 8 || values[7] < 1e-12*values[0] {
		return Homography{}, fmt.Errorf("collinear correspondences: %w", ErrDegenerate)
	}
	var v mat.Dense
	svd.VTo(&v)
	var hn Homography
	for i := 0; i < 9; i++ {
		hn[i] = v.At(i, 8)
	}

	tdInv, err := td.Inverse()
	if err != nil {
		return Homography{}, err
	}
	h := tdInv.Mul(hn).Mul(ts)
	if math.Abs(h[8]) < 1e-15 {
		return Homography{}, fmt.Errorf("homography maps origin to infinity: %w", ErrDegenerate)
	}
	return h.normalized(), nil
}

// normalizer returns the similarity moving pts to zero mean with mean
// distance sqrt(2).
func normalizer(pts []Point) (Homography, bool) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	cx /= n
	cy /= n
	var d float64
	for _, p := range pts {
		d += math.Hypot(p.X-cx, p.Y-cy)
	}
	d /= n
	if d < 1e-12 {
		return Homography{}, false
	}
	s := math.Sqrt2 / d
	return Homography{s, 0, -s * cx, 0, s, -s * cy, 0, 0, 1}, true
}
