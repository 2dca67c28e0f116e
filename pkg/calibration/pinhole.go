package calibration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gramaziokohler/td2d/pkg/geometry"
)

// undistortIterations bounds the fixed-point distortion inversion.
const undistortIterations = 20

// PinholeParams holds the intrinsic and extrinsic camera parameters.
//
// Dist uses the OpenCV order k1, k2, p1, p2, k3; missing trailing terms are
// zero. Offset is added to incoming pixels and is used when the detector runs
// on a cropped region of the calibrated image.
type PinholeParams struct {
	K      [9]float64     `json:"camera_matrix"`
	Dist   []float64      `json:"dist_coeffs,omitempty"`
	RVec   [3]float64     `json:"rvec"`
	T      [3]float64     `json:"tvec"`
	PlaneZ float64        `json:"plane_z"`
	Offset geometry.Point `json:"-"`
}

// Pinhole intersects pixel rays with the world plane Z = PlaneZ.
type Pinhole struct {
	params PinholeParams
	k      *mat.Dense
	kInv   *mat.Dense
	r      *mat.Dense
	dist   [5]float64
}

// NewPinhole validates params and precomputes the inverse matrices.
func NewPinhole(params PinholeParams) (*Pinhole, error) {
	if len(params.Dist) > 5 {
		return nil, fmt.Errorf("expected at most 5 distortion coefficients, got %d: %w", len(params.Dist), ErrInvalid)
	}
	if params.K[0] == 0 || params.K[4] == 0 {
		return nil, fmt.Errorf("camera matrix has zero focal length: %w", ErrInvalid)
	}
	for _, v := range append(append(params.K[:], params.RVec[:]...), params.T[:]...) {
		if !finite(v) {
			return nil, fmt.Errorf("non-finite camera parameter: %w", ErrInvalid)
		}
	}

	k := mat.NewDense(3, 3, append([]float64(nil), params.K[:]...))
	var kInv mat.Dense
	if err := kInv.Inverse(k); err != nil {
		return nil, fmt.Errorf("failed to invert camera matrix: %w", errors.Join(ErrInvalid, err))
	}
	rot := Rodrigues(params.RVec)

	p := &Pinhole{
		params: params,
		k:      k,
		kInv:   &kInv,
		r:      mat.NewDense(3, 3, rot[:]),
	}
	copy(p.dist[:], params.Dist)
	return p, nil
}

// Params returns a copy of the camera parameters.
func (p *Pinhole) Params() PinholeParams {
	out := p.params
	out.Dist = append([]float64(nil), p.params.Dist...)
	return out
}

// PixelToWorld back-projects a pixel onto the working plane.
func (p *Pinhole) PixelToWorld(px geometry.Point) (geometry.Point, error) {
	px = px.Add(p.params.Offset)

	var n mat.VecDense
	n.MulVec(p.kInv, mat.NewVecDense(3, []float64{px.X, px.Y, 1}))
	x, y := p.undistort(n.AtVec(0)/n.AtVec(2), n.AtVec(1)/n.AtVec(2))

	// Camera frame: Xc = R Xw + T, so Xw = Rᵀ(s·ray − T) = s·a − b.
	var a, b mat.VecDense
	a.MulVec(p.r.T(), mat.NewVecDense(3, []float64{x, y, 1}))
	b.MulVec(p.r.T(), mat.NewVecDense(3, p.params.T[:]))

	az := a.AtVec(2)
	if math.Abs(az) < 1e-12 {
		return geometry.Point{}, fmt.Errorf("ray through (%g, %g) is parallel to the plane: %w", px.X, px.Y, ErrUnmappable)
	}
	s := (p.params.PlaneZ + b.AtVec(2)) / az
	if s <= 0 {
		return geometry.Point{}, fmt.Errorf("plane is behind the camera at (%g, %g): %w", px.X, px.Y, ErrUnmappable)
	}
	return geometry.Pt(s*a.AtVec(0)-b.AtVec(0), s*a.AtVec(1)-b.AtVec(1)), nil
}

// WorldToPixel projects a point on the working plane into the image.
func (p *Pinhole) WorldToPixel(w geometry.Point) (geometry.Point, error) {
	var c mat.VecDense
	c.MulVec(p.r, mat.NewVecDense(3, []float64{w.X, w.Y, p.params.PlaneZ}))
	c.AddVec(&c, mat.NewVecDense(3, p.params.T[:]))
	if c.AtVec(2) <= 1e-12 {
		return geometry.Point{}, fmt.Errorf("point (%g, %g) is behind the camera: %w", w.X, w.Y, ErrUnmappable)
	}
	x, y := p.distort(c.AtVec(0)/c.AtVec(2), c.AtVec(1)/c.AtVec(2))

	var uv mat.VecDense
	uv.MulVec(p.k, mat.NewVecDense(3, []float64{x, y, 1}))
	return geometry.Pt(uv.AtVec(0)/uv.AtVec(2), uv.AtVec(1)/uv.AtVec(2)).Sub(p.params.Offset), nil
}

func (p *Pinhole) distort(x, y float64) (float64, float64) {
	k1, k2, p1, p2, k3 := p.dist[0], p.dist[1], p.dist[2], p.dist[3], p.dist[4]
	r2 := x*x + y*y
	radial := 1 + r2*(k1+r2*(k2+r2*k3))
	dx := 2*p1*x*y + p2*(r2+2*x*x)
	dy := p1*(r2+2*y*y) + 2*p2*x*y
	return x*radial + dx, y*radial + dy
}

// undistort inverts distort by fixed-point iteration.
func (p *Pinhole) undistort(xd, yd float64) (float64, float64) {
	if p.dist == [5]float64{} {
		return xd, yd
	}
	k1, k2, p1, p2, k3 := p.dist[0], p.dist[1], p.dist[2], p.dist[3], p.dist[4]
	x, y := xd, yd
	for i := 0; i < undistortIterations; i++ {
		r2 := x*x + y*y
		icdist := 1 / (1 + r2*(k1+r2*(k2+r2*k3)))
		dx := 2*p1*x*y + p2*(r2+2*x*x)
		dy := p1*(r2+2*y*y) + 2*p2*x*y
		x = (xd - dx) * icdist
		y = (yd - dy) * icdist
	}
	return x, y
}

// Rodrigues converts an axis-angle vector into a row-major rotation matrix.
func Rodrigues(r [3]float64) [9]float64 {
	theta := math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
	if theta < 1e-12 {
		return [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	}
	kx, ky, kz := r[0]/theta, r[1]/theta, r[2]/theta
	c, s := math.Cos(theta), math.Sin(theta)
	v := 1 - c
	return [9]float64{
		c + kx*kx*v, kx*ky*v - kz*s, kx*kz*v + ky*s,
		ky*kx*v + kz*s, c + ky*ky*v, ky*kz*v - kx*s,
		kz*kx*v - ky*s, kz*ky*v + kx*s, c + kz*kz*v,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
