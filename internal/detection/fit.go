package detection

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gramaziokohler/td2d/internal/imaging"
	"github.com/gramaziokohler/td2d/pkg/geometry"
)

// ErrDegenerate is returned when a candidate's corners cannot be refined into
// a usable polygon.
var ErrDegenerate = errors.New("degenerate geometry")

// maxCondition bounds the normal matrix of the corner equations.
const maxCondition = 1e8

// FitOptions controls corner refinement and pose estimation.
type FitOptions struct {
	Shape geometry.Shape
	// Window is the half size of the refinement window; the window covers
	// (2·Window+1)² samples.
	Window  int
	MaxIter int
	// Epsilon is the corner shift, in pixels, below which refinement stops.
	Epsilon float64
	// MaxAreaShrink is the largest allowed relative loss of polygon area
	// between the candidate and the refined corners.
	MaxAreaShrink float64
	// ReferenceAngle selects the edge that defines rotation. NaN picks the
	// longest edge.
	ReferenceAngle float64
}

// Fit is a candidate with refined corners and pose.
type Fit struct {
	// Corners are clockwise on screen. Corners[0]→Corners[1] is the edge that
	// defines Pose.Rotation.
	Corners    geometry.Polygon
	Pose       geometry.Pose
	Confidence float64
	Iterations int
}

// FitCandidate refines the corners of c against the image gradients and
// derives its pose and confidence.
func FitCandidate(ctx context.Context, c *Candidate, g imaging.Gradients, opts FitOptions) (*Fit, error) {
	n := len(c.Polygon)
	if n < 3 {
		return nil, fmt.Errorf("%w: %d vertices", ErrDegenerate, n)
	}

	seeds := seedCorners(c)
	win := opts.Window
	shortest := math.Inf(1)
	for i := 0; i < n; i++ {
		shortest = math.Min(shortest, seeds.Edge(i).Norm())
	}
	// Keep neighbouring corners out of each other's window.
	if lim := int(shortest / 4); win > lim {
		win = lim
	}

	refined := seeds.Clone()
	iterations := 0
	if win >= 1 && opts.MaxIter > 0 {
		for i, q := range seeds {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p, it, err := refineCorner(g, q, win, opts.MaxIter, opts.Epsilon)
			if err != nil {
				return nil, fmt.Errorf("corner %d: %w", i, err)
			}
			refined[i] = p
			iterations += it
		}
	}

	if !refined.IsSimple() {
		return nil, fmt.Errorf("%w: refined outline self-intersects", ErrDegenerate)
	}
	before, after := c.Polygon.Area(), refined.Area()
	if after < (1-opts.MaxAreaShrink)*before {
		return nil, fmt.Errorf("%w: area shrank from %.1f to %.1f", ErrDegenerate, before, after)
	}
	refined = refined.Clockwise()

	pose := geometry.PoseOf(refined, opts.Shape, opts.ReferenceAngle)
	corners := refined.Rotate(leadingEdge(refined, pose.Rotation))

	return &Fit{
		Corners:    corners,
		Pose:       pose,
		Confidence: confidence(corners, c.FilledArea, opts.Shape),
		Iterations: iterations,
	}, nil
}

// leadingEdge returns the index of the edge whose direction is closest to
// rotation.
func leadingEdge(poly geometry.Polygon, rotation float64) int {
	best, bestDelta := 0, math.Inf(1)
	for i := range poly {
		d := geometry.AngleDelta(geometry.Degrees(poly.Edge(i)), rotation, 360)
		if d < bestDelta-1e-9 {
			best, bestDelta = i, d
		}
	}
	return best
}

// seedCorners places each vertex of c.Polygon at the intersection of the
// lines fitted to the contour runs on either side of it. Blunt corners come
// out of thresholding as short plateaus and the approximation keeps one end
// of each; the intersection recovers the corner itself. A vertex keeps its
// approximated position when a neighbouring run is too short to fit, the
// lines are parallel, or the intersection lands far from it.
func seedCorners(c *Candidate) geometry.Polygon {
	poly := c.Polygon
	n := len(poly)
	seeds := poly.Clone()
	contour := c.Contour
	if len(contour) < 4*n {
		return seeds
	}
	if (geometry.Polygon(contour).SignedArea() > 0) != (poly.SignedArea() > 0) {
		contour = make([]geometry.Point, len(c.Contour))
		for i, p := range c.Contour {
			contour[len(contour)-1-i] = p
		}
	}

	at := make(map[geometry.Point]int, len(contour))
	for i, p := range contour {
		if _, ok := at[p]; !ok {
			at[p] = i
		}
	}
	idx := make([]int, n)
	for i, v := range poly {
		j, ok := at[v]
		if !ok {
			return seeds
		}
		idx[i] = j
	}

	// runs[i] covers the contour from vertex i to vertex i+1.
	m := len(contour)
	runs := make([]int, n)
	total := 0
	for i := range poly {
		runs[i] = (idx[(i+1)%n] - idx[i] + m) % m
		total += runs[i]
	}
	if total != m {
		return seeds
	}

	lines := make([]line, n)
	fitted := make([]bool, n)
	for i, length := range runs {
		trim := length / 5
		var pts []geometry.Point
		for k := trim; k <= length-trim; k++ {
			pts = append(pts, contour[(idx[i]+k)%m])
		}
		lines[i], fitted[i] = fitLine(pts)
	}

	for i := range poly {
		prev := (i + n - 1) % n
		if !fitted[prev] || !fitted[i] {
			continue
		}
		q, ok := lines[prev].intersect(lines[i])
		if !ok {
			continue
		}
		reach := math.Min(poly.Edge(prev).Norm(), poly.Edge(i).Norm()) / 2
		if geometry.Distance(q, poly[i]) <= reach {
			seeds[i] = q
		}
	}
	return seeds
}

// line is a point on a line and its unit direction.
type line struct {
	p, d geometry.Point
}

// fitLine fits a total least squares line through pts.
func fitLine(pts []geometry.Point) (line, bool) {
	if len(pts) < 3 {
		return line{}, false
	}
	data := mat.NewDense(len(pts), 2, nil)
	var c geometry.Point
	for i, p := range pts {
		data.Set(i, 0, p.X)
		data.Set(i, 1, p.Y)
		c = c.Add(p)
	}
	c = c.Mul(1 / float64(len(pts)))

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)
	var eig mat.EigenSym
	if !eig.Factorize(&cov, true) {
		return line{}, false
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	// Eigenvalues ascend, so the last vector spans the points.
	d := geometry.Pt(vecs.At(0, 1), vecs.At(1, 1))
	if d.Norm() == 0 {
		return line{}, false
	}
	return line{p: c, d: d.Normalize()}, true
}

func (l line) intersect(o line) (geometry.Point, bool) {
	den := l.d.Cross(o.d)
	// Below about 3 degrees.
	if math.Abs(den) < 0.05 {
		return geometry.Point{}, false
	}
	t := o.p.Sub(l.p).Cross(o.d) / den
	return l.p.Add(l.d.Mul(t)), true
}

// refineCorner moves q to the point where every gradient in the window is
// orthogonal to the vector from q to its sample, solving
//
//	Σ w·g·gᵀ · q = Σ w·g·gᵀ · p
//
// and iterating with the window re-centred on the new estimate.
func refineCorner(g imaging.Gradients, q0 geometry.Point, win, maxIter int, eps float64) (geometry.Point, int, error) {
	weights := make([]float64, 2*win+1)
	for i := range weights {
		x := float64(i-win) / float64(win)
		weights[i] = math.Exp(-x * x)
	}

	q := q0
	it := 0
	for it < maxIter {
		it++
		var a, b, c, bx, by float64
		for dy := -win; dy <= win; dy++ {
			for dx := -win; dx <= win; dx++ {
				px, py := q.X+float64(dx), q.Y+float64(dy)
				gx := g.X.Bilinear(px, py)
				gy := g.Y.Bilinear(px, py)
				w := weights[dx+win] * weights[dy+win]
				gxx, gxy, gyy := gx*gx*w, gx*gy*w, gy*gy*w
				a += gxx
				b += gxy
				c += gyy
				bx += gxx*px + gxy*py
				by += gxy*px + gyy*py
			}
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(mat.NewSymDense(2, []float64{a, b, b, c})); !ok || chol.Cond() > maxCondition {
			return q0, it, fmt.Errorf("%w: no corner structure near (%.1f, %.1f)", ErrDegenerate, q0.X, q0.Y)
		}
		var x mat.VecDense
		if err := chol.SolveVecTo(&x, mat.NewVecDense(2, []float64{bx, by})); err != nil {
			return q0, it, fmt.Errorf("%w: %v", ErrDegenerate, err)
		}

		next := geometry.Pt(x.AtVec(0), x.AtVec(1))
		shift := geometry.Distance(next, q)
		q = next
		if geometry.Distance(q, q0) > float64(win) {
			return q0, it, fmt.Errorf("%w: corner diverged from (%.1f, %.1f)", ErrDegenerate, q0.X, q0.Y)
		}
		if shift < eps {
			break
		}
	}
	return q, it, nil
}

// confidence scores a fitted outline in [0, 1] as the product of its fill
// ratio, side regularity and corner-angle agreement.
func confidence(poly geometry.Polygon, filled int, shape geometry.Shape) float64 {
	area := poly.Area()
	if area <= 0 {
		return 0
	}
	fill := 1 - math.Abs(1-float64(filled)/area)

	n := len(poly)
	sides := make([]float64, n)
	for i := range poly {
		sides[i] = poly.Edge(i).Norm()
	}

	regularity, angles := 1.0, 1.0
	switch shape.Kind {
	case geometry.ShapeRectangle:
		if n == 4 {
			regularity = ratio(sides[0], sides[2]) * ratio(sides[1], sides[3])
		}
		angles = angleScore(poly, 90)
	case geometry.ShapeSquare, geometry.ShapeHexagon:
		lo, hi := sides[0], sides[0]
		for _, s := range sides[1:] {
			lo, hi = math.Min(lo, s), math.Max(hi, s)
		}
		regularity = ratio(lo, hi)
		angles = angleScore(poly, 180*float64(n-2)/float64(n))
	}

	return clamp01(fill) * clamp01(regularity) * clamp01(angles)
}

func angleScore(poly geometry.Polygon, expected float64) float64 {
	var sum float64
	as := poly.InteriorAngles()
	for _, a := range as {
		sum += math.Abs(a - expected)
	}
	return 1 - sum/float64(len(as))/45
}

func ratio(a, b float64) float64 {
	if a > b {
		a, b = b, a
	}
	if b == 0 {
		return 0
	}
	return a / b
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
