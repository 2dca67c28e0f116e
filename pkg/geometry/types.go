// Package geometry provides the 2D primitives shared by the tile detector:
// points, polygons, tile shapes, poses and planar homographies.
//
// All coordinates follow the image convention: origin at the top-left corner,
// X increases rightward and Y increases downward. Angles are in degrees and
// measured from the +X axis towards +Y, so a positive rotation turns a tile
// clockwise on screen.
package geometry

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
)

// Point is a 2D point with floating-point coordinates.
type Point = r2.Point

// Pt is shorthand for constructing a Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return a.Sub(b).Norm()
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b Point, t float64) Point {
	return a.Add(b.Sub(a).Mul(t))
}

// Polygon is an ordered, implicitly closed sequence of vertices.
type Polygon []Point

// Clone returns a copy of the polygon.
func (p Polygon) Clone() Polygon {
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// SignedArea returns the shoelace area. It is positive when the vertices run
// clockwise on screen (image coordinates).
func (p Polygon) SignedArea() float64 {
	n := len(p)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += p[i].X*p[j].Y - p[j].X*p[i].Y
	}
	return sum / 2
}

// Area returns the absolute enclosed area.
func (p Polygon) Area() float64 {
	return math.Abs(p.SignedArea())
}

// Perimeter returns the length of the closed outline.
func (p Polygon) Perimeter() float64 {
	n := len(p)
	if n < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += Distance(p[i], p[(i+1)%n])
	}
	return sum
}

// Centroid returns the area centroid. Degenerate polygons fall back to the
// vertex mean.
func (p Polygon) Centroid() Point {
	n := len(p)
	if n == 0 {
		return Point{}
	}
	a := p.SignedArea()
	if math.Abs(a) < 1e-12 {
		var sx, sy float64
		for _, v := range p {
			sx += v.X
			sy += v.Y
		}
		return Pt(sx/float64(n), sy/float64(n))
	}
	var cx, cy float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := p[i].X*p[j].Y - p[j].X*p[i].Y
		cx += (p[i].X + p[j].X) * cross
		cy += (p[i].Y + p[j].Y) * cross
	}
	return Pt(cx/(6*a), cy/(6*a))
}

// Bounds returns the axis-aligned bounding rectangle.
func (p Polygon) Bounds() r2.Rect {
	return r2.RectFromPoints(p...)
}

// Clockwise returns the polygon with on-screen clockwise winding.
func (p Polygon) Clockwise() Polygon {
	out := p.Clone()
	if out.SignedArea() < 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// Rotate returns the polygon with its vertex order shifted so that index k
// becomes the first vertex.
func (p Polygon) Rotate(k int) Polygon {
	n := len(p)
	if n == 0 {
		return nil
	}
	k = ((k % n) + n) % n
	out := make(Polygon, 0, n)
	out = append(out, p[k:]...)
	return append(out, p[:k]...)
}

// Edge returns the i-th edge vector, from vertex i to vertex i+1.
func (p Polygon) Edge(i int) Point {
	n := len(p)
	return p[(i+1)%n].Sub(p[i%n])
}

// IsSimple reports whether no two non-adjacent edges intersect.
func (p Polygon) IsSimple() bool {
	n := len(p)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		a1, a2 := p[i], p[(i+1)%n]
		for j := i + 1; j < n; j++ {
			if j == i || (j+1)%n == i || (i+1)%n == j {
				continue
			}
			b1, b2 := p[j], p[(j+1)%n]
			if segmentsIntersect(a1, a2, b1, b2) {
				return false
			}
		}
	}
	return true
}

// IsConvex reports whether every turn has the same direction.
func (p Polygon) IsConvex() bool {
	n := len(p)
	if n < 3 {
		return false
	}
	sign := 0
	for i := 0; i < n; i++ {
		c := cross3(p[i], p[(i+1)%n], p[(i+2)%n])
		if math.Abs(c) < 1e-12 {
			continue
		}
		s := 1
		if c < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false
		}
	}
	return sign != 0
}

// ConvexityDefect returns 1 - area/hullArea: zero for convex polygons and
// growing with the size of concavities.
func (p Polygon) ConvexityDefect() float64 {
	hull := ConvexHull(p)
	ha := hull.Area()
	if ha <= 0 {
		return 1
	}
	d := 1 - p.Area()/ha
	if d < 0 {
		return 0
	}
	return d
}

// InteriorAngles returns each vertex's interior angle in degrees, assuming a
// convex polygon.
func (p Polygon) InteriorAngles() []float64 {
	n := len(p)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		prev := p[(i-1+n)%n].Sub(p[i])
		next := p[(i+1)%n].Sub(p[i])
		denom := prev.Norm() * next.Norm()
		if denom == 0 {
			continue
		}
		c := prev.Dot(next) / denom
		c = math.Max(-1, math.Min(1, c))
		out[i] = math.Acos(c) * 180 / math.Pi
	}
	return out
}

// Contains reports whether q lies inside the polygon (even-odd rule).
func (p Polygon) Contains(q Point) bool {
	n := len(p)
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := p[i], p[j]
		if (pi.Y > q.Y) != (pj.Y > q.Y) {
			x := (pj.X-pi.X)*(q.Y-pi.Y)/(pj.Y-pi.Y) + pi.X
			if q.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// ConvexHull computes the convex hull with Andrew's monotone chain. The hull
// is returned with clockwise on-screen winding.
func ConvexHull(points []Point) Polygon {
	if len(points) < 3 {
		return Polygon(points).Clone()
	}
	pts := make([]Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	hull := make([]Point, 0, 2*len(pts))
	for _, pt := range pts {
		for len(hull) >= 2 && cross3(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		pt := pts[i]
		for len(hull) >= lower && cross3(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	return Polygon(hull[:len(hull)-1]).Clockwise()
}

// cross3 is the z component of (b-a) x (c-b).
func cross3(a, b, c Point) float64 {
	return b.Sub(a).Cross(c.Sub(b))
}

func orientation(a, b, c Point) int {
	v := b.Sub(a).Cross(c.Sub(a))
	switch {
	case v > 1e-12:
		return 1
	case v < -1e-12:
		return -1
	}
	return 0
}

func onSegment(a, b, q Point) bool {
	return q.X <= math.Max(a.X, b.X)+1e-12 && q.X >= math.Min(a.X, b.X)-1e-12 &&
		q.Y <= math.Max(a.Y, b.Y)+1e-12 && q.Y >= math.Min(a.Y, b.Y)-1e-12
}

func segmentsIntersect(a1, a2, b1, b2 Point) bool {
	o1 := orientation(a1, a2, b1)
	o2 := orientation(a1, a2, b2)
	o3 := orientation(b1, b2, a1)
	o4 := orientation(b1, b2, a2)
	if o1 != o2 && o3 != o4 {
		return true
	}
	if o1 == 0 && onSegment(a1, a2, b1) {
		return true
	}
	if o2 == 0 && onSegment(a1, a2, b2) {
		return true
	}
	if o3 == 0 && onSegment(b1, b2, a1) {
		return true
	}
	if o4 == 0 && onSegment(b1, b2, a2) {
		return true
	}
	return false
}
