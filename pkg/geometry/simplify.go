package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// SimplifyClosed approximates a closed contour with Douglas-Peucker at the
// given tolerance in pixels. The ring is opened at the vertex farthest from
// the centroid, which is always a hull vertex, so the split point survives
// simplification.
func SimplifyClosed(contour []Point, tolerance float64) Polygon {
	n := len(contour)
	if n < 3 {
		return Polygon(contour).Clone()
	}

	c := Polygon(contour).Centroid()
	start := 0
	far := -1.0
	for i, p := range contour {
		if d := Distance(p, c); d > far {
			far, start = d, i
		}
	}

	ls := make(orb.LineString, 0, n+1)
	for i := 0; i < n; i++ {
		p := contour[(start+i)%n]
		ls = append(ls, orb.Point{p.X, p.Y})
	}
	ls = append(ls, ls[0])

	s := simplify.DouglasPeucker(tolerance).Simplify(ls.Clone())
	out, ok := s.(orb.LineString)
	if !ok || len(out) < 2 {
		return nil
	}
	// Drop the closing duplicate.
	out = out[:len(out)-1]

	// The open-chain pass cannot remove the split vertex; test it against its
	// neighbours once more.
	if len(out) > 3 {
		prev, cur, next := out[len(out)-1], out[0], out[1]
		if segmentDistance(Pt(cur[0], cur[1]), Pt(prev[0], prev[1]), Pt(next[0], next[1])) <= tolerance {
			out = out[1:]
		}
	}

	poly := make(Polygon, len(out))
	for i, p := range out {
		poly[i] = Pt(p[0], p[1])
	}
	return poly
}

func segmentDistance(p, a, b Point) float64 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return Distance(p, a)
	}
	t := p.Sub(a).Dot(ab) / l2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return Distance(p, a.Add(ab.Mul(t)))
}
