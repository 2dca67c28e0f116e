package detection

import (
	"image"

	"github.com/gramaziokohler/td2d/pkg/geometry"
)

// moore lists the 8 neighbour offsets clockwise on screen, starting east.
var moore = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

func mooreIndex(d image.Point) int {
	for i, m := range moore {
		if m == d {
			return i
		}
	}
	return 0
}

// Trace returns the outer boundary of a component as pixel centres, in
// clockwise screen order, with collinear runs collapsed.
//
// # Algorithm
//
// Moore-neighbour tracing from the component's raster-first pixel, whose
// west neighbour is known to be outside the component. Each step scans the
// 8 neighbours clockwise from the last background pixel visited. Tracing
// stops on re-entering the start pixel heading to the same second pixel as
// the first step (Jacob's criterion), so pinch points visited twice do not
// end the trace early.
func (l *Labeling) Trace(label int) []geometry.Point {
	c := l.Component(label)
	inside := func(p image.Point) bool {
		if p.X < 0 || p.Y < 0 || p.X >= l.W || p.Y >= l.H {
			return false
		}
		return l.Labels[p.Y*l.W+p.X] == int32(label)
	}
	step := func(cur, back image.Point) (image.Point, image.Point, bool) {
		d := mooreIndex(back.Sub(cur))
		prev := back
		for k := 1; k <= 8; k++ {
			n := cur.Add(moore[(d+k)%8])
			if inside(n) {
				return n, prev, true
			}
			prev = n
		}
		return cur, back, false
	}

	start := c.Start
	second, back, ok := step(start, start.Add(image.Pt(-1, 0)))
	if !ok {
		return []geometry.Point{geometry.Pt(float64(start.X), float64(start.Y))}
	}

	path := []image.Point{start}
	cur := second
	maxSteps := 4*c.Area + 8
	for i := 0; i < maxSteps; i++ {
		next, nb, _ := step(cur, back)
		if cur == start && next == second {
			break
		}
		path = append(path, cur)
		cur, back = next, nb
	}
	return collapse(path)
}

// collapse removes points that continue the previous step's direction.
func collapse(path []image.Point) []geometry.Point {
	n := len(path)
	out := make([]geometry.Point, 0, n)
	for i, p := range path {
		if n > 2 {
			prev := path[(i+n-1)%n]
			next := path[(i+1)%n]
			if p.Sub(prev) == next.Sub(p) {
				continue
			}
		}
		out = append(out, geometry.Pt(float64(p.X), float64(p.Y)))
	}
	if len(out) == 0 {
		// A straight line segment traced out and back.
		out = append(out, geometry.Pt(float64(path[0].X), float64(path[0].Y)))
	}
	return out
}
