package detection

import (
	"context"
	"image"
	"sort"

	"github.com/gramaziokohler/td2d/internal/imaging"
)

// Component is a connected foreground region of a mask.
type Component struct {
	// Label is the component's 1-based label in Labeling.Labels.
	Label int
	// Area is the number of pixels in the component.
	Area int
	// FilledArea adds the pixels of the component's holes and of everything
	// nested inside them.
	FilledArea int
	// Bounds is the bounding box, max exclusive.
	Bounds image.Rectangle
	// Start is the first pixel in raster order; it is always on the outer
	// boundary.
	Start image.Point
	// Parent is the label of the component enclosing this one, or 0.
	Parent int
	// Depth is the number of enclosing components.
	Depth int
	// TouchesBorder reports whether any pixel lies on the image edge.
	TouchesBorder bool
}

// Labeling is the result of connected-component analysis.
type Labeling struct {
	W, H int
	// Labels holds the component label of every pixel; 0 is background.
	Labels     []int32
	Components []Component
}

// Point is an integer pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// hole is a background region not connected to the image border.
type hole struct {
	area   int
	start  image.Point
	parent int
}

// Label finds the 8-connected foreground components of m and their nesting.
// Background is analysed with 4-connectivity: every background region that
// does not reach the image border is a hole of the foreground component
// immediately to the left of its first pixel.
func Label(ctx context.Context, m *imaging.Mask) (*Labeling, error) {
	w, h := m.W, m.H
	l := &Labeling{W: w, H: h, Labels: make([]int32, w*h)}

	for y := 0; y < h; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < w; x++ {
			i := y*w + x
			if m.Pix[i] && l.Labels[i] == 0 {
				label := len(l.Components) + 1
				c := floodFill(m, l.Labels, x, y, int32(label), true)
				c.Label = label
				l.Components = append(l.Components, c)
			}
		}
	}

	// Background labels are negative so they share the buffer. A hole's first
	// pixel in raster order has its enclosing component directly to the left.
	holes := make(map[int32]hole)
	next := int32(-1)
	for y := 0; y < h; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < w; x++ {
			i := y*w + x
			if m.Pix[i] || l.Labels[i] != 0 {
				continue
			}
			c := floodFill(m, l.Labels, x, y, next, false)
			if !c.TouchesBorder {
				holes[next] = hole{area: c.Area, start: c.Start, parent: int(l.Labels[i-1])}
			}
			next--
		}
	}

	// The background left of a component's first pixel surrounds it.
	for i := range l.Components {
		c := &l.Components[i]
		if c.Start.X == 0 {
			continue
		}
		if hl, ok := holes[l.Labels[c.Start.Y*w+c.Start.X-1]]; ok {
			c.Parent = hl.parent
		}
	}

	// Depths follow parents, which always have smaller labels since they are
	// reached first in raster order.
	for i := range l.Components {
		c := &l.Components[i]
		if c.Parent > 0 {
			c.Depth = l.Components[c.Parent-1].Depth + 1
		}
	}

	// Accumulate filled areas from the deepest components upwards.
	order := make([]int, len(l.Components))
	for i := range order {
		order[i] = i
		l.Components[i].FilledArea = l.Components[i].Area
	}
	for _, hl := range holes {
		if hl.parent > 0 {
			l.Components[hl.parent-1].FilledArea += hl.area
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return l.Components[order[a]].Depth > l.Components[order[b]].Depth
	})
	for _, i := range order {
		c := l.Components[i]
		if c.Parent > 0 {
			l.Components[c.Parent-1].FilledArea += c.FilledArea
		}
	}
	return l, nil
}

// Children returns the labels of components directly enclosed by label.
func (l *Labeling) Children(label int) []int {
	var out []int
	for _, c := range l.Components {
		if c.Parent == label {
			out = append(out, c.Label)
		}
	}
	return out
}

// Component returns the component with the given label.
func (l *Labeling) Component(label int) Component {
	return l.Components[label-1]
}

// floodFill labels the region containing (startX, startY) with a stack-based
// fill. Foreground regions use 8-connectivity, background regions use
// 4-connectivity so that diagonal foreground gaps still close a hole.
func floodFill(m *imaging.Mask, labels []int32, startX, startY int, label int32, fg bool) Component {
	w, h := m.W, m.H
	c := Component{
		Bounds: image.Rect(startX, startY, startX+1, startY+1),
		Start:  image.Pt(startX, startY),
	}
	stack := []Point{{X: startX, Y: startY}}
	labels[startY*w+startX] = label

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		c.Area++
		if p.X < c.Bounds.Min.X {
			c.Bounds.Min.X = p.X
		}
		if p.Y < c.Bounds.Min.Y {
			c.Bounds.Min.Y = p.Y
		}
		if p.X >= c.Bounds.Max.X {
			c.Bounds.Max.X = p.X + 1
		}
		if p.Y >= c.Bounds.Max.Y {
			c.Bounds.Max.Y = p.Y + 1
		}
		if p.X == 0 || p.Y == 0 || p.X == w-1 || p.Y == h-1 {
			c.TouchesBorder = true
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				if !fg && dx != 0 && dy != 0 {
					continue
				}
				nx, ny := p.X+dx, p.Y+dy
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				i := ny*w + nx
				if labels[i] != 0 || m.Pix[i] != fg {
					continue
				}
				labels[i] = label
				stack = append(stack, Point{X: nx, Y: ny})
			}
		}
	}
	return c
}
