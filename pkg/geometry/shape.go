package geometry

import (
	"fmt"
	"strings"
)

// ShapeKind tags the supported tile outlines.
type ShapeKind int

const (
	ShapeAny ShapeKind = iota
	ShapeSquare
	ShapeRectangle
	ShapeHexagon
)

// Shape describes the expected outline of a tile: its vertex count and its
// rotational symmetry order. Dispatch on Kind happens once per candidate.
type Shape struct {
	Kind     ShapeKind
	Vertices int
	Symmetry int
}

var (
	Square    = Shape{Kind: ShapeSquare, Vertices: 4, Symmetry: 4}
	Rectangle = Shape{Kind: ShapeRectangle, Vertices: 4, Symmetry: 2}
	Hexagon   = Shape{Kind: ShapeHexagon, Vertices: 6, Symmetry: 6}
)

// AnyShape accepts polygons with a vertex count in [minV, maxV]. Such tiles
// carry no symmetry beyond the identity.
func AnyShape() Shape {
	return Shape{Kind: ShapeAny, Vertices: 0, Symmetry: 1}
}

// ParseShape maps a config name onto a Shape.
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "square":
		return Square, nil
	case "rectangle", "rect":
		return Rectangle, nil
	case "hexagon", "hex":
		return Hexagon, nil
	case "any", "polygon":
		return AnyShape(), nil
	}
	return Shape{}, fmt.Errorf("unknown tile shape %q", name)
}

// Period returns the angular period of the shape in degrees.
func (s Shape) Period() float64 {
	if s.Symmetry <= 0 {
		return 360
	}
	return 360 / float64(s.Symmetry)
}

// Accepts reports whether a polygon with n vertices can be this shape. For
// ShapeAny the caller-supplied bounds apply.
func (s Shape) Accepts(n, minV, maxV int) bool {
	if s.Kind == ShapeAny {
		return n >= minV && n <= maxV
	}
	return n == s.Vertices
}

func (s Shape) String() string {
	switch s.Kind {
	case ShapeSquare:
		return "square"
	case ShapeRectangle:
		return "rectangle"
	case ShapeHexagon:
		return "hexagon"
	}
	return "any"
}

// MarshalText implements encoding.TextMarshaler.
func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Shape) UnmarshalText(b []byte) error {
	v, err := ParseShape(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
