package detection

import (
	"context"
	"fmt"

	"github.com/gramaziokohler/td2d/internal/imaging"
	"github.com/gramaziokohler/td2d/pkg/geometry"
)

// NestedPolicy selects which of several nested candidates survive.
type NestedPolicy string

const (
	// NestedOuter keeps a candidate only if no enclosing component is also a
	// candidate. Markings printed on a tile are dropped.
	NestedOuter NestedPolicy = "outer"
	// NestedInner keeps a candidate only if it encloses no other candidate.
	NestedInner NestedPolicy = "inner"
	// NestedAll keeps every candidate.
	NestedAll NestedPolicy = "all"
)

// ExtractOptions controls candidate filtering.
type ExtractOptions struct {
	Shape geometry.Shape
	// MinVertices and MaxVertices bound the vertex count for ShapeAny.
	MinVertices int
	MaxVertices int
	// ApproxTolerance is the Douglas-Peucker epsilon as a fraction of the
	// contour perimeter.
	ApproxTolerance    float64
	MinArea            float64
	MaxArea            float64 // 0 = unbounded
	MaxConvexityDefect float64
	Nested             NestedPolicy
	KeepBorder         bool
}

// Candidate is a region whose outline passed the shape filters.
type Candidate struct {
	// Index is the candidate's position in extraction order.
	Index int
	// Label is the component label in the Labeling.
	Label int
	// Polygon is the approximated outline, clockwise on screen.
	Polygon geometry.Polygon
	// Contour is the traced boundary through pixel centres.
	Contour []geometry.Point
	// Area is the area enclosed by Contour.
	Area float64
	// FilledArea is the pixel count of the region including its holes.
	FilledArea int
	Depth      int
}

// Rejection records why a component was not a candidate.
type Rejection struct {
	Label  int
	Reason string
}

// Extraction is the output of Extract.
type Extraction struct {
	Labeling   *Labeling
	Candidates []Candidate
	Rejected   []Rejection
}

// Extract finds tile candidates in a binary mask.
//
// # Algorithm
//
//  1. Label 8-connected foreground components and their nesting.
//  2. Drop components touching the image border unless KeepBorder is set.
//  3. Trace each outer boundary and approximate it with a closed
//     Douglas-Peucker pass at ApproxTolerance × perimeter.
//  4. Keep polygons with an acceptable vertex count, contour area in
//     [MinArea, MaxArea], convexity defect at most MaxConvexityDefect and no
//     self-intersections.
//  5. Resolve nested candidates according to the NestedPolicy.
func Extract(ctx context.Context, m *imaging.Mask, opts ExtractOptions) (*Extraction, error) {
	switch opts.Nested {
	case "", NestedOuter, NestedInner, NestedAll:
	default:
		return nil, fmt.Errorf("unknown nested policy %q", opts.Nested)
	}

	labels, err := Label(ctx, m)
	if err != nil {
		return nil, err
	}
	ex := &Extraction{Labeling: labels}

	accepted := make(map[int]*Candidate)
	var order []int
	for _, c := range labels.Components {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cand, reason := examine(labels, c, opts)
		if reason != "" {
			ex.Rejected = append(ex.Rejected, Rejection{Label: c.Label, Reason: reason})
			continue
		}
		accepted[c.Label] = cand
		order = append(order, c.Label)
	}

	for _, label := range order {
		if reason := nestedReason(labels, accepted, label, opts.Nested); reason != "" {
			ex.Rejected = append(ex.Rejected, Rejection{Label: label, Reason: reason})
			continue
		}
		cand := *accepted[label]
		cand.Index = len(ex.Candidates)
		ex.Candidates = append(ex.Candidates, cand)
	}
	return ex, nil
}

// examine returns a candidate for c, or the reason it was rejected.
func examine(l *Labeling, c Component, opts ExtractOptions) (*Candidate, string) {
	if c.TouchesBorder && !opts.KeepBorder {
		return nil, "touches image border"
	}
	// The traced contour runs through boundary pixel centres, so its area is
	// below the filled pixel count by about half the perimeter. Components
	// this small can never reach MinArea.
	if float64(c.FilledArea) < opts.MinArea {
		return nil, "area below minimum"
	}

	contour := l.Trace(c.Label)
	if len(contour) < 3 {
		return nil, "degenerate contour"
	}
	area := geometry.Polygon(contour).Area()
	if area < opts.MinArea {
		return nil, fmt.Sprintf("area %.0f below minimum", area)
	}
	if opts.MaxArea > 0 && area > opts.MaxArea {
		return nil, fmt.Sprintf("area %.0f above maximum", area)
	}

	perimeter := geometry.Polygon(contour).Perimeter()
	poly := geometry.SimplifyClosed(contour, opts.ApproxTolerance*perimeter).Clockwise()
	if !opts.Shape.Accepts(len(poly), opts.MinVertices, opts.MaxVertices) {
		return nil, fmt.Sprintf("%d vertices", len(poly))
	}
	if !poly.IsSimple() {
		return nil, "self-intersecting outline"
	}
	if d := geometry.Polygon(contour).ConvexityDefect(); d > opts.MaxConvexityDefect {
		return nil, fmt.Sprintf("convexity defect %.3f", d)
	}

	return &Candidate{
		Label:      c.Label,
		Polygon:    poly,
		Contour:    contour,
		Area:       area,
		FilledArea: c.FilledArea,
		Depth:      c.Depth,
	}, ""
}

func nestedReason(l *Labeling, accepted map[int]*Candidate, label int, policy NestedPolicy) string {
	switch policy {
	case NestedAll:
		return ""
	case NestedInner:
		if encloses(l, accepted, label) {
			return "encloses another candidate"
		}
		return ""
	}
	for p := l.Component(label).Parent; p > 0; p = l.Component(p).Parent {
		if _, ok := accepted[p]; ok {
			return "nested inside another candidate"
		}
	}
	return ""
}

func encloses(l *Labeling, accepted map[int]*Candidate, label int) bool {
	for _, child := range l.Children(label) {
		if _, ok := accepted[child]; ok {
			return true
		}
		if encloses(l, accepted, child) {
			return true
		}
	}
	return false
}
