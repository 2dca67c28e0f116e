package pattern

import (
	"context"
	"image"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/gramaziokohler/td2d/pkg/geometry"
	"github.com/gramaziokohler/td2d/pkg/raster"
)

// Method names the identification strategy that produced an Identity.
type Method string

const (
	MethodFiducial Method = "fiducial"
	MethodTemplate Method = "template"
	MethodLabel    Method = "label"
	MethodColor    Method = "color"
)

// Identity is what a tile was recognised as.
type Identity struct {
	Label string `json:"label"`
	// Code is the decoded fiducial value, or -1.
	Code int `json:"code"`
	// Orientation is the number of clockwise quarter turns the tile's
	// content is rotated by relative to the canonical patch, or -1 when the
	// content does not fix it.
	Orientation int     `json:"orientation"`
	Score       float64 `json:"score"`
	Method      Method  `json:"method"`
}

// Sample is everything the matcher may look at for one tile.
type Sample struct {
	// Patch is the canonical grayscale tile; nil when the outline is not a
	// quadrilateral.
	Patch *raster.Plane
	// View is the canonical colour tile, read by a LabelReader.
	View image.Image
	// Color is the mean tile colour when HasColor is set.
	Color    colorful.Color
	HasColor bool
}

// LabelReader recognises printed text on a canonical tile view.
type LabelReader interface {
	ReadLabel(ctx context.Context, img image.Image) (text string, confidence float64, err error)
}

// Turns returns the quarter-turn orientations distinguishable for shape.
func Turns(shape geometry.Shape) []int {
	switch shape.Kind {
	case geometry.ShapeSquare:
		return []int{0, 1, 2, 3}
	case geometry.ShapeRectangle:
		return []int{0, 2}
	}
	return []int{0}
}
