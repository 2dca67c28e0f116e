package td2d

import (
	"image"
	"time"

	"github.com/gramaziokohler/td2d/internal/imaging"
	"github.com/gramaziokohler/td2d/pkg/geometry"
	"github.com/gramaziokohler/td2d/pkg/pattern"
)

// Detection is a located tile.
type Detection struct {
	// Index is the candidate index the detection came from.
	Index int `json:"index"`
	// Corners are the refined outline, clockwise on screen. For an
	// oriented tile Corners[0] is the top-left of its content.
	Corners geometry.Polygon `json:"corners"`
	// Pose is in pixel coordinates.
	Pose geometry.Pose `json:"pose"`
	// World is the pose in calibrated units, when a transform is set.
	World    *geometry.Pose    `json:"world,omitempty"`
	Identity *pattern.Identity `json:"identity,omitempty"`
	// Color is the mean tile colour as #rrggbb.
	Color      string  `json:"color,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Identified reports whether a matcher assigned an identity.
func (d *Detection) Identified() bool { return d.Identity != nil }

// Result is the outcome of one detection run.
type Result struct {
	// Detections are ordered by centre y, then x.
	Detections []Detection `json:"detections"`
	Count      int         `json:"count"`
	// Candidates is the number of outlines that passed extraction.
	Candidates int `json:"candidates"`
	// Dropped counts candidates that failed fitting, timed out or never ran.
	Dropped int `json:"dropped"`
	// Suppressed counts detections below MinConfidence or merged as
	// duplicates.
	Suppressed int           `json:"suppressed"`
	Partial    bool          `json:"partial"`
	Duration   time.Duration `json:"duration"`
}

// NewImage wraps an interleaved 8-bit pixel buffer with 1 (gray), 3 (RGB) or
// 4 (RGBA) channels. The buffer is copied.
func NewImage(pix []byte, width, height, channels int) (image.Image, error) {
	img, err := imaging.FromBuffer(pix, width, height, channels)
	if err != nil {
		return nil, &InvalidInputError{What: "image", Err: err}
	}
	return img, nil
}
