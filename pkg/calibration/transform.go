// Package calibration maps image pixels onto a planar world frame.
//
// Two transforms are provided: a plane-to-plane Homography, estimated from
// point correspondences or supplied directly, and a Pinhole camera model with
// lens distortion and extrinsics intersecting pixel rays with a working plane
// at fixed world Z. Both are immutable after construction and safe for
// concurrent use.
package calibration

import (
	"errors"
	"fmt"

	"github.com/gramaziokohler/td2d/pkg/geometry"
)

var (
	// ErrInvalid is returned for malformed calibration parameters.
	ErrInvalid = errors.New("invalid calibration")
	// ErrUnmappable is returned when a point has no image in the target frame.
	ErrUnmappable = errors.New("point cannot be mapped")
)

// Transform converts between pixel and world coordinates.
type Transform interface {
	PixelToWorld(p geometry.Point) (geometry.Point, error)
	WorldToPixel(p geometry.Point) (geometry.Point, error)
}

// Homography is a plane-to-plane calibration.
type Homography struct {
	h   geometry.Homography
	inv geometry.Homography
}

// NewHomography wraps a pixel-to-world homography.
func NewHomography(h geometry.Homography) (*Homography, error) {
	inv, err := h.Inverse()
	if err != nil {
		return nil, fmt.Errorf("failed to create homography calibration: %w", errors.Join(ErrInvalid, err))
	}
	return &Homography{h: h, inv: inv}, nil
}

// EstimateHomography fits a Homography to pixel/world correspondences.
func EstimateHomography(pixels, world []geometry.Point) (*Homography, error) {
	h, err := geometry.EstimateHomography(pixels, world)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate homography: %w", errors.Join(ErrInvalid, err))
	}
	return NewHomography(h)
}

// Matrix returns the pixel-to-world matrix, row-major.
func (h *Homography) Matrix() geometry.Homography {
	return h.h
}

func (h *Homography) PixelToWorld(p geometry.Point) (geometry.Point, error) {
	return mapFinite(h.h, p)
}

func (h *Homography) WorldToPixel(p geometry.Point) (geometry.Point, error) {
	return mapFinite(h.inv, p)
}

func mapFinite(h geometry.Homography, p geometry.Point) (geometry.Point, error) {
	q := h.Apply(p)
	if !finite(q.X) || !finite(q.Y) {
		return geometry.Point{}, fmt.Errorf("point (%g, %g) maps to infinity: %w", p.X, p.Y, ErrUnmappable)
	}
	return q, nil
}
