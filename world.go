package td2d

import (
	"fmt"

	"github.com/gramaziokohler/td2d/pkg/calibration"
	"github.com/gramaziokohler/td2d/pkg/geometry"
)

// worldPose maps a pixel-space detection into the calibrated frame. The
// centre is mapped directly; rotation follows the mapped leading edge and
// scale is the mean mapped edge length. period is the angular range of the
// rotation.
func worldPose(t calibration.Transform, corners geometry.Polygon, center geometry.Point, period float64) (*geometry.Pose, error) {
	if len(corners) < 2 {
		return nil, fmt.Errorf("cannot map a pose with %d corners", len(corners))
	}
	c, err := t.PixelToWorld(center)
	if err != nil {
		return nil, fmt.Errorf("failed to map centre: %w", err)
	}
	mapped := make(geometry.Polygon, len(corners))
	for i, p := range corners {
		if mapped[i], err = t.PixelToWorld(p); err != nil {
			return nil, fmt.Errorf("failed to map corner %d: %w", i, err)
		}
	}

	pose := &geometry.Pose{
		Center:   c,
		Rotation: geometry.NormalizeAngle(geometry.Degrees(mapped.Edge(0)), period),
		Height:   mapped.Edge(0).Norm(),
	}
	var total float64
	for i := range mapped {
		l := mapped.Edge(i).Norm()
		total += l
		pose.Width = max(pose.Width, l)
		pose.Height = min(pose.Height, l)
	}
	pose.Scale = total / float64(len(mapped))
	return pose, nil
}
