package geometry

import "math"

// Pose is the planar pose of a tile.
type Pose struct {
	Center   Point   `json:"center"`
	Rotation float64 `json:"rotation"` // degrees
	Scale    float64 `json:"scale"`    // mean edge length
	Width    float64 `json:"width"`    // longest side
	Height   float64 `json:"height"`   // shortest side
}

// NormalizeAngle maps deg into [0, period).
func NormalizeAngle(deg, period float64) float64 {
	if period <= 0 {
		period = 360
	}
	a := math.Mod(deg, period)
	if a < 0 {
		a += period
	}
	// Mod can return period itself for tiny negative inputs.
	if a >= period {
		a -= period
	}
	return a
}

// AngleDelta returns the smallest circular distance between two angles
// modulo period. The result is in [0, period/2].
func AngleDelta(a, b, period float64) float64 {
	if period <= 0 {
		period = 360
	}
	d := NormalizeAngle(a-b, period)
	if d > period/2 {
		d = period - d
	}
	return d
}

// Degrees returns the angle of v from the +X axis in degrees, in (-180, 180].
func Degrees(v Point) float64 {
	return math.Atan2(v.Y, v.X) * 180 / math.Pi
}

// PoseOf computes a pose from an ordered polygon. The rotation is taken from
// the edge whose direction is closest to reference (degrees) when reference is
// finite, otherwise from the longest edge, then normalized to the shape
// period.
func PoseOf(poly Polygon, shape Shape, reference float64) Pose {
	n := len(poly)
	p := Pose{Center: poly.Centroid()}
	if n < 2 {
		return p
	}
	period := shape.Period()

	var total float64
	longest, shortest := 0.0, math.Inf(1)
	best := -1
	bestScore := math.Inf(1)
	for i := 0; i < n; i++ {
		e := poly.Edge(i)
		l := e.Norm()
		total += l
		if l > longest {
			longest = l
		}
		if l < shortest {
			shortest = l
		}
		var score float64
		if math.IsNaN(reference) || math.IsInf(reference, 0) {
			score = -l
		} else {
			score = AngleDelta(Degrees(e), reference, period)
		}
		if best < 0 || score < bestScore-1e-9 {
			best, bestScore = i, score
		}
	}
	p.Scale = total / float64(n)
	p.Width = longest
	p.Height = shortest
	p.Rotation = NormalizeAngle(Degrees(poly.Edge(best)), period)
	return p
}
