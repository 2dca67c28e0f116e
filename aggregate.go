package td2d

import (
	"cmp"
	"slices"

	"github.com/gramaziokohler/td2d/pkg/geometry"
)

// aggregate drops detections below minimum confidence, merges duplicates and
// orders the rest by centre y then x. It returns the kept detections and how
// many were suppressed. Among duplicates the higher confidence wins; on equal
// confidence the lower candidate index wins.
func aggregate(dets []Detection, cfg Config) ([]Detection, int) {
	period := cfg.Shape.Period()

	byRank := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence >= cfg.MinConfidence {
			byRank = append(byRank, d)
		}
	}
	suppressed := len(dets) - len(byRank)

	slices.SortStableFunc(byRank, func(a, b Detection) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})

	kept := make([]Detection, 0, len(byRank))
	for _, d := range byRank {
		if slices.ContainsFunc(kept, func(k Detection) bool { return duplicate(k, d, cfg, period) }) {
			suppressed++
			continue
		}
		kept = append(kept, d)
	}

	slices.SortStableFunc(kept, func(a, b Detection) int {
		if c := cmp.Compare(a.Pose.Center.Y, b.Pose.Center.Y); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Pose.Center.X, b.Pose.Center.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return kept, suppressed
}

func duplicate(a, b Detection, cfg Config, period float64) bool {
	if geometry.Distance(a.Pose.Center, b.Pose.Center) > cfg.DedupRadius {
		return false
	}
	return geometry.AngleDelta(a.Pose.Rotation, b.Pose.Rotation, period) < cfg.DedupAngle
}
