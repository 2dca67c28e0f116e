package pattern

import (
	"fmt"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Swatch is a named palette colour.
type Swatch struct {
	Name  string `json:"name"`
	Color string `json:"color"` // #rrggbb
}

// Palette identifies tiles by their mean colour.
type Palette []Swatch

// Validate checks names and colours.
func (p Palette) Validate() error {
	seen := make(map[string]bool, len(p))
	for i, s := range p {
		if s.Name == "" {
			return fmt.Errorf("palette entry %d has no name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate palette entry %q", s.Name)
		}
		seen[s.Name] = true
		if _, err := colorful.Hex(s.Color); err != nil {
			return fmt.Errorf("palette entry %q: %w", s.Name, err)
		}
	}
	return nil
}

// DeltaE is the CIEDE2000 colour difference on the usual 0-100 scale.
func DeltaE(a, b colorful.Color) float64 {
	return a.DistanceCIEDE2000(b) * 100
}

// Match returns the swatch nearest to c. It reports false when the nearest
// is farther than maxDeltaE or another swatch is within tieEps of it.
func (p Palette) Match(c colorful.Color, maxDeltaE, tieEps float64) (name string, deltaE float64, ok bool) {
	best, second := math.Inf(1), math.Inf(1)
	for _, s := range p {
		ref, err := colorful.Hex(s.Color)
		if err != nil {
			continue
		}
		d := DeltaE(c, ref)
		switch {
		case d < best:
			second = best
			best, name = d, s.Name
		case d < second:
			second = d
		}
	}
	if name == "" || best > maxDeltaE || second-best < tieEps {
		return "", 0, false
	}
	return name, best, true
}
