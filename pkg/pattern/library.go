package pattern

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	tdimaging "github.com/gramaziokohler/td2d/internal/imaging"
	"github.com/gramaziokohler/td2d/pkg/raster"
)

// Entry is a named reference image.
type Entry struct {
	Name  string
	Image image.Image
}

type template struct {
	name string
	// rotations[j] is the template content turned clockwise j quarter turns.
	rotations [4]*raster.Plane
}

// Library is an immutable set of templates resampled to one patch size. It
// is safe for concurrent use.
type Library struct {
	size      int
	templates []template
}

// NewLibrary builds a library whose templates are resized to size×size.
// Names must be unique and non-empty.
func NewLibrary(size int, entries ...Entry) (*Library, error) {
	if size < 8 {
		return nil, fmt.Errorf("patch size must be at least 8, got %d", size)
	}
	seen := make(map[string]bool, len(entries))
	l := &Library{size: size}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("template name must not be empty")
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("duplicate template %q", e.Name)
		}
		seen[e.Name] = true
		if err := tdimaging.Validate(e.Image); err != nil {
			return nil, fmt.Errorf("template %q: %w", e.Name, err)
		}

		base := imaging.Resize(e.Image, size, size, imaging.Lanczos)
		t := template{name: e.Name}
		t.rotations[0] = luminance(base)
		// Rotate270 turns counter-clockwise by 270°, one clockwise quarter.
		t.rotations[1] = luminance(imaging.Rotate270(base))
		t.rotations[2] = luminance(imaging.Rotate180(base))
		t.rotations[3] = luminance(imaging.Rotate90(base))
		l.templates = append(l.templates, t)
	}
	return l, nil
}

// LoadLibrary reads every PNG and JPEG file in dir as a template named after
// the file without its extension.
func LoadLibrary(dir string, size int) (*Library, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}
	var entries []Entry
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(f.Name()))
		if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
			continue
		}
		img, err := imaging.Open(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to load template %s: %w", f.Name(), err)
		}
		entries = append(entries, Entry{Name: strings.TrimSuffix(f.Name(), filepath.Ext(f.Name())), Image: img})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return NewLibrary(size, entries...)
}

// PatchSize returns the side of the templates.
func (l *Library) PatchSize() int { return l.size }

// Len returns the number of templates.
func (l *Library) Len() int { return len(l.templates) }

// Names returns the template names in library order.
func (l *Library) Names() []string {
	out := make([]string, len(l.templates))
	for i, t := range l.templates {
		out[i] = t.name
	}
	return out
}

// Match scores p against every template in each orientation of turns with
// normalized cross-correlation. It reports false when the best score is
// below minScore or a different template scores within tieEps of it. When
// another orientation of the winning template is within tieEps the
// orientation is -1.
func (l *Library) Match(p *raster.Plane, turns []int, minScore, tieEps float64) (name string, orientation int, score float64, ok bool) {
	if l == nil || p == nil || p.W != l.size || p.H != l.size {
		return "", 0, 0, false
	}
	bestIdx, bestTurn, best := -1, 0, math.Inf(-1)
	scores := make([][4]float64, len(l.templates))
	for i, t := range l.templates {
		for _, j := range turns {
			s := NCC(p, t.rotations[j])
			scores[i][j] = s
			if s > best {
				bestIdx, bestTurn, best = i, j, s
			}
		}
	}
	if bestIdx < 0 || best < minScore {
		return "", 0, 0, false
	}
	orientation = bestTurn
	for i := range l.templates {
		for _, j := range turns {
			if i == bestIdx && j == bestTurn {
				continue
			}
			if best-scores[i][j] >= tieEps {
				continue
			}
			if i != bestIdx {
				return "", 0, 0, false
			}
			orientation = -1
		}
	}
	return l.templates[bestIdx].name, orientation, best, true
}

// luminance converts img to grayscale and reads it into a Plane.
func luminance(img image.Image) *raster.Plane {
	return raster.FromImage(imaging.Grayscale(img))
}

// NCC returns the zero-mean normalized cross-correlation of two equally
// sized planes, in [-1, 1]. Flat planes correlate with nothing.
func NCC(a, b *raster.Plane) float64 {
	if len(a.Pix) != len(b.Pix) || len(a.Pix) == 0 {
		return 0
	}
	ma, mb := a.Mean(), b.Mean()
	var num, da, db float64
	for i := range a.Pix {
		x := a.Pix[i] - ma
		y := b.Pix[i] - mb
		num += x * y
		da += x * x
		db += y * y
	}
	if da == 0 || db == 0 {
		return 0
	}
	return num / math.Sqrt(da*db)
}
