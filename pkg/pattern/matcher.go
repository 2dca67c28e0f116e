package pattern

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/gramaziokohler/td2d/pkg/geometry"
)

// Options configures a Matcher. Every method is optional; a zero Options
// identifies nothing.
type Options struct {
	Shape geometry.Shape

	// Fiducial enables marker decoding when non-nil.
	Fiducial *Fiducial

	Library    *Library
	MinScore   float64
	TieEpsilon float64

	Reader             LabelReader
	MinLabelConfidence float64

	Palette         Palette
	MaxDeltaE       float64
	ColorTieEpsilon float64
}

// Matcher identifies tiles from their canonical patches. Methods are tried
// in the order fiducial, template, label, colour; the first decisive one
// wins. A Matcher is safe for concurrent use when its LabelReader is.
type Matcher struct {
	opts  Options
	turns []int
}

// NewMatcher validates opts and returns a Matcher.
func NewMatcher(opts Options) (*Matcher, error) {
	if opts.Fiducial != nil {
		if err := opts.Fiducial.Validate(); err != nil {
			return nil, err
		}
	}
	if err := opts.Palette.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{opts: opts, turns: Turns(opts.Shape)}, nil
}

// Enabled reports whether any identification method is configured.
func (m *Matcher) Enabled() bool {
	o := m.opts
	return o.Fiducial != nil || (o.Library != nil && o.Library.Len() > 0) || o.Reader != nil || len(o.Palette) > 0
}

// Identify returns the tile's identity, or nil when no method is decisive.
// Label reader failures are returned with a nil identity only when no later
// method succeeds.
func (m *Matcher) Identify(ctx context.Context, s Sample) (*Identity, error) {
	o := m.opts

	if o.Fiducial != nil && s.Patch != nil {
		if d, ok := o.Fiducial.Decode(s.Patch, m.turns); ok && !d.Ambiguous {
			return &Identity{
				Label:       strconv.Itoa(d.Code),
				Code:        d.Code,
				Orientation: d.Orientation,
				Score:       d.Score,
				Method:      MethodFiducial,
			}, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if o.Library != nil && s.Patch != nil {
		if name, turn, score, ok := o.Library.Match(s.Patch, m.turns, o.MinScore, o.TieEpsilon); ok {
			return &Identity{Label: name, Code: -1, Orientation: turn, Score: score, Method: MethodTemplate}, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var readErr error
	if o.Reader != nil && s.View != nil {
		id, err := m.readLabel(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			readErr = err
		} else if id != nil {
			return id, nil
		}
	}

	if len(o.Palette) > 0 && s.HasColor {
		if name, d, ok := o.Palette.Match(s.Color, o.MaxDeltaE, o.ColorTieEpsilon); ok {
			score := 1.0
			if o.MaxDeltaE > 0 {
				score = math.Max(0, 1-d/o.MaxDeltaE)
			}
			return &Identity{Label: name, Code: -1, Orientation: -1, Score: score, Method: MethodColor}, nil
		}
	}
	return nil, readErr
}

// readLabel reads the view in every orientation and keeps the most
// confident non-empty text.
func (m *Matcher) readLabel(ctx context.Context, s Sample) (*Identity, error) {
	var best *Identity
	for _, turn := range m.turns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		view := s.View
		// Undo a clockwise turn with counter-clockwise ones.
		switch turn {
		case 1:
			view = imaging.Rotate90(view)
		case 2:
			view = imaging.Rotate180(view)
		case 3:
			view = imaging.Rotate270(view)
		}
		text, conf, err := m.opts.Reader.ReadLabel(ctx, view)
		if err != nil {
			return nil, fmt.Errorf("failed to read label: %w", err)
		}
		text = strings.TrimSpace(text)
		if text == "" || conf < m.opts.MinLabelConfidence {
			continue
		}
		if best == nil || conf > best.Score {
			best = &Identity{Label: text, Code: -1, Orientation: turn, Score: conf, Method: MethodLabel}
		}
	}
	return best, nil
}
