package td2d

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/gramaziokohler/td2d/internal/detection"
	"github.com/gramaziokohler/td2d/internal/imaging"
	"github.com/gramaziokohler/td2d/pkg/calibration"
	"github.com/gramaziokohler/td2d/pkg/geometry"
	"github.com/gramaziokohler/td2d/pkg/pattern"
)

// Option customizes a Detector.
type Option func(*Detector)

// WithLibrary sets the template library used for identification. Its patch
// size must equal Config.PatchSize.
func WithLibrary(lib *pattern.Library) Option {
	return func(d *Detector) { d.library = lib }
}

// WithCalibration sets the pixel-to-world transform. Every detection then
// carries a world pose.
func WithCalibration(t calibration.Transform) Option {
	return func(d *Detector) { d.transform = t }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithLabelReader enables printed-label identification.
func WithLabelReader(r pattern.LabelReader) Option {
	return func(d *Detector) { d.reader = r }
}

// Detector locates tiles in images. It is immutable after New and safe for
// concurrent use when its LabelReader is.
type Detector struct {
	cfg       Config
	timeout   time.Duration
	library   *pattern.Library
	transform calibration.Transform
	reader    pattern.LabelReader
	matcher   *pattern.Matcher
	logger    *slog.Logger
}

// New validates cfg and builds a Detector.
func New(cfg Config, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout, _ := cfg.candidateTimeout()

	d := &Detector{
		cfg:     cfg,
		timeout: timeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}

	if cfg.World && d.transform == nil {
		return nil, &UncalibratedError{}
	}
	if d.library != nil && d.library.PatchSize() != cfg.PatchSize {
		return nil, &InvalidInputError{
			What: "config",
			Err:  fmt.Errorf("library patch size %d does not match patch_size %d", d.library.PatchSize(), cfg.PatchSize),
		}
	}

	mopts := pattern.Options{
		Shape:              cfg.Shape,
		Library:            d.library,
		MinScore:           cfg.MinScore,
		TieEpsilon:         cfg.TieEpsilon,
		Reader:             d.reader,
		MinLabelConfidence: cfg.MinLabelConfidence,
		Palette:            cfg.Palette,
		MaxDeltaE:          cfg.MaxDeltaE,
		ColorTieEpsilon:    cfg.ColorTieEpsilon,
	}
	if cfg.Fiducial {
		f := cfg.fiducial()
		mopts.Fiducial = &f
	}
	m, err := pattern.NewMatcher(mopts)
	if err != nil {
		return nil, &InvalidInputError{What: "config", Err: err}
	}
	d.matcher = m
	return d, nil
}

// Config returns a copy of the detector's configuration.
func (d *Detector) Config() Config { return d.cfg }

// run holds the read-only inputs shared by candidate workers.
type run struct {
	img   image.Image
	pre   *imaging.Preprocessed
	grads imaging.Gradients
}

// Detect runs the pipeline on img.
//
// Invalid images fail with *InvalidInputError. Per-candidate failures are
// counted in Result.Dropped and never fail the run. When ctx is cancelled
// Detect returns the detections completed so far with Result.Partial set,
// together with the context error.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Result, error) {
	start := time.Now()
	if err := imaging.Validate(img); err != nil {
		return nil, &InvalidInputError{What: "image", Err: err}
	}

	pre, err := d.Preprocess(img)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return &Result{Partial: true, Duration: time.Since(start)}, err
	}

	ex, err := detection.Extract(ctx, pre.Mask, d.extractOptions())
	if err != nil {
		if ctx.Err() != nil {
			return &Result{Partial: true, Duration: time.Since(start)}, ctx.Err()
		}
		return nil, fmt.Errorf("failed to extract candidates: %w", err)
	}
	for _, r := range ex.Rejected {
		d.logger.Debug("component rejected", "label", r.Label, "reason", r.Reason)
	}

	r := &run{img: img, pre: pre, grads: imaging.Sobel(pre.Gray)}
	outcomes := d.process(ctx, r, ex.Candidates)

	res := &Result{Candidates: len(ex.Candidates)}
	dets := make([]Detection, 0, len(outcomes))
	for i, o := range outcomes {
		if o.err != nil {
			res.Dropped++
			d.logDrop(i, o.err)
			continue
		}
		dets = append(dets, *o.det)
	}
	res.Detections, res.Suppressed = aggregate(dets, d.cfg)
	res.Count = len(res.Detections)
	res.Duration = time.Since(start)

	d.logger.Info("detection complete",
		"candidates", res.Candidates,
		"detections", res.Count,
		"dropped", res.Dropped,
		"suppressed", res.Suppressed,
		"duration", res.Duration)

	if err := ctx.Err(); err != nil {
		res.Partial = true
		return res, err
	}
	return res, nil
}

// Preprocess runs only the preprocessing stage. It is exposed for threshold
// previews.
func (d *Detector) Preprocess(img image.Image) (*imaging.Preprocessed, error) {
	pre, err := imaging.Preprocess(img, imaging.Options{
		Method:          d.cfg.Threshold,
		Level:           d.cfg.ThresholdLevel,
		BlurKernel:      d.cfg.BlurKernel,
		Denoise:         d.cfg.Denoise,
		AdaptiveBlock:   d.cfg.AdaptiveBlock,
		AdaptiveOffset:  d.cfg.AdaptiveOffset,
		Invert:          d.cfg.Invert,
		CloseIterations: d.cfg.CloseIterations,
		OpenIterations:  d.cfg.OpenIterations,
	})
	if err != nil {
		return nil, &InvalidInputError{What: "image", Err: err}
	}
	return pre, nil
}

func (d *Detector) logDrop(index int, err error) {
	var degenerate *DegenerateGeometryError
	switch {
	case errors.As(err, &degenerate):
		d.logger.Debug("candidate dropped", "candidate", index, "reason", degenerate.Err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		d.logger.Debug("candidate timed out", "candidate", index)
	default:
		d.logger.Debug("candidate dropped", "candidate", index, "error", err)
	}
}

func (d *Detector) extractOptions() detection.ExtractOptions {
	return detection.ExtractOptions{
		Shape:              d.cfg.Shape,
		MinVertices:        d.cfg.MinVertices,
		MaxVertices:        d.cfg.MaxVertices,
		ApproxTolerance:    d.cfg.ApproxTolerance,
		MinArea:            d.cfg.MinArea,
		MaxArea:            d.cfg.MaxArea,
		MaxConvexityDefect: d.cfg.MaxConvexityDefect,
		Nested:             d.cfg.Nested,
		KeepBorder:         d.cfg.KeepBorderTiles,
	}
}

func (d *Detector) fitOptions() detection.FitOptions {
	return detection.FitOptions{
		Shape:          d.cfg.Shape,
		Window:         d.cfg.CornerWindow,
		MaxIter:        d.cfg.CornerMaxIter,
		Epsilon:        d.cfg.CornerEpsilon,
		MaxAreaShrink:  d.cfg.MaxAreaShrink,
		ReferenceAngle: d.cfg.referenceAngle(),
	}
}

// candidate fits, identifies and maps one candidate.
func (d *Detector) candidate(ctx context.Context, r *run, c *detection.Candidate) (*Detection, error) {
	fit, err := detection.FitCandidate(ctx, c, r.grads, d.fitOptions())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &DegenerateGeometryError{Candidate: c.Index, Err: err}
	}

	det := &Detection{
		Index:      c.Index,
		Corners:    fit.Corners,
		Pose:       fit.Pose,
		Confidence: fit.Confidence,
	}
	col, hasColor := imaging.MeanColor(r.img, fit.Corners, d.cfg.ColorInset)
	if hasColor {
		det.Color = col.Hex()
	}

	if d.matcher.Enabled() {
		sample := pattern.Sample{Color: col, HasColor: hasColor}
		if len(fit.Corners) == 4 {
			h, err := imaging.Rectify(fit.Corners, d.cfg.PatchSize)
			if err != nil {
				d.logger.Debug("tile could not be rectified", "candidate", c.Index, "error", err)
			} else {
				sample.Patch = imaging.Warp(r.pre.Gray, h, d.cfg.PatchSize)
				if d.reader != nil {
					sample.View = imaging.WarpImage(r.img, h, d.cfg.PatchSize)
				}
			}
		}
		id, err := d.matcher.Identify(ctx, sample)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.logger.Warn("identification failed", "candidate", c.Index, "error", err)
		}
		if id != nil {
			det.Identity = id
			if id.Orientation >= 0 {
				orient(det, id.Orientation)
			}
		}
	}

	if d.transform != nil {
		period := d.cfg.Shape.Period()
		if det.Identity != nil && det.Identity.Orientation >= 0 {
			period = 360
		}
		world, err := worldPose(d.transform, det.Corners, det.Pose.Center, period)
		if err != nil {
			d.logger.Warn("world mapping failed", "candidate", c.Index, "error", err)
		} else {
			det.World = world
		}
	}
	return det, ctx.Err()
}

// orient applies a resolved orientation: turns clockwise quarter turns of
// the content relative to the outline. The rotation widens to [0, 360) and
// the corners start at the content's top-left.
func orient(det *Detection, turns int) {
	det.Pose.Rotation = geometry.NormalizeAngle(det.Pose.Rotation+90*float64(turns), 360)
	det.Corners = det.Corners.Rotate(turns)
}
