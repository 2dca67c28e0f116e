package td2d

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"

	"github.com/gramaziokohler/td2d/internal/detection"
	"github.com/gramaziokohler/td2d/internal/imaging"
	"github.com/gramaziokohler/td2d/pkg/geometry"
	"github.com/gramaziokohler/td2d/pkg/pattern"
)

// maxConfigSize caps configuration files.
const maxConfigSize = 1 << 20

// Config holds every tunable of the detector. Fields may be loaded from a
// JSON (or JSON with comments) file; omitted fields keep their defaults.
type Config struct {
	// Preprocessing
	Threshold       imaging.ThresholdMethod `json:"threshold"`
	ThresholdLevel  uint8                   `json:"threshold_level"`
	BlurKernel      int                     `json:"blur_kernel"`
	Denoise         imaging.DenoiseMethod   `json:"denoise"`
	AdaptiveBlock   int                     `json:"adaptive_block"`
	AdaptiveOffset  float64                 `json:"adaptive_offset"`
	Invert          bool                    `json:"invert"`
	CloseIterations int                     `json:"close_iterations"`
	OpenIterations  int                     `json:"open_iterations"`

	// Candidate extraction
	Shape              geometry.Shape         `json:"shape"`
	MinVertices        int                    `json:"min_vertices"`
	MaxVertices        int                    `json:"max_vertices"`
	ApproxTolerance    float64                `json:"approx_tolerance"`
	MinArea            float64                `json:"min_area"`
	MaxArea            float64                `json:"max_area"` // 0 = unbounded
	MaxConvexityDefect float64                `json:"max_convexity_defect"`
	Nested             detection.NestedPolicy `json:"nested"`
	KeepBorderTiles    bool                   `json:"keep_border_tiles"`

	// Geometry fitting
	CornerWindow  int     `json:"corner_window"`
	CornerMaxIter int     `json:"corner_max_iter"`
	CornerEpsilon float64 `json:"corner_epsilon"`
	MaxAreaShrink float64 `json:"max_area_shrink"`
	// ReferenceAngle selects the edge defining rotation; nil uses the
	// longest edge.
	ReferenceAngle *float64 `json:"reference_angle,omitempty"`

	// Identification
	PatchSize          int             `json:"patch_size"`
	Fiducial           bool            `json:"fiducial"`
	FiducialGridSize   int             `json:"fiducial_grid_size"`
	FiducialMargin     float64         `json:"fiducial_margin"`
	MinScore           float64         `json:"min_score"`
	TieEpsilon         float64         `json:"tie_epsilon"`
	MinLabelConfidence float64         `json:"min_label_confidence"`
	Palette            pattern.Palette `json:"palette,omitempty"`
	MaxDeltaE          float64         `json:"max_delta_e"`
	ColorTieEpsilon    float64         `json:"color_tie_epsilon"`
	// ColorInset shrinks the outline towards its centre before averaging
	// the tile colour.
	ColorInset float64 `json:"color_inset"`

	// World requires a calibration transform and reports world poses.
	World bool `json:"world"`

	// Aggregation
	MinConfidence float64 `json:"min_confidence"`
	DedupRadius   float64 `json:"dedup_radius"`
	DedupAngle    float64 `json:"dedup_angle"`

	// Execution
	Workers int `json:"workers"` // 0 = runtime.NumCPU()
	// CandidateTimeout is a duration string like "250ms"; empty means none.
	CandidateTimeout string `json:"candidate_timeout,omitempty"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:       imaging.ThresholdOtsu,
		ThresholdLevel:  127,
		BlurKernel:      5,
		Denoise:         imaging.DenoiseGaussian,
		AdaptiveBlock:   51,
		AdaptiveOffset:  10,
		CloseIterations: 1,
		OpenIterations:  1,

		Shape:              geometry.Square,
		MinVertices:        3,
		MaxVertices:        8,
		ApproxTolerance:    0.04,
		MinArea:            400,
		MaxConvexityDefect: 0.1,
		Nested:             detection.NestedOuter,

		CornerWindow:  5,
		CornerMaxIter: 30,
		CornerEpsilon: 0.01,
		MaxAreaShrink: 0.25,

		PatchSize:          64,
		FiducialGridSize:   6,
		FiducialMargin:     0.125,
		MinScore:           0.7,
		TieEpsilon:         0.05,
		MinLabelConfidence: 0.6,
		MaxDeltaE:          15,
		ColorTieEpsilon:    2,
		ColorInset:         0.15,

		MinConfidence: 0.5,
		DedupRadius:   10,
		DedupAngle:    10,
	}
}

// Validate checks every field and reports all problems at once as an
// *InvalidInputError.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Threshold {
	case imaging.ThresholdFixed, imaging.ThresholdAdaptive, imaging.ThresholdOtsu:
	default:
		check(false, "unknown threshold method %q", c.Threshold)
	}
	check(c.BlurKernel >= 0 && (c.BlurKernel == 0 || c.BlurKernel%2 == 1), "blur_kernel must be odd or zero, got %d", c.BlurKernel)
	switch c.Denoise {
	case imaging.DenoiseGaussian, imaging.DenoiseMedian, imaging.DenoiseNone:
	default:
		check(false, "unknown denoise method %q", c.Denoise)
	}
	if c.Threshold == imaging.ThresholdAdaptive {
		check(c.AdaptiveBlock >= 3 && c.AdaptiveBlock%2 == 1, "adaptive_block must be odd and at least 3, got %d", c.AdaptiveBlock)
	}
	check(c.CloseIterations >= 0 && c.OpenIterations >= 0, "morphology iterations must not be negative")

	if c.Shape.Kind == geometry.ShapeAny {
		check(c.MinVertices >= 3 && c.MaxVertices >= c.MinVertices, "vertex range [%d, %d] is invalid", c.MinVertices, c.MaxVertices)
	}
	check(c.ApproxTolerance > 0 && c.ApproxTolerance < 0.5, "approx_tolerance must be in (0, 0.5), got %g", c.ApproxTolerance)
	check(c.MinArea >= 0, "min_area must not be negative")
	check(c.MaxArea == 0 || c.MaxArea >= c.MinArea, "max_area %g is below min_area %g", c.MaxArea, c.MinArea)
	check(c.MaxConvexityDefect >= 0 && c.MaxConvexityDefect <= 1, "max_convexity_defect must be in [0, 1]")
	switch c.Nested {
	case detection.NestedOuter, detection.NestedInner, detection.NestedAll:
	default:
		check(false, "unknown nested policy %q", c.Nested)
	}

	check(c.CornerWindow >= 0, "corner_window must not be negative")
	check(c.CornerMaxIter >= 0, "corner_max_iter must not be negative")
	check(c.CornerEpsilon > 0, "corner_epsilon must be positive")
	check(c.MaxAreaShrink >= 0 && c.MaxAreaShrink < 1, "max_area_shrink must be in [0, 1)")
	if c.ReferenceAngle != nil {
		check(!math.IsNaN(*c.ReferenceAngle) && !math.IsInf(*c.ReferenceAngle, 0), "reference_angle must be finite")
	}

	check(c.PatchSize >= 8, "patch_size must be at least 8, got %d", c.PatchSize)
	if c.Fiducial {
		if err := c.fiducial().Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	check(c.MinScore >= -1 && c.MinScore <= 1, "min_score must be in [-1, 1]")
	check(c.TieEpsilon >= 0, "tie_epsilon must not be negative")
	check(c.MinLabelConfidence >= 0 && c.MinLabelConfidence <= 1, "min_label_confidence must be in [0, 1]")
	if err := c.Palette.Validate(); err != nil {
		errs = append(errs, err)
	}
	check(c.MaxDeltaE >= 0 && c.ColorTieEpsilon >= 0, "colour tolerances must not be negative")
	check(c.ColorInset >= 0 && c.ColorInset < 1, "color_inset must be in [0, 1)")

	check(c.MinConfidence >= 0 && c.MinConfidence <= 1, "min_confidence must be in [0, 1]")
	check(c.DedupRadius >= 0 && c.DedupAngle >= 0, "dedup tolerances must not be negative")

	check(c.Workers >= 0, "workers must not be negative")
	if _, err := c.candidateTimeout(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return &InvalidInputError{What: "config", Err: errors.Join(errs...)}
	}
	return nil
}

func (c *Config) candidateTimeout() (time.Duration, error) {
	if c.CandidateTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.CandidateTimeout)
	if err != nil {
		return 0, fmt.Errorf("candidate_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("candidate_timeout must not be negative, got %s", d)
	}
	return d, nil
}

func (c *Config) fiducial() pattern.Fiducial {
	return pattern.Fiducial{GridSize: c.FiducialGridSize, Margin: c.FiducialMargin}
}

func (c *Config) referenceAngle() float64 {
	if c.ReferenceAngle == nil {
		return math.NaN()
	}
	return *c.ReferenceAngle
}

// LoadConfig reads a configuration from a .json or .hujson file. Comments
// and trailing commas are allowed, unknown fields are not. Fields omitted
// from the file keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" && ext != ".hujson" {
		return cfg, fmt.Errorf("config file must have .json or .hujson extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return cfg, &InvalidInputError{What: "config", Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, &InvalidInputError{What: "config", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration to path as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
