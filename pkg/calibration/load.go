package calibration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/gramaziokohler/td2d/pkg/geometry"
)

const maxFileSize = 1 << 20

// Load reads a calibration file. OpenCV FileStorage YAML (.yml, .yaml)
// yields a Pinhole; JSON with comments (.json, .hujson) yields a Pinhole or
// a Homography depending on its fields.
func Load(path string) (Transform, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat calibration file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("calibration file too large (%d bytes): %w", info.Size(), ErrInvalid)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return ParseOpenCV(data)
	case ".json", ".hujson":
		return ParseJSON(data)
	}
	return nil, fmt.Errorf("unsupported calibration file extension %q: %w", filepath.Ext(path), ErrInvalid)
}

// cvMatrix is an OpenCV FileStorage matrix node.
type cvMatrix struct {
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	DT   string    `yaml:"dt"`
	Data []float64 `yaml:"data"`
}

func (m *cvMatrix) check(name string, sizes ...int) error {
	if m == nil {
		return fmt.Errorf("missing node %s: %w", name, ErrInvalid)
	}
	if m.Rows*m.Cols != len(m.Data) {
		return fmt.Errorf("node %s declares %dx%d but has %d values: %w", name, m.Rows, m.Cols, len(m.Data), ErrInvalid)
	}
	for _, s := range sizes {
		if len(m.Data) == s {
			return nil
		}
	}
	return fmt.Errorf("node %s has unexpected size %d: %w", name, len(m.Data), ErrInvalid)
}

type cvFile struct {
	K   *cvMatrix `yaml:"K"`
	D   *cvMatrix `yaml:"D"`
	R   *cvMatrix `yaml:"R"`
	T   *cvMatrix `yaml:"T"`
	NK  *cvMatrix `yaml:"NK"`
	ROI *cvMatrix `yaml:"ROI"`
	Z   *float64  `yaml:"Z"`
}

// ParseOpenCV decodes an OpenCV FileStorage YAML document with nodes K
// (camera matrix), D (distortion), R (Rodrigues vector or 3x3 rotation) and
// T (translation). When NK (the optimal new camera matrix) is present the
// image is taken to be undistorted already, and ROI offsets its pixels.
func ParseOpenCV(data []byte) (*Pinhole, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(stripDirectives(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse calibration yaml: %w", err)
	}
	untag(&doc)

	var f cvFile
	if err := doc.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode calibration yaml: %w", err)
	}

	var params PinholeParams
	if f.NK != nil {
		if err := f.NK.check("NK", 9); err != nil {
			return nil, err
		}
		copy(params.K[:], f.NK.Data)
		if f.ROI != nil {
			if err := f.ROI.check("ROI", 4); err != nil {
				return nil, err
			}
			params.Offset = geometry.Pt(f.ROI.Data[0], f.ROI.Data[1])
		}
	} else {
		if err := f.K.check("K", 9); err != nil {
			return nil, err
		}
		copy(params.K[:], f.K.Data)
		if f.D != nil {
			if err := f.D.check("D", 0, 4, 5); err != nil {
				return nil, err
			}
			params.Dist = append([]float64(nil), f.D.Data...)
		}
	}

	if err := f.R.check("R", 3, 9); err != nil {
		return nil, err
	}
	if len(f.R.Data) == 3 {
		copy(params.RVec[:], f.R.Data)
	} else {
		var m [9]float64
		copy(m[:], f.R.Data)
		params.RVec = RodriguesVector(m)
	}
	if err := f.T.check("T", 3); err != nil {
		return nil, err
	}
	copy(params.T[:], f.T.Data)
	if f.Z != nil {
		params.PlaneZ = *f.Z
	}
	return NewPinhole(params)
}

// stripDirectives drops the "%YAML:1.0" header OpenCV writes, which is not a
// valid YAML 1.2 directive.
func stripDirectives(data []byte) []byte {
	var out bytes.Buffer
	for _, line := range bytes.SplitAfter(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimSpace(line), []byte("%")) {
			continue
		}
		out.Write(line)
	}
	return out.Bytes()
}

// untag clears application tags such as !!opencv-matrix so nodes decode as
// plain mappings.
func untag(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		n.Tag = "!!map"
	}
	for _, c := range n.Content {
		untag(c)
	}
}

type jsonFile struct {
	Homography *[9]float64    `json:"homography"`
	Pixels     [][2]float64   `json:"pixels"`
	World      [][2]float64   `json:"world"`
	Pinhole    *PinholeParams `json:"pinhole"`
	Offset     *[2]float64    `json:"offset"`
}

// ParseJSON decodes a JSON-with-comments calibration. Exactly one of
// "homography" (row-major 3x3, pixel to world), "pixels"/"world"
// correspondences, or "pinhole" must be present.
func ParseJSON(data []byte) (Transform, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse calibration json: %w", err)
	}
	var f jsonFile
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode calibration json: %w", err)
	}

	set := 0
	if f.Homography != nil {
		set++
	}
	if len(f.Pixels) > 0 || len(f.World) > 0 {
		set++
	}
	if f.Pinhole != nil {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("expected exactly one of homography, pixels/world or pinhole: %w", ErrInvalid)
	}

	switch {
	case f.Homography != nil:
		return NewHomography(geometry.Homography(*f.Homography))
	case f.Pinhole != nil:
		params := *f.Pinhole
		if f.Offset != nil {
			params.Offset = geometry.Pt(f.Offset[0], f.Offset[1])
		}
		return NewPinhole(params)
	}
	if len(f.Pixels) != len(f.World) {
		return nil, fmt.Errorf("pixels and world differ in length (%d != %d): %w", len(f.Pixels), len(f.World), ErrInvalid)
	}
	px := make([]geometry.Point, len(f.Pixels))
	wd := make([]geometry.Point, len(f.World))
	for i := range f.Pixels {
		px[i] = geometry.Pt(f.Pixels[i][0], f.Pixels[i][1])
		wd[i] = geometry.Pt(f.World[i][0], f.World[i][1])
	}
	return EstimateHomography(px, wd)
}

// RodriguesVector converts a rotation matrix into its axis-angle vector.
func RodriguesVector(m [9]float64) [3]float64 {
	c := (m[0] + m[4] + m[8] - 1) / 2
	c = math.Max(-1, math.Min(1, c))
	theta := math.Acos(c)
	if theta < 1e-12 {
		return [3]float64{}
	}
	s := math.Sin(theta)
	if s > 1e-6 {
		k := theta / (2 * s)
		return [3]float64{(m[7] - m[5]) * k, (m[2] - m[6]) * k, (m[3] - m[1]) * k}
	}

	// Half turn: R = 2kkᵀ - I, so (R+I)/2 = kkᵀ.
	i := 0
	for j := 1; j < 3; j++ {
		if m[j*4] > m[i*4] {
			i = j
		}
	}
	var axis [3]float64
	axis[i] = math.Sqrt(math.Max(0, (m[i*4]+1)/2))
	for j := 0; j < 3; j++ {
		if j != i {
			axis[j] = m[i*3+j] / (2 * axis[i])
		}
	}
	return [3]float64{axis[0] * theta, axis[1] * theta, axis[2] * theta}
}
