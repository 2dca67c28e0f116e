package td2d

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramaziokohler/td2d/internal/detection"
	tdimaging "github.com/gramaziokohler/td2d/internal/imaging"
	"github.com/gramaziokohler/td2d/pkg/calibration"
	"github.com/gramaziokohler/td2d/pkg/geometry"
	"github.com/gramaziokohler/td2d/pkg/pattern"
)

type tile struct {
	cx, cy, side, deg float64
}

// outline returns the corners of t, rotated clockwise on screen by t.deg.
func (t tile) outline() geometry.Polygon {
	r := t.deg * math.Pi / 180
	h := t.side / 2
	var poly geometry.Polygon
	for _, c := range [][2]float64{{-h, -h}, {h, -h}, {h, h}, {-h, h}} {
		x := c[0]*math.Cos(r) - c[1]*math.Sin(r)
		y := c[0]*math.Sin(r) + c[1]*math.Cos(r)
		poly = append(poly, geometry.Pt(t.cx+x, t.cy+y))
	}
	return poly
}

// render draws the tiles in fg on a black w×h canvas with 4×4 supersampling.
func render(w, h int, fg color.NRGBA, tiles ...tile) *image.NRGBA {
	polys := make([]geometry.Polygon, len(tiles))
	for i, t := range tiles {
		polys[i] = t.outline()
	}
	return renderPolygons(w, h, fg, polys...)
}

// renderPolygons draws arbitrary outlines the way render draws tiles.
func renderPolygons(w, h int, fg color.NRGBA, polys ...geometry.Polygon) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	for _, poly := range polys {
		b := poly.Bounds()
		for y := max(0, int(b.Y.Lo)-1); y <= min(h-1, int(b.Y.Hi)+1); y++ {
			for x := max(0, int(b.X.Lo)-1); x <= min(w-1, int(b.X.Hi)+1); x++ {
				hits := 0
				for sy := 0; sy < 4; sy++ {
					for sx := 0; sx < 4; sx++ {
						q := geometry.Pt(float64(x)+(float64(sx)+0.5)/4-0.5, float64(y)+(float64(sy)+0.5)/4-0.5)
						if poly.Contains(q) {
							hits++
						}
					}
				}
				if hits == 0 {
					continue
				}
				k := float64(hits) / 16
				img.SetNRGBA(x, y, color.NRGBA{
					R: uint8(math.Round(float64(fg.R) * k)),
					G: uint8(math.Round(float64(fg.G) * k)),
					B: uint8(math.Round(float64(fg.B) * k)),
					A: 255,
				})
			}
		}
	}
	return img
}

// rect is a w×h rectangle with its long side at deg degrees, clockwise on
// screen.
type rect struct {
	cx, cy, w, h, deg float64
}

func (r rect) outline() geometry.Polygon {
	a := r.deg * math.Pi / 180
	hw, hh := r.w/2, r.h/2
	var poly geometry.Polygon
	for _, c := range [][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}} {
		x := c[0]*math.Cos(a) - c[1]*math.Sin(a)
		y := c[0]*math.Sin(a) + c[1]*math.Cos(a)
		poly = append(poly, geometry.Pt(r.cx+x, r.cy+y))
	}
	return poly
}

// hexagon is a regular hexagon of circumradius r with its first vertex at
// deg degrees.
type hexagon struct {
	cx, cy, r, deg float64
}

func (hx hexagon) outline() geometry.Polygon {
	var poly geometry.Polygon
	for k := 0; k < 6; k++ {
		a := (hx.deg + 60*float64(k)) * math.Pi / 180
		poly = append(poly, geometry.Pt(hx.cx+hx.r*math.Cos(a), hx.cy+hx.r*math.Sin(a)))
	}
	return poly
}

var white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

func newDetector(t *testing.T, cfg Config, opts ...Option) *Detector {
	t.Helper()
	d, err := New(cfg, opts...)
	require.NoError(t, err)
	return d
}

// nearest returns the detection closest to p.
func nearest(dets []Detection, p geometry.Point) Detection {
	best := dets[0]
	for _, d := range dets[1:] {
		if geometry.Distance(d.Pose.Center, p) < geometry.Distance(best.Pose.Center, p) {
			best = d
		}
	}
	return best
}

func TestDetectRotatedSquare(t *testing.T) {
	cfg := DefaultConfig()
	img := render(500, 500, white, tile{250, 250, 100, 15})

	res, err := newDetector(t, cfg).Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	assert.Equal(t, 1, res.Count)
	assert.False(t, res.Partial)

	d := res.Detections[0]
	assert.InDelta(t, 250, d.Pose.Center.X, 0.5)
	assert.InDelta(t, 250, d.Pose.Center.Y, 0.5)
	assert.InDelta(t, 15, d.Pose.Rotation, 1)
	assert.InDelta(t, 100, d.Pose.Scale, 2)
	assert.Greater(t, d.Confidence, cfg.MinConfidence)
	assert.Len(t, d.Corners, 4)
	assert.Nil(t, d.Identity)
	assert.Nil(t, d.World)
	assert.Equal(t, "#ffffff", d.Color)
}

func TestDetectSeparatedTiles(t *testing.T) {
	tiles := []tile{
		{100, 110, 60, 0},
		{250, 100, 60, 10},
		{400, 120, 60, 25},
		{90, 290, 70, 40},
		{260, 300, 60, 55},
		{410, 280, 50, 80},
	}
	img := render(500, 400, white, tiles...)

	res, err := newDetector(t, DefaultConfig()).Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, res.Detections, len(tiles))
	assert.Equal(t, len(tiles), res.Candidates)
	assert.Zero(t, res.Dropped)

	for _, tl := range tiles {
		d := nearest(res.Detections, geometry.Pt(tl.cx, tl.cy))
		assert.InDelta(t, tl.cx, d.Pose.Center.X, 0.5, "tile at (%g, %g)", tl.cx, tl.cy)
		assert.InDelta(t, tl.cy, d.Pose.Center.Y, 0.5, "tile at (%g, %g)", tl.cx, tl.cy)
		assert.Less(t, geometry.AngleDelta(d.Pose.Rotation, tl.deg, 90), 1.0, "tile at (%g, %g)", tl.cx, tl.cy)
	}

	for i := 1; i < len(res.Detections); i++ {
		a, b := res.Detections[i-1].Pose.Center, res.Detections[i].Pose.Center
		assert.True(t, a.Y < b.Y || (a.Y == b.Y && a.X <= b.X), "detections out of order at %d", i)
	}
}

func TestDetectIdempotent(t *testing.T) {
	img := render(400, 300, white, tile{100, 100, 80, 12}, tile{280, 180, 70, 33})
	d := newDetector(t, DefaultConfig())

	first, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	second, err := d.Detect(context.Background(), img)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Detections, second.Detections); diff != "" {
		t.Errorf("detections differ between runs (-first +second):\n%s", diff)
	}
}

func TestDetectEmptyImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 200, 150))

	res, err := newDetector(t, DefaultConfig()).Detect(context.Background(), img)
	require.NoError(t, err)
	assert.Empty(t, res.Detections)
	assert.Zero(t, res.Count)
	assert.Zero(t, res.Candidates)
}

func TestDetectWithNoise(t *testing.T) {
	tiles := []tile{{120, 120, 80, 5}, {330, 140, 90, 30}, {220, 320, 70, 60}}
	clean := render(450, 420, white, tiles...)
	noisy := imaging.Clone(clean)
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < len(noisy.Pix); i += 4 {
		n := rng.NormFloat64() * 10
		for c := 0; c < 3; c++ {
			noisy.Pix[i+c] = uint8(math.Max(0, math.Min(255, float64(noisy.Pix[i+c])+n)))
		}
	}

	d := newDetector(t, DefaultConfig())
	want, err := d.Detect(context.Background(), clean)
	require.NoError(t, err)
	got, err := d.Detect(context.Background(), noisy)
	require.NoError(t, err)

	require.Equal(t, want.Count, got.Count)
	for _, tl := range tiles {
		det := nearest(got.Detections, geometry.Pt(tl.cx, tl.cy))
		assert.InDelta(t, tl.cx, det.Pose.Center.X, 1.5)
		assert.InDelta(t, tl.cy, det.Pose.Center.Y, 1.5)
		assert.Less(t, geometry.AngleDelta(det.Pose.Rotation, tl.deg, 90), 2.0)
	}
}

func TestDetectInvalidImage(t *testing.T) {
	d := newDetector(t, DefaultConfig())
	for name, img := range map[string]image.Image{
		"nil":       nil,
		"zero area": image.NewGray(image.Rect(0, 0, 0, 10)),
		"alpha":     image.NewAlpha(image.Rect(0, 0, 10, 10)),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := d.Detect(context.Background(), img)
			var invalid *InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, "image", invalid.What)
			assert.ErrorIs(t, err, tdimaging.ErrInvalidImage)
		})
	}
}

func TestNewImage(t *testing.T) {
	img, err := NewImage(make([]byte, 4*3*3), 4, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())

	_, err = NewImage(make([]byte, 10), 4, 3, 3)
	var invalid *InvalidInputError
	assert.ErrorAs(t, err, &invalid)

	_, err = NewImage(nil, 0, 0, 1)
	assert.ErrorAs(t, err, &invalid)
}

func TestNewUncalibrated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.World = true

	_, err := New(cfg)
	var uncal *UncalibratedError
	require.ErrorAs(t, err, &uncal)

	h, err := calibration.NewHomography(geometry.Identity())
	require.NoError(t, err)
	_, err = New(cfg, WithCalibration(h))
	assert.NoError(t, err)
}

func TestNewLibraryPatchSize(t *testing.T) {
	lib, err := pattern.NewLibrary(32, pattern.Entry{Name: "a", Image: image.NewGray(image.Rect(0, 0, 32, 32))})
	require.NoError(t, err)

	_, err = New(DefaultConfig(), WithLibrary(lib))
	var invalid *InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestDetectCancelled(t *testing.T) {
	img := render(300, 300, white, tile{150, 150, 80, 20})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newDetector(t, DefaultConfig()).Detect(ctx, img)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.True(t, res.Partial)
	assert.Empty(t, res.Detections)
}

func TestDetectRectangles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Shape = geometry.Rectangle

	for _, deg := range []float64{0, 30, 75, 120, 165} {
		img := renderPolygons(400, 400, white, rect{200, 200, 160, 80, deg}.outline())

		res, err := newDetector(t, cfg).Detect(context.Background(), img)
		require.NoError(t, err, "deg=%v", deg)
		require.Len(t, res.Detections, 1, "deg=%v", deg)

		d := res.Detections[0]
		assert.Len(t, d.Corners, 4)
		assert.InDelta(t, 200, d.Pose.Center.X, 0.5, "deg=%v", deg)
		assert.InDelta(t, 200, d.Pose.Center.Y, 0.5, "deg=%v", deg)
		assert.Less(t, geometry.AngleDelta(d.Pose.Rotation, deg, 180), 1.0, "deg=%v got %v", deg, d.Pose.Rotation)
		assert.InDelta(t, 160, d.Pose.Width, 2, "deg=%v", deg)
		assert.InDelta(t, 80, d.Pose.Height, 2, "deg=%v", deg)
		assert.Greater(t, d.Confidence, cfg.MinConfidence)
	}
}

func TestDetectHexagons(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Shape = geometry.Hexagon

	for _, deg := range []float64{0, 10, 20, 30, 45, 55} {
		img := renderPolygons(300, 300, white, hexagon{150, 150, 60, deg}.outline())

		res, err := newDetector(t, cfg).Detect(context.Background(), img)
		require.NoError(t, err, "deg=%v", deg)
		require.Equal(t, 1, res.Count, "deg=%v dropped=%d", deg, res.Dropped)

		d := res.Detections[0]
		assert.Len(t, d.Corners, 6)
		assert.InDelta(t, 150, d.Pose.Center.X, 1, "deg=%v", deg)
		assert.InDelta(t, 150, d.Pose.Center.Y, 1, "deg=%v", deg)
		assert.Less(t, geometry.AngleDelta(d.Pose.Rotation, deg, 60), 1.5, "deg=%v got %v", deg, d.Pose.Rotation)
		assert.InDelta(t, 60, d.Pose.Scale, 2, "deg=%v", deg)
		assert.Greater(t, d.Confidence, cfg.MinConfidence)
	}
}

// cancellingReader cancels the run on its nth call and never finds a label.
type cancellingReader struct {
	mu     sync.Mutex
	calls  int
	n      int
	cancel context.CancelFunc
}

func (r *cancellingReader) ReadLabel(ctx context.Context, img image.Image) (string, float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls == r.n {
		r.cancel()
	}
	return "", 0, nil
}

func TestDetectCancelledMidRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 1
	img := render(500, 200, white,
		tile{70, 100, 60, 0},
		tile{190, 100, 60, 10},
		tile{310, 100, 60, 20},
		tile{430, 100, 60, 30},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Each square reads its label once per quarter turn, so the ninth read
	// belongs to the third candidate.
	reader := &cancellingReader{n: 9, cancel: cancel}

	res, err := newDetector(t, cfg, WithLabelReader(reader)).Detect(ctx, img)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.True(t, res.Partial)
	assert.Equal(t, 4, res.Candidates)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 2, res.Dropped)
}

// blockingReader ignores its context and waits until release is closed.
type blockingReader struct {
	release chan struct{}
}

func (r blockingReader) ReadLabel(ctx context.Context, img image.Image) (string, float64, error) {
	<-r.release
	return "", 0, nil
}

func TestDetectCandidateTimeoutBlockingReader(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CandidateTimeout = "20ms"
	reader := blockingReader{release: make(chan struct{})}
	t.Cleanup(func() { close(reader.release) })
	img := render(300, 300, white, tile{150, 150, 80, 20})

	begin := time.Now()
	res, err := newDetector(t, cfg, WithLabelReader(reader)).Detect(context.Background(), img)
	require.NoError(t, err)
	assert.Less(t, time.Since(begin), time.Second)
	assert.False(t, res.Partial)
	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, 1, res.Dropped)
	assert.Empty(t, res.Detections)
}

func TestDetectCandidateTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CandidateTimeout = "1ns"
	img := render(300, 300, white, tile{150, 150, 80, 20})

	res, err := newDetector(t, cfg).Detect(context.Background(), img)
	require.NoError(t, err)
	assert.False(t, res.Partial)
	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, 1, res.Dropped)
	assert.Empty(t, res.Detections)
}

func TestCandidateDegenerate(t *testing.T) {
	d := newDetector(t, DefaultConfig())
	img := render(100, 100, white, tile{50, 50, 40, 0})
	pre, err := d.Preprocess(img)
	require.NoError(t, err)
	r := &run{img: img, pre: pre, grads: tdimaging.Sobel(pre.Gray)}

	c := &detection.Candidate{Index: 4, Polygon: geometry.Polygon{geometry.Pt(10, 10), geometry.Pt(40, 10)}}
	_, err = d.candidate(context.Background(), r, c)
	var degenerate *DegenerateGeometryError
	require.ErrorAs(t, err, &degenerate)
	assert.Equal(t, 4, degenerate.Candidate)
	assert.ErrorIs(t, err, detection.ErrDegenerate)
}

func TestDetectWorld(t *testing.T) {
	pixels := []geometry.Point{geometry.Pt(0, 0), geometry.Pt(500, 0), geometry.Pt(500, 500), geometry.Pt(0, 500)}
	world := []geometry.Point{geometry.Pt(10, 20), geometry.Pt(260, 20), geometry.Pt(260, 270), geometry.Pt(10, 270)}
	cal, err := calibration.EstimateHomography(pixels, world)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.World = true
	img := render(500, 500, white, tile{250, 250, 100, 15})

	res, err := newDetector(t, cfg, WithCalibration(cal)).Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)

	d := res.Detections[0]
	require.NotNil(t, d.World)
	assert.InDelta(t, 135, d.World.Center.X, 0.3)
	assert.InDelta(t, 145, d.World.Center.Y, 0.3)
	assert.InDelta(t, 15, d.World.Rotation, 1)
	assert.InDelta(t, 50, d.World.Scale, 1)

	back, err := cal.WorldToPixel(d.World.Center)
	require.NoError(t, err)
	assert.InDelta(t, d.Pose.Center.X, back.X, 1e-6)
	assert.InDelta(t, d.Pose.Center.Y, back.Y, 1e-6)
}

func TestDetectFiducial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fiducial = true
	f := pattern.Fiducial{GridSize: cfg.FiducialGridSize, Margin: cfg.FiducialMargin}

	code := -1
	var marker *image.Gray
	for c := 1; c < 1<<f.Bits(); c += 37 {
		m, err := f.Encode(c, 120)
		require.NoError(t, err)
		if d, ok := f.Decode(tdimaging.Luminance(m), []int{0, 1, 2, 3}); ok && !d.Ambiguous && d.Orientation == 0 {
			code, marker = c, m
			break
		}
	}
	require.GreaterOrEqual(t, code, 0)

	img := image.NewNRGBA(image.Rect(0, 0, 400, 400))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	// One clockwise quarter turn.
	turned := imaging.Rotate270(marker)
	draw.Draw(img, image.Rect(140, 140, 260, 260), turned, image.Point{}, draw.Src)

	res, err := newDetector(t, cfg).Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)

	d := res.Detections[0]
	require.NotNil(t, d.Identity)
	assert.Equal(t, pattern.MethodFiducial, d.Identity.Method)
	assert.Equal(t, code, d.Identity.Code)
	assert.Less(t, geometry.AngleDelta(d.Pose.Rotation, 90, 360), 1.0)
	assert.InDelta(t, 199.5, d.Pose.Center.X, 0.5)
	assert.InDelta(t, 199.5, d.Pose.Center.Y, 0.5)
	// The first corner is the top-left of the content, now at the top-right.
	assert.InDelta(t, 259.5, d.Corners[0].X, 1)
	assert.InDelta(t, 139.5, d.Corners[0].Y, 1)
}

func TestDetectPaletteColour(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Palette = pattern.Palette{
		{Name: "red", Color: "#ff0000"},
		{Name: "blue", Color: "#0000ff"},
	}
	red := color.NRGBA{R: 255, A: 255}
	img := render(300, 300, red, tile{150, 150, 90, 10})

	res, err := newDetector(t, cfg).Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)

	d := res.Detections[0]
	assert.Equal(t, "#ff0000", d.Color)
	require.NotNil(t, d.Identity)
	assert.Equal(t, "red", d.Identity.Label)
	assert.Equal(t, pattern.MethodColor, d.Identity.Method)
	assert.Equal(t, -1, d.Identity.Orientation)
	assert.Less(t, d.Pose.Rotation, 90.0)
}

type stubReader struct {
	text string
}

func (r stubReader) ReadLabel(ctx context.Context, img image.Image) (string, float64, error) {
	return r.text, 0.9, ctx.Err()
}

func TestDetectLabelReader(t *testing.T) {
	img := render(300, 300, white, tile{150, 150, 90, 0})

	res, err := newDetector(t, DefaultConfig(), WithLabelReader(stubReader{text: " A7 "})).Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	require.NotNil(t, res.Detections[0].Identity)
	assert.Equal(t, "A7", res.Detections[0].Identity.Label)
	assert.Equal(t, pattern.MethodLabel, res.Detections[0].Identity.Method)
}

func TestAggregateDedup(t *testing.T) {
	cfg := DefaultConfig()
	det := func(i int, x, y, rot, conf float64) Detection {
		return Detection{Index: i, Pose: geometry.Pose{Center: geometry.Pt(x, y), Rotation: rot}, Confidence: conf}
	}

	tests := []struct {
		name       string
		in         []Detection
		want       []int
		suppressed int
	}{
		{
			name:       "duplicates keep higher confidence",
			in:         []Detection{det(0, 100, 100, 10, 0.7), det(1, 104, 101, 14, 0.9)},
			want:       []int{1},
			suppressed: 1,
		},
		{
			name:       "rotation wraps at the period",
			in:         []Detection{det(0, 100, 100, 88, 0.8), det(1, 102, 100, 2, 0.6)},
			want:       []int{0},
			suppressed: 1,
		},
		{
			name: "equal confidence keeps earlier candidate",
			in:   []Detection{det(0, 100, 100, 10, 0.8), det(1, 101, 100, 10, 0.8)},
			want: []int{0}, suppressed: 1,
		},
		{
			name: "rotation outside tolerance",
			in:   []Detection{det(0, 100, 100, 10, 0.8), det(1, 101, 100, 40, 0.9)},
			want: []int{0, 1},
		},
		{
			name: "centres outside radius",
			in:   []Detection{det(0, 100, 100, 10, 0.8), det(1, 100, 130, 10, 0.9)},
			want: []int{0, 1},
		},
		{
			name:       "below minimum confidence",
			in:         []Detection{det(0, 100, 100, 10, 0.2), det(1, 300, 100, 10, 0.9)},
			want:       []int{1},
			suppressed: 1,
		},
		{
			name: "reading order",
			in:   []Detection{det(0, 300, 200, 0, 0.9), det(1, 50, 200, 0, 0.9), det(2, 400, 20, 0, 0.9)},
			want: []int{2, 1, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, suppressed := aggregate(tt.in, cfg)
			var idx []int
			for _, d := range got {
				idx = append(idx, d.Index)
			}
			assert.Equal(t, tt.want, idx)
			assert.Equal(t, tt.suppressed, suppressed)
		})
	}
}

func TestOrient(t *testing.T) {
	d := Detection{
		Corners: geometry.Polygon{geometry.Pt(0, 0), geometry.Pt(10, 0), geometry.Pt(10, 10), geometry.Pt(0, 10)},
		Pose:    geometry.Pose{Rotation: 80},
	}
	orient(&d, 3)
	assert.InDelta(t, 350, d.Pose.Rotation, 1e-9)
	assert.Equal(t, geometry.Pt(0, 10), d.Corners[0])
}

func TestDegenerateGeometryError(t *testing.T) {
	cause := errors.New("corner left its window")
	err := error(&DegenerateGeometryError{Candidate: 3, Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "candidate 3")
}
