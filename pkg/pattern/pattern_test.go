package pattern

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tdimaging "github.com/gramaziokohler/td2d/internal/imaging"
	"github.com/gramaziokohler/td2d/pkg/geometry"
	"github.com/gramaziokohler/td2d/pkg/raster"
)

var testFiducial = Fiducial{GridSize: 6, Margin: 0.125}

// turnCW rotates img clockwise by quarter turns.
func turnCW(img image.Image, turns int) image.Image {
	for i := 0; i < turns; i++ {
		img = imaging.Rotate270(img)
	}
	return img
}

// orientedCodes returns codes that decode in exactly one orientation.
func orientedCodes(t *testing.T, n int) []int {
	t.Helper()
	var out []int
	for code := 0; code < 1<<testFiducial.Bits() && len(out) < n; code += 97 {
		d, ok := testFiducial.read(testFiducial.grid(code), []int{0, 1, 2, 3}, 1)
		if ok && d.Orientation == 0 && !d.Ambiguous {
			out = append(out, code)
		}
	}
	require.Len(t, out, n)
	return out
}

// asymmetric draws a black L on white.
func asymmetric(size int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8(255)
			if (x > size/8 && x < size/3 && y > size/8 && y < size*7/8) ||
				(y > size*2/3 && y < size*7/8 && x > size/8 && x < size*3/4) {
				v = 0
			}
			img.SetGray(x, y, color.Gray{v})
		}
	}
	return img
}

// centredSquare draws a black square in the middle of a white patch.
func centredSquare(size int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8(255)
			if x >= size/4 && x < size*3/4 && y >= size/4 && y < size*3/4 {
				v = 0
			}
			img.SetGray(x, y, color.Gray{v})
		}
	}
	return img
}

func TestFiducialLayout(t *testing.T) {
	assert.Equal(t, 12, testFiducial.Bits())
	assert.NoError(t, testFiducial.Validate())
	assert.Error(t, Fiducial{GridSize: 4}.Validate())
	assert.Error(t, Fiducial{GridSize: 6, Margin: 0.5}.Validate())

	_, err := testFiducial.Encode(1<<12, 64)
	assert.Error(t, err)
	_, err = testFiducial.Encode(-1, 64)
	assert.Error(t, err)

	// An all-black payload never carries a valid checksum.
	assert.NotEqual(t, 0, testFiducial.Checksum(0))
}

func TestFiducialRoundTrip(t *testing.T) {
	for _, code := range orientedCodes(t, 5) {
		img, err := testFiducial.Encode(code, 64)
		require.NoError(t, err)
		assert.True(t, testFiducial.Unambiguous(code))

		for turn := 0; turn < 4; turn++ {
			p := luminance(turnCW(img, turn))
			d, ok := testFiducial.Decode(p, Turns(geometry.Square))
			require.True(t, ok, "code %d turn %d", code, turn)
			assert.False(t, d.Ambiguous)
			assert.Equal(t, code, d.Code, "turn %d", turn)
			assert.Equal(t, turn, d.Orientation, "code %d", code)
			assert.InDelta(t, 1, d.Score, 1e-9)
		}
	}
}

func TestFiducialMostCodesAreUsable(t *testing.T) {
	usable := 0
	for code := 0; code < 1<<testFiducial.Bits(); code++ {
		if testFiducial.Unambiguous(code) {
			usable++
		}
	}
	assert.Greater(t, usable, 2000)
}

func TestFiducialRejectsPlainPatches(t *testing.T) {
	white := raster.NewPlane(64, 64)
	for i := range white.Pix {
		white.Pix[i] = 255
	}
	_, ok := testFiducial.Decode(white, Turns(geometry.Square))
	assert.False(t, ok, "uniform patch")

	_, ok = testFiducial.Decode(luminance(asymmetric(64)), Turns(geometry.Square))
	assert.False(t, ok, "border cells not black")
}

func TestLibraryMatch(t *testing.T) {
	lib, err := NewLibrary(32,
		Entry{Name: "ell", Image: asymmetric(32)},
		Entry{Name: "block", Image: centredSquare(32)},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"ell", "block"}, lib.Names())
	assert.Equal(t, 2, lib.Len())
	assert.Equal(t, 32, lib.PatchSize())

	for turn := 0; turn < 4; turn++ {
		p := luminance(turnCW(asymmetric(32), turn))
		name, orientation, score, ok := lib.Match(p, Turns(geometry.Square), 0.7, 0.05)
		require.True(t, ok, "turn %d", turn)
		assert.Equal(t, "ell", name)
		assert.Equal(t, turn, orientation)
		assert.InDelta(t, 1, score, 1e-6)
	}

	// A symmetric template fixes no orientation.
	name, orientation, _, ok := lib.Match(luminance(centredSquare(32)), Turns(geometry.Square), 0.7, 0.05)
	require.True(t, ok)
	assert.Equal(t, "block", name)
	assert.Equal(t, -1, orientation)

	// Wrong size or no good match.
	_, _, _, ok = lib.Match(raster.NewPlane(16, 16), Turns(geometry.Square), 0.7, 0.05)
	assert.False(t, ok)
	_, _, _, ok = lib.Match(raster.NewPlane(32, 32), Turns(geometry.Square), 0.7, 0.05)
	assert.False(t, ok)
}

func TestLibraryTie(t *testing.T) {
	lib, err := NewLibrary(32,
		Entry{Name: "a", Image: asymmetric(32)},
		Entry{Name: "b", Image: asymmetric(32)},
	)
	require.NoError(t, err)
	_, _, _, ok := lib.Match(luminance(asymmetric(32)), Turns(geometry.Square), 0.5, 0.01)
	assert.False(t, ok, "identical templates tie")
}

func TestNewLibraryErrors(t *testing.T) {
	_, err := NewLibrary(4)
	assert.Error(t, err)
	_, err = NewLibrary(32, Entry{Name: "", Image: asymmetric(8)})
	assert.Error(t, err)
	_, err = NewLibrary(32, Entry{Name: "x", Image: asymmetric(8)}, Entry{Name: "x", Image: asymmetric(8)})
	assert.Error(t, err)
	_, err = NewLibrary(32, Entry{Name: "x", Image: image.NewAlpha(image.Rect(0, 0, 4, 4))})
	assert.ErrorIs(t, err, tdimaging.ErrInvalidImage)
}

func TestLoadLibrary(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, imaging.Save(asymmetric(40), dir+"/ell.png"))
	require.NoError(t, imaging.Save(centredSquare(40), dir+"/block.png"))

	lib, err := LoadLibrary(dir, 32)
	require.NoError(t, err)
	assert.Equal(t, []string{"block", "ell"}, lib.Names())

	_, err = LoadLibrary(dir+"/missing", 32)
	assert.Error(t, err)
}

func TestPaletteMatch(t *testing.T) {
	p := Palette{
		{Name: "red", Color: "#d62728"},
		{Name: "green", Color: "#2ca02c"},
		{Name: "blue", Color: "#1f77b4"},
	}
	require.NoError(t, p.Validate())

	c, _ := colorful.Hex("#d02a2a")
	name, d, ok := p.Match(c, 10, 1)
	require.True(t, ok)
	assert.Equal(t, "red", name)
	assert.Less(t, d, 5.0)

	grey, _ := colorful.Hex("#808080")
	_, _, ok = p.Match(grey, 10, 1)
	assert.False(t, ok, "too far from every swatch")

	twins := Palette{{Name: "a", Color: "#ff0000"}, {Name: "b", Color: "#ff0000"}}
	_, _, ok = twins.Match(c, 50, 0.5)
	assert.False(t, ok, "tie")

	assert.Error(t, Palette{{Name: "x", Color: "red"}}.Validate())
	assert.Error(t, Palette{{Name: "", Color: "#000000"}}.Validate())
	assert.Error(t, Palette{{Name: "x", Color: "#000000"}, {Name: "x", Color: "#ffffff"}}.Validate())
}

type fakeReader struct {
	text  string
	on    int // call index that returns text
	err   error
	calls int
}

func (r *fakeReader) ReadLabel(_ context.Context, _ image.Image) (string, float64, error) {
	defer func() { r.calls++ }()
	if r.err != nil {
		return "", 0, r.err
	}
	if r.calls == r.on {
		return " " + r.text + "\n", 0.9, nil
	}
	return "", 0, nil
}

func TestMatcherOrder(t *testing.T) {
	red, _ := colorful.Hex("#ff0000")
	palette := Palette{{Name: "red", Color: "#ff0000"}}
	codes := orientedCodes(t, 1)

	m, err := NewMatcher(Options{
		Shape:     geometry.Square,
		Fiducial:  &testFiducial,
		Palette:   palette,
		MaxDeltaE: 10,
	})
	require.NoError(t, err)
	assert.True(t, m.Enabled())

	marker, err := testFiducial.Encode(codes[0], 64)
	require.NoError(t, err)
	id, err := m.Identify(context.Background(), Sample{
		Patch:    luminance(turnCW(marker, 2)),
		Color:    red,
		HasColor: true,
	})
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, MethodFiducial, id.Method)
	assert.Equal(t, codes[0], id.Code)
	assert.Equal(t, 2, id.Orientation)

	// A plain patch falls through to the palette.
	plain := raster.NewPlane(64, 64)
	id, err = m.Identify(context.Background(), Sample{Patch: plain, Color: red, HasColor: true})
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, MethodColor, id.Method)
	assert.Equal(t, "red", id.Label)
	assert.Equal(t, -1, id.Code)
	assert.Equal(t, -1, id.Orientation)
	assert.InDelta(t, 1, id.Score, 1e-6)

	// Nothing decisive is not an error.
	id, err = m.Identify(context.Background(), Sample{Patch: plain})
	assert.NoError(t, err)
	assert.Nil(t, id)
}

func TestMatcherLabels(t *testing.T) {
	reader := &fakeReader{text: "A7", on: 1}
	m, err := NewMatcher(Options{Shape: geometry.Square, Reader: reader, MinLabelConfidence: 0.5})
	require.NoError(t, err)

	view := image.NewGray(image.Rect(0, 0, 16, 16))
	id, err := m.Identify(context.Background(), Sample{View: view})
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "A7", id.Label)
	assert.Equal(t, MethodLabel, id.Method)
	assert.Equal(t, 1, id.Orientation)
	assert.Equal(t, 4, reader.calls)

	boom := errors.New("engine missing")
	m, err = NewMatcher(Options{Shape: geometry.Square, Reader: &fakeReader{err: boom}})
	require.NoError(t, err)
	id, err = m.Identify(context.Background(), Sample{View: view})
	assert.Nil(t, id)
	assert.ErrorIs(t, err, boom)
}

func TestMatcherCancelled(t *testing.T) {
	m, err := NewMatcher(Options{Shape: geometry.Square, Fiducial: &testFiducial})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Identify(ctx, Sample{Patch: raster.NewPlane(64, 64)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewMatcherValidates(t *testing.T) {
	_, err := NewMatcher(Options{Fiducial: &Fiducial{GridSize: 9}})
	assert.Error(t, err)
	_, err = NewMatcher(Options{Palette: Palette{{Name: "x", Color: "nope"}}})
	assert.Error(t, err)

	m, err := NewMatcher(Options{})
	require.NoError(t, err)
	assert.False(t, m.Enabled())
}

func TestTurns(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2, 3}, Turns(geometry.Square))
	assert.Equal(t, []int{0, 2}, Turns(geometry.Rectangle))
	assert.Equal(t, []int{0}, Turns(geometry.Hexagon))
}
