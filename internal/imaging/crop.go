package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"

	"github.com/gramaziokohler/td2d/pkg/geometry"
)

// CropResult contains encoded image data returned to clients.
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts a rectangular region from an image
func Crop(img image.Image, x1, y1, x2, y2 int, scale float64) (*CropResult, error) {
	bounds := img.Bounds()

	if x1 < bounds.Min.X || y1 < bounds.Min.Y || x2 > bounds.Max.X || y2 > bounds.Max.Y {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			x1, y1, x2, y2, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	var cropped image.Image = imaging.Crop(img, image.Rect(x1, y1, x2, y2))
	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}
	return Encode(cropped)
}

// CropPolygon crops the bounding box of poly, grown by margin pixels and
// clipped to the image.
func CropPolygon(img image.Image, poly geometry.Polygon, margin int, scale float64) (*CropResult, error) {
	if len(poly) == 0 {
		return nil, fmt.Errorf("empty polygon")
	}
	b := img.Bounds()
	r := poly.Bounds()
	x1 := clamp(int(math.Floor(r.X.Lo))-margin, 0, b.Dx())
	y1 := clamp(int(math.Floor(r.Y.Lo))-margin, 0, b.Dy())
	x2 := clamp(int(math.Ceil(r.X.Hi))+margin+1, 0, b.Dx())
	y2 := clamp(int(math.Ceil(r.Y.Hi))+margin+1, 0, b.Dy())
	return Crop(img, b.Min.X+x1, b.Min.Y+y1, b.Min.X+x2, b.Min.Y+y2, scale)
}

// TileView rectifies the quad given by corners (top-left first, clockwise)
// into a size×size frontal view. quarterTurns rotates the result clockwise so
// an identified tile can be shown upright.
func TileView(img image.Image, corners []geometry.Point, size, quarterTurns int) (*CropResult, error) {
	if len(corners) != 4 {
		return nil, fmt.Errorf("tile view needs 4 corners, got %d", len(corners))
	}
	if size < 2 {
		return nil, fmt.Errorf("tile view size must be at least 2, got %d", size)
	}
	h, err := Rectify(corners, size)
	if err != nil {
		return nil, fmt.Errorf("failed to rectify tile: %w", err)
	}
	var view image.Image = WarpImage(img, h, size)
	switch ((quarterTurns % 4) + 4) % 4 {
	case 1:
		view = imaging.Rotate270(view)
	case 2:
		view = imaging.Rotate180(view)
	case 3:
		view = imaging.Rotate90(view)
	}
	return Encode(view)
}

// Encode renders img as a base64 PNG.
func Encode(img image.Image) (*CropResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &CropResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
