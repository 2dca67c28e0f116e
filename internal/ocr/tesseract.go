package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// DefaultWhitelist restricts recognition to the characters printed on tile
// labels.
const DefaultWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-"

// Reader reads short printed labels from canonical tile views with
// Tesseract. It serialises calls on one engine instance, so it is safe for
// concurrent use.
type Reader struct {
	language  string
	whitelist string
	// scale upsamples small views before recognition.
	scale int

	mu     sync.Mutex
	client *gosseract.Client
}

// NewReader returns a Reader for the given Tesseract language code. An empty
// whitelist allows every character.
func NewReader(language, whitelist string) *Reader {
	if language == "" {
		language = "eng"
	}
	return &Reader{language: language, whitelist: whitelist, scale: 4}
}

// ReadLabel recognises a single line of text in img and returns it with the
// mean word confidence in [0, 1].
//
// If word boxes cannot be extracted the text is still returned, with zero
// confidence.
func (r *Reader) ReadLabel(ctx context.Context, img image.Image) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	// Tesseract wants dark text on a light page with some resolution.
	b := img.Bounds()
	view := imaging.Resize(imaging.Grayscale(img), b.Dx()*r.scale, b.Dy()*r.scale, imaging.Linear)
	var buf bytes.Buffer
	if err := png.Encode(&buf, view); err != nil {
		return "", 0, fmt.Errorf("failed to encode label view: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	client, err := r.engine()
	if err != nil {
		return "", 0, err
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", 0, fmt.Errorf("failed to set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("OCR failed: %w", err)
	}
	text = strings.TrimSpace(text)

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return text, 0, nil
	}
	var sum float64
	n := 0
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		sum += float64(box.Confidence) / 100.0
		n++
	}
	if n == 0 {
		return text, 0, nil
	}
	return text, sum / float64(n), nil
}

// engine returns the lazily initialised client. r.mu must be held.
func (r *Reader) engine() (*gosseract.Client, error) {
	if r.client != nil {
		return r.client, nil
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(r.language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if r.whitelist != "" {
		if err := client.SetWhitelist(r.whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	r.client = client
	return client, nil
}

// Close releases the Tesseract engine.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

// Info describes the OCR subsystem.
type Info struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Backend   string `json:"backend"`
}

// GetInfo reports the linked Tesseract version.
func GetInfo() Info {
	client := gosseract.NewClient()
	defer client.Close()
	v := client.Version()
	return Info{Available: v != "", Version: v, Backend: "gosseract"}
}
