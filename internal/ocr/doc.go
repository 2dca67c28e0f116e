// Package ocr reads printed tile labels with Tesseract.
//
// Reader wraps the Tesseract OCR engine (via gosseract/v2) and implements
// the label reader used by tile identification. Each call recognises a
// single line of text in a canonical tile view, upsampled for the engine,
// and reports the mean word confidence.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr libtesseract-dev
//   - macOS: brew install tesseract
//
// Language data files are required for each language:
//   - Ubuntu/Debian: apt-get install tesseract-ocr-eng (for English)
//   - Other languages: tesseract-ocr-<lang> packages
//
// GetInfo reports whether the linked library is usable and which version it
// is, without loading any language data.
//
// # Supported Languages
//
// The default language is English ("eng"). Other languages can be specified
// using their Tesseract language codes:
//   - "eng" - English
//   - "deu" - German
//   - "fra" - French
//   - "spa" - Spanish
//
// Tile labels are usually short codes, so DefaultWhitelist limits the engine
// to upper-case letters, digits and the hyphen. Pass an empty whitelist to
// NewReader to allow every character.
//
// # Performance Considerations
//
// OCR is computationally expensive and one engine instance is not
// re-entrant, so a Reader serialises recognition. It is only consulted for
// tiles that no fiducial or template identified, once per admissible
// orientation. The engine is started on the first ReadLabel call and kept
// until Close.
//
// # Error Handling
//
// ReadLabel returns errors for:
//   - A context that is already done
//   - Unknown language codes or missing language data, reported on the
//     first call when the engine starts
//   - Tesseract recognition failures
//
// If word boxes cannot be extracted, ReadLabel still returns the text with
// zero confidence, which the identification chain treats as unreadable.
package ocr
