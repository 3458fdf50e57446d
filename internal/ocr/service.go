// Package ocr extracts plain text from images.
//
// An image can be given as a file path, a byte stream or an already decoded
// image.Image; every form is decoded to an image.Image before it reaches the
// recognition Engine. Three engines are available:
//   - tesseract: local libtesseract through gosseract, no network (needs
//     the tesseract build tag; it is then the default)
//   - vision: Cloud Vision TEXT_DETECTION with language hints
//   - documentai: a Document AI "Document OCR" processor
//
// Required Environment Variables for the Google engines:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT, DOCUMENT_AI_PROCESSOR_ID: documentai engine only
//
// Extractor.Extract never fails outright. Errors are carried in the returned
// Extraction, whose String form starts with ErrorMarker.
package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"
)

// ErrorMarker prefixes the string form of a failed Extraction.
const ErrorMarker = "[OCR Error]"

// DefaultLanguages is used when an Extractor is built without languages.
var DefaultLanguages = []string{"en"}

// Engine recognizes text in a decoded image.
type Engine interface {
	// Name identifies the engine in logs and results.
	Name() string

	// Recognize returns the recognized text fragments in reading order,
	// one per detected line.
	Recognize(ctx context.Context, img image.Image, languages []string) ([]string, error)

	// Close releases the underlying client.
	Close() error
}

// Extraction is the outcome of one OCR call.
type Extraction struct {
	// Text is the recognized lines joined by newlines, trimmed.
	Text string `json:"text"`

	// Lines are the raw fragments returned by the engine.
	Lines []string `json:"lines,omitempty"`

	Engine    string   `json:"engine"`
	Languages []string `json:"languages,omitempty"`

	ProcessedAt        time.Time     `json:"processed_at"`
	ProcessingDuration time.Duration `json:"processing_duration"`

	// Err is set when the image could not be read or recognized.
	Err error `json:"-"`
}

// Failed reports whether the extraction carries an error.
func (e Extraction) Failed() bool {
	return e.Err != nil
}

// String returns the text, or the error prefixed with ErrorMarker.
func (e Extraction) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %v", ErrorMarker, e.Err)
	}
	return e.Text
}

func joinLines(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
