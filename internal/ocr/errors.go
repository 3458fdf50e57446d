package ocr

import (
	"errors"
	"fmt"
)

// Common OCR processing errors
var (
	// ErrImageTooLarge is returned when the encoded image exceeds MaxImageBytes.
	ErrImageTooLarge = errors.New("image exceeds the maximum size (20MB)")

	// ErrInvalidImage is returned when the source cannot be decoded as an image.
	ErrInvalidImage = errors.New("invalid or corrupted image")

	// ErrNoSource is returned for a zero Source.
	ErrNoSource = errors.New("image must be a file path, an image.Image or an io.Reader")

	// ErrOCRFailed is returned when the recognition backend fails.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrMissingCredentials is returned when the Google client cannot be
	// created from the environment.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrInvalidConfiguration is returned when an engine is missing settings.
	ErrInvalidConfiguration = errors.New("invalid OCR engine configuration")

	// ErrUnsupportedEngine is returned by NewEngine for unknown names.
	ErrUnsupportedEngine = errors.New("unsupported OCR engine")
)

// OCRError wraps errors with the operation that failed.
type OCRError struct {
	// Op is the operation that failed (e.g., "Recognize", "Decode").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err
	}

	return &OCRError{Op: op, Err: err, Details: details}
}
