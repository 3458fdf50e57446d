package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"golang.org/x/text/language"
)

// TesseractClient is the part of the gosseract client the engine uses.
type TesseractClient interface {
	SetLanguage(langs ...string) error
	SetImageFromBytes(data []byte) error
	Text() (string, error)
	Close() error
}

// newTesseractClient is set when the binary is built with the tesseract tag.
var newTesseractClient func() TesseractClient

// TesseractEngine implements Engine with a local Tesseract installation.
// Recognition runs in process and needs no network access.
type TesseractEngine struct {
	client TesseractClient
}

// NewTesseractEngine creates the engine backed by libtesseract.
func NewTesseractEngine() (*TesseractEngine, error) {
	if newTesseractClient == nil {
		return nil, WrapOCRError("NewTesseractEngine", ErrUnsupportedEngine, "binary built without tesseract support (rebuild with -tags tesseract)")
	}
	return &TesseractEngine{client: newTesseractClient()}, nil
}

// NewTesseractEngineWithClient creates the engine with an explicit client (for testing).
func NewTesseractEngineWithClient(client TesseractClient) *TesseractEngine {
	return &TesseractEngine{client: client}
}

func (t *TesseractEngine) Name() string {
	return EngineTesseract
}

// Recognize runs Tesseract on the PNG encoding of img.
func (t *TesseractEngine) Recognize(_ context.Context, img image.Image, languages []string) ([]string, error) {
	const op = "Recognize"

	content, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	langs, err := tesseractLanguages(languages)
	if err != nil {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, err.Error())
	}
	if err := t.client.SetLanguage(langs...); err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("set language: %v", err))
	}
	if err := t.client.SetImageFromBytes(content); err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("set image: %v", err))
	}

	text, err := t.client.Text()
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Tesseract failed: %v", err))
	}

	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// tesseractLanguages maps BCP 47 tags such as "en" or "de" to the ISO 639-2
// codes Tesseract names its trained data after ("eng", "deu").
func tesseractLanguages(languages []string) ([]string, error) {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	out := make([]string, 0, len(languages))
	for _, l := range languages {
		tag, err := language.Parse(l)
		if err != nil {
			return nil, fmt.Errorf("language %q: %w", l, err)
		}
		base, _ := tag.Base()
		code := base.ISO3()
		if code == "" || code == "und" {
			return nil, fmt.Errorf("language %q has no Tesseract code", l)
		}
		out = append(out, code)
	}
	return out, nil
}

// Close releases the Tesseract handle.
func (t *TesseractEngine) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}
