package ocr

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cybersafe/internal/logger"
)

// Extractor turns image sources into text with one Engine.
type Extractor struct {
	engine    Engine
	languages []string
	log       zerolog.Logger
}

// NewExtractor returns an Extractor. Without languages DefaultLanguages is used.
func NewExtractor(engine Engine, languages ...string) *Extractor {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Extractor{
		engine:    engine,
		languages: languages,
		log:       logger.WithComponent("ocr"),
	}
}

// Languages returns the language hints passed to the engine.
func (e *Extractor) Languages() []string {
	return e.languages
}

// Extract decodes the source and recognizes its text. It never returns an
// error of its own; check Extraction.Err.
func (e *Extractor) Extract(ctx context.Context, src Source) Extraction {
	start := time.Now()
	result := Extraction{
		Engine:    e.engine.Name(),
		Languages: e.languages,
	}
	finish := func() Extraction {
		result.ProcessedAt = time.Now()
		result.ProcessingDuration = result.ProcessedAt.Sub(start)
		return result
	}

	img, err := src.Decode()
	if err != nil {
		e.log.Warn().Err(err).Str("source", src.Describe()).Msg("Failed to decode image")
		result.Err = err
		return finish()
	}

	lines, err := e.engine.Recognize(ctx, img, e.languages)
	if err != nil {
		e.log.Error().Err(err).Str("source", src.Describe()).Str("engine", e.engine.Name()).Msg("Text recognition failed")
		result.Err = WrapOCRError("Extract", err, "")
		return finish()
	}

	result.Lines = lines
	result.Text = joinLines(lines)

	e.log.Debug().
		Str("source", src.Describe()).
		Int("lines", len(lines)).
		Int("text_length", len(result.Text)).
		Msg("Text extracted")
	return finish()
}

// ExtractText returns the extracted text, or an ErrorMarker-prefixed message
// when extraction failed.
func (e *Extractor) ExtractText(ctx context.Context, src Source) string {
	return e.Extract(ctx, src).String()
}

// Close releases the engine.
func (e *Extractor) Close() error {
	return e.engine.Close()
}
