package moderation

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"cybersafe/internal/logger"
)

// Analyzer is the moderation facade: it validates input, calls its Provider
// and turns the raw answer into a Result. An Analyzer holds no per-call state
// and can be shared.
type Analyzer struct {
	provider      Provider
	maxTextLength int
	log           zerolog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMaxTextLength overrides the input limit taken from the provider.
// Zero disables the check.
func WithMaxTextLength(n int) Option {
	return func(a *Analyzer) {
		a.maxTextLength = n
	}
}

// WithLogger replaces the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Analyzer) {
		a.log = log
	}
}

// NewAnalyzer returns an Analyzer backed by provider.
func NewAnalyzer(provider Provider, opts ...Option) *Analyzer {
	a := &Analyzer{
		provider: provider,
		log:      logger.WithComponent("moderation"),
	}
	if limiter, ok := provider.(TextLimiter); ok {
		a.maxTextLength = limiter.MaxTextLength()
	}
	for _, opt := range opts {
		opt(a)
	}

	a.log.Info().Str("provider", provider.Name()).Msg("Moderation analyzer initialized")
	return a
}

// Provider returns the name of the backend.
func (a *Analyzer) Provider() string {
	return a.provider.Name()
}

// Analyze classifies text. It never returns an error; failures are carried in
// Result.Err.
func (a *Analyzer) Analyze(ctx context.Context, text string) Result {
	name := a.provider.Name()

	if strings.TrimSpace(text) == "" {
		return failedResult(name, LevelInvalid, ErrEmptyText)
	}
	if a.maxTextLength > 0 && utf8.RuneCountInString(text) > a.maxTextLength {
		return failedResult(name, LevelInvalid, ErrTextTooLong)
	}

	analysis, err := a.provider.AnalyzeText(ctx, text)
	if err != nil {
		a.log.Error().Err(err).Str("provider", name).Msg("Analysis failed")
		return failedResult(name, LevelUnknown, wrapAnalysisError(name, err))
	}

	result, err := buildResult(name, analysis)
	if err != nil {
		a.log.Error().Err(err).Str("provider", name).Msg("Provider answer could not be classified")
		return failedResult(name, LevelUnknown, wrapAnalysisError(name, err))
	}

	a.log.Debug().
		Str("provider", name).
		Str("risk_level", string(result.RiskLevel)).
		Bool("is_harmful", result.IsHarmful).
		Msg("Text analyzed")
	return result
}

// AnalyzeBatch analyzes texts one after another and returns results in the
// same order.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, texts []string) []Result {
	results := make([]Result, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			results = append(results, failedResult(a.provider.Name(), LevelUnknown, wrapAnalysisError(a.provider.Name(), err)))
			continue
		}
		results = append(results, a.Analyze(ctx, text))
	}
	return results
}

func buildResult(provider string, analysis *Analysis) (Result, error) {
	if analysis == nil {
		return Result{}, ErrEmptyAnalysis
	}

	result := Result{
		Categories:       make(map[string]Level, len(analysis.Categories)),
		ConfidenceScores: make(map[string]float64, len(analysis.Categories)),
		Provider:         provider,
		IsHarmful:        len(analysis.Blocklists) > 0,
	}
	for _, c := range analysis.Categories {
		result.Categories[c.Category] = LevelFromSeverity(c.Severity)
		result.ConfidenceScores[c.Category] = Confidence(c.Severity)
		if c.Severity > 0 {
			result.IsHarmful = true
		}
	}

	level, err := Aggregate(result.Categories)
	if err != nil {
		return Result{}, err
	}
	result.RiskLevel = level
	return result, nil
}

func wrapAnalysisError(provider string, err error) error {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return err
	}
	return &AnalysisError{Op: "Analyze", Provider: provider, Err: err}
}
