// Package moderation classifies text through a hosted safety backend and
// reduces the vendor answer to a Result.
//
// The severity scale is the 0-7 scale of Azure AI Content Safety
// (EightSeverityLevels). Each category is bucketed with LevelFromSeverity and
// the overall risk is the worst bucket, see Aggregate.
package moderation

import (
	"context"
	"fmt"
)

// Provider is a moderation backend.
type Provider interface {
	// Name identifies the backend in results and logs.
	Name() string

	// AnalyzeText sends one text to the backend and returns its raw answer.
	AnalyzeText(ctx context.Context, text string) (*Analysis, error)
}

// TextLimiter is implemented by providers that reject long input.
type TextLimiter interface {
	MaxTextLength() int
}

// CategorySeverity is one category verdict on the provider scale.
type CategorySeverity struct {
	Category string `json:"category"`
	Severity int    `json:"severity"`
}

// BlocklistMatch is a hit against a custom blocklist.
type BlocklistMatch struct {
	BlocklistName     string `json:"blocklistName"`
	BlocklistItemID   string `json:"blocklistItemId"`
	BlocklistItemText string `json:"blocklistItemText"`
}

// Analysis is the raw provider answer before bucketing.
type Analysis struct {
	Categories []CategorySeverity
	Blocklists []BlocklistMatch
}

// ProviderName selects a backend in NewProvider.
type ProviderName string

const (
	ProviderAzure ProviderName = "azure"
)

// ProviderConfig carries what any provider needs to be constructed.
type ProviderConfig struct {
	Endpoint string
	APIKey   string

	// Azure holds options only the Azure provider reads. May be nil.
	Azure *AzureOptions
}

// NewProvider builds the backend registered under name.
func NewProvider(name ProviderName, cfg ProviderConfig) (Provider, error) {
	switch name {
	case ProviderAzure:
		return NewAzureContentSafety(cfg.Endpoint, cfg.APIKey, cfg.Azure)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
}
