package moderation

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyText is returned for empty or whitespace-only input.
	ErrEmptyText = errors.New("invalid input: text must be a non-empty string")

	// ErrTextTooLong is returned when the input exceeds the provider limit.
	ErrTextTooLong = errors.New("invalid input: text exceeds the provider length limit")

	// ErrMissingCredentials is returned when a provider is built without its
	// key or endpoint.
	ErrMissingCredentials = errors.New("missing moderation provider credentials")

	// ErrUnsupportedProvider is returned by NewProvider for unknown names.
	ErrUnsupportedProvider = errors.New("unsupported moderation provider")

	// ErrUnrankedLevel is returned by Aggregate for labels outside Safe..High.
	ErrUnrankedLevel = errors.New("level has no risk rank")

	// ErrEmptyAnalysis is returned when a provider returns no analysis at all.
	ErrEmptyAnalysis = errors.New("provider returned no category analysis")

	// ErrTooManyBlocklists is returned when more blocklists are named than
	// the provider accepts in one request.
	ErrTooManyBlocklists = errors.New("too many blocklist names")
)

// AnalysisError records which provider and operation failed.
type AnalysisError struct {
	Op       string
	Provider string
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("moderation: %s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
