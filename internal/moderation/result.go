package moderation

import "encoding/json"

// Result is the provider-independent outcome of analyzing one text.
type Result struct {
	IsHarmful        bool
	RiskLevel        Level
	Categories       map[string]Level
	ConfidenceScores map[string]float64
	Provider         string

	// Err is set when the input was rejected (RiskLevel Invalid) or the
	// analysis failed (RiskLevel Unknown).
	Err error
}

// Failed reports whether the result carries an error.
func (r Result) Failed() bool {
	return r.Err != nil
}

func failedResult(provider string, level Level, err error) Result {
	return Result{
		RiskLevel:        level,
		Categories:       map[string]Level{},
		ConfidenceScores: map[string]float64{},
		Provider:         provider,
		Err:              err,
	}
}

type resultJSON struct {
	IsHarmful        bool               `json:"is_harmful"`
	RiskLevel        Level              `json:"risk_level"`
	Categories       map[string]Level   `json:"categories"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
	Provider         string             `json:"provider"`
	Error            *string            `json:"error"`
}

// MarshalJSON renders Err as its message, or null.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		IsHarmful:        r.IsHarmful,
		RiskLevel:        r.RiskLevel,
		Categories:       r.Categories,
		ConfidenceScores: r.ConfidenceScores,
		Provider:         r.Provider,
	}
	if r.Err != nil {
		msg := r.Err.Error()
		out.Error = &msg
	}
	return json.Marshal(out)
}
