package moderation

import "fmt"

// Level is the bucketed risk label attached to a category or a whole result.
type Level string

const (
	LevelSafe   Level = "Safe"
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"

	// LevelUnknown marks a result whose analysis failed, or a severity outside
	// the provider scale.
	LevelUnknown Level = "Unknown"

	// LevelInvalid marks a result for input that was rejected before any
	// analysis took place.
	LevelInvalid Level = "Invalid"
)

// MaxSeverity is the top of the 0-7 severity scale.
const MaxSeverity = 7

var severityLevels = [MaxSeverity + 1]Level{
	LevelSafe,
	LevelLow, LevelLow,
	LevelMedium, LevelMedium,
	LevelHigh, LevelHigh, LevelHigh,
}

var levelRanks = map[Level]int{
	LevelSafe:   0,
	LevelLow:    1,
	LevelMedium: 2,
	LevelHigh:   3,
}

// LevelFromSeverity buckets a raw 0-7 severity. Values outside the scale map
// to LevelUnknown.
func LevelFromSeverity(severity int) Level {
	if severity < 0 || severity > MaxSeverity {
		return LevelUnknown
	}
	return severityLevels[severity]
}

// Confidence normalizes a severity to [0, 1].
func Confidence(severity int) float64 {
	switch {
	case severity <= 0:
		return 0
	case severity >= MaxSeverity:
		return 1
	}
	return float64(severity) / MaxSeverity
}

// Rank returns the ordinal of a rankable level. ok is false for Unknown,
// Invalid and anything not produced by LevelFromSeverity.
func (l Level) Rank() (rank int, ok bool) {
	rank, ok = levelRanks[l]
	return rank, ok
}

// Aggregate returns the highest-ranked level in categories, or LevelSafe for
// an empty map. A level without a rank is an error rather than being counted
// as safe.
func Aggregate(categories map[string]Level) (Level, error) {
	overall, best := LevelSafe, 0
	for category, level := range categories {
		rank, ok := level.Rank()
		if !ok {
			return LevelUnknown, fmt.Errorf("%w: category %q has level %q", ErrUnrankedLevel, category, level)
		}
		if rank > best {
			overall, best = level, rank
		}
	}
	return overall, nil
}
