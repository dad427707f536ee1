package models

type GateType string

const (
	GateTypeShare   GateType = "share"
	GateTypeComment GateType = "comment"
)

// GatePolicy holds the thresholds a reading session must clear before a
// gated action is allowed. Read-only at session run time; the constants are
// product-tuned and overridable per call site.
type GatePolicy struct {
	MinDwellBaseSeconds  float64 `json:"min_dwell_base_seconds"`
	DwellPerHundredWords float64 `json:"dwell_per_hundred_words"`
	MaxDwellSeconds      float64 `json:"max_dwell_seconds"`
	MinScrollRatio       float64 `json:"min_scroll_ratio"`
	UnlockThresholdRatio float64 `json:"unlock_threshold_ratio"`
	GraceRatio           float64 `json:"grace_ratio"`
	MaxScrollVelocity    float64 `json:"max_scroll_velocity"`
}

func DefaultGatePolicy() GatePolicy {
	return GatePolicy{
		MinDwellBaseSeconds:  3.0,
		DwellPerHundredWords: 1.1,
		MaxDwellSeconds:      30.0,
		MinScrollRatio:       0.9,
		UnlockThresholdRatio: 0.6,
		GraceRatio:           0.2,
		MaxScrollVelocity:    2.5,
	}
}

// ReadingProgress is the tracker's output signal. ScrollRatio carries the
// maximum ratio observed so far, never the instantaneous one.
type ReadingProgress struct {
	SecondsElapsed float64 `json:"seconds_elapsed"`
	ScrollRatio    float64 `json:"scroll_ratio"`
	WordCount      int     `json:"word_count"`
}

// Readiness is the policy engine's decision plus the deficit feedback shown
// to the user when the gate is not yet open.
type Readiness struct {
	Ready                  bool    `json:"ready"`
	SecondsRemaining       float64 `json:"seconds_remaining"`
	ScrollPercentRemaining float64 `json:"scroll_percent_remaining"`
	Message                string  `json:"message,omitempty"`
}
