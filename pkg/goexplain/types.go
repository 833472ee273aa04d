package goexplain

import "strings"

// ImpactLevel is the closed severity enumeration of an analysis.
type ImpactLevel string

const (
	// ImpactLow covers informational events (payout paid, invoice created, payment succeeded)
	ImpactLow ImpactLevel = "low"
	// ImpactMedium is the neutral default (dispute won, subscription updated, unknown)
	ImpactMedium ImpactLevel = "medium"
	// ImpactHigh covers customer-facing failures (payment failed, dispute created)
	ImpactHigh ImpactLevel = "high"
)

// Valid reports whether l is one of low, medium, high.
func (l ImpactLevel) Valid() bool {
	switch l {
	case ImpactLow, ImpactMedium, ImpactHigh:
		return true
	default:
		return false
	}
}

// ParseImpactLevel lower-cases s and coerces anything outside the closed set to
// ImpactMedium. The second return value is false when coercion happened.
func ParseImpactLevel(s string) (ImpactLevel, bool) {
	level := ImpactLevel(strings.ToLower(s))
	if !level.Valid() {
		return ImpactMedium, false
	}
	return level, true
}

// AnalysisResult is the structured explanation of a single webhook event.
type AnalysisResult struct {
	EventType           string      `json:"event_type"`
	Summary             string      `json:"summary" validate:"required"`
	RootCause           string      `json:"root_cause" validate:"required"`
	CustomerImpactLevel ImpactLevel `json:"customer_impact_level" validate:"oneof=low medium high"`
	RecommendedActions  []string    `json:"recommended_actions" validate:"min=1,dive,required"`
}

// Prompts is the rendered instruction pair sent to the completion service.
type Prompts struct {
	System string
	User   string
}
