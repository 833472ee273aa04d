package goexplain

import "strings"

// Fixed texts of a fallback result.
const (
	FallbackRootCause = "N/A (LLM unavailable)"
	FallbackAction    = "Check Stripe Dashboard manually."
)

// impactRule maps an event type fragment to an impact level.
type impactRule struct {
	contains string
	level    ImpactLevel
}

// Evaluated in order; first match wins.
var fallbackRules = []impactRule{
	{contains: "payment_failed", level: ImpactHigh},
	{contains: "dispute", level: ImpactHigh},
	{contains: "invoice.upcoming", level: ImpactLow},
}

// ClassifyImpact derives an impact level from the event type alone.
func ClassifyImpact(eventType string) ImpactLevel {
	for _, rule := range fallbackRules {
		if strings.Contains(eventType, rule.contains) {
			return rule.level
		}
	}
	return ImpactMedium
}

// Fallback builds the deterministic result used whenever the model path fails.
// It never fails and always returns a fully populated AnalysisResult.
func Fallback(eventType string) AnalysisResult {
	return AnalysisResult{
		EventType:           eventType,
		Summary:             "Received event " + eventType + ". Automated analysis unavailable.",
		RootCause:           FallbackRootCause,
		CustomerImpactLevel: ClassifyImpact(eventType),
		RecommendedActions:  []string{FallbackAction},
	}
}
