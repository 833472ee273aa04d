package goexplain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// modelResult is the wire shape expected from the model.
type modelResult struct {
	Summary             string   `json:"summary"`
	RootCause           string   `json:"root_cause"`
	CustomerImpactLevel *string  `json:"customer_impact_level"`
	RecommendedActions  []string `json:"recommended_actions"`
}

// cleanModelOutput strips surrounding whitespace, an optional leading
// ```json or ``` marker and an optional trailing ``` marker. Each marker is
// handled on its own, so a reply carrying only one of them still parses.
func cleanModelOutput(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// parseModelOutput parses cleaned model output into a result for eventType.
// The impact level is lower-cased and coerced to medium when outside the
// closed set; coerced reports whether that happened. Other fields are taken
// as-is.
func parseModelOutput(eventType, raw string) (result AnalysisResult, coerced bool, err error) {
	cleaned := cleanModelOutput(raw)

	var object map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &object); err != nil {
		return AnalysisResult{}, false, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if object == nil {
		return AnalysisResult{}, false, fmt.Errorf("%w: output is not a JSON object", ErrMalformedOutput)
	}

	var wire modelResult
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return AnalysisResult{}, false, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	level, valid := ImpactMedium, false
	if wire.CustomerImpactLevel != nil {
		level, valid = ParseImpactLevel(*wire.CustomerImpactLevel)
	}

	return AnalysisResult{
		EventType:           eventType,
		Summary:             wire.Summary,
		RootCause:           wire.RootCause,
		CustomerImpactLevel: level,
		RecommendedActions:  wire.RecommendedActions,
	}, !valid, nil
}
