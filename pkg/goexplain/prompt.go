package goexplain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt fixes the model's role and output contract.
const SystemPrompt = `You are an expert Stripe technical consultant and business analyst. ` +
	`Your goal is to parse raw JSON webhook events and translate them into ` +
	`clear, actionable insights for a non-technical stakeholder.

RULES:
1. Output valid JSON ONLY: a single JSON object. No markdown, no code fences, no commentary.
2. Be concise but specific. Avoid generic advice like 'check logs'.
3. Derive impact level conservatively: failures/disputes are HIGH, warnings/upcoming invoices are LOW/MEDIUM. When in doubt, choose the lower severity.
4. 'root_cause' should explain the technical reason or failure code when present (e.g., 'Insufficient funds', 'Expired card').`

const userPromptTemplate = `
Analyze the following Stripe webhook event.

Event Type: %s
Object ID: %s

Event Object:
%s

Raw Payload:
%s

OUTPUT INSTRUCTIONS:
1. 'summary': Provide a 1-sentence executive summary of what happened.
2. 'root_cause': Extract the specific failure code or reason if present (e.g., 'generic_decline', 'insufficient_funds'). If success, state "Successful transaction".
3. 'customer_impact_level':
   - HIGH: Payment failed, dispute created, subscription canceled unexpectedly.
   - MEDIUM: Payment dispute won, subscription updated.
   - LOW: Payout paid, invoice created, payment succeeded.
4. 'recommended_actions':
   - Propose 2-3 specific steps.
   - Reference identifiers from the payload (customer, invoice, charge, dispute IDs) where available.
   - Example 1: "Contact customer [email/ID] to update payment method."
   - Example 2: "Review dispute evidence for charge [ID]."

Output STRICT JSON matching this schema:
{
  "event_type": %s,
  "summary": "...",
  "root_cause": "...",
  "customer_impact_level": "low | medium | high",
  "recommended_actions": ["..."]
}
`

// BuildPrompts renders the system and user instructions for e. It is a pure
// function of its input and never fails; the payload is embedded in full.
func BuildPrompts(e Event) Prompts {
	eventType := e.Type()

	user := fmt.Sprintf(userPromptTemplate,
		eventType,
		e.ObjectID(),
		formatJSON(e.DataObject()),
		formatJSON(e.Raw()),
		quoteJSON(eventType),
	)

	return Prompts{
		System: SystemPrompt,
		User:   user,
	}
}

// formatJSON renders v as indented JSON without HTML escaping. Values that
// cannot be encoded render as an empty object.
func formatJSON(v interface{}) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func quoteJSON(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
