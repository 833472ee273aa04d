package goexplain

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v83"
)

// Sentinels used when the payload lacks the corresponding field.
const (
	UnknownType = "unknown_type"
	UnknownID   = "unknown_id"
)

// Event is an untrusted webhook payload. The payload is kept verbatim and only
// read through get-or-default accessors, so partial or oddly-typed payloads
// never fail extraction.
type Event struct {
	raw map[string]interface{}
	env *stripe.Event
}

// NewEvent wraps an already decoded JSON object. A nil map is an empty event.
func NewEvent(raw map[string]interface{}) Event {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	var env *stripe.Event
	if body, err := json.Marshal(raw); err == nil {
		env = decodeEnvelope(body)
	}
	return Event{raw: raw, env: env}
}

// ParseEvent decodes body as a JSON object. Anything else (invalid JSON, arrays,
// scalars, null) is rejected with ErrInvalidEvent.
func ParseEvent(body []byte) (Event, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if raw == nil {
		return Event{}, fmt.Errorf("%w: payload must be a JSON object", ErrInvalidEvent)
	}
	return Event{raw: raw, env: decodeEnvelope(body)}, nil
}

// decodeEnvelope reads body as a Stripe event envelope, or returns nil when
// the payload does not fit that shape.
func decodeEnvelope(body []byte) *stripe.Event {
	var env stripe.Event
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	return &env
}

// Lookup walks path through nested objects. It returns false when any segment
// is missing or an intermediate value is not an object.
func (e Event) Lookup(path ...string) (interface{}, bool) {
	var cur interface{} = e.raw
	for _, key := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// StringOr returns the string at path, or def when absent or not a string.
func (e Event) StringOr(def string, path ...string) string {
	v, ok := e.Lookup(path...)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// ObjectOr returns the object at path, or an empty object when absent or not an object.
func (e Event) ObjectOr(path ...string) map[string]interface{} {
	v, ok := e.Lookup(path...)
	if !ok {
		return map[string]interface{}{}
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return obj
}

// Type returns the event type, or UnknownType.
func (e Event) Type() string {
	return e.StringOr(UnknownType, "type")
}

// DataObject returns data.object, or an empty object.
func (e Event) DataObject() map[string]interface{} {
	return e.ObjectOr("data", "object")
}

// ObjectID returns data.object.id, or UnknownID.
func (e Event) ObjectID() string {
	return e.StringOr(UnknownID, "data", "object", "id")
}

// Raw returns the payload as received.
func (e Event) Raw() map[string]interface{} {
	if e.raw == nil {
		return map[string]interface{}{}
	}
	return e.raw
}

// MarshalJSON encodes the payload verbatim.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Raw())
}

// Envelope returns the payload decoded as a Stripe event envelope. It is
// decoded once at construction; payloads that do not fit the Stripe shape
// report false and are still analyzable.
func (e Event) Envelope() (stripe.Event, bool) {
	if e.env == nil {
		return stripe.Event{}, false
	}
	return *e.env, true
}

// envelopeFields returns log fields describing the Stripe delivery, if any.
func (e Event) envelopeFields() []Field {
	env, ok := e.Envelope()
	if !ok || env.ID == "" {
		return nil
	}

	fields := []Field{
		{"eventId", env.ID},
		{"livemode", env.Livemode},
	}
	if env.Account != "" {
		fields = append(fields, Field{"account", env.Account})
	}
	if env.APIVersion != "" {
		fields = append(fields, Field{"apiVersion", env.APIVersion})
	}
	if env.Request != nil && env.Request.ID != "" {
		fields = append(fields, Field{"stripeRequestId", env.Request.ID})
	}
	if env.PendingWebhooks > 0 {
		fields = append(fields, Field{"pendingWebhooks", env.PendingWebhooks})
	}
	return fields
}
