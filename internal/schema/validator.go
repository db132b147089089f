// Package schema validates outbound event payloads before publishing.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// requiredFields must be present and non-empty in every published event.
var requiredFields = []string{"eventType", "sessionId"}

// Validator checks event payloads against the event envelope contract.
type Validator struct{}

// New creates a new Validator.
func New() *Validator {
	return &Validator{}
}

// Validate checks that the JSON payload carries the required envelope
// fields. Malformed events are rejected before they reach a topic.
func (v *Validator) Validate(payload []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return fmt.Errorf("event payload is not a JSON object: %w", err)
	}

	for _, name := range requiredFields {
		raw, ok := fields[name]
		if !ok {
			return fmt.Errorf("event missing required field %q", name)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("event field %q is not a string", name)
		}
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("event field %q is empty", name)
		}
	}

	return nil
}
