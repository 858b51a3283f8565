package llms

import (
	"encoding/json"
	"fmt"
)

// Schema describes the JSON shape a structured-output call must produce and
// the Go value the reply binds into. The client enforces it: a reply that
// fails Decode is repaired once and then surfaces as SchemaViolationError.
type Schema struct {
	// Name labels the shape in repair prompts and error messages.
	Name string
	// Target must be a non-nil pointer; the decoded reply is written into it.
	Target any
	// Normalize coerces the reply through NormalizeToList before decoding,
	// absorbing the wrapped-object/bare-list/scalar shapes providers emit
	// when a list was asked for.
	Normalize bool
}

// Decode binds raw model text to the schema's Target. It fails when the
// text carries no JSON payload or the payload does not match Target's shape.
func (s *Schema) Decode(raw string) error {
	payload, ok := ExtractJSON(raw)
	if !ok {
		return fmt.Errorf("schema %s: no JSON payload in response", s.Name)
	}
	if s.Normalize {
		encoded, err := json.Marshal(NormalizeToList(payload))
		if err != nil {
			return fmt.Errorf("schema %s: %w", s.Name, err)
		}
		payload = string(encoded)
	}
	if err := json.Unmarshal([]byte(payload), s.Target); err != nil {
		return fmt.Errorf("schema %s: %w", s.Name, err)
	}
	return nil
}
