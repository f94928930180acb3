// Package envelope validates the shape of an incoming PaymentEnvelope /
// PaymentRequirements pair before the facilitator core attempts a typed
// decode, so malformed input is rejected as InvalidRequest with a precise
// schema-validation message instead of a generic json.Unmarshal error.
// Grounded on the teacher's own direct dependency on
// github.com/xeipuuv/gojsonschema (present in its go.mod though not wired
// to a concrete validation path in the retrieved pack) -- wired here to the
// envelope decode boundary.
package envelope

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const envelopeSchema = `{
  "type": "object",
  "required": ["x402Version", "scheme", "network", "payload"],
  "properties": {
    "x402Version": {"type": "integer"},
    "scheme": {"type": "string", "minLength": 1},
    "network": {"type": "string", "minLength": 1},
    "payload": {}
  }
}`

const requirementsSchema = `{
  "type": "object",
  "required": ["scheme", "network", "maxAmountRequired", "payTo", "asset"],
  "properties": {
    "scheme": {"type": "string", "minLength": 1},
    "network": {"type": "string", "minLength": 1},
    "maxAmountRequired": {"type": "string"},
    "payTo": {"type": "string", "minLength": 1},
    "asset": {"type": "string", "minLength": 1},
    "maxTimeoutSeconds": {"type": "integer"}
  }
}`

var (
	envelopeLoader     = gojsonschema.NewStringLoader(envelopeSchema)
	requirementsLoader = gojsonschema.NewStringLoader(requirementsSchema)
)

// ValidateEnvelope checks raw JSON bytes against the PaymentEnvelope shape.
func ValidateEnvelope(raw []byte) error {
	return validate(envelopeLoader, raw)
}

// ValidateRequirements checks raw JSON bytes against the PaymentRequirements
// shape, including the wire-format gotcha that maxAmountRequired must be a
// JSON string, never a bare number.
func ValidateRequirements(raw []byte) error {
	return validate(requirementsLoader, raw)
}

func validate(schema gojsonschema.JSONLoader, raw []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("envelope: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("envelope: %s: %s", errs[0].Field(), errs[0].Description())
		}
		return fmt.Errorf("envelope: malformed request")
	}
	return nil
}
