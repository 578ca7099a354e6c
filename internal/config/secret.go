package config

// redacted replaces secret values in logs and serialized output.
const redacted = "***REDACTED***"

var redactedJSON = []byte(`"` + redacted + `"`)

// Secret is a string that redacts itself through fmt and JSON so signing
// keys and API credentials never land in logs or config dumps. Unmask
// returns the raw value for the few places that genuinely need it.
type Secret string

// String returns the redaction placeholder.
func (s Secret) String() string {
	return redacted
}

// MarshalJSON returns the redaction placeholder as a JSON string.
func (s Secret) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw secret value.
func (s Secret) Unmask() string {
	return string(s)
}
