package schema

import "fmt"

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Key    string // Field name, empty when the payload itself is rejected
	Reason string // Human-readable reason for failure
	Value  any    // The value that failed validation
}

func (e *ValidationError) Error() string {
	if e.Key == "" {
		return e.Reason
	}
	return fmt.Sprintf("field %q: %s", e.Key, e.Reason)
}
