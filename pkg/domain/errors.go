package domain

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates the failure classes a caller can observe.
// The set is fixed; transports map each kind to their own wire signal.
type ErrorKind string

const (
	KindMalformedRequest           ErrorKind = "MalformedRequest"
	KindActionNotFound             ErrorKind = "ActionNotFound"
	KindInvalidPayload             ErrorKind = "InvalidPayload"
	KindActionExecutionFailed      ErrorKind = "ActionExecutionFailed"
	KindTransportUnavailable       ErrorKind = "TransportUnavailable"
	KindInternalSerializationFault ErrorKind = "InternalSerializationFault"
)

// Error is the structured error rendered by every transport.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Action  string    `json:"action,omitempty"`
	Field   string    `json:"field,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Action, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// MalformedRequest reports that no action name could be extracted.
func MalformedRequest(reason string) *Error {
	return &Error{Kind: KindMalformedRequest, Message: reason}
}

// ActionNotFound reports an action name missing from the registry.
func ActionNotFound(name string) *Error {
	return &Error{
		Kind:    KindActionNotFound,
		Message: fmt.Sprintf("action not found: %s", name),
		Action:  name,
	}
}

// InvalidPayload wraps the first schema validation failure.
func InvalidPayload(action, field string, cause error) *Error {
	return &Error{
		Kind:    KindInvalidPayload,
		Message: cause.Error(),
		Action:  action,
		Field:   field,
		cause:   cause,
	}
}

// ExecutionFailed re-tags a domain error, keeping its message unmodified.
func ExecutionFailed(action string, cause error) *Error {
	return &Error{
		Kind:    KindActionExecutionFailed,
		Message: cause.Error(),
		Action:  action,
		cause:   cause,
	}
}

// TransportUnavailable is answered while an adapter is not open.
func TransportUnavailable() *Error {
	return &Error{Kind: KindTransportUnavailable, Message: "transport is not open"}
}

// SerializationFault reports a response that could not be encoded.
func SerializationFault(cause error) *Error {
	return &Error{
		Kind:    KindInternalSerializationFault,
		Message: "response could not be encoded",
		cause:   cause,
	}
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
