package domain

import (
	"context"

	"github.com/aretw0/switchboard/pkg/schema"
)

// Action is a named unit of work with a declared input schema.
//
// Implementations must be safe for concurrent use: a single instance is shared
// by every transport for the lifetime of the process. Domain failures are
// returned as errors, never raised as panics.
type Action interface {
	// Name is the unique, case-sensitive identity of the action.
	Name() string

	// Schema describes the payload fields the action accepts.
	Schema() schema.Schema

	// Execute runs the action with an input that already passed Schema validation.
	Execute(ctx context.Context, input map[string]any) (any, error)
}

// Request is a single inbound invocation, independent of the transport that produced it.
type Request struct {
	Action  string // Name of the requested action
	Payload any    // Raw structured payload (usually map[string]any)

	// Transport names the adapter that produced the request (e.g. "http").
	Transport string
}

// Response carries either Result or Error, never both.
type Response struct {
	Action string
	Result any
	Error  *Error
}

// OK reports whether the response carries a result.
func (r Response) OK() bool {
	return r.Error == nil
}

// Success wraps a result exactly as returned by the action.
func Success(action string, result any) Response {
	return Response{Action: action, Result: result}
}

// Failure wraps a structured error.
func Failure(err *Error) Response {
	return Response{Action: err.Action, Error: err}
}
