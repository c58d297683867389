// Package transport defines the adapter contract shared by every wire protocol
// and the Idle -> Open -> Closed lifecycle each adapter embeds.
//
// Action name resolution is documented identically across variants: the name
// sits at a well-known position of the inbound message (the first path segment
// for HTTP, the tool name for MCP, the "action" field for queue messages) and
// the payload is the remaining structured body.
package transport

import (
	"context"
	"errors"

	"github.com/aretw0/switchboard/pkg/registry"
)

var (
	// ErrClosed is returned when Open is called on a Closed adapter.
	ErrClosed = errors.New("transport: adapter is closed")
)

// Adapter is a transport boundary translating a wire protocol into dispatch requests.
type Adapter interface {
	// Name identifies the transport variant (e.g. "http", "mcp", "redis").
	Name() string

	// Open allocates transport resources and starts accepting requests.
	// Opening a Closed adapter fails with ErrClosed and leaves it Closed.
	Open(ctx context.Context) error

	// Close releases resources. It is idempotent.
	Close(ctx context.Context) error

	// State reports the current lifecycle state.
	State() State

	// RegisterActionMap swaps the registry used for subsequent requests.
	RegisterActionMap(reg *registry.Registry)
}
