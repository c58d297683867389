package transport

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aretw0/switchboard/internal/logging"
)

// State is a position in the adapter lifecycle.
type State int32

const (
	Idle State = iota
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Lifecycle is the Idle -> Open -> Closed state machine embedded by adapters.
//
// Transitions are serialized by a mutex, so a concurrent Close waits for an
// in-progress Open to finish. State reads are atomic and never block, which
// matters because Close may wait on in-flight requests that read the state.
type Lifecycle struct {
	mu     sync.Mutex
	state  atomic.Int32
	name   string
	logger *slog.Logger
}

// NewLifecycle returns an Idle lifecycle for the named adapter.
func NewLifecycle(name string, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Lifecycle{name: name, logger: logger}
}

// State reports the current state.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// IsOpen reports whether requests may be dispatched.
func (l *Lifecycle) IsOpen() bool {
	return l.State() == Open
}

// Open runs start and moves Idle -> Open.
// Already Open is a no-op. Closed is rejected with ErrClosed and logged.
// If start fails the adapter stays Idle.
func (l *Lifecycle) Open(start func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.State() {
	case Open:
		return nil
	case Closed:
		l.logger.Error("cannot open a closed adapter", "transport", l.name)
		return fmt.Errorf("%s: %w", l.name, ErrClosed)
	}

	if start != nil {
		if err := start(); err != nil {
			return fmt.Errorf("%s: open: %w", l.name, err)
		}
	}
	l.state.Store(int32(Open))
	l.logger.Info("transport open", "transport", l.name)
	return nil
}

// Close moves Idle or Open -> Closed, running stop only when leaving Open.
// The state flips before stop runs, so requests arriving during shutdown are
// answered as unavailable. Closing a Closed adapter is a no-op, and the
// adapter is Closed even if stop fails.
func (l *Lifecycle) Close(stop func() error) error {
	l.mu.Lock()
	prev := l.State()
	if prev == Closed {
		l.mu.Unlock()
		return nil
	}
	l.state.Store(int32(Closed))
	l.mu.Unlock()

	wasOpen := prev == Open

	if wasOpen && stop != nil {
		if err := stop(); err != nil {
			l.logger.Error("transport close failed", "transport", l.name, "error", err)
			return fmt.Errorf("%s: close: %w", l.name, err)
		}
	}
	l.logger.Info("transport closed", "transport", l.name)
	return nil
}
