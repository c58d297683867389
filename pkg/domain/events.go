package domain

import (
	"context"
	"time"
)

// Outcome labels the end of a dispatch: "ok" or the error kind.
type Outcome string

const OutcomeOK Outcome = "ok"

// DispatchEvent describes one pass through the dispatch protocol.
type DispatchEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	Transport string        `json:"transport,omitempty"`
	Outcome   Outcome       `json:"outcome,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Error     *Error        `json:"error,omitempty"`
}

// LifecycleHooks defines callbacks for dispatch observability.
// Hooks run synchronously on the request goroutine and must not block.
type LifecycleHooks struct {
	OnDispatch func(context.Context, *DispatchEvent)
	OnComplete func(context.Context, *DispatchEvent)
}

// Merge returns hooks that call h and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnDispatch: chain(h.OnDispatch, other.OnDispatch),
		OnComplete: chain(h.OnComplete, other.OnComplete),
	}
}

func chain(a, b func(context.Context, *DispatchEvent)) func(context.Context, *DispatchEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *DispatchEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
