package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/schema"
)

// Catalog resolves action names. *registry.Registry satisfies it.
type Catalog interface {
	Lookup(name string) (domain.Action, bool)
}

// Dispatcher runs requests through lookup, validation and execution.
// It is safe for concurrent use; the only shared state is the catalog pointer.
type Dispatcher struct {
	catalog atomic.Pointer[catalogRef]
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
}

type catalogRef struct{ Catalog }

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithHooks registers observability hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Dispatcher) {
		d.hooks = d.hooks.Merge(hooks)
	}
}

// WithLogger configures the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a Dispatcher reading from catalog.
func New(catalog Catalog, opts ...Option) *Dispatcher {
	d := &Dispatcher{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	d.Use(catalog)
	return d
}

// Use swaps the catalog consulted by subsequent dispatches.
func (d *Dispatcher) Use(catalog Catalog) {
	if catalog == nil {
		d.catalog.Store(nil)
		return
	}
	d.catalog.Store(&catalogRef{catalog})
}

// Dispatch processes one request and always returns a Response.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.Request) domain.Response {
	return d.observe(ctx, req, func() domain.Response { return d.dispatch(ctx, req) })
}

// Reject records a request the transport refused before dispatch, so hooks
// see it like any other failure. The catalog is not consulted.
func (d *Dispatcher) Reject(ctx context.Context, req domain.Request, e *domain.Error) domain.Response {
	return d.observe(ctx, req, func() domain.Response { return domain.Failure(e) })
}

func (d *Dispatcher) observe(ctx context.Context, req domain.Request, run func() domain.Response) domain.Response {
	start := time.Now()
	event := &domain.DispatchEvent{
		Timestamp: start,
		Action:    req.Action,
		Transport: req.Transport,
	}
	if d.hooks.OnDispatch != nil {
		d.hooks.OnDispatch(ctx, event)
	}

	resp := run()

	event.Duration = time.Since(start)
	event.Outcome = domain.OutcomeOK
	if resp.Error != nil {
		event.Outcome = domain.Outcome(resp.Error.Kind)
		event.Error = resp.Error
		d.logger.Warn("dispatch failed",
			"action", req.Action,
			"transport", req.Transport,
			"kind", resp.Error.Kind,
			"error", resp.Error.Message,
		)
	} else {
		d.logger.Debug("dispatch ok", "action", req.Action, "transport", req.Transport, "duration", event.Duration)
	}
	if d.hooks.OnComplete != nil {
		d.hooks.OnComplete(ctx, event)
	}
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, req domain.Request) domain.Response {
	if strings.TrimSpace(req.Action) == "" {
		return domain.Failure(domain.MalformedRequest("missing action name"))
	}

	ref := d.catalog.Load()
	if ref == nil {
		return domain.Failure(domain.ActionNotFound(req.Action))
	}
	action, ok := ref.Lookup(req.Action)
	if !ok {
		return domain.Failure(domain.ActionNotFound(req.Action))
	}

	input, err := schema.Validate(action.Schema(), req.Payload)
	if err != nil {
		var field string
		var vErr *schema.ValidationError
		if errors.As(err, &vErr) {
			field = vErr.Key
		}
		return domain.Failure(domain.InvalidPayload(req.Action, field, err))
	}

	if err := ctx.Err(); err != nil {
		return domain.Failure(domain.ExecutionFailed(req.Action, err))
	}

	result, err := d.execute(ctx, action, input)
	if err != nil {
		// Input decoding inside typed actions is still validation.
		if de, ok := domain.AsError(err); ok && de.Kind == domain.KindInvalidPayload {
			if de.Action == "" {
				tagged := *de
				tagged.Action = req.Action
				de = &tagged
			}
			return domain.Failure(de)
		}
		return domain.Failure(domain.ExecutionFailed(req.Action, err))
	}
	return domain.Success(req.Action, result)
}

func (d *Dispatcher) execute(ctx context.Context, action domain.Action, input map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("action panicked",
				"action", action.Name(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			result = nil
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return action.Execute(ctx, input)
}
