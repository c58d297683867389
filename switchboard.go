package switchboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/registry"
	"github.com/aretw0/switchboard/pkg/transport"
)

// Version is the release of the switchboard binary. It is overridden at link
// time with -ldflags "-X github.com/aretw0/switchboard.Version=...".
var Version = "0.1.0"

// Hub owns one action registry and the transport adapters serving it.
// Every attached adapter dispatches against the same registry, so a Reload
// is visible on all transports at once.
type Hub struct {
	reg      *registry.Registry
	logger   *slog.Logger
	mu       sync.Mutex
	adapters []transport.Adapter
	initial  []domain.Action
	filter   func(name string) bool
}

// Option defines a functional option for configuring the Hub.
type Option func(*Hub)

// WithLogger sets a custom structured logger for the hub.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithRegistry injects an existing registry instead of creating an empty one.
func WithRegistry(reg *registry.Registry) Option {
	return func(h *Hub) {
		h.reg = reg
	}
}

// WithActions registers the initial catalog.
func WithActions(actions ...domain.Action) Option {
	return func(h *Hub) {
		h.initial = append(h.initial, actions...)
	}
}

// WithAdapters attaches transports at construction time.
func WithAdapters(adapters ...transport.Adapter) Option {
	return func(h *Hub) {
		h.adapters = append(h.adapters, adapters...)
	}
}

// WithDisabled drops actions for which disabled returns true, both from the
// initial catalog and from every Reload.
func WithDisabled(disabled func(name string) bool) Option {
	return func(h *Hub) {
		h.filter = disabled
	}
}

// New creates a Hub. Options are applied in order.
func New(opts ...Option) *Hub {
	h := &Hub{}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logging.NewNop()
	}
	if h.reg == nil {
		h.reg = registry.New(registry.WithLogger(h.logger))
	}
	for _, a := range h.initial {
		if h.filter == nil || !h.filter(a.Name()) {
			h.reg.Register(a)
		}
	}
	h.initial = nil
	for _, a := range h.adapters {
		a.RegisterActionMap(h.reg)
	}
	return h
}

// Registry returns the shared action registry.
func (h *Hub) Registry() *registry.Registry { return h.reg }

// Attach binds an adapter to the hub registry. It does not open it.
func (h *Hub) Attach(a transport.Adapter) {
	a.RegisterActionMap(h.reg)

	h.mu.Lock()
	h.adapters = append(h.adapters, a)
	h.mu.Unlock()
}

// Adapters returns the attached adapters in attach order.
func (h *Hub) Adapters() []transport.Adapter {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]transport.Adapter, len(h.adapters))
	copy(out, h.adapters)
	return out
}

// Open opens every attached adapter in order. If one fails, the adapters
// already opened are closed again and the error is returned.
func (h *Hub) Open(ctx context.Context) error {
	adapters := h.Adapters()
	for i, a := range adapters {
		if err := a.Open(ctx); err != nil {
			rollback := closeAll(ctx, adapters[:i])
			return errors.Join(fmt.Errorf("open %s: %w", a.Name(), err), rollback)
		}
	}
	return nil
}

// Close closes every attached adapter in reverse order and joins the errors.
func (h *Hub) Close(ctx context.Context) error {
	err := closeAll(ctx, h.Adapters())
	if err != nil {
		h.logger.Error("close transports", "error", err)
	}
	return err
}

func closeAll(ctx context.Context, adapters []transport.Adapter) error {
	var errs []error
	for i := len(adapters) - 1; i >= 0; i-- {
		if err := adapters[i].Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", adapters[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

// toolSyncer is implemented by adapters that advertise the catalog to clients.
type toolSyncer interface {
	SyncTools()
}

// SetDisabled replaces the disabled filter used by later Reloads. It does
// not touch the current catalog.
func (h *Hub) SetDisabled(disabled func(name string) bool) {
	h.mu.Lock()
	h.filter = disabled
	h.mu.Unlock()
}

// Reload atomically replaces the catalog and re-advertises it on adapters
// that publish a tool list.
func (h *Hub) Reload(actions ...domain.Action) {
	h.reg.BulkReplace(h.filtered(registry.FromActions(actions...)))
	for _, a := range h.Adapters() {
		if s, ok := a.(toolSyncer); ok {
			s.SyncTools()
		}
	}
	h.logger.Info("catalog reloaded", "actions", h.reg.Len())
}

func (h *Hub) filtered(actions map[string]domain.Action) map[string]domain.Action {
	h.mu.Lock()
	filter := h.filter
	h.mu.Unlock()
	if filter == nil {
		return actions
	}
	for name := range actions {
		if filter(name) {
			delete(actions, name)
		}
	}
	return actions
}
