// Package http exposes the action catalog over plain HTTP.
//
// The action name is the first path segment (POST /get_group_info) and the
// payload is the JSON body, a form body, or the query string for GET
// requests. Paths starting with "_" are reserved for operational endpoints.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/internal/ratelimit"
	"github.com/aretw0/switchboard/pkg/dispatch"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/openapi"
	"github.com/aretw0/switchboard/pkg/registry"
	"github.com/aretw0/switchboard/pkg/status"
	"github.com/aretw0/switchboard/pkg/transport"
)

// Name identifies this transport in logs, metrics and dispatch requests.
const Name = "http"

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Adapter is the passive HTTP transport.
type Adapter struct {
	addr       string
	token      string
	timeout    time.Duration
	maxBody    int64
	limiter    *ratelimit.Limiter
	metrics    http.Handler
	status     *status.Subscription
	info       openapi.Info
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	dispatcher *dispatch.Dispatcher
	lc         *transport.Lifecycle
	reg        atomic.Pointer[registry.Registry]
	router     http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	served   chan struct{}
	closing  chan struct{}
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithLogger configures the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithHooks registers dispatch hooks, e.g. metrics.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Adapter) {
		a.hooks = a.hooks.Merge(hooks)
	}
}

// WithToken requires callers to present token as a Bearer header or an
// access_token query parameter. An empty token disables the check.
func WithToken(token string) Option {
	return func(a *Adapter) {
		a.token = token
	}
}

// WithTimeout bounds each action invocation.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		a.timeout = d
	}
}

// WithRateLimit throttles each client address to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(a *Adapter) {
		a.limiter = ratelimit.New(rps, burst, 0)
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxBody = n
		}
	}
}

// WithMetricsHandler serves h on /_metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *Adapter) {
		a.metrics = h
	}
}

// WithStatus streams system status on /_status/stream.
func WithStatus(sub *status.Subscription) Option {
	return func(a *Adapter) {
		a.status = sub
	}
}

// WithInfo sets the header of the /_openapi.json document.
func WithInfo(info openapi.Info) Option {
	return func(a *Adapter) {
		a.info = info
	}
}

// New creates an Idle adapter that will listen on addr once opened.
func New(addr string, opts ...Option) *Adapter {
	a := &Adapter{
		addr:    addr,
		maxBody: DefaultMaxBodyBytes,
		logger:  logging.NewNop(),
		info:    openapi.Info{Title: "switchboard", Version: "dev"},
		closing: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.lc = transport.NewLifecycle(Name, a.logger)
	a.dispatcher = dispatch.New(nil,
		dispatch.WithHooks(a.hooks),
		dispatch.WithLogger(a.logger),
	)
	a.router = a.routes()
	return a
}

// Name implements transport.Adapter.
func (a *Adapter) Name() string { return Name }

// State implements transport.Adapter.
func (a *Adapter) State() transport.State { return a.lc.State() }

// RegisterActionMap implements transport.Adapter.
func (a *Adapter) RegisterActionMap(reg *registry.Registry) {
	a.reg.Store(reg)
	if reg == nil {
		a.dispatcher.Use(nil)
		return
	}
	a.dispatcher.Use(reg)
}

// Handler returns the router. It answers 503 until the adapter is open, so
// it can be mounted on an external server or driven by httptest.
func (a *Adapter) Handler() http.Handler {
	return a.router
}

// Addr returns the bound listener address, or the configured one before Open.
func (a *Adapter) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.addr
}

// Open binds the listener and starts serving.
func (a *Adapter) Open(ctx context.Context) error {
	return a.lc.Open(func() error {
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", a.addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", a.addr, err)
		}

		srv := &http.Server{
			Handler:           a.router,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          slog.NewLogLogger(a.logger.Handler(), slog.LevelWarn),
		}
		served := make(chan struct{})

		a.mu.Lock()
		a.server, a.listener, a.served = srv, ln, served
		a.mu.Unlock()

		go func() {
			defer close(served)
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server stopped", "error", err)
			}
		}()

		a.logger.Info("http transport listening", "addr", ln.Addr().String())
		return nil
	})
}

// Close stops accepting requests and waits for in-flight ones until ctx expires.
func (a *Adapter) Close(ctx context.Context) error {
	return a.lc.Close(func() error {
		a.mu.Lock()
		srv, served := a.server, a.served
		a.mu.Unlock()
		close(a.closing)
		if srv == nil {
			return nil
		}

		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Warn("graceful shutdown did not complete", "error", err)
			if cerr := srv.Close(); cerr != nil {
				return errors.Join(err, cerr)
			}
			return err
		}
		<-served
		return nil
	})
}

var _ transport.Adapter = (*Adapter)(nil)
