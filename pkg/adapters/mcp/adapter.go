// Package mcp exposes the action catalog as Model Context Protocol tools.
//
// Every registered action becomes a tool of the same name; the tool
// arguments are the action payload and the input schema is derived from the
// action schema. Failures are returned as tool-error results carrying the
// {"kind","message"} error object.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/pkg/dispatch"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/openapi"
	"github.com/aretw0/switchboard/pkg/registry"
	"github.com/aretw0/switchboard/pkg/transport"
)

// Name identifies this transport in logs, metrics and dispatch requests.
const Name = "mcp"

// Mode selects the MCP wire.
type Mode string

const (
	ModeStdio Mode = "stdio"
	ModeSSE   Mode = "sse"
)

// Adapter is the MCP transport.
type Adapter struct {
	mode       Mode
	addr       string
	in         io.Reader
	out        io.Writer
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	lc         *transport.Lifecycle
	dispatcher *dispatch.Dispatcher
	reg        atomic.Pointer[registry.Registry]
	mcpServer  *server.MCPServer

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	httpServer *http.Server
	listener   net.Listener
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithMode selects stdio (default) or sse.
func WithMode(mode Mode) Option {
	return func(a *Adapter) {
		a.mode = mode
	}
}

// WithAddr sets the SSE listen address.
func WithAddr(addr string) Option {
	return func(a *Adapter) {
		a.addr = addr
	}
}

// WithStdio replaces os.Stdin/os.Stdout in stdio mode.
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(a *Adapter) {
		a.in, a.out = in, out
	}
}

// WithLogger configures the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithHooks registers dispatch hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Adapter) {
		a.hooks = a.hooks.Merge(hooks)
	}
}

// New creates an Idle adapter announcing itself as name/version.
func New(name, version string, opts ...Option) *Adapter {
	a := &Adapter{
		mode:   ModeStdio,
		addr:   "127.0.0.1:8081",
		in:     os.Stdin,
		out:    os.Stdout,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.lc = transport.NewLifecycle(Name, a.logger)
	a.dispatcher = dispatch.New(nil,
		dispatch.WithHooks(a.hooks),
		dispatch.WithLogger(a.logger),
	)
	hooks := &server.Hooks{}
	hooks.AddOnError(a.onError)
	a.mcpServer = server.NewMCPServer(name, version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(hooks),
	)
	return a
}

// Name implements transport.Adapter.
func (a *Adapter) Name() string { return Name }

// State implements transport.Adapter.
func (a *Adapter) State() transport.State { return a.lc.State() }

// MCPServer exposes the underlying server, e.g. to mount it elsewhere.
func (a *Adapter) MCPServer() *server.MCPServer { return a.mcpServer }

// RegisterActionMap implements transport.Adapter and republishes the tools.
func (a *Adapter) RegisterActionMap(reg *registry.Registry) {
	a.reg.Store(reg)
	if reg == nil {
		a.dispatcher.Use(nil)
	} else {
		a.dispatcher.Use(reg)
	}
	a.SyncTools()
}

// SyncTools publishes one tool per action currently in the registry. Call it
// after a BulkReplace on the registered map.
func (a *Adapter) SyncTools() {
	reg := a.reg.Load()
	if reg == nil {
		a.mcpServer.SetTools()
		return
	}

	snapshot := reg.Snapshot()
	tools := make([]server.ServerTool, 0, len(snapshot))
	for _, name := range reg.Names() {
		action, ok := snapshot[name]
		if !ok {
			continue
		}
		tool, err := toolFor(action)
		if err != nil {
			a.logger.Error("skipping tool", "action", name, "error", err)
			continue
		}
		tools = append(tools, server.ServerTool{Tool: tool, Handler: a.callTool})
	}
	a.mcpServer.SetTools(tools...)
	a.logger.Debug("mcp tools synced", "count", len(tools))
}

func toolFor(action domain.Action) (mcp.Tool, error) {
	raw, err := json.Marshal(openapi.PayloadSchema(action.Schema()))
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("encode input schema: %w", err)
	}
	return mcp.NewToolWithRawSchema(action.Name(), fmt.Sprintf("Invoke the %s action", action.Name()), raw), nil
}

// callTool dispatches one tool call.
func (a *Adapter) callTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !a.lc.IsOpen() {
		return errorResult(domain.TransportUnavailable()), nil
	}

	var payload any
	if args := request.GetArguments(); args != nil {
		payload = args
	}

	resp := a.dispatcher.Dispatch(ctx, domain.Request{
		Action:    request.Params.Name,
		Payload:   payload,
		Transport: Name,
	})
	if resp.Error != nil {
		return errorResult(resp.Error), nil
	}

	data, err := encodeResult(resp.Result)
	if err != nil {
		a.logger.Error("tool result encode failed", "action", request.Params.Name, "error", err)
		return errorResult(domain.SerializationFault(err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// onError sees tools/call requests mcp-go rejects before any handler runs.
// An unknown tool is answered on the wire with JSON-RPC INVALID_PARAMS
// (-32602); it is recorded as ActionNotFound so hooks and metrics see it.
func (a *Adapter) onError(ctx context.Context, _ any, method mcp.MCPMethod, message any, err error) {
	if method != mcp.MethodToolsCall || !errors.Is(err, server.ErrToolNotFound) {
		return
	}
	req, ok := message.(*mcp.CallToolRequest)
	if !ok || req == nil {
		return
	}
	rejection := domain.ActionNotFound(req.Params.Name)
	if strings.TrimSpace(req.Params.Name) == "" {
		rejection = domain.MalformedRequest("missing tool name")
	}
	a.dispatcher.Reject(ctx, domain.Request{Action: req.Params.Name, Transport: Name}, rejection)
}

// encodeResult marshals a tool result, turning a panicking MarshalJSON into an error.
func encodeResult(v any) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("encode panicked: %v", r)
		}
	}()
	return json.Marshal(v)
}

func errorResult(e *domain.Error) *mcp.CallToolResult {
	data, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(e.Error())
	}
	return mcp.NewToolResultError(string(data))
}

// Addr returns the SSE listener address once open, or the configured one.
func (a *Adapter) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.addr
}

// Open starts serving on the configured mode.
func (a *Adapter) Open(ctx context.Context) error {
	return a.lc.Open(func() error {
		switch a.mode {
		case ModeStdio, "":
			return a.openStdio()
		case ModeSSE:
			return a.openSSE(ctx)
		default:
			return fmt.Errorf("unknown mcp mode %q", a.mode)
		}
	})
}

func (a *Adapter) openStdio() error {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	stdio := server.NewStdioServer(a.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(a.logger.Handler(), slog.LevelError))

	a.mu.Lock()
	a.cancel, a.done = cancel, done
	a.mu.Unlock()

	go func() {
		defer close(done)
		if err := stdio.Listen(ctx, a.in, a.out); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("mcp stdio server stopped", "error", err)
		}
	}()
	a.logger.Info("mcp transport serving on stdio")
	return nil
}

func (a *Adapter) openSSE(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.addr, err)
	}
	baseURL := "http://" + ln.Addr().String()

	sse := server.NewSSEServer(a.mcpServer, server.WithBaseURL(baseURL))
	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sse.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sse.MessageHandler()))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(a.logger.Handler(), slog.LevelWarn),
	}
	done := make(chan struct{})

	a.mu.Lock()
	a.httpServer, a.listener, a.done = srv, ln, done
	a.mu.Unlock()

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("mcp sse server stopped", "error", err)
		}
	}()
	a.logger.Info("mcp transport listening (SSE)", "address", baseURL)
	return nil
}

// Close stops the server. In SSE mode open streams are cut once ctx expires.
func (a *Adapter) Close(ctx context.Context) error {
	return a.lc.Close(func() error {
		a.mu.Lock()
		cancel, done, srv := a.cancel, a.done, a.httpServer
		a.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		var err error
		if srv != nil {
			if err = srv.Shutdown(ctx); err != nil {
				a.logger.Warn("graceful shutdown did not complete", "error", err)
				err = errors.Join(err, srv.Close())
			}
		}
		if done != nil {
			select {
			case <-done:
			case <-ctx.Done():
				err = errors.Join(err, ctx.Err())
			}
		}
		return err
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

var _ transport.Adapter = (*Adapter)(nil)
