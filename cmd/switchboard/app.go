package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/switchboard"
	"github.com/aretw0/switchboard/internal/config"
	"github.com/aretw0/switchboard/pkg/actions"
	httpadapter "github.com/aretw0/switchboard/pkg/adapters/http"
	"github.com/aretw0/switchboard/pkg/adapters/mcp"
	"github.com/aretw0/switchboard/pkg/adapters/redis"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/kernel"
	"github.com/aretw0/switchboard/pkg/observability"
	"github.com/aretw0/switchboard/pkg/openapi"
	"github.com/aretw0/switchboard/pkg/registry"
	"github.com/aretw0/switchboard/pkg/status"
)

const appName = "switchboard"

// app is one assembled process: kernel, catalog, hub and transports.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	groups  *kernel.Static
	sampler status.Sampler
	metrics *observability.Metrics
	hub     *switchboard.Hub

	// Set when the matching transport is enabled.
	http  *httpadapter.Adapter
	mcp   *mcp.Adapter
	redis *redis.Adapter

	// configPath is re-read on reload for disabled_actions.
	configPath string
}

// stdio is where the MCP stdio transport reads and writes.
type stdio struct {
	in  io.Reader
	out io.Writer
}

func newApp(cfg config.Config, logger *slog.Logger, sampler status.Sampler, std stdio) (*app, error) {
	groups, err := loadGroups(cfg.Groups)
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		groups:  groups,
		sampler: sampler,
		metrics: observability.NewMetrics(),
	}
	hooks := a.metrics.Hooks()
	info := openapi.Info{
		Title:       appName,
		Version:     switchboard.Version,
		Description: "Actions served by switchboard.",
	}

	hub := switchboard.New(
		switchboard.WithLogger(logger),
		switchboard.WithRegistry(registry.New(
			registry.WithDuplicatePolicy(policy),
			registry.WithLogger(logger),
		)),
		switchboard.WithDisabled(cfg.Disabled),
		switchboard.WithActions(a.catalog()...),
	)

	if cfg.HTTP.Enabled {
		a.http = httpadapter.New(cfg.HTTP.Addr,
			httpadapter.WithLogger(logger),
			httpadapter.WithHooks(hooks),
			httpadapter.WithToken(cfg.HTTP.Token),
			httpadapter.WithTimeout(cfg.HTTP.Timeout),
			httpadapter.WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst),
			httpadapter.WithMetricsHandler(a.metrics.Handler()),
			httpadapter.WithInfo(info),
			httpadapter.WithStatus(status.NewSubscription(sampler,
				status.WithInterval(cfg.StatusInterval),
				status.WithLogger(logger),
			)),
		)
		hub.Attach(a.http)
	}

	if cfg.MCP.Enabled {
		a.mcp = mcp.New(appName, switchboard.Version,
			mcp.WithMode(mcp.Mode(cfg.MCP.Mode)),
			mcp.WithAddr(cfg.MCP.Addr),
			mcp.WithStdio(std.in, std.out),
			mcp.WithLogger(logger),
			mcp.WithHooks(hooks),
		)
		hub.Attach(a.mcp)
	}

	if cfg.Redis.Enabled {
		a.redis = redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithQueue(cfg.Redis.Queue),
			redis.WithWorkers(cfg.Redis.Workers),
			redis.WithReplyTTL(cfg.Redis.ReplyTTL),
			redis.WithLogger(logger),
			redis.WithHooks(hooks),
		)
		hub.Attach(a.redis)
	}

	if len(hub.Adapters()) == 0 {
		return nil, errors.New("no transport enabled")
	}
	a.hub = hub
	return a, nil
}

// catalog builds the built-in actions against the current collaborators.
func (a *app) catalog() []domain.Action {
	return actions.Catalog(actions.Deps{
		AppName:    appName,
		AppVersion: switchboard.Version,
		Groups:     a.groups,
		Status:     a.sampler,
	})
}

// reload re-reads the config file's disabled actions and the groups fixture,
// then swaps the catalog. A config or fixture that fails to load keeps the
// previous setting. Without a config file the startup settings stand.
func (a *app) reload() {
	if a.configPath != "" {
		a.reloadDisabled()
	}
	if err := a.groups.Reload(); err != nil && !errors.Is(err, kernel.ErrNoSource) {
		a.logger.Error("groups reload failed, keeping previous fixture", "error", err)
	}
	a.hub.Reload(a.catalog()...)
}

func (a *app) reloadDisabled() {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		a.logger.Error("config reload failed, keeping previous disabled actions", "error", err)
		return
	}
	a.cfg.DisabledActions = cfg.DisabledActions
	a.hub.SetDisabled(a.cfg.Disabled)
}

// loadGroups reads the groups fixture. An empty path serves no groups.
func loadGroups(path string) (*kernel.Static, error) {
	if path == "" {
		return kernel.NewStatic(), nil
	}
	groups, err := kernel.LoadStatic(path)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	return groups, nil
}

func defaultStdio() stdio {
	return stdio{in: os.Stdin, out: os.Stdout}
}
