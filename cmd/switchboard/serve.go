package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/switchboard"
	"github.com/aretw0/switchboard/internal/cli"
	"github.com/aretw0/switchboard/internal/config"
	"github.com/aretw0/switchboard/pkg/status"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the action catalog on every enabled transport",
	Long: `Starts the enabled transports (HTTP by default) and serves until SIGINT or SIGTERM.
SIGHUP re-reads disabled_actions from --config and the groups fixture, then swaps the catalog without dropping connections.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := applyServeFlags(cmd, &cfg); err != nil {
			return err
		}

		a, err := newApp(cfg, logger, status.NewHostSampler(), defaultStdio())
		if err != nil {
			return err
		}
		a.configPath, _ = cmd.Flags().GetString("config")

		if cli.IsTerminal(os.Stderr) {
			cli.PrintBanner(os.Stderr, switchboard.Version)
		}

		sc := cli.NewSignalContext(context.Background())
		defer sc.Cancel()

		if err := a.hub.Open(sc); err != nil {
			return err
		}
		if a.http != nil {
			logger.Info("serving http", "addr", a.http.Addr())
		}
		if a.redis != nil {
			logger.Info("consuming redis queue", "queue", a.redis.Queue())
		}

		a.serveUntilDone(sc)

		logger.Info("shutting down", "signal", fmt.Sprint(sc.Signal()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.hub.Close(ctx); err != nil {
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
		}
		logger.Info("stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "HTTP listen address (overrides http.addr)")
	serveCmd.Flags().String("token", "", "Bearer token required on action routes")
	serveCmd.Flags().String("mcp", "", "Enable MCP with the given mode (stdio or sse)")
	serveCmd.Flags().String("redis", "", "Enable the Redis queue consumer at this address")
	serveCmd.Flags().Bool("no-http", false, "Disable the HTTP transport")
}

// applyServeFlags lets explicit flags win over file and environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if v, _ := flags.GetString("addr"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v, _ := flags.GetString("token"); v != "" {
		cfg.HTTP.Token = v
	}
	if v, _ := flags.GetString("mcp"); v != "" {
		cfg.MCP.Enabled = true
		cfg.MCP.Mode = v
	}
	if v, _ := flags.GetString("redis"); v != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = v
	}
	if off, _ := flags.GetBool("no-http"); off {
		cfg.HTTP.Enabled = false
	}
	return cfg.Validate()
}

// serveUntilDone applies reloads until the signal context is cancelled.
func (a *app) serveUntilDone(sc *cli.SignalContext) {
	for {
		select {
		case <-sc.Reloads():
			a.logger.Info("reload requested")
			a.reload()
		case <-sc.Done():
			return
		}
	}
}
