package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/aretw0/switchboard"
	"github.com/aretw0/switchboard/internal/cli"
	"github.com/aretw0/switchboard/internal/config"
	"github.com/aretw0/switchboard/pkg/actions"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/openapi"
	"github.com/aretw0/switchboard/pkg/status"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the actions the server would expose",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		catalog, err := enabledCatalog(cfg)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		return cli.RenderCatalog(out, catalog, cli.IsTerminal(out))
	},
}

var openapiCmd = &cobra.Command{
	Use:   "openapi",
	Short: "Print the OpenAPI document describing the HTTP action routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		catalog, err := enabledCatalog(cfg)
		if err != nil {
			return err
		}
		doc := openapi.Build(openapi.Info{Title: appName, Version: switchboard.Version}, catalog)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

func init() {
	rootCmd.AddCommand(actionsCmd)
	rootCmd.AddCommand(openapiCmd)
}

// enabledCatalog returns the built-in catalog minus the disabled actions,
// without opening any transport.
func enabledCatalog(cfg config.Config) ([]domain.Action, error) {
	groups, err := loadGroups(cfg.Groups)
	if err != nil {
		return nil, err
	}

	all := actions.Catalog(actions.Deps{
		AppName:    appName,
		AppVersion: switchboard.Version,
		Groups:     groups,
		Status:     status.NewHostSampler(),
	})
	enabled := make([]domain.Action, 0, len(all))
	for _, a := range all {
		if !cfg.Disabled(a.Name()) {
			enabled = append(enabled, a)
		}
	}
	return enabled, nil
}
