package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/switchboard"
	"github.com/aretw0/switchboard/pkg/actions"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of switchboard",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "switchboard version %s (protocol %s)\n",
			strings.TrimSpace(switchboard.Version), actions.ProtocolVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
