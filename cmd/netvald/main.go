// Netvald - NetVal pre-deployment validation service
//
// A local daemon for validating enterprise campus network designs before
// hardware deployment:
//   - Topology store (projects, devices, links, config snapshots)
//   - Deterministic validation engine over the assembled topology graph
//   - CLI generation and SSH-based ingest/push with confirm gating
//   - REST + WebSocket API for the desktop UI on a loopback port
//
// Running netvald with no subcommand starts the server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netval-app/netval/pkg/settings"
	"github.com/netval-app/netval/pkg/util"
	"github.com/netval-app/netval/pkg/version"
)

var (
	configPath string
	verbose    bool
	jsonLogs   bool

	cfg *settings.Settings
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "netvald",
	Short:         "NetVal pre-deployment validation service",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `Netvald validates campus network designs before deployment.

It serves the NetVal desktop UI over a loopback REST/WebSocket API,
stores topology in a single embedded database file, and talks to lab
devices over SSH for config ingest and remediation pushes.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isVersionOrHelp(cmd) {
			return nil
		}
		var err error
		if configPath != "" {
			cfg, err = settings.LoadFrom(configPath)
		} else {
			cfg, err = settings.Load()
		}
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		if verbose {
			cfg.LogLevel = "debug"
		}
		if err := util.SetLogLevel(cfg.LogLevel); err != nil {
			return fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
		}
		if jsonLogs {
			util.SetJSONFormat()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default ~/.netval/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "JSON log format")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(credsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("netvald dev build (use 'make build' for version info)")
		} else {
			fmt.Printf("netvald %s\n", version.Info())
		}
	},
}

// isVersionOrHelp checks whether cmd (or any ancestor) is a help or
// version command.
func isVersionOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version":
			return true
		}
	}
	return false
}
