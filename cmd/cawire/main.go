package main

import (
	"fmt"
	"os"

	"github.com/MichaelRitzert/epics-base/ca"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "cawire",
		Short: "Channel Access client wire diagnostics",
		Long: `cawire assembles Channel Access client requests the way a live client
would, then shows the exact bytes or puts them on the wire.

Useful for checking what a put, search or subscription looks like
against a protocol trace, and for poking at servers and gateways.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "TOML config file (defaults plus EPICS_CA_* environment otherwise)")

	rootCmd.AddCommand(
		putCmd(),
		getCmd(),
		monitorCmd(),
		searchCmd(),
		discoverCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration: the TOML file when given,
// otherwise defaults overlaid with the EPICS_CA_* environment.
func loadConfig() (ca.Config, error) {
	if cfgFile != "" {
		return ca.LoadConfig(cfgFile)
	}
	cfg := ca.DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
