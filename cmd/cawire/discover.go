package main

import (
	"fmt"

	"github.com/MichaelRitzert/epics-base/ca"
	"github.com/spf13/cobra"
)

func discoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "List the search destinations the current configuration yields",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dests, err := cfg.SearchDestinations()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "local address: %s\n", ca.LocalAddr())
			for _, d := range dests {
				fmt.Fprintln(out, d)
			}
			return nil
		},
	}
}
