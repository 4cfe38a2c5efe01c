package main

import (
	"fmt"
	"runtime"

	"github.com/MichaelRitzert/epics-base/ca"
	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Println(version)
				return
			}
			fmt.Printf("cawire %s (commit %s, built %s)\n", version, commit, date)
			fmt.Printf("protocol:   CA %d.%d\n", ca.MajorProtocolRevision, ca.MinorProtocolRevision)
			fmt.Printf("go version: %s\n", runtime.Version())
			fmt.Printf("os/arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "print only the version number")

	return cmd
}
