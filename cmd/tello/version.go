package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-tello/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "tello %s (commit %s, built %s, %s %s/%s)\n",
				info.Version, info.GitCommit, info.BuildTime, info.GoVersion, info.OS, info.Arch)
		},
	}
}
