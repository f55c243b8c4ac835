// Package cmd implements the uireload subcommands.
package cmd

import (
	"github.com/grovetools/uireload/cli"
	"github.com/grovetools/uireload/pkg/profiling"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the uireload command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"uireload",
		"Hot reload for natively compiled UI plugins",
	)
	root.Long = `Watches UI sources, rebuilds the plugin through the build daemon or the
build tool, and swaps the rebuilt library into the running host.

Examples:
  # Watch with the status panel
  uireload watch --tui

  # Run the build daemon in the foreground
  uireload daemon start`

	profiling.NewCobraProfiler().Attach(root)

	root.AddCommand(NewWatchCmd())
	root.AddCommand(NewBuildCmd())
	root.AddCommand(NewArtifactsCmd())
	root.AddCommand(NewDaemonCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewLogsCmd())
	root.AddCommand(cli.NewVersionCommand("uireload"))
	return root
}
