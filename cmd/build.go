package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/grovetools/uireload/cli"
	"github.com/grovetools/uireload/errors"
	"github.com/grovetools/uireload/logging"
	"github.com/grovetools/uireload/pkg/profiling"
	"github.com/spf13/cobra"
)

// NewBuildCmd creates the `build` command.
func NewBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build one plugin artifact without loading it",
		Long: `Runs a single dynamic build the same way watch does: through the build
daemon when it answers, otherwise through the build tool.

Examples:
  uireload build
  uireload build --stem stratum-ui_manual`,
		RunE: runBuild,
	}
	cmd.Flags().String("stem", "", "Output name (default: a fresh timestamped stem)")
	cmd.Flags().BoolP("quiet", "q", false, "Do not echo the build tool's output")
	return cmd
}

func runBuild(cmd *cobra.Command, _ []string) error {
	span, _ := profiling.Start(cmd.Context(), "load config")
	cfg, err := cli.LoadConfig(cmd)
	span.Stop()
	if err != nil {
		return err
	}
	store := newStore(cfg)
	stem, _ := cmd.Flags().GetString("stem")
	if stem == "" {
		stem = store.NewStem(time.Now())
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		ctx = logging.WithBuildOutput(ctx, cmd.ErrOrStderr())
	}

	pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
	start := time.Now()
	strategy, err := newOrchestrator(cfg).RunBuild(ctx, stem)
	if err != nil {
		return err
	}

	path := store.PathFor(stem)
	span, _ = profiling.Start(ctx, "verify artifact")
	_, err = os.Stat(path)
	span.Stop()
	if err != nil {
		return errors.ArtifactMissing(path).WithDetail("strategy", string(strategy))
	}
	pretty.Success(fmt.Sprintf("Built %s via %s in %s", stem, strategy, time.Since(start).Round(time.Millisecond)))
	pretty.Path("Artifact", path)
	return nil
}
