package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/uireload/cli"
	"github.com/grovetools/uireload/logging"
	"github.com/grovetools/uireload/pkg/artifact"
	"github.com/grovetools/uireload/tui/theme"
	"github.com/spf13/cobra"
)

// NewArtifactsCmd creates the `artifacts` command group.
func NewArtifactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "List and prune built plugin artifacts",
	}
	cmd.AddCommand(newArtifactsListCmd())
	cmd.AddCommand(newArtifactsPruneCmd())
	return cmd
}

type artifactJSON struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	ModTime string `json:"mod_time"`
	Active  bool   `json:"active"`
}

func newArtifactsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List artifacts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			active, _ := cmd.Flags().GetString("active")
			list, err := newStore(cfg).List(active)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				rows := make([]artifactJSON, 0, len(list))
				for _, a := range list {
					rows = append(rows, artifactJSON{
						Name:    a.Name(),
						Path:    a.Path,
						ModTime: a.ModTime.Format("2006-01-02T15:04:05Z07:00"),
						Active:  a.Active,
					})
				}
				data, err := json.MarshalIndent(rows, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(list) == 0 {
				fmt.Fprintln(out, theme.DefaultTheme.Muted.Render("No artifacts in "+cfg.Plugin.OutputDir))
				return nil
			}
			for _, a := range list {
				fmt.Fprintln(out, formatArtifact(a))
			}
			return nil
		},
	}
	cmd.Flags().String("active", "", "Path to mark as the loaded artifact")
	return cmd
}

func formatArtifact(a artifact.Artifact) string {
	t := theme.DefaultTheme
	line := fmt.Sprintf("%s  %s", t.Muted.Render(a.ModTime.Format("2006-01-02 15:04:05")), a.Name())
	if a.Active {
		line += " " + t.Success.Render("[ACTIVE]")
	}
	return line
}

func newArtifactsPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			keep, _ := cmd.Flags().GetInt("keep")
			if keep <= 0 {
				keep = cfg.Retention.MaxArtifacts
			}
			active, _ := cmd.Flags().GetString("active")

			res, err := newStore(cfg).RetireOld(keep, active)
			if err != nil {
				return err
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			for _, a := range res.Removed {
				pretty.Info("Removed " + a.Name())
			}
			for path, ferr := range res.Failed {
				pretty.Error("Failed to remove "+path, ferr)
			}
			pretty.Success(fmt.Sprintf("Kept %d, removed %d", len(res.Kept), len(res.Removed)))
			return nil
		},
	}
	cmd.Flags().Int("keep", 0, "Artifacts to keep (default: retention.max_artifacts)")
	cmd.Flags().String("active", "", "Artifact that must never be removed")
	return cmd
}
