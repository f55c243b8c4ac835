package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/uireload/cli"
	"github.com/grovetools/uireload/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd creates the `config` command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSchemaCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration with defaults applied",
		Long: `Shows the configuration watch would use: the global file, overridden by
the nearest uireload.yml, with defaults filled in and paths resolved.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			if cli.GetOptions(cmd).JSONOutput {
				format = "json"
			}

			var data []byte
			switch format {
			case "yaml":
				data, err = yaml.Marshal(cfg)
			case "toml":
				data, err = toml.Marshal(cfg)
			case "json":
				data, err = configJSON(cfg)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cfg.Path != "" && format != "json" {
				fmt.Fprintf(out, "# Source: %s\n", cfg.Path)
			}
			fmt.Fprint(out, string(data))
			if format == "json" {
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "yaml", "Output format: yaml, toml, json")
	return cmd
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of uireload.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

// configJSON renders cfg with its YAML key names.
func configJSON(cfg *config.Config) ([]byte, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return json.MarshalIndent(m, "", "  ")
}
