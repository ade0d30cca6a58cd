package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inferloop/anonsearch/cmd/cli/config"
)

func NewConfigCmd(load RuntimeLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the CLI configuration file",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd(load))

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Long: `Write the built-in defaults as YAML to the file named by --config, or to
$HOME/.anonsearch/config.yaml. Durations are stored in nanoseconds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The file may not exist yet, so the runtime is not loaded here.
			path := cmd.Flag("config").Value.String()
			if path == "" {
				path = config.GetDefaultConfigPath()
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}

			if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func newConfigShowCmd(load RuntimeLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := load()
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(rt.Config)
		},
	}
}
