package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect neurosim configuration",
		Long: `View the effective neurosim configuration.

Configuration is read from ~/.neurosim/config.yaml (or --config), then
NEUROSIM_* environment variables are applied:
  NEUROSIM_WORKERS, NEUROSIM_BUDGET, NEUROSIM_SEED, NEUROSIM_CLOCK_MODE,
  NEUROSIM_ROUND_TIMEOUT, NEUROSIM_LOG_LEVEL, NEUROSIM_ARCHIVE`,
	}
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			out := cmd.OutOrStdout()
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			_, err = out.Write(data)
			return err
		},
	}
}
