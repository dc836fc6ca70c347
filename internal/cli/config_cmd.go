package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forPelevin/shortcap/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "sample",
			Short: "Print an annotated default config file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprint(cmd.OutOrStdout(), config.SampleConfig())
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show which config file is in effect",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path, _ := cmd.Flags().GetString("config")
				_, resolved, exists, err := config.Load(path)
				if err != nil {
					return err
				}
				state := "not found, using defaults"
				if exists {
					state = "loaded"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", resolved, state)
				return nil
			},
		},
	)
	return cmd
}
