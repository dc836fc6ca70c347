package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/forPelevin/shortcap/internal/config"
	"github.com/forPelevin/shortcap/internal/inbox"
	"github.com/forPelevin/shortcap/internal/pipeline"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <inbox-dir>",
		Short: "Run job files dropped into a directory",
		Long: "Watches a directory for *.toml job files. Each file is run as a batch and\n" +
			"renamed to <name>.toml.done or <name>.toml.failed afterwards.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir, _ := cmd.Flags().GetString("out")
			dir, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			runner, closeRunner, err := a.newRunner(ctx, outDir)
			if err != nil {
				return err
			}
			defer closeRunner()

			out := cmd.OutOrStdout()
			w := inbox.New(dir, func(ctx context.Context, path string) error {
				jobs, err := pipeline.LoadJobs(path)
				if err != nil {
					return err
				}
				return runJobs(ctx, runner, jobs, out)
			}, a.log)
			return w.Run(ctx)
		},
	}
	cmd.Flags().String("out", "", "Output root directory (default paths.out_dir)")
	return cmd
}
