package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forPelevin/shortcap/internal/failure"
	"github.com/forPelevin/shortcap/internal/pipeline"
	"github.com/forPelevin/shortcap/internal/types"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Fetch, trim, transcribe and caption one clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd, args[0])
		},
	}
	cmd.Flags().String("start", "", "Clip start (HH:MM:SS[.fff], MM:SS or seconds)")
	cmd.Flags().String("end", "", "Clip end (HH:MM:SS[.fff], MM:SS or seconds)")
	cmd.Flags().String("model", "", "Transcription model tier or model file (default engines.default_model)")
	cmd.Flags().String("out", "", "Output root directory (default paths.out_dir)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func runOne(cmd *cobra.Command, locator string) error {
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	model, _ := cmd.Flags().GetString("model")
	outDir, _ := cmd.Flags().GetString("out")

	// Bad arguments fail before any config, history or engine is touched.
	r, err := types.ParseRange(start, end)
	if err != nil {
		return failure.Wrap(failure.ErrConfiguration, "time range", err)
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

	out, err := runner.Run(ctx, pipeline.Job{Locator: locator, Range: r, Model: model})
	if err != nil {
		if out.OutDir != "" {
			a.log.Info("partial artifacts kept", "dir", out.OutDir, "count", len(out.Result.Artifacts))
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.Result.Final.Path)
	return nil
}
