package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/forPelevin/shortcap/internal/failure"
	"github.com/forPelevin/shortcap/internal/pipeline"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <jobs.toml>",
		Short: "Run every [[job]] of a job file, one after another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir, _ := cmd.Flags().GetString("out")
			jobs, err := pipeline.LoadJobs(args[0])
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
			return runJobs(ctx, runner, jobs, cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("out", "", "Output root directory (default paths.out_dir)")
	return cmd
}

// runJobs executes jobs, prints a summary table and fails when any job did.
func runJobs(ctx context.Context, runner *pipeline.Runner, jobs []pipeline.Job, out io.Writer) error {
	results := runner.RunBatch(ctx, jobs)
	fmt.Fprintln(out, renderBatchSummary(results))
	if n := pipeline.Failed(results); n > 0 {
		return fmt.Errorf("%d of %d jobs failed", n, len(results))
	}
	return nil
}

func renderBatchSummary(results []pipeline.BatchResult) string {
	rows := make([][]string, 0, len(results))
	for i, r := range results {
		status := "ok"
		detail := r.Outcome.Result.Final.Path
		if r.Err != nil {
			status = "failed"
			if stage := failure.StageOf(r.Err); stage != "" {
				status = "failed (" + stage + ")"
			}
			detail = truncateCell(r.Err.Error(), 80)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			r.Job.Locator,
			r.Job.Range.String(),
			status,
			detail,
		})
	}
	return renderTable(
		[]string{"#", "Source", "Range", "Status", "Result"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}

func truncateCell(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
