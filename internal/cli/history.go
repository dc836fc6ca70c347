package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/forPelevin/shortcap/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			store, err := history.Open(cmd.Context(), a.cfg.Paths.StateDir)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}
			fmt.Fprintln(out, renderHistory(runs, time.Now()))
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Number of runs to show (0 for all)")
	return cmd
}

func renderHistory(runs []history.Run, now time.Time) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		status := string(r.Status)
		if r.Stage != "" {
			status += " (" + r.Stage + ")"
		}
		result := r.FinalPath
		if result == "" {
			result = truncateCell(r.Error, 60)
		}
		rows = append(rows, []string{
			id,
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			truncateCell(r.Locator, 48),
			fmt.Sprintf("%s-%s", r.RangeStart, r.RangeEnd),
			r.Model,
			status,
			r.Duration().Round(time.Second).String(),
			result,
		})
	}
	return renderTable(
		[]string{"ID", "Started", "Source", "Range", "Model", "Status", "Took", "Result"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}
