package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forPelevin/shortcap/internal/domain/subtitles"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.srt>",
		Short: "Check that an SRT file is well formed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := subtitles.ValidateFile(path); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d cues\n", path, subtitles.CountCues(data))
			return nil
		},
	}
}
