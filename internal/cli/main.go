package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRootCmd()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shortcap",
		Short:         "Cut a vertical captioned short from an online video",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Config file (default ~/.config/shortcap/config.toml or ./shortcap.toml)")
	root.PersistentFlags().String("log-level", "", "Override logging.level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(),
		newBatchCmd(),
		newWatchCmd(),
		newHistoryCmd(),
		newValidateCmd(),
		newDoctorCmd(),
		newConfigCmd(),
	)
	return root
}
