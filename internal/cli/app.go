package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forPelevin/shortcap/internal/config"
	"github.com/forPelevin/shortcap/internal/history"
	"github.com/forPelevin/shortcap/internal/logging"
	"github.com/forPelevin/shortcap/internal/pipeline"
)

// app bundles what every pipeline-running command needs.
type app struct {
	cfg        *config.Config
	configPath string
	log        *slog.Logger
}

func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, resolved, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); strings.TrimSpace(lvl) != "" {
		cfg.Logging.Level = lvl
	}
	log, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, configPath: resolved, log: log}, nil
}

// openHistory opens the run history store. Failing to open it degrades to
// running without history rather than refusing to run.
func (a *app) openHistory(ctx context.Context) *history.Store {
	store, err := history.Open(ctx, a.cfg.Paths.StateDir)
	if err != nil {
		a.log.Warn("run history unavailable", "error", err)
		return nil
	}
	return store
}

// newRunner builds a pipeline runner and returns a cleanup func that closes
// the history store.
func (a *app) newRunner(ctx context.Context, outOverride string) (*pipeline.Runner, func(), error) {
	pcfg := pipeline.FromConfig(a.cfg, a.log)
	if strings.TrimSpace(outOverride) != "" {
		out, err := config.ExpandPath(outOverride)
		if err != nil {
			return nil, nil, err
		}
		pcfg.OutDir = out
	}

	if err := pcfg.Validate(); err != nil {
		return nil, nil, err
	}

	store := a.openHistory(ctx)
	var rec pipeline.Recorder
	if store != nil {
		rec = store
	}
	runner, err := pipeline.NewRunner(pcfg, rec)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return runner, func() { _ = store.Close() }, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
