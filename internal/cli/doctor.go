package cli

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/forPelevin/shortcap/internal/config"
	"github.com/forPelevin/shortcap/internal/ports/adapters/whisperapi"
	"github.com/forPelevin/shortcap/internal/ports/adapters/whispercpp"
)

type checkResult struct {
	name   string
	ok     bool
	detail string
}

var lookPath = exec.LookPath

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the external engines and models are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			checks := runChecks(a.cfg)
			rows := make([][]string, 0, len(checks)+1)
			rows = append(rows, []string{"config", "ok", a.configPath})
			failed := 0
			for _, c := range checks {
				status := "ok"
				if !c.ok {
					status = "missing"
					failed++
				}
				rows = append(rows, []string{c.name, status, c.detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			if failed > 0 {
				return fmt.Errorf("%d checks failed", failed)
			}
			return nil
		},
	}
}

func runChecks(cfg *config.Config) []checkResult {
	checks := []checkResult{
		binaryCheck("yt-dlp", cfg.Engines.YtDlp),
		binaryCheck("ffmpeg", cfg.Engines.FFmpeg),
	}
	switch cfg.Engines.Transcriber {
	case config.TranscriberWhisperAPI:
		c := checkResult{name: "whisper api", ok: true, detail: cfg.WhisperAPI.BaseURL}
		if cfg.WhisperAPI.APIKey == "" {
			c.ok, c.detail = false, "SHORTCAP_WHISPER_API_KEY is not set"
		} else if err := whisperapi.ValidateBaseURL(cfg.WhisperAPI.BaseURL, cfg.WhisperAPI.AllowedHosts); err != nil {
			c.ok, c.detail = false, err.Error()
		}
		checks = append(checks, c)
	default:
		checks = append(checks, binaryCheck("whisper.cpp", cfg.Engines.WhisperBin))
		asr := whispercpp.New(whispercpp.Config{
			Bin:       cfg.Engines.WhisperBin,
			ModelDir:  cfg.Engines.WhisperModelDir,
			Lifecycle: whispercpp.LoadPerCall,
		}, nil)
		c := checkResult{name: "model " + cfg.Engines.DefaultModel, ok: true}
		if p, err := asr.ModelPath(cfg.Engines.DefaultModel); err != nil {
			c.ok, c.detail = false, err.Error()
		} else {
			c.detail = p
		}
		checks = append(checks, c)
	}
	return checks
}

func binaryCheck(name, bin string) checkResult {
	p, err := lookPath(bin)
	if err != nil {
		return checkResult{name: name, detail: fmt.Sprintf("%s not found in PATH", bin)}
	}
	return checkResult{name: name, ok: true, detail: p}
}
