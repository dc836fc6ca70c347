package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/shortcap/internal/config"
	"github.com/forPelevin/shortcap/internal/failure"
	"github.com/forPelevin/shortcap/internal/history"
	"github.com/forPelevin/shortcap/internal/pipeline"
	"github.com/forPelevin/shortcap/internal/types"
	"github.com/forPelevin/shortcap/internal/usecase"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// testConfig writes a config that keeps every path inside a temp dir.
func testConfig(t *testing.T) (path, root string) {
	t.Helper()
	root = t.TempDir()
	path = filepath.Join(root, "shortcap.toml")
	body := "[paths]\n" +
		"out_dir = \"" + filepath.ToSlash(filepath.Join(root, "out")) + "\"\n" +
		"state_dir = \"" + filepath.ToSlash(filepath.Join(root, "state")) + "\"\n" +
		"[logging]\nformat = \"json\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, root
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.srt")
	bad := filepath.Join(dir, "bad.srt")
	if err := os.WriteFile(good, []byte("1\n00:00:00,000 --> 00:00:01,000\nHi\n\n2\n00:00:01,000 --> 00:00:02,000\nThere\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("1\n00:00:00,000 --> 00:00:01,000 --> 00:00:02,000\nHi\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "validate", good)
	if err != nil {
		t.Fatalf("validate good: %v", err)
	}
	if !strings.Contains(out, "ok, 2 cues") {
		t.Fatalf("unexpected output: %q", out)
	}

	if _, err := execute(t, "validate", bad); !errors.Is(err, failure.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
	if _, err := execute(t, "validate", filepath.Join(dir, "absent.srt")); !errors.Is(err, failure.ErrMissingArtifact) {
		t.Fatalf("expected ErrMissingArtifact, got %v", err)
	}
}

func TestRunCmd_ArgumentErrors(t *testing.T) {
	cfgPath, root := testConfig(t)
	tests := []struct {
		name string
		args []string
	}{
		{"no url", []string{"run", "--config", cfgPath, "--start", "0", "--end", "5"}},
		{"missing end", []string{"run", "https://x/v", "--config", cfgPath, "--start", "0"}},
		{"end before start", []string{"run", "https://x/v", "--config", cfgPath, "--start", "10", "--end", "5"}},
		{"bad offset", []string{"run", "https://x/v", "--config", cfgPath, "--start", "0", "--end", "1:99"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := os.Stat(filepath.Join(root, "out")); !os.IsNotExist(err) {
		t.Fatalf("argument errors must not create the output root: %v", err)
	}
}

func TestConfigSampleCmd(t *testing.T) {
	out, err := execute(t, "config", "sample")
	if err != nil {
		t.Fatalf("config sample: %v", err)
	}
	if out != config.SampleConfig() {
		t.Fatalf("sample output differs from embedded config")
	}
}

func TestConfigPathCmd(t *testing.T) {
	cfgPath, _ := testConfig(t)
	out, err := execute(t, "config", "path", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if !strings.Contains(out, cfgPath) || !strings.Contains(out, "loaded") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestHistoryCmd(t *testing.T) {
	cfgPath, root := testConfig(t)

	out, err := execute(t, "history", "--config", cfgPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "No runs recorded yet") {
		t.Fatalf("unexpected output: %q", out)
	}

	store, err := history.Open(context.Background(), filepath.Join(root, "state"))
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	err = store.Record(context.Background(), history.Run{
		ID:         "abcdef0123456789",
		Locator:    "https://x/v",
		RangeEnd:   time.Second,
		Model:      "tiny",
		Status:     history.StatusFailed,
		Stage:      "caption",
		Error:      "caption stage failed",
		StartedAt:  now.Add(-time.Minute),
		FinishedAt: now,
	})
	_ = store.Close()
	if err != nil {
		t.Fatal(err)
	}

	out, err = execute(t, "history", "--config", cfgPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, want := range []string{"abcdef01", "failed (caption)", "tiny"} {
		if !strings.Contains(out, want) {
			t.Fatalf("history output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderBatchSummary(t *testing.T) {
	results := []pipeline.BatchResult{
		{
			Job:     pipeline.Job{Locator: "https://x/1", Range: types.TimeRange{End: time.Second}},
			Outcome: pipeline.Outcome{Result: usecase.Result{Final: types.MediaArtifact{Path: "/out/clip.final.mp4"}}},
		},
		{
			Job: pipeline.Job{Locator: "https://x/2", Range: types.TimeRange{End: time.Second}},
			Err: &failure.StageError{Stage: failure.StageTrim, Err: failure.ErrTranscode},
		},
	}
	got := renderBatchSummary(results)
	for _, want := range []string{"/out/clip.final.mp4", "failed (trim)", "https://x/2"} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestRunChecks(t *testing.T) {
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(bin string) (string, error) {
		if bin == "ffmpeg" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + bin, nil
	}

	modelDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(modelDir, "ggml-medium.bin"), []byte("m"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Engines.WhisperModelDir = modelDir

	checks := runChecks(&cfg)
	byName := map[string]checkResult{}
	for _, c := range checks {
		byName[c.name] = c
	}
	if !byName["yt-dlp"].ok || byName["ffmpeg"].ok || !byName["whisper.cpp"].ok {
		t.Fatalf("unexpected binary checks: %+v", checks)
	}
	if c := byName["model medium"]; !c.ok || c.detail != filepath.Join(modelDir, "ggml-medium.bin") {
		t.Fatalf("unexpected model check: %+v", c)
	}

	cfg.Engines.Transcriber = config.TranscriberWhisperAPI
	cfg.WhisperAPI.APIKey = ""
	checks = runChecks(&cfg)
	last := checks[len(checks)-1]
	if last.name != "whisper api" || last.ok {
		t.Fatalf("expected failing whisper api check, got %+v", last)
	}
}

func TestTruncateCell(t *testing.T) {
	if got := truncateCell("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := truncateCell("abcdefghij", 5); got != "abcd…" {
		t.Fatalf("got %q", got)
	}
}
