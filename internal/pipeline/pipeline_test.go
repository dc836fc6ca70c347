package pipeline

import (
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
	"github.com/forPelevin/shortcap/internal/types"
	"github.com/forPelevin/shortcap/internal/usecase"
)

func TestBuildRunOutDir(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 30, 45, 1234, time.UTC)
	got := buildRunOutDir("out", "My Cool.Video", now, "3f2a9c1e-0000-4000-8000-000000000000")
	base := filepath.Base(got)
	if filepath.Dir(got) != "out" {
		t.Fatalf("unexpected parent dir: %s", got)
	}
	if base != "my-cool-video-20260212-103045Z-3f2a9c1e" {
		t.Fatalf("unexpected run dir format: %s", base)
	}
	if got := filepath.Base(buildRunOutDir("out", "!!!", now, "ab")); got != "clip-20260212-103045Z-ab" {
		t.Fatalf("empty slug fallback: %s", got)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ":     "my-cool-video",
		"___":                   "",
		"abc123":                "abc123",
		"Name (v2)!":            "name-v2",
		"Café Niño":             "cafe-nino",
		strings.Repeat("a", 60): strings.Repeat("a", 48),
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestLocatorSlug(t *testing.T) {
	tests := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://vimeo.com/123456/":                   "123456",
		"https://example.com/media/talk.mp4":          "talk",
		"https://example.com":                         "example.com",
		"/tmp/local clip.mp4":                         "local clip",
	}
	for in, want := range tests {
		if got := locatorSlug(in); got != want {
			t.Errorf("locatorSlug(%q)=%q want %q", in, got, want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	base := Config{OutDir: "out", WhisperModelDir: "/models"}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"whispercpp ok", func(*Config) {}, false},
		{"no out dir", func(c *Config) { c.OutDir = " " }, true},
		{"no model dir", func(c *Config) { c.WhisperModelDir = "" }, true},
		{"bad geometry", func(c *Config) { c.Geometry = types.Geometry{Width: -1, Height: 10} }, true},
		{"unknown transcriber", func(c *Config) { c.Transcriber = "vosk" }, true},
		{"api without key", func(c *Config) { c.Transcriber = config.TranscriberWhisperAPI }, true},
		{"api ok", func(c *Config) {
			c.Transcriber = config.TranscriberWhisperAPI
			c.WhisperAPIKey = "k"
		}, false},
		{"api http base url", func(c *Config) {
			c.Transcriber = config.TranscriberWhisperAPI
			c.WhisperAPIKey = "k"
			c.WhisperAPIBaseURL = "http://api.openai.com"
		}, true},
		{"api host not allowed", func(c *Config) {
			c.Transcriber = config.TranscriberWhisperAPI
			c.WhisperAPIKey = "k"
			c.WhisperAPIBaseURL = "https://evil.example"
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err=%v wantErr=%v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, failure.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	c := config.Default()
	c.Paths.OutDir = "/o"
	c.Encoding.Width = 720
	c.Encoding.Height = 1280
	c.WhisperAPI.TimeoutSeconds = 30

	got := FromConfig(&c, nil)
	if got.OutDir != "/o" || got.Geometry != (types.Geometry{Width: 720, Height: 1280}) {
		t.Fatalf("unexpected mapping: %+v", got)
	}
	if got.WhisperAPITimeout != 30*time.Second {
		t.Fatalf("timeout=%s", got.WhisperAPITimeout)
	}
	if string(got.ModelLifecycle) != "process" || got.Encoding.CRF != 23 {
		t.Fatalf("unexpected engines/encoding: %+v", got)
	}
}

type fakeStages struct {
	failFetch map[string]bool
	models    []string
}

func (f *fakeStages) Fetch(_ context.Context, locator, out string) (types.MediaArtifact, error) {
	if f.failFetch[locator] {
		return types.MediaArtifact{}, failure.Wrap(failure.ErrDownload, "fetch", errors.New("404"))
	}
	return writeArtifact(out, types.RoleSource)
}

func (f *fakeStages) Trim(_ context.Context, _ types.MediaArtifact, _ types.TimeRange, _ types.Geometry, out string) (types.MediaArtifact, error) {
	return writeArtifact(out, types.RoleTrimmed)
}

func (f *fakeStages) Transcribe(_ context.Context, _ types.MediaArtifact, model string) (types.Transcript, error) {
	f.models = append(f.models, model)
	return types.Transcript{Segments: []types.Segment{{Start: 0, End: 1, Text: "hi"}}, Model: model}, nil
}

func (f *fakeStages) BurnIn(_ context.Context, _ types.MediaArtifact, _ string, out string) (types.MediaArtifact, error) {
	return writeArtifact(out, types.RoleCaptioned)
}

func writeArtifact(path string, role types.Role) (types.MediaArtifact, error) {
	if err := os.WriteFile(path, []byte(role), 0o644); err != nil {
		return types.MediaArtifact{}, err
	}
	return types.MediaArtifact{Path: path, Role: role}, nil
}

type fakeRecorder struct{ runs []history.Run }

func (r *fakeRecorder) Record(_ context.Context, run history.Run) error {
	r.runs = append(r.runs, run)
	return nil
}

func newTestRunner(t *testing.T, stages *fakeStages, rec Recorder) (*Runner, string) {
	t.Helper()
	out := t.TempDir()
	cfg := Config{OutDir: out, WhisperModelDir: "/models", DefaultModel: "small"}
	r := newRunner(cfg, usecase.Deps{
		Fetcher:     stages,
		Trimmer:     stages,
		Transcriber: stages,
		Captioner:   stages,
	}, rec)
	ids := 0
	r.newID = func() string {
		ids++
		return "0000000" + string(rune('0'+ids)) + "-run"
	}
	r.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return r, out
}

func TestRunner_RunRecordsSuccess(t *testing.T) {
	stages := &fakeStages{}
	rec := &fakeRecorder{}
	r, outRoot := newTestRunner(t, stages, rec)

	out, err := r.Run(context.Background(), Job{
		Locator: "https://www.youtube.com/watch?v=abc",
		Range:   types.TimeRange{Start: time.Second, End: 5 * time.Second},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if filepath.Dir(out.OutDir) != outRoot || !strings.HasPrefix(filepath.Base(out.OutDir), "abc-20260501-120000Z-") {
		t.Fatalf("out dir=%s", out.OutDir)
	}
	entries, err := os.ReadDir(out.OutDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 artifacts, got %d", len(entries))
	}
	if len(stages.models) != 1 || stages.models[0] != "small" {
		t.Fatalf("configured default model not used: %v", stages.models)
	}
	if len(rec.runs) != 1 {
		t.Fatalf("recorded %d runs", len(rec.runs))
	}
	got := rec.runs[0]
	if got.Status != history.StatusSucceeded || got.FinalPath != out.Result.Final.Path || got.Cues != 1 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Transcriber != config.TranscriberWhisperCPP {
		t.Fatalf("transcriber=%q", got.Transcriber)
	}
}

func TestRunner_RunRecordsFailureStage(t *testing.T) {
	stages := &fakeStages{failFetch: map[string]bool{"https://x/bad": true}}
	rec := &fakeRecorder{}
	r, _ := newTestRunner(t, stages, rec)

	_, err := r.Run(context.Background(), Job{
		Locator: "https://x/bad",
		Range:   types.TimeRange{End: time.Second},
		Model:   "tiny",
	})
	if failure.StageOf(err) != failure.StageFetch {
		t.Fatalf("expected fetch stage error, got %v", err)
	}
	if len(rec.runs) != 1 || rec.runs[0].Status != history.StatusFailed || rec.runs[0].Stage != failure.StageFetch {
		t.Fatalf("unexpected record: %+v", rec.runs)
	}
	if rec.runs[0].Model != "tiny" {
		t.Fatalf("model=%q", rec.runs[0].Model)
	}
}

func TestRunner_InvalidJobTouchesNothing(t *testing.T) {
	rec := &fakeRecorder{}
	r, outRoot := newTestRunner(t, &fakeStages{}, rec)

	_, err := r.Run(context.Background(), Job{
		Locator: "https://x/v",
		Range:   types.TimeRange{Start: 5 * time.Second, End: time.Second},
	})
	if !errors.Is(err, failure.ErrConfiguration) || failure.StageOf(err) != "" {
		t.Fatalf("expected untagged configuration error, got %v", err)
	}
	entries, _ := os.ReadDir(outRoot)
	if len(entries) != 0 || len(rec.runs) != 0 {
		t.Fatalf("invalid job left traces: %d dirs, %d records", len(entries), len(rec.runs))
	}
}

func TestRunBatch_ContinuesAfterFailure(t *testing.T) {
	stages := &fakeStages{failFetch: map[string]bool{"https://x/2": true}}
	r, _ := newTestRunner(t, stages, nil)
	rng := types.TimeRange{End: time.Second}

	results := r.RunBatch(context.Background(), []Job{
		{Locator: "https://x/1", Range: rng},
		{Locator: "https://x/2", Range: rng},
		{Locator: "https://x/3", Range: rng},
	})
	if len(results) != 3 {
		t.Fatalf("results=%d", len(results))
	}
	if results[0].Err != nil || results[1].Err == nil || results[2].Err != nil {
		t.Fatalf("unexpected errors: %v %v %v", results[0].Err, results[1].Err, results[2].Err)
	}
	if Failed(results) != 1 {
		t.Fatalf("Failed=%d", Failed(results))
	}
	if results[0].Outcome.OutDir == results[2].Outcome.OutDir {
		t.Fatalf("jobs shared a run directory")
	}
}

func TestRunBatch_CancelledSkipsRemaining(t *testing.T) {
	r, outRoot := newTestRunner(t, &fakeStages{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := r.RunBatch(ctx, []Job{
		{Locator: "https://x/1", Range: types.TimeRange{End: time.Second}},
		{Locator: "https://x/2", Range: types.TimeRange{End: time.Second}},
	})
	if Failed(results) != 2 {
		t.Fatalf("expected both jobs to fail, got %d", Failed(results))
	}
	for _, res := range results {
		if !errors.Is(res.Err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", res.Err)
		}
	}
	entries, _ := os.ReadDir(outRoot)
	if len(entries) != 0 {
		t.Fatalf("cancelled batch created %d run dirs", len(entries))
	}
}
