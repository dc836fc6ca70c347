package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/forPelevin/shortcap/internal/failure"
	"github.com/forPelevin/shortcap/internal/ports"
	"github.com/forPelevin/shortcap/internal/types"
)

// ModelLifecycle controls how often a model selector is resolved to a model
// file on disk.
type ModelLifecycle string

const (
	// LoadOncePerProcess resolves each selector once and reuses the result.
	LoadOncePerProcess ModelLifecycle = "process"
	// LoadPerCall resolves the selector on every Transcribe call.
	LoadPerCall ModelLifecycle = "call"
)

const DefaultModel = "medium"

type Config struct {
	Bin       string
	ModelDir  string
	Lifecycle ModelLifecycle
	Threads   int
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Adapter struct {
	cfg   Config
	audio ports.AudioExtractor
	run   runFunc

	mu     sync.Mutex
	models map[string]string
}

func New(cfg Config, audio ports.AudioExtractor) *Adapter {
	if cfg.Bin == "" {
		cfg.Bin = "whisper-cli"
	}
	if cfg.Lifecycle == "" {
		cfg.Lifecycle = LoadOncePerProcess
	}
	return &Adapter{cfg: cfg, audio: audio, run: execRun, models: make(map[string]string)}
}

// ModelPath resolves selector to a model file according to the adapter's
// lifecycle.
func (a *Adapter) ModelPath(selector string) (string, error) {
	if selector == "" {
		selector = DefaultModel
	}
	if a.cfg.Lifecycle == LoadPerCall {
		return resolveModel(a.cfg.ModelDir, selector)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.models[selector]; ok {
		return p, nil
	}
	p, err := resolveModel(a.cfg.ModelDir, selector)
	if err != nil {
		return "", err
	}
	a.models[selector] = p
	return p, nil
}

// resolveModel maps a quality tier ("base", "medium", "large-v3") to
// <dir>/ggml-<tier>.bin; anything that looks like a path is used as is.
func resolveModel(dir, selector string) (string, error) {
	p := selector
	if !strings.ContainsRune(selector, filepath.Separator) && filepath.Ext(selector) != ".bin" {
		p = filepath.Join(dir, "ggml-"+selector+".bin")
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("model %q: %w", selector, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("model %q: %s is a directory", selector, p)
	}
	return p, nil
}

func (a *Adapter) Transcribe(ctx context.Context, in types.MediaArtifact, model string) (types.Transcript, error) {
	modelPath, err := a.ModelPath(model)
	if err != nil {
		return types.Transcript{}, failure.Wrap(failure.ErrTranscription, "load model", err)
	}

	scratch, err := os.MkdirTemp("", "shortcap-whisper-*")
	if err != nil {
		return types.Transcript{}, failure.Wrap(failure.ErrTranscription, "scratch dir", err)
	}
	defer os.RemoveAll(scratch)

	wav := filepath.Join(scratch, "audio.wav")
	if err := a.audio.ExtractAudioMono16k(ctx, in.Path, wav); err != nil {
		return types.Transcript{}, failure.Wrap(failure.ErrTranscription, "audio track", err)
	}

	outPrefix := filepath.Join(scratch, "whisper")
	args := []string{
		"-m", modelPath,
		"-f", wav,
		"-oj",
		"-of", outPrefix,
	}
	if a.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(a.cfg.Threads))
	}
	b, err := a.run(ctx, a.cfg.Bin, args...)
	if err != nil {
		return types.Transcript{}, failure.Wrap(failure.ErrTranscription, "whisper.cpp", fmt.Errorf("%w\n%s", err, string(b)))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, failure.Wrap(failure.ErrTranscription, "read whisper.cpp output", err)
	}
	tr, err := parseOutput(jb)
	if err != nil {
		return types.Transcript{}, failure.Wrap(failure.ErrTranscription, "parse whisper.cpp output", err)
	}
	if model == "" {
		model = DefaultModel
	}
	tr.Model = model
	return tr, nil
}

type cppOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseOutput keeps engine order and drops segments with no text or no
// duration, which whisper.cpp emits around silence.
func parseOutput(b []byte) (types.Transcript, error) {
	var out cppOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return types.Transcript{}, err
	}
	tr := types.Transcript{Language: out.Result.Language}
	for _, s := range out.Transcription {
		text := strings.TrimSpace(s.Text)
		if text == "" || s.Offsets.To <= s.Offsets.From || s.Offsets.From < 0 {
			continue
		}
		tr.Segments = append(tr.Segments, types.Segment{
			Start: float64(s.Offsets.From) / 1000,
			End:   float64(s.Offsets.To) / 1000,
			Text:  text,
		})
	}
	return tr, nil
}
