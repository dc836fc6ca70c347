package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/forPelevin/shortcap/internal/config"
	"github.com/forPelevin/shortcap/internal/failure"
	"github.com/forPelevin/shortcap/internal/history"
	"github.com/forPelevin/shortcap/internal/logging"
	"github.com/forPelevin/shortcap/internal/ports"
	"github.com/forPelevin/shortcap/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/shortcap/internal/ports/adapters/whisperapi"
	"github.com/forPelevin/shortcap/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/shortcap/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/shortcap/internal/types"
	"github.com/forPelevin/shortcap/internal/usecase"
)

type Config struct {
	OutDir string

	YtDlpPath  string
	FFmpegPath string
	Encoding   ffmpeg.Encoding
	Geometry   types.Geometry

	// Transcriber is config.TranscriberWhisperCPP or config.TranscriberWhisperAPI.
	Transcriber     string
	DefaultModel    string
	WhisperBin      string
	WhisperModelDir string
	ModelLifecycle  whispercpp.ModelLifecycle
	WhisperThreads  int

	WhisperAPIKey          string
	WhisperAPIModel        string
	WhisperAPIBaseURL      string
	WhisperAPIAllowedHosts []string
	WhisperAPITimeout      time.Duration

	Logger *slog.Logger
}

// FromConfig maps the file configuration onto the pipeline wiring.
func FromConfig(c *config.Config, logger *slog.Logger) Config {
	return Config{
		OutDir:     c.Paths.OutDir,
		YtDlpPath:  c.Engines.YtDlp,
		FFmpegPath: c.Engines.FFmpeg,
		Encoding: ffmpeg.Encoding{
			VideoCodec: c.Encoding.VideoCodec,
			Preset:     c.Encoding.Preset,
			CRF:        c.Encoding.CRF,
			AudioCodec: c.Encoding.AudioCodec,
		},
		Geometry:               types.Geometry{Width: c.Encoding.Width, Height: c.Encoding.Height},
		Transcriber:            c.Engines.Transcriber,
		DefaultModel:           c.Engines.DefaultModel,
		WhisperBin:             c.Engines.WhisperBin,
		WhisperModelDir:        c.Engines.WhisperModelDir,
		ModelLifecycle:         whispercpp.ModelLifecycle(c.Engines.ModelLifecycle),
		WhisperThreads:         c.Engines.Threads,
		WhisperAPIKey:          c.WhisperAPI.APIKey,
		WhisperAPIModel:        c.WhisperAPI.Model,
		WhisperAPIBaseURL:      c.WhisperAPI.BaseURL,
		WhisperAPIAllowedHosts: c.WhisperAPI.AllowedHosts,
		WhisperAPITimeout:      time.Duration(c.WhisperAPI.TimeoutSeconds) * time.Second,
		Logger:                 logger,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.OutDir) == "" {
		return failure.Wrap(failure.ErrConfiguration, "output directory is empty", nil)
	}
	if c.Geometry != (types.Geometry{}) {
		if err := c.Geometry.Validate(); err != nil {
			return failure.Wrap(failure.ErrConfiguration, "geometry", err)
		}
	}
	switch c.Transcriber {
	case "", config.TranscriberWhisperCPP:
		if strings.TrimSpace(c.WhisperModelDir) == "" {
			return failure.Wrap(failure.ErrConfiguration, "whisper model directory is required", nil)
		}
		return nil
	case config.TranscriberWhisperAPI:
		if strings.TrimSpace(c.WhisperAPIKey) == "" {
			return failure.Wrap(failure.ErrConfiguration, "SHORTCAP_WHISPER_API_KEY is required for the whisperapi transcriber", nil)
		}
		if err := whisperapi.ValidateBaseURL(c.WhisperAPIBaseURL, c.WhisperAPIAllowedHosts); err != nil {
			return failure.Wrap(failure.ErrConfiguration, "whisper api base url", err)
		}
		return nil
	default:
		return failure.Wrap(failure.ErrConfiguration, fmt.Sprintf("unknown transcriber %q", c.Transcriber), nil)
	}
}

// Job is one clip request.
type Job struct {
	// Name is an optional label used for the run directory slug.
	Name    string
	Locator string
	Range   types.TimeRange
	Model   string
}

func (j Job) validate() error {
	if strings.TrimSpace(j.Locator) == "" {
		return failure.Wrap(failure.ErrConfiguration, "source locator is empty", nil)
	}
	if err := j.Range.Validate(); err != nil {
		return failure.Wrap(failure.ErrConfiguration, "time range", err)
	}
	return nil
}

// Outcome describes a finished run, successful or not.
type Outcome struct {
	RunID  string
	OutDir string
	Model  string
	Result usecase.Result
}

// Recorder persists finished runs. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, r history.Run) error
}

// Runner owns the stage adapters for the lifetime of a process so that a
// whisper.cpp model resolved once is reused across jobs.
type Runner struct {
	cfg      Config
	uc       usecase.Usecase
	recorder Recorder
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewRunner validates cfg and builds the adapters it selects. recorder may be
// nil, in which case runs are not recorded.
func NewRunner(cfg Config, recorder Recorder) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// adapters
	v := ffmpeg.New(cfg.FFmpegPath, cfg.Encoding)
	var asr ports.Transcriber
	switch cfg.Transcriber {
	case config.TranscriberWhisperAPI:
		asr = whisperapi.New(whisperapi.Config{
			APIKey:  cfg.WhisperAPIKey,
			BaseURL: cfg.WhisperAPIBaseURL,
			Model:   cfg.WhisperAPIModel,
			Timeout: cfg.WhisperAPITimeout,
		}, v)
	default:
		asr = whispercpp.New(whispercpp.Config{
			Bin:       cfg.WhisperBin,
			ModelDir:  cfg.WhisperModelDir,
			Lifecycle: cfg.ModelLifecycle,
			Threads:   cfg.WhisperThreads,
		}, v)
	}

	deps := usecase.Deps{
		Fetcher:     ytdlp.New(cfg.YtDlpPath),
		Trimmer:     v,
		Transcriber: asr,
		Captioner:   v,
		Logger:      cfg.Logger,
	}
	return newRunner(cfg, deps, recorder), nil
}

func newRunner(cfg Config, deps usecase.Deps, recorder Recorder) *Runner {
	if deps.Logger == nil {
		deps.Logger = cfg.Logger
	}
	log := deps.Logger
	if log == nil {
		log = logging.Discard()
		deps.Logger = log
	}
	return &Runner{
		cfg:      cfg,
		uc:       usecase.New(deps),
		recorder: recorder,
		log:      log,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// Run executes one job in a fresh run directory under the output root and
// records the outcome. The returned error is the run's terminal failure.
func (r *Runner) Run(ctx context.Context, job Job) (Outcome, error) {
	if err := job.validate(); err != nil {
		return Outcome{}, err
	}
	model := strings.TrimSpace(job.Model)
	if model == "" {
		model = r.cfg.DefaultModel
	}
	if model == "" {
		model = usecase.DefaultModel
	}

	started := r.now().UTC()
	id := r.newID()
	out := Outcome{RunID: id, Model: model}

	slug := job.Name
	if strings.TrimSpace(slug) == "" {
		slug = locatorSlug(job.Locator)
	}
	out.OutDir = buildRunOutDir(r.cfg.OutDir, slug, started, id)
	log := r.log.With("run", id)
	log.Info("preparing workspace", "dir", out.OutDir)
	if err := os.MkdirAll(out.OutDir, 0o755); err != nil {
		err = failure.Wrap(failure.ErrConfiguration, "create run directory", err)
		r.record(ctx, job, out, started, err)
		return out, err
	}

	uc := r.uc.WithLogger(log)
	res, err := uc.Run(ctx, usecase.Input{
		Locator:  job.Locator,
		Range:    job.Range,
		Geometry: r.cfg.Geometry,
		Model:    model,
		Workspace: usecase.Workspace{
			Dir:    out.OutDir,
			Prefix: "clip",
		},
	})
	out.Result = res
	r.record(ctx, job, out, started, err)
	if err != nil {
		return out, err
	}
	log.Info("run finished", "final", res.Final.Path, "cues", res.Cues)
	return out, nil
}

func (r *Runner) record(ctx context.Context, job Job, out Outcome, started time.Time, runErr error) {
	if r.recorder == nil {
		return
	}
	rec := history.Run{
		ID:          out.RunID,
		Locator:     job.Locator,
		RangeStart:  job.Range.Start,
		RangeEnd:    job.Range.End,
		Model:       out.Model,
		Transcriber: r.cfg.Transcriber,
		Status:      history.StatusSucceeded,
		OutDir:      out.OutDir,
		FinalPath:   out.Result.Final.Path,
		Cues:        out.Result.Cues,
		StartedAt:   started,
		FinishedAt:  r.now().UTC(),
	}
	if rec.Transcriber == "" {
		rec.Transcriber = config.TranscriberWhisperCPP
	}
	if runErr != nil {
		rec.Status = history.StatusFailed
		rec.Stage = failure.StageOf(runErr)
		rec.Error = runErr.Error()
	}
	// A cancelled run is still recorded.
	recordCtx := context.WithoutCancel(ctx)
	if err := r.recorder.Record(recordCtx, rec); err != nil {
		r.log.Warn("record run history", "run", out.RunID, "error", err)
	}
}

func buildRunOutDir(outRoot, name string, now time.Time, runID string) string {
	name = normalizePathSegment(name)
	if name == "" {
		name = "clip"
	}
	ts := now.UTC().Format("20060102-150405Z")
	suffix := strings.ReplaceAll(runID, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

// locatorSlug picks a human-recognisable name for a source locator: the
// "v" query parameter for watch URLs, else the last path element, else the
// host. Local paths use their base name.
func locatorSlug(locator string) string {
	locator = strings.TrimSpace(locator)
	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" || u.Host == "" {
		base := filepath.Base(locator)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	if p := strings.Trim(u.Path, "/"); p != "" {
		base := path.Base(p)
		return strings.TrimSuffix(base, path.Ext(base))
	}
	return u.Hostname()
}

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func normalizePathSegment(s string) string {
	folded, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(folded)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 48 {
		out = strings.TrimRight(out[:48], "-")
	}
	return out
}

// ensure adapters implement ports
var _ ports.Fetcher = (*ytdlp.Adapter)(nil)
var _ ports.Trimmer = (*ffmpeg.Adapter)(nil)
var _ ports.Captioner = (*ffmpeg.Adapter)(nil)
var _ ports.AudioExtractor = (*ffmpeg.Adapter)(nil)
var _ ports.Transcriber = (*whispercpp.Adapter)(nil)
var _ ports.Transcriber = (*whisperapi.Adapter)(nil)
var _ Recorder = (*history.Store)(nil)
