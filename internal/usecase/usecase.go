package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/forPelevin/shortcap/internal/domain/subtitles"
	"github.com/forPelevin/shortcap/internal/failure"
	"github.com/forPelevin/shortcap/internal/ports"
	"github.com/forPelevin/shortcap/internal/types"
)

const DefaultModel = "medium"

type Deps struct {
	Fetcher     ports.Fetcher
	Trimmer     ports.Trimmer
	Transcriber ports.Transcriber
	Captioner   ports.Captioner
	Logger      *slog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return Usecase{d: d}
}

// WithLogger returns a copy of u that logs through l.
func (u Usecase) WithLogger(l *slog.Logger) Usecase {
	if l != nil {
		u.d.Logger = l
	}
	return u
}

// Workspace is the run-scoped directory and file prefix every artifact of a
// run is written under. Two runs must never share one.
type Workspace struct {
	Dir    string
	Prefix string
}

func (w Workspace) path(suffix string) string {
	prefix := w.Prefix
	if prefix == "" {
		prefix = "clip"
	}
	return filepath.Join(w.Dir, prefix+suffix)
}

func (w Workspace) SourcePath() string    { return w.path(".source.mp4") }
func (w Workspace) TrimmedPath() string   { return w.path(".short.mp4") }
func (w Workspace) SubtitlesPath() string { return w.path(".srt") }
func (w Workspace) FinalPath() string     { return w.path(".final.mp4") }

type Input struct {
	Locator   string
	Range     types.TimeRange
	Geometry  types.Geometry
	Model     string
	Workspace Workspace
}

type Result struct {
	Final     types.MediaArtifact
	Artifacts []types.MediaArtifact
	Cues      int
}

// Run executes fetch, trim, transcribe, format and caption in order. The first
// failing stage ends the run with a *failure.StageError; artifacts written by
// earlier stages stay on disk and are listed in the returned Result.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	if err := validateInput(&in); err != nil {
		return Result{}, err
	}
	log := u.d.Logger
	ws := in.Workspace
	var res Result

	src, err := step(ctx, log, failure.StageFetch, func() (types.MediaArtifact, error) {
		return u.d.Fetcher.Fetch(ctx, in.Locator, ws.SourcePath())
	})
	if err != nil {
		return res, err
	}
	res.Artifacts = append(res.Artifacts, src)
	logArtifact(log, failure.StageFetch, src)

	short, err := step(ctx, log, failure.StageTrim, func() (types.MediaArtifact, error) {
		return u.d.Trimmer.Trim(ctx, src, in.Range, in.Geometry, ws.TrimmedPath())
	})
	if err != nil {
		return res, err
	}
	res.Artifacts = append(res.Artifacts, short)
	logArtifact(log, failure.StageTrim, short)

	tr, err := step(ctx, log, failure.StageTranscribe, func() (types.Transcript, error) {
		return u.d.Transcriber.Transcribe(ctx, short, in.Model)
	})
	if err != nil {
		return res, err
	}
	log.Info("transcript ready", "segments", len(tr.Segments), "language", tr.Language, "model", tr.Model)

	srt, err := step(ctx, log, failure.StageFormat, func() (types.MediaArtifact, error) {
		doc, err := subtitles.Format(tr)
		if err != nil {
			return types.MediaArtifact{}, err
		}
		res.Cues = len(doc.Cues)
		p := ws.SubtitlesPath()
		if err := subtitles.WriteFile(p, doc); err != nil {
			return types.MediaArtifact{}, err
		}
		return types.MediaArtifact{Path: p, Role: types.RoleSubtitles}, nil
	})
	if err != nil {
		return res, err
	}
	res.Artifacts = append(res.Artifacts, srt)
	logArtifact(log, failure.StageFormat, srt)

	final, err := step(ctx, log, failure.StageCaption, func() (types.MediaArtifact, error) {
		return u.d.Captioner.BurnIn(ctx, short, srt.Path, ws.FinalPath())
	})
	if err != nil {
		return res, err
	}
	res.Artifacts = append(res.Artifacts, final)
	res.Final = final
	logArtifact(log, failure.StageCaption, final)
	return res, nil
}

func validateInput(in *Input) error {
	in.Locator = strings.TrimSpace(in.Locator)
	if in.Locator == "" {
		return failure.Wrap(failure.ErrConfiguration, "source locator is empty", nil)
	}
	if err := in.Range.Validate(); err != nil {
		return failure.Wrap(failure.ErrConfiguration, "time range", err)
	}
	if in.Geometry == (types.Geometry{}) {
		in.Geometry = types.Vertical
	}
	if err := in.Geometry.Validate(); err != nil {
		return failure.Wrap(failure.ErrConfiguration, "geometry", err)
	}
	if strings.TrimSpace(in.Model) == "" {
		in.Model = DefaultModel
	}
	if in.Workspace.Dir == "" {
		return failure.Wrap(failure.ErrConfiguration, "workspace directory is empty", nil)
	}
	return nil
}

// step checks for cancellation at the stage boundary, runs fn and tags any
// failure with the stage name.
func step[T any](ctx context.Context, log *slog.Logger, stage string, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		log.Warn("run cancelled", "stage", stage, "error", err)
		return zero, &failure.StageError{Stage: stage, Err: err}
	}
	started := time.Now()
	log.Info("stage started", "stage", stage)
	v, err := fn()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = errors.Join(err, ctxErr)
		}
		log.Error("stage failed", "stage", stage, "elapsed", time.Since(started).Round(time.Millisecond), "error", err)
		return zero, &failure.StageError{Stage: stage, Err: err}
	}
	log.Info("stage finished", "stage", stage, "elapsed", time.Since(started).Round(time.Millisecond))
	return v, nil
}

func logArtifact(log *slog.Logger, stage string, a types.MediaArtifact) {
	size := "unknown"
	if info, err := os.Stat(a.Path); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	log.Info("artifact written", "stage", stage, "role", string(a.Role), "path", a.Path, "size", size)
}
