package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/forPelevin/shortcap/internal/failure"
	"github.com/forPelevin/shortcap/internal/types"
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Adapter struct {
	bin    string
	format string
	run    runFunc
}

func New(binPath string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &Adapter{bin: binPath, format: "mp4", run: execRun}
}

func (a *Adapter) Fetch(ctx context.Context, locator, outMP4 string) (types.MediaArtifact, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return types.MediaArtifact{}, failure.Wrap(failure.ErrDownload, "fetch", errors.New("empty locator"))
	}
	args := []string{
		"--no-playlist",
		"--no-progress",
		"-f", a.format,
		"-o", outMP4,
		"--", locator,
	}
	b, err := a.run(ctx, a.bin, args...)
	if err != nil {
		return types.MediaArtifact{}, failure.Wrap(failure.ErrDownload, "yt-dlp", fmt.Errorf("%w\n%s", err, string(b)))
	}
	// yt-dlp exits 0 on some extractor fallbacks without writing the file.
	if _, err := os.Stat(outMP4); err != nil {
		return types.MediaArtifact{}, failure.Wrap(failure.ErrDownload, "yt-dlp output", err)
	}
	return types.MediaArtifact{Path: outMP4, Role: types.RoleSource}, nil
}
