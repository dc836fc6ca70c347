package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/shortcap/internal/domain/subtitles"
	"github.com/forPelevin/shortcap/internal/failure"
	"github.com/forPelevin/shortcap/internal/types"
)

// Encoding holds the codec settings shared by the trim and caption passes.
type Encoding struct {
	VideoCodec string
	Preset     string
	CRF        int
	AudioCodec string
}

func DefaultEncoding() Encoding {
	return Encoding{
		VideoCodec: "libx264",
		Preset:     "fast",
		CRF:        23,
		AudioCodec: "aac",
	}
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Adapter struct {
	ffmpeg string
	enc    Encoding
	run    runFunc
}

func New(ffmpegPath string, enc Encoding) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	def := DefaultEncoding()
	if enc.VideoCodec == "" {
		enc.VideoCodec = def.VideoCodec
	}
	if enc.Preset == "" {
		enc.Preset = def.Preset
	}
	if enc.CRF <= 0 {
		enc.CRF = def.CRF
	}
	if enc.AudioCodec == "" {
		enc.AudioCodec = def.AudioCodec
	}
	return &Adapter{ffmpeg: ffmpegPath, enc: enc, run: execRun}
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inMP4, outWav string) error {
	b, err := a.run(ctx, a.ffmpeg,
		"-y",
		"-i", inMP4,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	return nil
}

func (a *Adapter) Trim(ctx context.Context, in types.MediaArtifact, r types.TimeRange, g types.Geometry, outMP4 string) (types.MediaArtifact, error) {
	if err := r.Validate(); err != nil {
		return types.MediaArtifact{}, failure.Wrap(failure.ErrTranscode, "trim range", err)
	}
	if err := g.Validate(); err != nil {
		return types.MediaArtifact{}, failure.Wrap(failure.ErrTranscode, "trim geometry", err)
	}
	args := []string{
		"-y",
		"-ss", fmtSeconds(r.Start),
		"-to", fmtSeconds(r.End),
		"-i", in.Path,
		"-vf", fmt.Sprintf("scale=%d:%d,setsar=1:1", g.Width, g.Height),
	}
	args = append(args, a.codecArgs()...)
	args = append(args, "-strict", "experimental", outMP4)

	b, err := a.run(ctx, a.ffmpeg, args...)
	if err != nil {
		return types.MediaArtifact{}, failure.Wrap(failure.ErrTranscode, "ffmpeg trim", fmt.Errorf("%w\n%s", err, string(b)))
	}
	return types.MediaArtifact{Path: outMP4, Role: types.RoleTrimmed}, nil
}

// BurnIn validates the subtitle file before ffmpeg is started; the subtitles
// filter resolves relative paths against its own working directory, so the
// path is made absolute first.
func (a *Adapter) BurnIn(ctx context.Context, in types.MediaArtifact, subtitlePath, outMP4 string) (types.MediaArtifact, error) {
	abs, err := filepath.Abs(subtitlePath)
	if err != nil {
		return types.MediaArtifact{}, fmt.Errorf("resolve subtitles path: %w", err)
	}
	if err := subtitles.ValidateFile(abs); err != nil {
		return types.MediaArtifact{}, err
	}

	args := []string{
		"-y",
		"-i", in.Path,
		"-vf", "subtitles=" + escapeFilterPath(abs),
	}
	args = append(args, a.codecArgs()...)
	args = append(args, outMP4)

	b, err := a.run(ctx, a.ffmpeg, args...)
	if err != nil {
		return types.MediaArtifact{}, failure.Wrap(failure.ErrTranscode, "ffmpeg burn subtitles", fmt.Errorf("%w\n%s", err, string(b)))
	}
	return types.MediaArtifact{Path: outMP4, Role: types.RoleCaptioned}, nil
}

func (a *Adapter) codecArgs() []string {
	return []string{
		"-c:v", a.enc.VideoCodec,
		"-preset", a.enc.Preset,
		"-crf", strconv.Itoa(a.enc.CRF),
		"-c:a", a.enc.AudioCodec,
	}
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	p = strings.ReplaceAll(p, "'", "\\'")
	return p
}
