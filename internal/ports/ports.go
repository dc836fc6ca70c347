package ports

import (
	"context"

	"github.com/forPelevin/shortcap/internal/types"
)

type Fetcher interface {
	Fetch(ctx context.Context, locator, outPath string) (types.MediaArtifact, error)
}

type Trimmer interface {
	Trim(ctx context.Context, in types.MediaArtifact, r types.TimeRange, g types.Geometry, outPath string) (types.MediaArtifact, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, in types.MediaArtifact, model string) (types.Transcript, error)
}

// Captioner burns a validated SRT file into a clip. Implementations must
// refuse to run when the subtitle file is absent or malformed.
type Captioner interface {
	BurnIn(ctx context.Context, in types.MediaArtifact, subtitlePath, outPath string) (types.MediaArtifact, error)
}

// AudioExtractor produces the mono 16 kHz WAV that local speech engines read.
type AudioExtractor interface {
	ExtractAudioMono16k(ctx context.Context, inMP4, outWav string) error
}
