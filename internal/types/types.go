package types

import (
	"errors"
	"fmt"
	"time"
)

type Transcript struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language,omitempty"`
	Model    string    `json:"model,omitempty"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Role tells which stage produced an artifact.
type Role string

const (
	RoleSource    Role = "source"
	RoleTrimmed   Role = "trimmed"
	RoleSubtitles Role = "subtitles"
	RoleCaptioned Role = "captioned"
)

type MediaArtifact struct {
	Path string
	Role Role
}

// TimeRange scopes the trim stage. Both bounds are absolute offsets into the
// source media.
type TimeRange struct {
	Start time.Duration
	End   time.Duration
}

func (r TimeRange) Validate() error {
	if r.Start < 0 {
		return fmt.Errorf("start must be >= 0, got %s", r.Start)
	}
	if r.End <= r.Start {
		return fmt.Errorf("end (%s) must be after start (%s)", r.End, r.Start)
	}
	return nil
}

func (r TimeRange) Duration() time.Duration { return r.End - r.Start }

func (r TimeRange) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// Geometry is the output frame size of the trimmed clip.
type Geometry struct {
	Width  int
	Height int
}

// Vertical is the 9:16 frame used for shorts.
var Vertical = Geometry{Width: 1080, Height: 1920}

func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return errors.New("geometry must have positive width and height")
	}
	return nil
}

type SubtitleCue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

type SubtitleDocument struct {
	Cues []SubtitleCue
}
