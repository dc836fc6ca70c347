// Package failure defines the error kinds a pipeline run can end with and the
// stage tag attached to them.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDownload        = errors.New("download error")
	ErrTranscode       = errors.New("transcode error")
	ErrTranscription   = errors.New("transcription error")
	ErrFormat          = errors.New("subtitle format error")
	ErrMissingArtifact = errors.New("missing artifact")
	ErrConfiguration   = errors.New("configuration error")
)

// Stage names, in execution order.
const (
	StageFetch      = "fetch"
	StageTrim       = "trim"
	StageTranscribe = "transcribe"
	StageFormat     = "format"
	StageCaption    = "caption"
)

// Wrap tags err with marker so callers can classify it with errors.Is.
func Wrap(marker error, operation string, err error) error {
	if marker == nil {
		marker = ErrConfiguration
	}
	operation = strings.TrimSpace(operation)
	switch {
	case err != nil && operation != "":
		return fmt.Errorf("%w: %s: %w", marker, operation, err)
	case err != nil:
		return fmt.Errorf("%w: %w", marker, err)
	case operation != "":
		return fmt.Errorf("%w: %s", marker, operation)
	default:
		return marker
	}
}

// StageError is the single terminal failure of a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return e.Stage + " stage failed"
	}
	return e.Stage + " stage failed: " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage tag of err, or "" when err did not come from a
// pipeline stage.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// MissingArtifactError reports an intermediate file that should exist but
// does not.
type MissingArtifactError struct {
	Path string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingArtifact, e.Path)
}

func (e *MissingArtifactError) Is(target error) bool { return target == ErrMissingArtifact }
