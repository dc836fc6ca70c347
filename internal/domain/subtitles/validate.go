package subtitles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/forPelevin/shortcap/internal/failure"
)

const arrow = "-->"

// FormatError points at the first malformed timing line of an SRT document.
type FormatError struct {
	Line    int
	Content string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid timing line %d: %q", e.Line, e.Content)
}

func (e *FormatError) Is(target error) bool { return target == failure.ErrFormat }

// Validate checks that every line carrying an arrow splits into exactly two
// fields. Timestamps, ordering and indices are not inspected.
func Validate(data []byte) error {
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.Contains(line, arrow) {
			continue
		}
		if len(strings.Split(line, arrow)) != 2 {
			return &FormatError{Line: i + 1, Content: line}
		}
	}
	return nil
}

// ValidateFile runs Validate on the file at path. An absent file is reported
// as a missing artifact.
func ValidateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &failure.MissingArtifactError{Path: path}
		}
		return fmt.Errorf("read subtitles: %w", err)
	}
	return Validate(data)
}

// CountCues counts timing lines.
func CountCues(data []byte) int {
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, arrow) {
			n++
		}
	}
	return n
}
