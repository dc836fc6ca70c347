package subtitles

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forPelevin/shortcap/internal/failure"
	"github.com/forPelevin/shortcap/internal/types"
)

var ErrEmptyTranscript = errors.New("transcript has no segments")

// Format turns a transcript into an SRT document, one cue per segment, in
// transcript order.
func Format(tr types.Transcript) (types.SubtitleDocument, error) {
	if len(tr.Segments) == 0 {
		return types.SubtitleDocument{}, failure.Wrap(failure.ErrFormat, "format subtitles", ErrEmptyTranscript)
	}
	doc := types.SubtitleDocument{Cues: make([]types.SubtitleCue, 0, len(tr.Segments))}
	for i, s := range tr.Segments {
		if s.Start < 0 || math.IsNaN(s.Start) || math.IsNaN(s.End) {
			return types.SubtitleDocument{}, failure.Wrap(failure.ErrFormat,
				fmt.Sprintf("segment %d: invalid start %v", i+1, s.Start), nil)
		}
		if s.End <= s.Start {
			return types.SubtitleDocument{}, failure.Wrap(failure.ErrFormat,
				fmt.Sprintf("segment %d: end %v is not after start %v", i+1, s.End, s.Start), nil)
		}
		text := cueText(s.Text)
		if text == "" {
			return types.SubtitleDocument{}, failure.Wrap(failure.ErrFormat,
				fmt.Sprintf("segment %d: empty text", i+1), nil)
		}
		doc.Cues = append(doc.Cues, types.SubtitleCue{
			Index: i + 1,
			Start: s.Start,
			End:   s.End,
			Text:  text,
		})
	}
	return doc, nil
}

// cueText trims the text and drops blank inner lines, which would otherwise
// end the cue block early.
func cueText(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	out := lines[:0]
	for _, ln := range lines {
		ln = strings.TrimSpace(strings.TrimSuffix(ln, "\r"))
		if ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}

// Serialize renders the document as SubRip text.
func Serialize(doc types.SubtitleDocument) []byte {
	var b strings.Builder
	for _, c := range doc.Cues {
		b.WriteString(strconv.Itoa(c.Index))
		b.WriteByte('\n')
		b.WriteString(FormatTimestamp(c.Start))
		b.WriteString(" --> ")
		b.WriteString(FormatTimestamp(c.End))
		b.WriteByte('\n')
		b.WriteString(c.Text)
		b.WriteString("\n\n")
	}
	return []byte(b.String())
}

// WriteFile serializes doc to path. The file appears atomically.
func WriteFile(path string, doc types.SubtitleDocument) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".srt-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp subtitles: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(Serialize(doc)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write subtitles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close subtitles: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename subtitles: %w", err)
	}
	return nil
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm, truncating below the
// millisecond.
func FormatTimestamp(sec float64) string {
	if sec < 0 || math.IsNaN(sec) {
		sec = 0
	}
	// The small bias keeps exact decimals like 1.001 from flooring to 1.000.
	ms := int64(math.Floor(sec*1000 + 1e-6))
	h := ms / 3_600_000
	m := ms % 3_600_000 / 60_000
	s := ms % 60_000 / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// ParseTimestamp reads HH:MM:SS,mmm (a period separator is accepted too).
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if hours < 0 || minutes < 0 || minutes > 59 || seconds < 0 || seconds > 59 || millis < 0 || millis > 999 {
		return 0, fmt.Errorf("timestamp out of range %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}
