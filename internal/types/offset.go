package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseOffset reads a time offset written as HH:MM:SS[.fff], MM:SS[.fff] or
// plain seconds ("65.5").
func ParseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time offset")
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid time offset %q", s)
	}

	var total float64
	for i, p := range parts {
		last := i == len(parts)-1
		if p == "" {
			return 0, fmt.Errorf("invalid time offset %q", s)
		}
		if !last {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid time offset %q", s)
			}
			if i > 0 && n >= 60 {
				return 0, fmt.Errorf("invalid time offset %q: minutes must be < 60", s)
			}
			total = total*60 + float64(n)
			continue
		}
		sec, err := strconv.ParseFloat(p, 64)
		if err != nil || sec < 0 || math.IsInf(sec, 0) || math.IsNaN(sec) {
			return 0, fmt.Errorf("invalid time offset %q", s)
		}
		if len(parts) > 1 && sec >= 60 {
			return 0, fmt.Errorf("invalid time offset %q: seconds must be < 60", s)
		}
		total = total*60 + sec
	}
	return time.Duration(math.Round(total * float64(time.Second))), nil
}

// ParseRange parses both bounds and validates the result.
func ParseRange(start, end string) (TimeRange, error) {
	s, err := ParseOffset(start)
	if err != nil {
		return TimeRange{}, fmt.Errorf("start: %w", err)
	}
	e, err := ParseOffset(end)
	if err != nil {
		return TimeRange{}, fmt.Errorf("end: %w", err)
	}
	r := TimeRange{Start: s, End: e}
	if err := r.Validate(); err != nil {
		return TimeRange{}, err
	}
	return r, nil
}
