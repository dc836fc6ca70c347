package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/forPelevin/shortcap/internal/failure"
	"github.com/forPelevin/shortcap/internal/types"
)

// jobFile is the on-disk batch format:
//
//	[[job]]
//	url = "https://..."
//	start = "00:01:10"
//	end = "00:01:40"
//	model = "small"
type jobFile struct {
	Jobs []jobEntry `toml:"job"`
}

type jobEntry struct {
	Name  string `toml:"name"`
	URL   string `toml:"url"`
	Start string `toml:"start"`
	End   string `toml:"end"`
	Model string `toml:"model"`
}

// LoadJobs reads a batch job file from disk.
func LoadJobs(path string) ([]Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.Wrap(failure.ErrConfiguration, "read job file", err)
	}
	return ParseJobs(b)
}

// ParseJobs decodes a batch job file. Every entry is validated up front so a
// typo in the last job does not surface after the first ones have run.
func ParseJobs(data []byte) ([]Job, error) {
	var f jobFile
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, failure.Wrap(failure.ErrConfiguration, "parse job file", err)
	}
	if len(f.Jobs) == 0 {
		return nil, failure.Wrap(failure.ErrConfiguration, "job file has no [[job]] entries", nil)
	}

	jobs := make([]Job, 0, len(f.Jobs))
	for i, e := range f.Jobs {
		url := strings.TrimSpace(e.URL)
		if url == "" {
			return nil, failure.Wrap(failure.ErrConfiguration, fmt.Sprintf("job %d: url is required", i+1), nil)
		}
		r, err := types.ParseRange(e.Start, e.End)
		if err != nil {
			return nil, failure.Wrap(failure.ErrConfiguration, fmt.Sprintf("job %d", i+1), err)
		}
		jobs = append(jobs, Job{
			Name:    strings.TrimSpace(e.Name),
			Locator: url,
			Range:   r,
			Model:   strings.TrimSpace(e.Model),
		})
	}
	return jobs, nil
}
