package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/forPelevin/shortcap/internal/failure"
)

//go:embed sample_config.toml
var sampleConfig string

// SampleConfig returns the annotated default configuration file.
func SampleConfig() string { return sampleConfig }

const (
	TranscriberWhisperCPP = "whispercpp"
	TranscriberWhisperAPI = "whisperapi"
)

// Paths contains output and state locations.
type Paths struct {
	OutDir   string `toml:"out_dir"`
	StateDir string `toml:"state_dir"`
}

// Engines selects and locates the external tools behind each stage.
type Engines struct {
	YtDlp           string `toml:"ytdlp"`
	FFmpeg          string `toml:"ffmpeg"`
	Transcriber     string `toml:"transcriber"`
	WhisperBin      string `toml:"whisper_bin"`
	WhisperModelDir string `toml:"whisper_model_dir"`
	ModelLifecycle  string `toml:"model_lifecycle"`
	DefaultModel    string `toml:"default_model"`
	Threads         int    `toml:"threads"`
}

// Encoding contains the trim and caption transcode settings.
type Encoding struct {
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	VideoCodec string `toml:"video_codec"`
	Preset     string `toml:"preset"`
	CRF        int    `toml:"crf"`
	AudioCodec string `toml:"audio_codec"`
}

// WhisperAPI configures the hosted transcription engine.
type WhisperAPI struct {
	BaseURL        string   `toml:"base_url"`
	APIKey         string   `toml:"api_key"`
	Model          string   `toml:"model"`
	AllowedHosts   []string `toml:"allowed_hosts"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for shortcap.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Engines    Engines    `toml:"engines"`
	Encoding   Encoding   `toml:"encoding"`
	WhisperAPI WhisperAPI `toml:"whisper_api"`
	Logging    Logging    `toml:"logging"`
}

// Load locates, parses, and validates a configuration file. Environment
// overrides are applied after the file. It returns the config, the resolved
// path and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/shortcap/config.toml")
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("shortcap.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("SHORTCAP_OUT_DIR")); v != "" {
		c.Paths.OutDir = v
	}
	if v := strings.TrimSpace(os.Getenv("SHORTCAP_TRANSCRIBER")); v != "" {
		c.Engines.Transcriber = v
	}
	if v := strings.TrimSpace(os.Getenv("SHORTCAP_WHISPER_API_KEY")); v != "" {
		c.WhisperAPI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("SHORTCAP_WHISPER_API_BASE_URL")); v != "" {
		c.WhisperAPI.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SHORTCAP_WHISPER_API_ALLOWED_HOSTS")); v != "" {
		c.WhisperAPI.AllowedHosts = strings.Split(v, ",")
	}
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.OutDir, err = expandPath(strings.TrimSpace(c.Paths.OutDir)); err != nil {
		return err
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return err
	}
	if c.Engines.WhisperModelDir, err = expandPath(strings.TrimSpace(c.Engines.WhisperModelDir)); err != nil {
		return err
	}
	c.Engines.Transcriber = strings.ToLower(strings.TrimSpace(c.Engines.Transcriber))
	c.Engines.ModelLifecycle = strings.ToLower(strings.TrimSpace(c.Engines.ModelLifecycle))
	c.Engines.DefaultModel = strings.TrimSpace(c.Engines.DefaultModel)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	return nil
}

// Validate checks structural configuration invariants.
func (c *Config) Validate() error {
	var problems []string
	if c.Paths.OutDir == "" {
		problems = append(problems, "paths.out_dir is required")
	}
	if c.Paths.StateDir == "" {
		problems = append(problems, "paths.state_dir is required")
	}
	switch c.Engines.Transcriber {
	case TranscriberWhisperCPP, TranscriberWhisperAPI:
	default:
		problems = append(problems, fmt.Sprintf("engines.transcriber must be %q or %q, got %q",
			TranscriberWhisperCPP, TranscriberWhisperAPI, c.Engines.Transcriber))
	}
	switch c.Engines.ModelLifecycle {
	case "process", "call":
	default:
		problems = append(problems, fmt.Sprintf("engines.model_lifecycle must be \"process\" or \"call\", got %q", c.Engines.ModelLifecycle))
	}
	if c.Engines.Threads < 0 {
		problems = append(problems, "engines.threads must be >= 0")
	}
	if c.Encoding.Width <= 0 || c.Encoding.Height <= 0 {
		problems = append(problems, "encoding.width and encoding.height must be > 0")
	}
	if c.Encoding.CRF < 0 || c.Encoding.CRF > 51 {
		problems = append(problems, "encoding.crf must be within 0..51")
	}
	if c.WhisperAPI.TimeoutSeconds < 0 {
		problems = append(problems, "whisper_api.timeout_seconds must be >= 0")
	}
	switch c.Logging.Format {
	case "", "auto", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be auto, console or json, got %q", c.Logging.Format))
	}
	if len(problems) > 0 {
		return failure.Wrap(failure.ErrConfiguration, strings.Join(problems, "; "), nil)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
