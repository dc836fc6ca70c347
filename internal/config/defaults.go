package config

const (
	defaultOutDir          = "out"
	defaultStateDir        = "~/.local/share/shortcap"
	defaultYtDlp           = "yt-dlp"
	defaultFFmpeg          = "ffmpeg"
	defaultTranscriber     = TranscriberWhisperCPP
	defaultWhisperBin      = "whisper-cli"
	defaultWhisperModelDir = "~/.cache/shortcap/models"
	defaultModelLifecycle  = "process"
	defaultModel           = "medium"
	defaultWidth           = 1080
	defaultHeight          = 1920
	defaultVideoCodec      = "libx264"
	defaultPreset          = "fast"
	defaultCRF             = 23
	defaultAudioCodec      = "aac"
	defaultAPIBaseURL      = "https://api.openai.com"
	defaultAPIModel        = "whisper-1"
	defaultAPITimeout      = 600
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutDir:   defaultOutDir,
			StateDir: defaultStateDir,
		},
		Engines: Engines{
			YtDlp:           defaultYtDlp,
			FFmpeg:          defaultFFmpeg,
			Transcriber:     defaultTranscriber,
			WhisperBin:      defaultWhisperBin,
			WhisperModelDir: defaultWhisperModelDir,
			ModelLifecycle:  defaultModelLifecycle,
			DefaultModel:    defaultModel,
		},
		Encoding: Encoding{
			Width:      defaultWidth,
			Height:     defaultHeight,
			VideoCodec: defaultVideoCodec,
			Preset:     defaultPreset,
			CRF:        defaultCRF,
			AudioCodec: defaultAudioCodec,
		},
		WhisperAPI: WhisperAPI{
			BaseURL:        defaultAPIBaseURL,
			Model:          defaultAPIModel,
			TimeoutSeconds: defaultAPITimeout,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
