// Package whisperapi transcribes through an OpenAI-compatible
// /v1/audio/transcriptions endpoint.
package whisperapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/forPelevin/shortcap/internal/failure"
	"github.com/forPelevin/shortcap/internal/ports"
	"github.com/forPelevin/shortcap/internal/types"
)

const defaultModel = "whisper-1"

// Local quality tiers have no meaning to a hosted API; they map to the
// configured remote model.
var localTiers = map[string]struct{}{
	"tiny": {}, "base": {}, "small": {}, "medium": {}, "large": {},
	"large-v2": {}, "large-v3": {}, "large-v3-turbo": {},
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Adapter struct {
	key     string
	model   string
	baseURL string
	timeout time.Duration
	audio   ports.AudioExtractor
	client  *http.Client
}

func New(cfg Config, audio ports.AudioExtractor) *Adapter {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Adapter{
		key:     cfg.APIKey,
		model:   cfg.Model,
		baseURL: normalizeBaseURL(cfg.BaseURL),
		timeout: cfg.Timeout,
		audio:   audio,
		client:  &http.Client{Timeout: cfg.Timeout + 30*time.Second},
	}
}

func (a *Adapter) remoteModel(selector string) string {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return a.model
	}
	if _, ok := localTiers[strings.ToLower(selector)]; ok {
		return a.model
	}
	return selector
}

func (a *Adapter) Transcribe(ctx context.Context, in types.MediaArtifact, model string) (types.Transcript, error) {
	scratch, err := os.MkdirTemp("", "shortcap-whisperapi-*")
	if err != nil {
		return types.Transcript{}, failure.Wrap(failure.ErrTranscription, "scratch dir", err)
	}
	defer os.RemoveAll(scratch)

	wav := filepath.Join(scratch, "audio.wav")
	if err := a.audio.ExtractAudioMono16k(ctx, in.Path, wav); err != nil {
		return types.Transcript{}, failure.Wrap(failure.ErrTranscription, "audio track", err)
	}

	remote := a.remoteModel(model)
	tr, err := a.post(ctx, wav, remote)
	if err != nil {
		return types.Transcript{}, failure.Wrap(failure.ErrTranscription, "whisper api", err)
	}
	tr.Model = remote
	return tr, nil
}

func (a *Adapter) post(ctx context.Context, wavPath, model string) (types.Transcript, error) {
	body, contentType, err := multipartBody(wavPath, model)
	if err != nil {
		return types.Transcript{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.baseURL+"/v1/audio/transcriptions", body)
	if err != nil {
		return types.Transcript{}, err
	}
	if a.key != "" {
		req.Header.Set("Authorization", "Bearer "+a.key)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return types.Transcript{}, fmt.Errorf("timeout after %s (model=%s)", a.timeout, model)
		}
		return types.Transcript{}, errors.New(redactSecrets(err.Error(), a.key))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return types.Transcript{}, fmt.Errorf("status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return types.Transcript{}, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(redactSecrets(string(rb), a.key), 400))
	}

	var raw verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return types.Transcript{}, fmt.Errorf("decode response: %w", err)
	}
	return raw.transcript(), nil
}

func multipartBody(wavPath, model string) (io.Reader, string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := [][2]string{
		{"model", model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &body, mw.FormDataContentType(), nil
}

type verboseResponse struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (r verboseResponse) transcript() types.Transcript {
	tr := types.Transcript{Language: r.Language}
	for _, s := range r.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" || s.End <= s.Start || s.Start < 0 {
			continue
		}
		tr.Segments = append(tr.Segments, types.Segment{Start: s.Start, End: s.End, Text: text})
	}
	return tr
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
