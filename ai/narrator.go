package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/korjavin/newsdigestbot/logger"
)

// ErrNarrationDisabled is returned when no TTS credentials are configured.
var ErrNarrationDisabled = errors.New("narration disabled")

// NarrationRequest describes text to synthesise. Empty Voice and Model fall
// back to the client defaults.
type NarrationRequest struct {
	Text  string
	Voice string
	Model string
}

// Narrator synthesises speech for a text.
type Narrator interface {
	Synthesize(ctx context.Context, req NarrationRequest) ([]byte, error)
}

// SpeechClient calls an OpenAI-compatible /v1/audio/speech endpoint.
type SpeechClient struct {
	apiKey     string
	url        string
	model      string
	voice      string
	httpClient *http.Client
	log        *logger.Logger
}

// NewSpeechClient creates a TTS client. An empty apiKey yields a client that
// always returns ErrNarrationDisabled.
func NewSpeechClient(apiKey, url, model, voice string, log *logger.Logger) *SpeechClient {
	return &SpeechClient{
		apiKey:     apiKey,
		url:        url,
		model:      model,
		voice:      voice,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log.With("service", "SpeechClient"),
	}
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// maxNarrationChars is the input limit of the speech endpoint.
const maxNarrationChars = 4096

func (c *SpeechClient) Synthesize(ctx context.Context, req NarrationRequest) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrNarrationDisabled
	}
	text := req.Text
	if r := []rune(text); len(r) > maxNarrationChars {
		text = string(r[:maxNarrationChars])
	}
	payload := speechRequest{
		Model:          firstNonEmpty(req.Model, c.model),
		Input:          text,
		Voice:          firstNonEmpty(req.Voice, c.voice),
		ResponseFormat: "mp3",
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("Speech API error", "status", resp.StatusCode, "body", logger.Truncate(string(body), 300))
		return nil, fmt.Errorf("speech API returned status %d", resp.StatusCode)
	}
	if len(body) == 0 {
		return nil, errors.New("speech API returned no audio")
	}
	return body, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
