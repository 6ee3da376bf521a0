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

const (
	// The caller bounds each call with its own context; this only guards
	// against a connection that never completes.
	apiTimeout = 90 * time.Second
)

// DeepseekClient manages interactions with Deepseek API
type DeepseekClient struct {
	apiKey     string
	url        string
	model      string
	httpClient *http.Client
	log        *logger.Logger
}

// NewDeepseekClient creates a new Deepseek API client
func NewDeepseekClient(apiKey, url, model string, log *logger.Logger) *DeepseekClient {
	return &DeepseekClient{
		apiKey:     apiKey,
		url:        url,
		model:      model,
		httpClient: &http.Client{Timeout: apiTimeout},
		log:        log.With("service", "DeepseekClient"),
	}
}

type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepseekRequest struct {
	Model    string            `json:"model"`
	Messages []deepseekMessage `json:"messages"`
}

type deepseekResponseChoice struct {
	Message deepseekMessage `json:"message"`
}

type deepseekResponse struct {
	Choices []deepseekResponseChoice `json:"choices"`
	ID      string                   `json:"id,omitempty"`
	Usage   map[string]interface{}   `json:"usage,omitempty"`
}

// Generate sends prompt as a single user message and returns the first choice.
func (c *DeepseekClient) Generate(ctx context.Context, prompt string) (string, error) {
	startTime := time.Now()

	reqJSON, err := json.Marshal(deepseekRequest{
		Model:    c.model,
		Messages: []deepseekMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	c.log.Debug("Deepseek request", "payload", logger.Truncate(string(reqJSON), 200))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqJSON))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	reqDuration := time.Since(startTime)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.log.Warn("Deepseek request timed out", "after", reqDuration)
		} else {
			c.log.Error("Deepseek request failed", "error", err, "after", reqDuration)
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error("Deepseek API error", "status", resp.StatusCode, "body", logger.Truncate(string(body), 300))
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, logger.Truncate(string(body), 300))
	}
	c.log.Debug("Deepseek response", "status", resp.StatusCode, "duration", reqDuration, "body", logger.Truncate(string(body), 300))

	var deepseekResp deepseekResponse
	if err := json.Unmarshal(body, &deepseekResp); err != nil {
		return "", fmt.Errorf("decode deepseek response: %w", err)
	}
	if len(deepseekResp.Choices) == 0 {
		return "", errors.New("no choices in API response")
	}
	return deepseekResp.Choices[0].Message.Content, nil
}
