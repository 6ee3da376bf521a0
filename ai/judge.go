package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/korjavin/newsdigestbot/logger"
)

// ErrJudgeDisabled is returned when no pronunciation judge is configured.
var ErrJudgeDisabled = errors.New("pronunciation judge disabled")

// Judgement is the verdict on one spoken attempt.
type Judgement struct {
	Transcript string `json:"transcript"`
	Score      int    `json:"score"`
	Feedback   string `json:"feedback"`
}

// Judge transcribes a spoken attempt and scores it against a reference text.
type Judge interface {
	Judge(ctx context.Context, audio []byte, mimeType, referenceText string) (*Judgement, error)
}

// HTTPJudge posts the recording to an external scoring service as
// multipart/form-data and expects a Judgement JSON body back.
type HTTPJudge struct {
	url        string
	httpClient *http.Client
	log        *logger.Logger
}

func NewHTTPJudge(url string, log *logger.Logger) *HTTPJudge {
	return &HTTPJudge{
		url:        url,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log.With("service", "HTTPJudge"),
	}
}

func (j *HTTPJudge) Judge(ctx context.Context, audio []byte, mimeType, referenceText string) (*Judgement, error) {
	if j.url == "" {
		return nil, ErrJudgeDisabled
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("reference_text", referenceText); err != nil {
		return nil, err
	}
	if err := mw.WriteField("mime_type", mimeType); err != nil {
		return nil, err
	}
	fw, err := mw.CreateFormFile("audio", "attempt.ogg")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("judge request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		j.log.Warn("Judge returned error", "status", resp.StatusCode, "body", logger.Truncate(string(body), 300))
		return nil, fmt.Errorf("judge returned status %d", resp.StatusCode)
	}

	var out Judgement
	if err := ParseJSONObject(string(body), &out); err != nil {
		return nil, fmt.Errorf("decode judgement: %w", err)
	}
	out.Score = clampScore(out.Score)
	return &out, nil
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
