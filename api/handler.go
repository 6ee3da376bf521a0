// Package api exposes the pipeline and the reports over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"

	"github.com/korjavin/newsdigestbot/database"
	"github.com/korjavin/newsdigestbot/extractor"
	"github.com/korjavin/newsdigestbot/logger"
	"github.com/korjavin/newsdigestbot/models"
	"github.com/korjavin/newsdigestbot/pipeline"
	"github.com/korjavin/newsdigestbot/publisher"
	"github.com/korjavin/newsdigestbot/scoring"
)

type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Report, error)
	Publish(ctx context.Context, items []models.ContentItem, channelID string, mode pipeline.Mode) publisher.BulkReport
}

type AnswerRecorder interface {
	Record(ctx context.Context, ev models.AnswerEvent, correctAnswer string) (bool, error)
}

type Reporter interface {
	Location() *time.Location
	Scores(ctx context.Context, week *scoring.Week) ([]models.UserScore, error)
	QuestionStats(ctx context.Context, week *scoring.Week, order scoring.Order) ([]models.QuestionStat, error)
	PronunciationScores(ctx context.Context) ([]models.UserPronunciationScore, error)
	Weeks(ctx context.Context) ([]scoring.Week, error)
}

type Deps struct {
	Extractor pipeline.Extractor
	Pipeline  Runner
	Recorder  AnswerRecorder
	Posts     database.PostStore
	Reports   Reporter
}

type Config struct {
	DefaultChannel string
	DefaultMode    pipeline.Mode
	// Token, when set, is required as a bearer token on /api/v1.
	Token string
}

type Handler struct {
	deps Deps
	cfg  Config
	log  *logger.Logger
}

func NewHandler(deps Deps, cfg Config, log *logger.Logger) *Handler {
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = pipeline.ModeThreaded
	}
	return &Handler{deps: deps, cfg: cfg, log: log.With("service", "API")}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Extract runs extraction only and returns the deduplicated items.
func (h *Handler) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	var in extractor.Input
	if err := copier.Copy(&in, &req); err != nil {
		h.internalError(c, "Failed to read request", err)
		return
	}

	ext, err := h.deps.Extractor.Extract(c.Request.Context(), in)
	if err != nil {
		h.pipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, ExtractResponse{Items: nonNil(ext.Items), Images: nonNil(ext.Images), URLs: nonNil(ext.URLs)})
}

// Ingest runs the full pipeline: extract, assign images, enrich and publish.
func (h *Handler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	mode, err := h.mode(req.Mode)
	if err != nil {
		badRequest(c, "Invalid mode", err)
		return
	}
	var in extractor.Input
	if err := copier.Copy(&in, &req.ExtractRequest); err != nil {
		h.internalError(c, "Failed to read request", err)
		return
	}

	report, err := h.deps.Pipeline.Run(c.Request.Context(), pipeline.Request{
		Input:     in,
		ChannelID: firstNonEmpty(req.ChannelID, h.cfg.DefaultChannel),
		Mode:      mode,
		DryRun:    req.DryRun,
	})
	if err != nil {
		h.pipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, IngestResponse{
		Mode:    string(mode),
		Items:   nonNil(report.Items),
		Images:  nonNil(report.Images),
		Publish: report.Publish,
	})
}

// Publish posts already prepared items.
func (h *Handler) Publish(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	mode, err := h.mode(req.Mode)
	if err != nil {
		badRequest(c, "Invalid mode", err)
		return
	}
	channelID := firstNonEmpty(req.ChannelID, h.cfg.DefaultChannel)
	if channelID == "" {
		badRequest(c, "Invalid request", pipeline.ErrNoChannel)
		return
	}

	report := h.deps.Pipeline.Publish(c.Request.Context(), req.Items, channelID, mode)
	status := http.StatusOK
	if len(report.Results) == 0 && len(report.Failures) > 0 {
		status = http.StatusBadGateway
	}
	c.JSON(status, IngestResponse{Mode: string(mode), Items: req.Items, Publish: &report})
}

// SubmitAnswer records an answer event. Duplicates are reported with
// accepted=false and status 200.
func (h *Handler) SubmitAnswer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	ctx := c.Request.Context()

	correct := req.CorrectAnswer
	if correct == "" {
		question, err := h.lookupQuestion(ctx, req.QuizMessageID, req.QuestionIndex)
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Message: "Quiz not found"})
			return
		}
		if err != nil {
			badRequest(c, "Invalid answer", err)
			return
		}
		if question.CorrectIndex() < 0 {
			badRequest(c, "Invalid answer", errors.New("stored question has no valid correct option"))
			return
		}
		correct = question.Correct
		if req.QuestionText == "" {
			req.QuestionText = question.Prompt
		}
	}

	var ev models.AnswerEvent
	if err := copier.Copy(&ev, &req); err != nil {
		h.internalError(c, "Failed to read request", err)
		return
	}
	accepted, err := h.deps.Recorder.Record(ctx, ev, correct)
	if err != nil {
		h.internalError(c, "Failed to record answer", err)
		return
	}
	c.JSON(http.StatusOK, AnswerResponse{Accepted: accepted, Correct: accepted && ev.SelectedOption == correct})
}

func (h *Handler) lookupQuestion(ctx context.Context, quizID string, index int) (models.QuizQuestion, error) {
	if h.deps.Posts == nil {
		return models.QuizQuestion{}, errors.New("correctAnswer is required")
	}
	post, err := h.deps.Posts.GetPost(ctx, quizID)
	if err != nil {
		return models.QuizQuestion{}, err
	}
	if index < 0 || index >= len(post.Questions) {
		return models.QuizQuestion{}, fmt.Errorf("quiz %s has no question %d", quizID, index)
	}
	return post.Questions[index], nil
}

// Scores returns the leaderboard for ?week=YYYY-MM-DD, or all time.
func (h *Handler) Scores(c *gin.Context) {
	week, ok := h.week(c)
	if !ok {
		return
	}
	scores, err := h.deps.Reports.Scores(c.Request.Context(), week)
	if err != nil {
		h.internalError(c, "Failed to compute scores", err)
		return
	}
	rows, err := copyRows(scores, func(r *ScoreDTO, rank int) { r.Rank = rank })
	if err != nil {
		h.internalError(c, "Failed to compute scores", err)
		return
	}
	c.JSON(http.StatusOK, ReportResponse[ScoreDTO]{Week: weekDTO(week), Rows: rows})
}

// Questions returns per-question difficulty for ?week= ordered by ?order=.
func (h *Handler) Questions(c *gin.Context) {
	week, ok := h.week(c)
	if !ok {
		return
	}
	stats, err := h.deps.Reports.QuestionStats(c.Request.Context(), week, scoring.ParseOrder(c.Query("order")))
	if err != nil {
		h.internalError(c, "Failed to compute question statistics", err)
		return
	}
	rows, err := copyRows(stats, func(r *QuestionStatDTO, rank int) { r.Rank = rank })
	if err != nil {
		h.internalError(c, "Failed to compute question statistics", err)
		return
	}
	c.JSON(http.StatusOK, ReportResponse[QuestionStatDTO]{Week: weekDTO(week), Rows: rows})
}

func (h *Handler) Pronunciation(c *gin.Context) {
	scores, err := h.deps.Reports.PronunciationScores(c.Request.Context())
	if err != nil {
		h.internalError(c, "Failed to compute pronunciation scores", err)
		return
	}
	rows, err := copyRows(scores, func(r *PronunciationDTO, rank int) { r.Rank = rank })
	if err != nil {
		h.internalError(c, "Failed to compute pronunciation scores", err)
		return
	}
	c.JSON(http.StatusOK, ReportResponse[PronunciationDTO]{Rows: rows})
}

func (h *Handler) Weeks(c *gin.Context) {
	weeks, err := h.deps.Reports.Weeks(c.Request.Context())
	if err != nil {
		h.internalError(c, "Failed to list weeks", err)
		return
	}
	out := make([]WeekDTO, 0, len(weeks))
	for i := range weeks {
		out = append(out, *weekDTO(&weeks[i]))
	}
	c.JSON(http.StatusOK, out)
}

// week reads ?week=; an empty value means all time.
func (h *Handler) week(c *gin.Context) (*scoring.Week, bool) {
	raw := strings.TrimSpace(c.Query("week"))
	switch raw {
	case "":
		return nil, true
	case "current":
		w := scoring.WeekOf(time.Now(), h.deps.Reports.Location())
		return &w, true
	}
	w, err := scoring.ParseWeek(raw, h.deps.Reports.Location())
	if err != nil {
		badRequest(c, "Invalid week", err)
		return nil, false
	}
	return &w, true
}

func (h *Handler) mode(raw string) (pipeline.Mode, error) {
	if strings.TrimSpace(raw) == "" {
		return h.cfg.DefaultMode, nil
	}
	return pipeline.ParseMode(raw)
}

// pipelineError maps input errors to 4xx and everything else to 5xx.
func (h *Handler) pipelineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, extractor.ErrNoContent), errors.Is(err, pipeline.ErrNoChannel):
		badRequest(c, "Invalid request", err)
	case errors.Is(err, extractor.ErrGenerationTimeout):
		h.log.Warn("Generation timed out", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Message: "Content generation timed out", Details: []string{err.Error()}})
	default:
		h.internalError(c, "Processing failed", err)
	}
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.log.Error(msg, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Message: msg, Details: []string{err.Error()}})
}

func badRequest(c *gin.Context, msg string, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Message: msg, Details: []string{err.Error()}})
}

func weekDTO(w *scoring.Week) *WeekDTO {
	if w == nil {
		return nil
	}
	return &WeekDTO{Key: w.Key(), Label: w.String(), Start: w.Start, End: w.End()}
}

func copyRows[D, S any](src []S, rank func(*D, int)) ([]D, error) {
	rows := make([]D, len(src))
	for i := range src {
		if err := copier.Copy(&rows[i], &src[i]); err != nil {
			return nil, fmt.Errorf("map row %d: %w", i, err)
		}
		rank(&rows[i], i+1)
	}
	return rows, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
