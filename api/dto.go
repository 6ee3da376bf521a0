package api

import (
	"time"

	"github.com/korjavin/newsdigestbot/models"
	"github.com/korjavin/newsdigestbot/publisher"
)

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// ExtractRequest carries raw content. Field names match extractor.Input.
type ExtractRequest struct {
	Text   string   `json:"text"`
	URLs   []string `json:"urls"`
	Images []string `json:"images"`
}

type ExtractResponse struct {
	Items  []models.ContentItem `json:"items"`
	Images []string             `json:"images"`
	URLs   []string             `json:"urls"`
}

type IngestRequest struct {
	ExtractRequest
	ChannelID string `json:"channelId"`
	Mode      string `json:"mode"`
	DryRun    bool   `json:"dryRun"`
}

type PublishRequest struct {
	Items     []models.ContentItem `json:"items" binding:"required"`
	ChannelID string               `json:"channelId"`
	Mode      string               `json:"mode"`
}

type IngestResponse struct {
	Mode    string                `json:"mode"`
	Items   []models.ContentItem  `json:"items"`
	Images  []string              `json:"images"`
	Publish *publisher.BulkReport `json:"publish,omitempty"`
}

// AnswerRequest is an answer submitted by a front end other than the bot.
// CorrectAnswer may be omitted when the quiz was published by this service.
type AnswerRequest struct {
	UserID         string `json:"userId" binding:"required"`
	QuizMessageID  string `json:"quizId" binding:"required"`
	QuestionIndex  int    `json:"questionIndex"`
	SelectedOption string `json:"selectedOption" binding:"required"`
	QuestionText   string `json:"questionText"`
	CorrectAnswer  string `json:"correctAnswer"`
}

type AnswerResponse struct {
	Accepted bool `json:"accepted"`
	Correct  bool `json:"correct"`
}

type ScoreDTO struct {
	Rank           int     `json:"rank"`
	UserID         string  `json:"userId"`
	DisplayName    string  `json:"displayName"`
	Score          int     `json:"score"`
	TotalAnswered  int     `json:"totalAnswered"`
	CorrectAnswers int     `json:"correctAnswers"`
	Accuracy       float64 `json:"accuracy"`
}

type QuestionStatDTO struct {
	Rank          int     `json:"rank"`
	QuizID        string  `json:"quizId"`
	QuestionIndex int     `json:"questionIndex"`
	QuestionText  string  `json:"questionText"`
	Attempts      int     `json:"attempts"`
	Correct       int     `json:"correct"`
	Difficulty    float64 `json:"difficulty"`
}

type PronunciationDTO struct {
	Rank         int     `json:"rank"`
	UserID       string  `json:"userId"`
	DisplayName  string  `json:"displayName"`
	Attempts     int     `json:"attempts"`
	AverageScore float64 `json:"averageScore"`
	BestScore    int     `json:"bestScore"`
	LatestScore  int     `json:"latestScore"`
	Trend        int     `json:"trend"`
}

type WeekDTO struct {
	Key   string    `json:"key"`
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ReportResponse wraps a report with the week it covers; Week is nil for
// all-time reports.
type ReportResponse[T any] struct {
	Week *WeekDTO `json:"week,omitempty"`
	Rows []T      `json:"rows"`
}
