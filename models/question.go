package models

import (
	"strings"
	"time"
)

// QuizQuestion is one multiple-choice question attached to a news item.
// Correct holds the verbatim text of one of the options, never an index.
type QuizQuestion struct {
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
	Correct string   `json:"correct"`
}

// QuizOptionCount is the number of options every generated question carries.
const QuizOptionCount = 4

// CorrectIndex returns the index of the correct option or -1 when Correct
// matches none of the options.
func (q QuizQuestion) CorrectIndex() int {
	for i, opt := range q.Options {
		if opt == q.Correct {
			return i
		}
	}
	return -1
}

// Valid reports whether the question has a prompt, exactly QuizOptionCount
// options and a correct answer equal to one of them.
func (q QuizQuestion) Valid() bool {
	if strings.TrimSpace(q.Prompt) == "" || len(q.Options) != QuizOptionCount {
		return false
	}
	return q.CorrectIndex() >= 0
}

// VocabularyTerm is a single glossary entry generated for a news item.
type VocabularyTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// AnswerEvent is an answer submission coming from the channel.
type AnswerEvent struct {
	UserID         string
	QuizMessageID  string
	QuestionIndex  int
	SelectedOption string
	// QuestionText is copied into the stored record when the caller knows it.
	QuestionText string
}

// ResponseRecord is a persisted answer. There is at most one record per
// (UserID, QuizID, QuestionIndex).
type ResponseRecord struct {
	UserID        string    `json:"userId"`
	QuizID        string    `json:"quizId"`
	QuestionIndex int       `json:"questionIndex"`
	QuestionText  string    `json:"questionText"`
	AnswerText    string    `json:"answerText"`
	IsCorrect     bool      `json:"isCorrect"`
	Timestamp     time.Time `json:"timestamp"`
}

// PronunciationRecord stores one voice-practice attempt. Every attempt is kept.
type PronunciationRecord struct {
	UserID          string    `json:"userId"`
	ThreadID        string    `json:"threadId"`
	OriginalText    string    `json:"originalText"`
	TranscribedText string    `json:"transcribedText"`
	Score           int       `json:"score"`
	Feedback        string    `json:"feedback"`
	Timestamp       time.Time `json:"timestamp"`
}

// PostRecord describes a published message that later interactions refer to:
// quiz answers resolve their question through it and voice practice uses Text
// as the reference sentence.
type PostRecord struct {
	MessageID string         `json:"messageId"`
	ChannelID string         `json:"channelId"`
	PostedAt  time.Time      `json:"postedAt"`
	Title     string         `json:"title"`
	Text      string         `json:"text"`
	Questions []QuizQuestion `json:"questions,omitempty"`
}
