// Package recorder stores quiz answers, keeping only the first attempt per
// user, quiz and question.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/korjavin/newsdigestbot/database"
	"github.com/korjavin/newsdigestbot/logger"
	"github.com/korjavin/newsdigestbot/models"
)

type key struct {
	user     string
	quiz     string
	question int
}

// Recorder guards the answer store with an in-memory index of answered
// triples. The index is loaded from the store on first use.
type Recorder struct {
	store database.ResponseStore
	now   func() time.Time
	log   *logger.Logger

	mu       sync.Mutex
	loaded   bool
	answered map[key]struct{}
}

func New(store database.ResponseStore, log *logger.Logger) *Recorder {
	return &Recorder{
		store:    store,
		now:      time.Now,
		log:      log.With("service", "Recorder"),
		answered: make(map[key]struct{}),
	}
}

// Record stores ev when it is the user's first answer to the question. It
// returns false without writing anything when an answer already exists.
func (r *Recorder) Record(ctx context.Context, ev models.AnswerEvent, correctAnswer string) (bool, error) {
	if ev.UserID == "" || ev.QuizMessageID == "" || ev.QuestionIndex < 0 {
		return false, fmt.Errorf("invalid answer event: user=%q quiz=%q question=%d", ev.UserID, ev.QuizMessageID, ev.QuestionIndex)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx); err != nil {
		return false, err
	}

	k := key{ev.UserID, ev.QuizMessageID, ev.QuestionIndex}
	if _, ok := r.answered[k]; ok {
		r.log.Debug("Ignoring repeated answer", "user", ev.UserID, "quiz", ev.QuizMessageID, "question", ev.QuestionIndex)
		return false, nil
	}

	rec := models.ResponseRecord{
		UserID:        ev.UserID,
		QuizID:        ev.QuizMessageID,
		QuestionIndex: ev.QuestionIndex,
		QuestionText:  ev.QuestionText,
		AnswerText:    ev.SelectedOption,
		IsCorrect:     strings.TrimSpace(ev.SelectedOption) == strings.TrimSpace(correctAnswer),
		Timestamp:     r.now().UTC(),
	}
	if err := r.store.Append(ctx, rec); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			r.answered[k] = struct{}{}
			return false, nil
		}
		return false, fmt.Errorf("store answer: %w", err)
	}
	r.answered[k] = struct{}{}

	r.log.Info("Recorded answer", "user", ev.UserID, "quiz", ev.QuizMessageID, "question", ev.QuestionIndex, "correct", rec.IsCorrect)
	return true, nil
}

// Answered reports whether the user already answered the question.
func (r *Recorder) Answered(ctx context.Context, userID, quizID string, questionIndex int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(ctx); err != nil {
		return false, err
	}
	_, ok := r.answered[key{userID, quizID, questionIndex}]
	return ok, nil
}

// load builds the index from the store. Callers hold r.mu.
func (r *Recorder) load(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	records, err := r.store.All(ctx)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}
	for _, rec := range records {
		r.answered[key{rec.UserID, rec.QuizID, rec.QuestionIndex}] = struct{}{}
	}
	r.loaded = true
	r.log.Debug("Loaded answer index", "records", len(records))
	return nil
}
