// Package scoring builds leaderboards, question difficulty and pronunciation
// reports from the stored responses.
package scoring

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/korjavin/newsdigestbot/channel"
	"github.com/korjavin/newsdigestbot/database"
	"github.com/korjavin/newsdigestbot/logger"
	"github.com/korjavin/newsdigestbot/models"
)

// Order selects how QuestionStats are sorted.
type Order int

const (
	OrderHardestFirst Order = iota
	OrderEasiestFirst
)

// ParseOrder maps "hardest"/"easiest" to an Order; anything else is hardest first.
func ParseOrder(s string) Order {
	if strings.EqualFold(strings.TrimSpace(s), "easiest") {
		return OrderEasiestFirst
	}
	return OrderHardestFirst
}

const lookupTimeout = 5 * time.Second

type Engine struct {
	responses     database.ResponseStore
	pronunciation database.PronunciationStore
	directory     channel.Directory
	loc           *time.Location
	log           *logger.Logger
}

// New creates an Engine. pronunciation and directory may be nil.
func New(responses database.ResponseStore, pronunciation database.PronunciationStore, directory channel.Directory, loc *time.Location, log *logger.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		responses:     responses,
		pronunciation: pronunciation,
		directory:     directory,
		loc:           loc,
		log:           log.With("service", "Scoring"),
	}
}

// Location is the time zone weeks are computed in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// quizWeek buckets a record by the posting time embedded in its quiz id,
// falling back to the answer time.
func (e *Engine) quizWeek(rec models.ResponseRecord) Week {
	if t, ok := channel.MessageID(rec.QuizID).PostedAt(); ok {
		return WeekOf(t, e.loc)
	}
	return WeekOf(rec.Timestamp, e.loc)
}

// firstAttempts returns, in chronological order, the earliest record of every
// (user, quiz, question) triple that falls in week (nil means all time).
func (e *Engine) firstAttempts(ctx context.Context, week *Week) ([]models.ResponseRecord, error) {
	records, err := e.responses.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	type qkey struct {
		quiz     string
		question int
	}
	seen := make(map[string]map[qkey]bool)
	out := make([]models.ResponseRecord, 0, len(records))
	for _, rec := range records {
		userSeen, ok := seen[rec.UserID]
		if !ok {
			userSeen = make(map[qkey]bool)
			seen[rec.UserID] = userSeen
		}
		k := qkey{rec.QuizID, rec.QuestionIndex}
		if userSeen[k] {
			continue
		}
		userSeen[k] = true
		if week != nil && e.quizWeek(rec).Key() != week.Key() {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Scores returns the leaderboard for week, or for all time when week is nil.
func (e *Engine) Scores(ctx context.Context, week *Week) ([]models.UserScore, error) {
	records, err := e.firstAttempts(ctx, week)
	if err != nil {
		return nil, err
	}
	out := rank(records)
	names := e.displayNames(ctx, userIDs(len(out), func(i int) string { return out[i].UserID }))
	for i := range out {
		out[i].DisplayName = names[out[i].UserID]
	}
	return out, nil
}

// Standing is one user's leaderboard row with its 1-based position.
type Standing struct {
	models.UserScore
	Rank  int
	Total int
}

// UserStanding returns userID's row of the leaderboard for week (nil means
// all time). Only that user's display name is resolved. ok is false when the
// user has no answers in the period.
func (e *Engine) UserStanding(ctx context.Context, week *Week, userID string) (st Standing, ok bool, err error) {
	records, err := e.firstAttempts(ctx, week)
	if err != nil {
		return Standing{}, false, err
	}
	scores := rank(records)
	for i, s := range scores {
		if s.UserID != userID {
			continue
		}
		s.DisplayName = e.displayNames(ctx, []string{userID})[userID]
		return Standing{UserScore: s, Rank: i + 1, Total: len(scores)}, true, nil
	}
	return Standing{}, false, nil
}

// rank aggregates first attempts per user and sorts them into leaderboard
// order. Display names are left as user ids.
func rank(records []models.ResponseRecord) []models.UserScore {
	byUser := make(map[string]*models.UserScore)
	for _, rec := range records {
		s, ok := byUser[rec.UserID]
		if !ok {
			s = &models.UserScore{UserID: rec.UserID, DisplayName: rec.UserID}
			byUser[rec.UserID] = s
		}
		s.TotalAnswered++
		if rec.IsCorrect {
			s.CorrectAnswers++
		}
	}

	out := make([]models.UserScore, 0, len(byUser))
	for _, s := range byUser {
		s.Score = s.CorrectAnswers
		s.Accuracy = percent(s.CorrectAnswers, s.TotalAnswered)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Accuracy != b.Accuracy {
			return a.Accuracy > b.Accuracy
		}
		if a.TotalAnswered != b.TotalAnswered {
			return a.TotalAnswered > b.TotalAnswered
		}
		return a.UserID < b.UserID
	})
	return out
}

// QuestionStats returns per-question difficulty over first attempts.
func (e *Engine) QuestionStats(ctx context.Context, week *Week, order Order) ([]models.QuestionStat, error) {
	records, err := e.firstAttempts(ctx, week)
	if err != nil {
		return nil, err
	}

	type qkey struct {
		quiz     string
		question int
	}
	byQuestion := make(map[qkey]*models.QuestionStat)
	for _, rec := range records {
		k := qkey{rec.QuizID, rec.QuestionIndex}
		s, ok := byQuestion[k]
		if !ok {
			s = &models.QuestionStat{QuizID: rec.QuizID, QuestionIndex: rec.QuestionIndex}
			byQuestion[k] = s
		}
		if s.QuestionText == "" {
			s.QuestionText = rec.QuestionText
		}
		s.Attempts++
		if rec.IsCorrect {
			s.Correct++
		}
	}

	out := make([]models.QuestionStat, 0, len(byQuestion))
	for _, s := range byQuestion {
		s.Difficulty = percent(s.Correct, s.Attempts)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Difficulty != b.Difficulty {
			if order == OrderEasiestFirst {
				return a.Difficulty > b.Difficulty
			}
			return a.Difficulty < b.Difficulty
		}
		if a.Attempts != b.Attempts {
			return a.Attempts > b.Attempts
		}
		if a.QuizID != b.QuizID {
			return a.QuizID < b.QuizID
		}
		return a.QuestionIndex < b.QuestionIndex
	})
	return out, nil
}

// PronunciationScores aggregates every voice-practice attempt per user.
func (e *Engine) PronunciationScores(ctx context.Context) ([]models.UserPronunciationScore, error) {
	if e.pronunciation == nil {
		return []models.UserPronunciationScore{}, nil
	}
	records, err := e.pronunciation.AllPronunciation(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pronunciation attempts: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	type acc struct {
		score models.UserPronunciationScore
		first int
		total int
	}
	byUser := make(map[string]*acc)
	for _, rec := range records {
		a, ok := byUser[rec.UserID]
		if !ok {
			a = &acc{score: models.UserPronunciationScore{UserID: rec.UserID}, first: rec.Score}
			byUser[rec.UserID] = a
		}
		a.score.Attempts++
		a.total += rec.Score
		if rec.Score > a.score.BestScore {
			a.score.BestScore = rec.Score
		}
		a.score.LatestScore = rec.Score
	}

	out := make([]models.UserPronunciationScore, 0, len(byUser))
	for _, a := range byUser {
		s := a.score
		s.AverageScore = float64(a.total) / float64(s.Attempts)
		s.Trend = s.LatestScore - a.first
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.AverageScore != b.AverageScore {
			return a.AverageScore > b.AverageScore
		}
		if a.Attempts != b.Attempts {
			return a.Attempts > b.Attempts
		}
		return a.UserID < b.UserID
	})

	names := e.displayNames(ctx, userIDs(len(out), func(i int) string { return out[i].UserID }))
	for i := range out {
		out[i].DisplayName = names[out[i].UserID]
	}
	return out, nil
}

// Weeks lists the week buckets that have responses, newest first.
func (e *Engine) Weeks(ctx context.Context) ([]Week, error) {
	records, err := e.responses.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}
	seen := make(map[string]Week)
	for _, rec := range records {
		w := e.quizWeek(rec)
		seen[w.Key()] = w
	}
	out := make([]Week, 0, len(seen))
	for _, w := range seen {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return out, nil
}

// displayNames resolves ids through the directory. A failed lookup keeps the id.
func (e *Engine) displayNames(ctx context.Context, ids []string) map[string]string {
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		names[id] = id
	}
	if e.directory == nil || len(ids) == 0 {
		return names
	}

	resolved := make([]string, len(ids))
	var g errgroup.Group
	g.SetLimit(4)
	for i, id := range ids {
		g.Go(func() error {
			lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
			defer cancel()
			name, err := e.directory.LookupUser(lctx, id)
			if err != nil {
				e.log.Debug("User lookup failed", "user", id, "error", err)
				return nil
			}
			resolved[i] = strings.TrimSpace(name)
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range ids {
		if resolved[i] != "" {
			names[id] = resolved[i]
		}
	}
	return names
}

func userIDs(n int, at func(int) string) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = at(i)
	}
	return ids
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
