package bot

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/newsdigestbot/extractor"
	"github.com/korjavin/newsdigestbot/models"
	"github.com/korjavin/newsdigestbot/pipeline"
	"github.com/korjavin/newsdigestbot/publisher"
	"github.com/korjavin/newsdigestbot/scoring"
)

func TestIngestInput(t *testing.T) {
	msg := &tgbotapi.Message{
		Caption: "Look at this",
		CaptionEntities: []tgbotapi.MessageEntity{
			{Type: "text_link", URL: "https://news.test/a"},
			{Type: "bold"},
		},
	}
	in := ingestInput(msg)
	if in.Text != "Look at this" || len(in.URLs) != 1 || in.URLs[0] != "https://news.test/a" {
		t.Fatalf("input = %+v", in)
	}
}

func TestPostID(t *testing.T) {
	direct := &tgbotapi.Message{MessageID: 42, Date: 1741082400}
	if got := postID(direct).String(); got != "1741082400.000042" {
		t.Fatalf("direct = %s", got)
	}
	forwarded := &tgbotapi.Message{
		MessageID:            7,
		Date:                 1741082460,
		ForwardFromChat:      &tgbotapi.Chat{ID: -100123},
		ForwardFromMessageID: 42,
		ForwardDate:          1741082400,
	}
	if got := postID(forwarded).String(); got != "1741082400.000042" {
		t.Fatalf("forwarded = %s", got)
	}
}

func TestResolveAnswer(t *testing.T) {
	post := &models.PostRecord{Questions: []models.QuizQuestion{{Prompt: "Q", Options: []string{"a", "b"}, Correct: "b"}}}
	q, opt, ok := resolveAnswer(post, 0, 1)
	if !ok || opt != "b" || q.Correct != "b" {
		t.Fatalf("resolveAnswer = %+v %q %v", q, opt, ok)
	}
	if _, _, ok := resolveAnswer(post, 1, 0); ok {
		t.Fatal("question out of range must fail")
	}
	if _, _, ok := resolveAnswer(post, 0, 2); ok {
		t.Fatal("option out of range must fail")
	}
}

func TestAnswerFeedback(t *testing.T) {
	if got := answerFeedback(false, true, "x"); !strings.Contains(got, "already answered") {
		t.Errorf("duplicate feedback = %q", got)
	}
	if got := answerFeedback(true, true, "x"); !strings.Contains(got, "Correct") {
		t.Errorf("correct feedback = %q", got)
	}
	if got := answerFeedback(true, false, "Paris"); !strings.Contains(got, "Paris") {
		t.Errorf("wrong feedback = %q", got)
	}
}

func TestFormatLeaderboard(t *testing.T) {
	var scores []models.UserScore
	for i := 0; i < 12; i++ {
		scores = append(scores, models.UserScore{UserID: fmt.Sprint(i), DisplayName: fmt.Sprintf("user<%d>", i), Score: 12 - i, TotalAnswered: 12, CorrectAnswers: 12 - i})
	}
	out := formatLeaderboard("Top", scores, 10)
	if !strings.Contains(out, "🥇 user&lt;0&gt;: 12 pts") {
		t.Fatalf("missing escaped first place: %s", out)
	}
	if strings.Contains(out, "user&lt;10&gt;") {
		t.Fatalf("leaderboard not limited: %s", out)
	}
	if got := formatLeaderboard("Top", nil, 10); !strings.Contains(got, "No answers yet") {
		t.Fatalf("empty leaderboard = %q", got)
	}
}

func TestFormatUserStat(t *testing.T) {
	st := scoring.Standing{
		UserScore: models.UserScore{UserID: "2", TotalAnswered: 2, CorrectAnswers: 1, Score: 1, Accuracy: 50},
		Rank:      2,
		Total:     2,
	}
	out := formatUserStat(st, true)
	if !strings.Contains(out, "Rank: 2 of 2") || !strings.Contains(out, "Accuracy: 50.0%") || !strings.Contains(out, "Incorrect Answers: 1") {
		t.Fatalf("stat = %s", out)
	}
	if out := formatUserStat(scoring.Standing{}, false); !strings.Contains(out, "haven't answered") {
		t.Fatalf("unknown user stat = %s", out)
	}
}

func TestFormatIngestReport(t *testing.T) {
	report := &pipeline.Report{
		Items: []models.ContentItem{{Title: "A"}, {Title: "B"}},
		Publish: &publisher.BulkReport{
			Results:  []publisher.Result{{Index: 0, Title: "A"}},
			Failures: []publisher.Failure{{Index: 1, Title: "B", Error: "flood wait"}},
		},
	}
	out := formatIngestReport(report)
	if !strings.Contains(out, "Published 1 of 2") || !strings.Contains(out, "B: flood wait") {
		t.Fatalf("report = %s", out)
	}
	if out := formatIngestReport(&pipeline.Report{}); !strings.Contains(out, "couldn't find anything") {
		t.Fatalf("empty report = %s", out)
	}
}

func TestUserFacingError(t *testing.T) {
	timeout := fmt.Errorf("%w after 30s: %w", extractor.ErrGenerationTimeout, errors.New("deadline"))
	if got := userFacingError(timeout); !strings.Contains(got, "too long") {
		t.Fatalf("timeout message = %q", got)
	}
}
