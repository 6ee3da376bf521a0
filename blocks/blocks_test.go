package blocks

import (
	"strings"
	"testing"

	"github.com/korjavin/newsdigestbot/models"
)

func TestTruncateOption(t *testing.T) {
	long := strings.Repeat("x", 80)
	got := TruncateOption(long)
	if got != strings.Repeat("x", 72)+"..." {
		t.Fatalf("TruncateOption(80 x) = %q", got)
	}
	if len([]rune(got)) != OptionTextLimit {
		t.Fatalf("truncated length = %d, want %d", len([]rune(got)), OptionTextLimit)
	}
	if TruncateOption("short") != "short" {
		t.Fatalf("short option changed")
	}
	exact := strings.Repeat("y", OptionTextLimit)
	if TruncateOption(exact) != exact {
		t.Fatalf("option at the limit must not be truncated")
	}
}

func TestBuildOrder(t *testing.T) {
	item := &models.ContentItem{
		Category:   models.CategoryNews,
		Title:      "Big News",
		Body:       "Something happened.",
		SourceURL:  "https://example.org/a",
		Vocabulary: []models.VocabularyTerm{{Term: "t", Definition: "d"}},
		Quiz: []models.QuizQuestion{
			{Prompt: "Q1?", Options: []string{strings.Repeat("x", 80), "short"}, Correct: "short"},
			{Prompt: "Q2?", Options: []string{"a", "b"}, Correct: "a"},
		},
	}
	msg := ForItem(item).Vocabulary(item.Vocabulary).Quiz(item.Quiz).Build()

	want := []Kind{KindHeader, KindSection, KindLink, KindDivider, KindVocabulary, KindQuiz, KindQuiz}
	if len(msg.Blocks) != len(want) {
		t.Fatalf("got %d blocks, want %d", len(msg.Blocks), len(want))
	}
	for i, k := range want {
		if msg.Blocks[i].Kind != k {
			t.Fatalf("block %d kind = %s, want %s", i, msg.Blocks[i].Kind, k)
		}
	}
	if msg.Blocks[0].Text != "📰 Big News" {
		t.Fatalf("heading = %q", msg.Blocks[0].Text)
	}

	controls := msg.QuizControls()
	if len(controls) != 2 || controls[1].QuestionIndex != 1 {
		t.Fatalf("unexpected controls: %+v", controls)
	}
	first := controls[0].Options[0]
	if first.Text != strings.Repeat("x", 72)+"..." || first.Value != strings.Repeat("x", 80) {
		t.Fatalf("option not truncated correctly: %+v", first)
	}
	if msg.FallbackText != "Big News" {
		t.Fatalf("fallback = %q", msg.FallbackText)
	}
}

func TestBuildReplyHasNoDivider(t *testing.T) {
	msg := New().Quiz([]models.QuizQuestion{{Prompt: "Q?", Options: []string{"a"}, Correct: "a"}}).Build()
	for _, b := range msg.Blocks {
		if b.Kind == KindDivider {
			t.Fatalf("reply message should not contain a divider")
		}
	}
	if !msg.HasQuiz() || msg.FallbackText != "Quiz" {
		t.Fatalf("unexpected reply message: %+v", msg)
	}
}
