package channel

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/korjavin/newsdigestbot/blocks"
	"github.com/korjavin/newsdigestbot/models"
)

func TestMessageID(t *testing.T) {
	posted := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	id := NewMessageID(posted, 42)
	if id != "1741082400.000042" {
		t.Fatalf("NewMessageID = %q", id)
	}
	got, ok := id.PostedAt()
	if !ok || !got.Equal(posted) {
		t.Fatalf("PostedAt = %v, %v", got, ok)
	}
	seq, ok := id.Seq()
	if !ok || seq != 42 {
		t.Fatalf("Seq = %d, %v", seq, ok)
	}

	for _, bad := range []MessageID{"", "abc", "x.1", "0.5"} {
		if _, ok := bad.PostedAt(); ok {
			t.Errorf("PostedAt(%q) should fail", bad)
		}
	}
}

func TestParseQuizCallback(t *testing.T) {
	tests := []struct {
		data   string
		q, o   int
		wantOK bool
	}{
		{"quiz:0:3", 0, 3, true},
		{"quiz:2:1", 2, 1, true},
		{"quiz:2", 0, 0, false},
		{"answer:1:2", 0, 0, false},
		{"quiz:-1:2", 0, 0, false},
		{"quiz:a:b", 0, 0, false},
	}
	for _, tt := range tests {
		q, o, ok := ParseQuizCallback(tt.data)
		if ok != tt.wantOK || (ok && (q != tt.q || o != tt.o)) {
			t.Errorf("ParseQuizCallback(%q) = %d, %d, %v", tt.data, q, o, ok)
		}
	}
}

func TestRender(t *testing.T) {
	item := &models.ContentItem{Category: models.CategoryNews, Title: "A <b>", Body: "body & more", SourceURL: "https://x.test/a"}
	msg := blocks.ForItem(item).
		Quiz([]models.QuizQuestion{{Prompt: "Which?", Options: []string{"one", "two"}, Correct: "two"}}).
		Build()

	text, keyboard := Render(msg)
	if !strings.Contains(text, "<b>📰 A &lt;b&gt;</b>") {
		t.Fatalf("heading not escaped: %s", text)
	}
	if !strings.Contains(text, "body &amp; more") || !strings.Contains(text, `<a href="https://x.test/a">Read more</a>`) {
		t.Fatalf("unexpected text: %s", text)
	}
	if keyboard == nil || len(keyboard.InlineKeyboard) != 2 {
		t.Fatalf("expected two keyboard rows, got %+v", keyboard)
	}
	data := keyboard.InlineKeyboard[1][0].CallbackData
	if data == nil || *data != "quiz:0:1" {
		t.Fatalf("callback data = %v", data)
	}

	plain, kb := Render(blocks.New().Heading("hi").Build())
	if kb != nil || plain != "<b>hi</b>\n\n"+dividerLine {
		t.Fatalf("plain render = %q, %v", plain, kb)
	}
}

func TestRenderLongBodyKeepsMarkupBalanced(t *testing.T) {
	quiz := []models.QuizQuestion{{Prompt: "Which one?", Options: []string{"a", "b", "c", "d"}, Correct: "b"}}
	vocab := []models.VocabularyTerm{{Term: "term", Definition: "meaning"}}
	for n := 3900; n < 4200; n += 7 {
		body := strings.Repeat("x & y ", n/6)
		item := &models.ContentItem{Category: models.CategoryNews, Title: "Long", Body: body, SourceURL: "https://x.test/a"}
		msg := blocks.ForItem(item).Vocabulary(vocab).Quiz(quiz).Build()

		text, keyboard := Render(msg)
		if got := utf8.RuneCountInString(text); got > telegramTextLimit {
			t.Fatalf("body %d: rendered %d runes", n, got)
		}
		for _, tag := range []string{"b", "a"} {
			if open, closed := strings.Count(text, "<"+tag+">")+strings.Count(text, "<"+tag+" "), strings.Count(text, "</"+tag+">"); open != closed {
				t.Fatalf("body %d: <%s> opened %d closed %d", n, tag, open, closed)
			}
		}
		if !strings.Contains(text, "<b>❓ Q1.</b> Which one?\nA) a\nB) b\nC) c\nD) d") {
			t.Fatalf("body %d: quiz text cut: %q", n, text[len(text)-80:])
		}
		if keyboard == nil || len(keyboard.InlineKeyboard) != 4 {
			t.Fatalf("body %d: keyboard = %+v", n, keyboard)
		}
		if strings.Contains(text, "&amp") && strings.Count(text, "&") != strings.Count(text, ";") {
			t.Fatalf("body %d: entity cut in half", n)
		}
	}
}

func TestParseTarget(t *testing.T) {
	if id, name, err := parseTarget("-100123"); err != nil || id != -100123 || name != "" {
		t.Fatalf("numeric target: %d %q %v", id, name, err)
	}
	if id, name, err := parseTarget("@news"); err != nil || id != 0 || name != "@news" {
		t.Fatalf("username target: %d %q %v", id, name, err)
	}
	if _, _, err := parseTarget("news"); err == nil {
		t.Fatalf("expected error for bare name")
	}
}
