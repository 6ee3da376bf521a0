// Package blocks composes platform-neutral message layouts. Every publish
// path builds its messages here; channel implementations only render them.
package blocks

import (
	"strings"
	"unicode/utf8"

	"github.com/korjavin/newsdigestbot/models"
)

type Kind string

const (
	KindHeader     Kind = "header"
	KindSection    Kind = "section"
	KindLink       Kind = "link"
	KindDivider    Kind = "divider"
	KindVocabulary Kind = "vocabulary"
	KindQuiz       Kind = "quiz"
)

// OptionTextLimit is the longest option label a quiz control may show.
const OptionTextLimit = 75

const ellipsis = "..."

// Option is one choice of a quiz control. Text is the (possibly truncated)
// label, Value the full option text.
type Option struct {
	Text  string
	Value string
}

// QuizControl is an interactive multiple-choice control for one question.
type QuizControl struct {
	QuestionIndex int
	Prompt        string
	Options       []Option
}

type Block struct {
	Kind  Kind
	Text  string
	URL   string
	Terms []models.VocabularyTerm
	Quiz  *QuizControl
}

// Message is a composed message ready to be rendered by a channel.
type Message struct {
	Blocks       []Block
	FallbackText string
}

// QuizControls returns the interactive controls of the message in order.
func (m Message) QuizControls() []QuizControl {
	var out []QuizControl
	for _, b := range m.Blocks {
		if b.Kind == KindQuiz && b.Quiz != nil {
			out = append(out, *b.Quiz)
		}
	}
	return out
}

// HasQuiz reports whether the message carries at least one quiz control.
func (m Message) HasQuiz() bool {
	return len(m.QuizControls()) > 0
}

// TruncateOption shortens an option label to OptionTextLimit runes, ending
// it with an ellipsis when anything was cut.
func TruncateOption(s string) string {
	if utf8.RuneCountInString(s) <= OptionTextLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:OptionTextLimit-len(ellipsis)]) + ellipsis
}

// HeadingEmoji returns the emoji that prefixes the heading of a category.
func HeadingEmoji(c models.Category) string {
	switch c {
	case models.CategoryNews:
		return "📰"
	case models.CategoryTools:
		return "🛠️"
	case models.CategoryPrompts:
		return "💡"
	}
	return "📌"
}

// Builder assembles a Message: heading, body, read-more link, divider,
// vocabulary, then one quiz control per question.
type Builder struct {
	heading  string
	body     string
	link     string
	vocab    []models.VocabularyTerm
	quiz     []models.QuizQuestion
	fallback string
}

func New() *Builder {
	return &Builder{}
}

// ForItem starts a builder with the item's heading, body and source link.
func ForItem(item *models.ContentItem) *Builder {
	return New().
		Heading(HeadingEmoji(item.Category) + " " + strings.TrimSpace(item.Title)).
		Body(item.Body).
		ReadMore(item.SourceURL).
		Fallback(item.Title)
}

func (b *Builder) Heading(text string) *Builder {
	b.heading = strings.TrimSpace(text)
	return b
}

func (b *Builder) Body(text string) *Builder {
	b.body = strings.TrimSpace(text)
	return b
}

func (b *Builder) ReadMore(url string) *Builder {
	b.link = strings.TrimSpace(url)
	return b
}

func (b *Builder) Vocabulary(terms []models.VocabularyTerm) *Builder {
	b.vocab = terms
	return b
}

func (b *Builder) Quiz(questions []models.QuizQuestion) *Builder {
	b.quiz = questions
	return b
}

func (b *Builder) Fallback(text string) *Builder {
	b.fallback = strings.TrimSpace(text)
	return b
}

// Build produces the message. The divider is only emitted after a heading or
// body, so thread replies that carry just vocabulary or quiz have none.
func (b *Builder) Build() Message {
	var msg Message
	if b.heading != "" {
		msg.Blocks = append(msg.Blocks, Block{Kind: KindHeader, Text: b.heading})
	}
	if b.body != "" {
		msg.Blocks = append(msg.Blocks, Block{Kind: KindSection, Text: b.body})
	}
	if b.link != "" {
		msg.Blocks = append(msg.Blocks, Block{Kind: KindLink, Text: "Read more", URL: b.link})
	}
	if b.heading != "" || b.body != "" {
		msg.Blocks = append(msg.Blocks, Block{Kind: KindDivider})
	}
	if len(b.vocab) > 0 {
		msg.Blocks = append(msg.Blocks, Block{Kind: KindVocabulary, Text: "📚 Vocabulary", Terms: b.vocab})
	}
	for i, q := range b.quiz {
		ctrl := &QuizControl{QuestionIndex: i, Prompt: q.Prompt}
		for _, opt := range q.Options {
			ctrl.Options = append(ctrl.Options, Option{Text: TruncateOption(opt), Value: opt})
		}
		msg.Blocks = append(msg.Blocks, Block{Kind: KindQuiz, Text: q.Prompt, Quiz: ctrl})
	}

	msg.FallbackText = b.fallback
	if msg.FallbackText == "" {
		msg.FallbackText = b.heading
	}
	if msg.FallbackText == "" && len(b.quiz) > 0 {
		msg.FallbackText = "Quiz"
	}
	if msg.FallbackText == "" && len(b.vocab) > 0 {
		msg.FallbackText = "Vocabulary"
	}
	return msg
}
