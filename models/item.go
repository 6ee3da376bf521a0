package models

import "strings"

// Category classifies an extracted content item.
type Category string

const (
	CategoryNews    Category = "news"
	CategoryTools   Category = "tools"
	CategoryPrompts Category = "prompts"
)

// ParseCategory maps the loose labels a model tends to return onto a known
// category. The second return value is false for anything unrecognised.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "news", "article", "articles":
		return CategoryNews, true
	case "tools", "tool":
		return CategoryTools, true
	case "prompts", "prompt":
		return CategoryPrompts, true
	}
	return "", false
}

// ContentItem is one extracted unit of content. The extractor creates it, the
// assigner fills ImageRef, enrichment fills Quiz, Vocabulary and AudioRef and
// the publisher sets PublishedMessageID.
type ContentItem struct {
	Category           Category         `json:"category"`
	Title              string           `json:"title"`
	Body               string           `json:"content"`
	SourceURL          string           `json:"url,omitempty"`
	ImageRef           string           `json:"image,omitempty"`
	AudioRef           string           `json:"audio,omitempty"`
	Quiz               []QuizQuestion   `json:"quiz,omitempty"`
	Vocabulary         []VocabularyTerm `json:"vocabulary,omitempty"`
	PublishedMessageID string           `json:"publishedMessageId,omitempty"`
}

// IsNews reports whether the item may carry quiz and vocabulary.
func (i *ContentItem) IsNews() bool {
	return i.Category == CategoryNews
}

// NarrationText is the text read aloud for the item and used as the
// reference sentence for voice practice.
func (i *ContentItem) NarrationText() string {
	title := strings.TrimSpace(i.Title)
	body := strings.TrimSpace(i.Body)
	switch {
	case title == "":
		return body
	case body == "":
		return title
	}
	return title + ". " + body
}
