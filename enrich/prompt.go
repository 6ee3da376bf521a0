package enrich

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/korjavin/newsdigestbot/ai"
	"github.com/korjavin/newsdigestbot/logger"
	"github.com/korjavin/newsdigestbot/models"
)

const enrichPrompt = `You write learning material for readers practising English with tech news.

News item:
Title: %s
Text: %s

Create exactly %d multiple-choice questions about the item and exactly %d vocabulary terms a learner might not know.
Every question has exactly 4 options, and "correct" must repeat the text of the right option exactly.

Return ONLY a JSON object, no prose, no markdown fences, in exactly this shape:
{"quiz":[{"question":"...","options":["...","...","...","..."],"correct":"..."}],"vocabulary":[{"term":"...","definition":"..."}]}
`

func buildPrompt(item *models.ContentItem) string {
	return fmt.Sprintf(enrichPrompt, item.Title, item.Body, questionsPerItem, termsPerItem)
}

type enrichmentDoc struct {
	Quiz       []json.RawMessage `json:"quiz"`
	Vocabulary []json.RawMessage `json:"vocabulary"`
}

// rawQuestion accepts "correct" as option text or as a zero-based index.
type rawQuestion struct {
	Question string          `json:"question"`
	Options  []string        `json:"options"`
	Correct  json.RawMessage `json:"correct"`
}

var optionsRe = regexp.MustCompile(`"options"\s*:\s*(\[[^\[\]]*\])`)

// parseEnrichment decodes the model response. Every question and term is
// decoded on its own; when the document itself is not JSON the flat
// fragments are scanned instead. Questions without exactly
// models.QuizOptionCount options, or whose answer is not one of them after
// literalization, are dropped.
func parseEnrichment(raw string, log *logger.Logger) ([]models.QuizQuestion, []models.VocabularyTerm) {
	var questions []models.QuizQuestion
	var terms []models.VocabularyTerm

	var doc enrichmentDoc
	if err := ai.ParseJSONObject(raw, &doc); err != nil {
		log.Warn("Structured decode failed, using field extractor", "error", err, "response", logger.Truncate(raw, 300))
		questions, terms = scanFragments(raw)
	} else {
		for _, data := range doc.Quiz {
			if q, ok := decodeQuestion(data); ok {
				questions = append(questions, q)
				continue
			}
			if qs, _ := scanFragments(string(data)); len(qs) > 0 {
				questions = append(questions, qs[0])
			}
		}
		for _, data := range doc.Vocabulary {
			var v models.VocabularyTerm
			if err := json.Unmarshal(data, &v); err != nil {
				if _, ts := scanFragments(string(data)); len(ts) > 0 {
					terms = append(terms, ts[0])
				}
				continue
			}
			terms = append(terms, v)
		}
	}

	quiz := make([]models.QuizQuestion, 0, questionsPerItem)
	for _, q := range questions {
		q.Prompt = strings.TrimSpace(q.Prompt)
		q.Correct = strings.TrimSpace(q.Correct)
		for i := range q.Options {
			q.Options[i] = strings.TrimSpace(q.Options[i])
		}
		q = Literalize(q)
		if !q.Valid() {
			log.Debug("Dropping invalid question", "question", q.Prompt, "options", len(q.Options), "correct", q.Correct)
			continue
		}
		quiz = append(quiz, q)
		if len(quiz) == questionsPerItem {
			break
		}
	}

	vocab := make([]models.VocabularyTerm, 0, termsPerItem)
	for _, v := range terms {
		v.Term = strings.TrimSpace(v.Term)
		v.Definition = strings.TrimSpace(v.Definition)
		if v.Term == "" {
			continue
		}
		vocab = append(vocab, v)
		if len(vocab) == termsPerItem {
			break
		}
	}
	return quiz, vocab
}

func decodeQuestion(data []byte) (models.QuizQuestion, bool) {
	var r rawQuestion
	if err := json.Unmarshal(data, &r); err != nil {
		return models.QuizQuestion{}, false
	}
	return models.QuizQuestion{Prompt: r.Question, Options: r.Options, Correct: correctText(r.Correct, r.Options)}, true
}

func correctText(raw json.RawMessage, options []string) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil && n >= 0 && n < len(options) {
		return options[n]
	}
	return ""
}

// scanFragments is the fallback for text that is not valid JSON. A fragment
// with a "question" field becomes a question, one with a "term" a term.
func scanFragments(raw string) ([]models.QuizQuestion, []models.VocabularyTerm) {
	var questions []models.QuizQuestion
	var terms []models.VocabularyTerm
	for _, frag := range ai.Fragments(raw) {
		if q, ok := decodeQuestion([]byte(frag)); ok && q.Prompt != "" {
			questions = append(questions, q)
			continue
		}
		fields := ai.ExtractFields(frag, "question", "correct", "term", "definition")
		if len(fields) == 0 {
			continue
		}
		m := fields[0]
		switch {
		case m["question"] != "":
			q := models.QuizQuestion{Prompt: m["question"], Correct: m["correct"]}
			if om := optionsRe.FindStringSubmatch(frag); om != nil {
				_ = json.Unmarshal([]byte(om[1]), &q.Options)
			}
			questions = append(questions, q)
		case m["term"] != "":
			terms = append(terms, models.VocabularyTerm{Term: m["term"], Definition: m["definition"]})
		}
	}
	return questions, terms
}
