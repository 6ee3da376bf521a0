package extractor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/korjavin/newsdigestbot/ai"
	"github.com/korjavin/newsdigestbot/logger"
	"github.com/korjavin/newsdigestbot/models"
)

const classifyPrompt = `You are an editor preparing a weekly digest. Split the material below into separate items and classify each one.

Categories:
- "news": announcements, releases, events, articles
- "tools": software, libraries, services or products worth trying
- "prompts": reusable prompts or prompting techniques

Rules:
- Every item needs a short title and a 1-3 sentence summary in "content".
- Put the most relevant link for the item in "url" and a direct image link in "image" when the material contains one. Never invent URLs.
- Do not repeat the same story twice.

Return ONLY a JSON object, no prose, no markdown fences, in exactly this shape:
{"items":[{"category":"news","title":"...","content":"...","url":"...","image":"..."}]}

Material:
%s
`

func buildPrompt(text string, urls []string, imageCount int) string {
	var b strings.Builder
	if text != "" {
		b.WriteString(text)
		b.WriteString("\n")
	}
	if len(urls) > 0 {
		b.WriteString("\nLinks:\n")
		for _, u := range urls {
			b.WriteString("- ")
			b.WriteString(u)
			b.WriteString("\n")
		}
	}
	if imageCount > 0 {
		fmt.Fprintf(&b, "\n(%d image(s) attached; they are assigned separately.)\n", imageCount)
	}
	return fmt.Sprintf(classifyPrompt, b.String())
}

type rawItem struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	URL      string `json:"url"`
	Image    string `json:"image"`
}

type rawDoc struct {
	Items []json.RawMessage `json:"items"`
}

var itemFields = []string{"category", "title", "content", "url", "image"}

// parseItems decodes the model response and keeps structurally valid items.
// Each item is decoded on its own, so one mistyped field only affects that
// item; fragments that still fail go through the field extractor.
func parseItems(raw string, log *logger.Logger) []models.ContentItem {
	var parsed []rawItem
	var doc rawDoc
	if err := ai.ParseJSONObject(raw, &doc); err != nil {
		log.Warn("Structured decode failed, using field extractor", "error", err, "response", logger.Truncate(raw, 300))
		for _, m := range ai.ExtractFields(raw, itemFields...) {
			parsed = append(parsed, itemFromFields(m))
		}
	} else {
		for _, data := range doc.Items {
			var r rawItem
			if err := json.Unmarshal(data, &r); err != nil {
				fields := ai.ExtractFields(string(data), itemFields...)
				if len(fields) == 0 {
					log.Debug("Dropping undecodable item", "error", err)
					continue
				}
				r = itemFromFields(fields[0])
			}
			parsed = append(parsed, r)
		}
	}

	items := make([]models.ContentItem, 0, len(parsed))
	for _, r := range parsed {
		cat, ok := models.ParseCategory(r.Category)
		title := strings.TrimSpace(r.Title)
		if !ok || title == "" {
			log.Debug("Dropping invalid item", "category", r.Category, "title", r.Title)
			continue
		}
		items = append(items, models.ContentItem{
			Category:  cat,
			Title:     title,
			Body:      strings.TrimSpace(r.Content),
			SourceURL: strings.TrimSpace(r.URL),
			ImageRef:  strings.TrimSpace(r.Image),
		})
	}
	return items
}

func itemFromFields(m map[string]string) rawItem {
	return rawItem{
		Category: m["category"],
		Title:    m["title"],
		Content:  m["content"],
		URL:      m["url"],
		Image:    m["image"],
	}
}
