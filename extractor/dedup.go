package extractor

import (
	"regexp"
	"strings"

	"github.com/korjavin/newsdigestbot/models"
)

var (
	pictographRe   = regexp.MustCompile(`[\x{1F000}-\x{1FAFF}\x{2600}-\x{27BF}\x{2B00}-\x{2BFF}\x{1F1E6}-\x{1F1FF}\x{2190}-\x{21FF}\x{2300}-\x{23FF}\x{FE0F}\x{200D}\x{20E3}]`)
	parentheticRe  = regexp.MustCompile(`\s*[(\[][^()\[\]]*[)\]]`)
	duplicateTagRe = regexp.MustCompile(`(?i)[\s\-–—:|]*\bduplicate\b.*$`)
	spacesRe       = regexp.MustCompile(`\s+`)
)

// NormalizeTitle returns the key two titles share when they describe the same item.
func NormalizeTitle(title string) string {
	s := pictographRe.ReplaceAllString(title, "")
	s = strings.TrimSpace(s)
	s = parentheticRe.ReplaceAllString(s, "")
	s = duplicateTagRe.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
}

// Dedup keeps the first item for every normalized title.
func Dedup(items []models.ContentItem) []models.ContentItem {
	seen := make(map[string]bool, len(items))
	out := make([]models.ContentItem, 0, len(items))
	for _, it := range items {
		key := NormalizeTitle(it.Title)
		if key == "" {
			key = strings.ToLower(strings.TrimSpace(it.Title))
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}
