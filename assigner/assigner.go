// Package assigner fills missing item images from the extraction's image pool.
package assigner

import (
	"strings"

	"github.com/korjavin/newsdigestbot/models"
)

// Assign mutates items in place. Placeholder images are cleared, then news
// items and afterwards the remaining items take the next unused pool image
// in array order. Items still without an image fall back to an image-like
// SourceURL. Emoji-like references are cleared last.
func Assign(items []models.ContentItem, pool []string) {
	for i := range items {
		if IsPlaceholder(items[i].ImageRef) {
			items[i].ImageRef = ""
		}
		items[i].ImageRef = strings.TrimSpace(items[i].ImageRef)
	}

	used := make(map[string]bool, len(items))
	for i := range items {
		if items[i].ImageRef != "" {
			used[items[i].ImageRef] = true
		}
	}

	cursor := 0
	next := func() string {
		for cursor < len(pool) {
			candidate := strings.TrimSpace(pool[cursor])
			cursor++
			if candidate == "" || used[candidate] || IsPlaceholder(candidate) {
				continue
			}
			used[candidate] = true
			return candidate
		}
		return ""
	}

	for i := range items {
		if items[i].IsNews() && items[i].ImageRef == "" {
			items[i].ImageRef = next()
		}
	}
	for i := range items {
		if !items[i].IsNews() && items[i].ImageRef == "" {
			items[i].ImageRef = next()
		}
	}

	for i := range items {
		if items[i].ImageRef == "" && items[i].SourceURL != "" && IsImageURL(items[i].SourceURL) {
			items[i].ImageRef = items[i].SourceURL
		}
	}

	for i := range items {
		if items[i].ImageRef != "" && LooksLikeEmoji(items[i].ImageRef) {
			items[i].ImageRef = ""
		}
	}
}
