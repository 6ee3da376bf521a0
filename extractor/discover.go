package extractor

import (
	"regexp"
	"strings"

	"github.com/korjavin/newsdigestbot/assigner"
)

var (
	urlRe       = regexp.MustCompile(`https?://[^\s<>"'\x60\]\[)(]+`)
	dataImageRe = regexp.MustCompile(`data:image/[a-zA-Z0-9.+\-]+;base64,[A-Za-z0-9+/=]+`)
)

const trailingPunct = ".,;:!?'\""

// DiscoverURLs returns the URLs found in text followed by the supplied ones,
// de-duplicated in discovery order.
func DiscoverURLs(text string, supplied []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(u string) {
		u = strings.TrimRight(strings.TrimSpace(u), trailingPunct)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}
	for _, u := range urlRe.FindAllString(text, -1) {
		add(u)
	}
	for _, u := range supplied {
		add(u)
	}
	return out
}

// DiscoverImages builds the candidate image pool: inline data URIs and image
// links in text, then image-hosting URLs among urls, then the supplied images.
func DiscoverImages(text string, urls, supplied []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" || seen[ref] {
			return
		}
		seen[ref] = true
		out = append(out, ref)
	}

	for _, d := range dataImageRe.FindAllString(text, -1) {
		add(d)
	}
	for _, u := range urlRe.FindAllString(text, -1) {
		u = strings.TrimRight(u, trailingPunct)
		if assigner.HasImageExtension(u) {
			add(u)
		}
	}
	for _, u := range urls {
		if assigner.IsImageURL(u) {
			add(u)
		}
	}
	for _, img := range supplied {
		add(img)
	}
	return out
}
