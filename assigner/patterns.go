package assigner

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// imageHosts are domains whose URLs point at images even without an extension.
var imageHosts = []string{
	"i.imgur.com",
	"imgur.com",
	"pbs.twimg.com",
	"images.unsplash.com",
	"cdn.discordapp.com",
	"media.discordapp.net",
	"raw.githubusercontent.com",
	"user-images.githubusercontent.com",
	"media.licdn.com",
	"i.redd.it",
	"preview.redd.it",
	"lh3.googleusercontent.com",
	"images.ctfassets.net",
	"cdn.pixabay.com",
	"images.pexels.com",
}

// placeholderPatterns match URLs that models invent or that point at
// generated, inaccessible images.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^https?://(www\.)?example\.(com|org|net)/`),
	regexp.MustCompile(`(?i)placeholder|placehold\.(co|it)|via\.placeholder|dummyimage\.com`),
	regexp.MustCompile(`(?i)oaidalleapiprodscus\.blob\.core\.windows\.net`),
	regexp.MustCompile(`(?i)^https?://[^/]*openai\.com/.*(dall-?e|generated)`),
	regexp.MustCompile(`(?i)^https?://(image|img)\.url/`),
	regexp.MustCompile(`(?i)^(image_url|url_to_image|none|null|n/a)$`),
	regexp.MustCompile(`(?i)/path/to/|your[-_]image`),
}

var imageExtRe = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|webp|bmp|svg)$`)

var (
	emojiRe     = regexp.MustCompile(`[\x{1F000}-\x{1FAFF}\x{2600}-\x{27BF}\x{2B00}-\x{2BFF}\x{1F1E6}-\x{1F1FF}]`)
	shortcodeRe = regexp.MustCompile(`:[a-z0-9_+\-]+:`)
)

// IsDataImage reports whether ref is an inline base64 image.
func IsDataImage(ref string) bool {
	return strings.HasPrefix(strings.ToLower(ref), "data:image/")
}

// IsImageHost reports whether the URL's host is a known image-hosting domain.
func IsImageHost(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range imageHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// HasImageExtension reports whether the URL path ends in an image extension.
func HasImageExtension(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return imageExtRe.MatchString(path.Base(u.Path))
}

// IsImageURL reports whether raw looks like a direct image reference.
func IsImageURL(raw string) bool {
	if IsDataImage(raw) {
		return true
	}
	return IsImageHost(raw) || HasImageExtension(raw)
}

// IsPlaceholder reports whether ref matches a synthetic or placeholder pattern.
func IsPlaceholder(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || IsDataImage(ref) {
		return false
	}
	for _, re := range placeholderPatterns {
		if re.MatchString(ref) {
			return true
		}
	}
	return false
}

// LooksLikeEmoji reports whether ref is an emoji or icon rather than an image.
func LooksLikeEmoji(ref string) bool {
	if IsDataImage(ref) {
		return false
	}
	lower := strings.ToLower(ref)
	return strings.Contains(lower, "emoji") ||
		emojiRe.MatchString(ref) ||
		shortcodeRe.MatchString(lower)
}
