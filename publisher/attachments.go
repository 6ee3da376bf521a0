package publisher

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/korjavin/newsdigestbot/assigner"
	"github.com/korjavin/newsdigestbot/channel"
	"github.com/korjavin/newsdigestbot/enrich"
	"github.com/korjavin/newsdigestbot/models"
)

const maxImageBytes = 10 << 20

var (
	knownImageExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}
	unsafeNameRe  = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

func (p *Publisher) attachImage(ctx context.Context, channelID string, item *models.ContentItem, parent channel.MessageID) {
	ref := strings.TrimSpace(item.ImageRef)
	if ref == "" || assigner.LooksLikeEmoji(ref) {
		return
	}
	file, err := p.loadImage(ctx, ref)
	if err != nil {
		p.log.Warn("Skipping image attachment", "title", item.Title, "error", err)
		return
	}
	if err := p.ch.UploadFile(ctx, channelID, *file, parent); err != nil {
		p.log.Warn("Image upload failed", "title", item.Title, "error", err)
	}
}

func (p *Publisher) loadImage(ctx context.Context, ref string) (*channel.File, error) {
	switch {
	case assigner.IsDataImage(ref):
		return decodeDataURI(ref)
	case isRemote(ref):
		return p.downloadImage(ctx, ref)
	}
	return nil, fmt.Errorf("unsupported image reference %q", truncateRef(ref))
}

// decodeDataURI decodes a "data:image/<type>;base64,<payload>" reference.
func decodeDataURI(ref string) (*channel.File, error) {
	header, payload, ok := strings.Cut(ref, ",")
	if !ok || !strings.HasSuffix(strings.ToLower(header), ";base64") {
		return nil, errors.New("malformed data uri")
	}
	mimeType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("decode data uri: %w", err)
		}
	}
	return &channel.File{Name: "image" + extForMime(mimeType), Data: data, Type: channel.FileImage}, nil
}

// downloadImage fetches the image into a temporary file, reads it back for
// upload and removes the temporary copy.
func (p *Publisher) downloadImage(ctx context.Context, rawURL string) (*channel.File, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "newsdigestbot/1.0")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode)
	}

	name := cleanImageName(rawURL, resp.Header.Get("Content-Type"))
	tmpPath := filepath.Join(p.cfg.TempDir, uuid.NewString()+"-"+name)
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpPath)

	n, err := io.Copy(f, io.LimitReader(resp.Body, maxImageBytes+1))
	closeErr := f.Close()
	if err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}
	if closeErr != nil {
		return nil, closeErr
	}
	if n > maxImageBytes {
		return nil, errors.New("image too large")
	}
	if n == 0 {
		return nil, errors.New("empty image")
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, err
	}
	return &channel.File{Name: name, Data: data, Type: channel.FileImage}, nil
}

// cleanImageName derives an upload name from the URL path, dropping the query
// and forcing a known image extension.
func cleanImageName(rawURL, contentType string) string {
	base := "image"
	if u, err := url.Parse(rawURL); err == nil {
		if b := path.Base(u.Path); b != "" && b != "/" && b != "." {
			base = b
		}
	}
	ext := strings.ToLower(path.Ext(base))
	stem := strings.TrimSuffix(base, path.Ext(base))
	stem = strings.Trim(unsafeNameRe.ReplaceAllString(stem, "_"), "_.")
	if stem == "" {
		stem = "image"
	}
	if !knownImageExt[ext] {
		ext = extForMime(contentType)
	}
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	return stem + ext
}

func extForMime(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".jpg"
}

// attachAudio uploads the item's local narration file as a reply to parent.
// Remote audio is not supported.
func (p *Publisher) attachAudio(ctx context.Context, channelID string, item *models.ContentItem, parent channel.MessageID) {
	if item.AudioRef == "" {
		return
	}
	name := enrich.AudioFile(item.AudioRef)
	if name == "" {
		p.log.Debug("Skipping non-local audio", "audio", item.AudioRef)
		return
	}
	data, err := os.ReadFile(filepath.Join(p.cfg.AudioDir, name))
	if err != nil {
		p.log.Warn("Narration file unavailable", "audio", item.AudioRef, "error", err)
		return
	}
	if err := p.ch.UploadFile(ctx, channelID, channel.File{Name: name, Data: data, Type: channel.FileAudio}, parent); err != nil {
		p.log.Warn("Audio upload failed", "title", item.Title, "error", err)
	}
}

func truncateRef(ref string) string {
	if len(ref) > 60 {
		return ref[:60] + "..."
	}
	return ref
}
