// Package extractor turns pasted text, links and images into categorized,
// de-duplicated content items.
package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/korjavin/newsdigestbot/ai"
	"github.com/korjavin/newsdigestbot/cache"
	"github.com/korjavin/newsdigestbot/logger"
	"github.com/korjavin/newsdigestbot/models"
)

var (
	// ErrNoContent is returned when the input carries no text, URLs or images.
	ErrNoContent = errors.New("no content provided")
	// ErrGenerationTimeout is returned when the classification call does not
	// finish within the extraction timeout.
	ErrGenerationTimeout = errors.New("content generation timed out")
)

// DefaultTimeout bounds the classification call.
const DefaultTimeout = 30 * time.Second

const cacheKeyRunes = 200

// Input is one ingestion request.
type Input struct {
	Text   string   `json:"text"`
	URLs   []string `json:"urls"`
	Images []string `json:"images"`
}

// Extraction is the extractor's result. Images is the ordered candidate pool
// for the assigner.
type Extraction struct {
	Items  []models.ContentItem `json:"items"`
	Images []string             `json:"images"`
	URLs   []string             `json:"urls"`
}

type Extractor struct {
	gen      ai.Generator
	cache    cache.Store
	cacheTTL time.Duration
	timeout  time.Duration
	log      *logger.Logger
}

type Option func(*Extractor)

// WithCache enables the extraction cache.
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(e *Extractor) {
		e.cache = store
		e.cacheTTL = ttl
	}
}

func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func New(gen ai.Generator, log *logger.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		gen:     gen,
		timeout: DefaultTimeout,
		log:     log.With("service", "Extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract classifies the input. An unparsable model response yields an empty
// item list and no error; transport failures and timeouts are returned.
func (e *Extractor) Extract(ctx context.Context, in Input) (*Extraction, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && len(in.URLs) == 0 && len(in.Images) == 0 {
		return nil, ErrNoContent
	}

	out := &Extraction{URLs: DiscoverURLs(text, in.URLs)}
	out.Images = DiscoverImages(text, out.URLs, in.Images)

	key := cacheKey(text)
	if items, ok := e.fromCache(ctx, key); ok {
		e.log.Debug("Extraction cache hit", "key", key, "items", len(items))
		out.Items = items
		return out, nil
	}

	raw, err := e.generate(ctx, buildPrompt(text, out.URLs, len(out.Images)))
	if err != nil {
		return nil, err
	}

	items := parseItems(raw, e.log)
	out.Items = Dedup(items)
	if dropped := len(items) - len(out.Items); dropped > 0 {
		e.log.Info("Dropped duplicate items", "count", dropped)
	}

	if len(out.Items) > 0 {
		e.toCache(ctx, key, out.Items)
	}
	return out, nil
}

// generate races the model call against the extraction timeout.
func (e *Extractor) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := e.gen.Generate(ctx, prompt)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return "", fmt.Errorf("%w: %w", ErrGenerationTimeout, r.err)
			}
			return "", fmt.Errorf("classify content: %w", r.err)
		}
		return r.text, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %w", ErrGenerationTimeout, e.timeout, ctx.Err())
		}
		return "", ctx.Err()
	}
}

func cacheKey(text string) string {
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) > cacheKeyRunes {
		runes = runes[:cacheKeyRunes]
	}
	sum := sha256.Sum256([]byte(string(runes)))
	return "extract:" + hex.EncodeToString(sum[:])
}

func (e *Extractor) fromCache(ctx context.Context, key string) ([]models.ContentItem, bool) {
	if e.cache == nil || key == "" {
		return nil, false
	}
	data, err := e.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			e.log.Warn("Extraction cache read failed", "error", err)
		}
		return nil, false
	}
	var items []models.ContentItem
	if err := json.Unmarshal(data, &items); err != nil {
		e.log.Warn("Discarding corrupt cache entry", "key", key, "error", err)
		_ = e.cache.Delete(ctx, key)
		return nil, false
	}
	return items, true
}

func (e *Extractor) toCache(ctx context.Context, key string, items []models.ContentItem) {
	if e.cache == nil || key == "" {
		return
	}
	data, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, data, e.cacheTTL); err != nil {
		e.log.Warn("Extraction cache write failed", "error", err)
	}
}
