// Package enrich adds quiz questions, vocabulary and narration to news items.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/korjavin/newsdigestbot/ai"
	"github.com/korjavin/newsdigestbot/logger"
	"github.com/korjavin/newsdigestbot/models"
)

const (
	questionsPerItem = 3
	termsPerItem     = 3
)

// Config holds enrichment settings. A zero Concurrency means unlimited.
type Config struct {
	AudioDir        string
	AudioPublicPath string
	Voice           string
	Concurrency     int
}

type Enricher struct {
	gen      ai.Generator
	narrator ai.Narrator
	cfg      Config
	now      func() time.Time
	log      *logger.Logger
}

// New creates an Enricher. narrator may be nil to disable audio.
func New(gen ai.Generator, narrator ai.Narrator, cfg Config, log *logger.Logger) *Enricher {
	return &Enricher{
		gen:      gen,
		narrator: narrator,
		cfg:      cfg,
		now:      time.Now,
		log:      log.With("service", "Enricher"),
	}
}

// EnrichAll enriches every news item concurrently. Per-item failures are
// logged and leave that item with empty quiz and vocabulary.
func (e *Enricher) EnrichAll(ctx context.Context, items []models.ContentItem) error {
	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.Concurrency > 0 {
		g.SetLimit(e.cfg.Concurrency)
	}
	for i := range items {
		if !items[i].IsNews() {
			continue
		}
		item := &items[i]
		g.Go(func() error {
			if err := e.EnrichItem(gctx, item); err != nil {
				e.log.Warn("Enrichment failed", "title", item.Title, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// EnrichItem fills Quiz, Vocabulary and AudioRef of a single news item. On a
// generation failure the item keeps empty arrays and the error is returned;
// narration failures only leave AudioRef unset.
func (e *Enricher) EnrichItem(ctx context.Context, item *models.ContentItem) error {
	if !item.IsNews() {
		return nil
	}
	item.Quiz = []models.QuizQuestion{}
	item.Vocabulary = []models.VocabularyTerm{}

	var genErr error
	raw, err := e.gen.Generate(ctx, buildPrompt(item))
	if err != nil {
		genErr = fmt.Errorf("generate quiz for %q: %w", item.Title, err)
	} else {
		item.Quiz, item.Vocabulary = parseEnrichment(raw, e.log)
	}

	if ref, err := e.narrate(ctx, item); err != nil {
		if !errors.Is(err, ai.ErrNarrationDisabled) {
			e.log.Warn("Narration failed", "title", item.Title, "error", err)
		}
	} else {
		item.AudioRef = ref
	}
	return genErr
}

func (e *Enricher) narrate(ctx context.Context, item *models.ContentItem) (string, error) {
	if e.narrator == nil {
		return "", ai.ErrNarrationDisabled
	}
	audio, err := e.narrator.Synthesize(ctx, ai.NarrationRequest{Text: item.NarrationText(), Voice: e.cfg.Voice})
	if err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", errors.New("empty audio")
	}

	if err := os.MkdirAll(e.cfg.AudioDir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	name, err := e.writeAudio(audio)
	if err != nil {
		return "", err
	}
	return publicRef(e.cfg.AudioPublicPath, name), nil
}

func publicRef(base, name string) string {
	if strings.Contains(base, "://") {
		return strings.TrimRight(base, "/") + "/" + name
	}
	return path.Join("/", base, name)
}

// writeAudio stores audio under a timestamp-derived name that is not in use yet.
func (e *Enricher) writeAudio(audio []byte) (string, error) {
	stamp := e.now().UnixNano()
	for attempt := 0; attempt < 100; attempt++ {
		name := fmt.Sprintf("narration-%d.mp3", stamp+int64(attempt))
		f, err := os.OpenFile(filepath.Join(e.cfg.AudioDir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(audio); err != nil {
			f.Close()
			return "", err
		}
		return name, f.Close()
	}
	return "", errors.New("no free narration file name")
}

var optionRefRe = regexp.MustCompile(`(?i)^\s*option\s*#?\s*(\d+)\s*$`)

// Literalize rewrites a "Option N" answer into the text of option N. Out of
// range references are left unchanged.
func Literalize(q models.QuizQuestion) models.QuizQuestion {
	m := optionRefRe.FindStringSubmatch(q.Correct)
	if m == nil {
		return q
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > len(q.Options) {
		return q
	}
	q.Correct = q.Options[n-1]
	return q
}

// AudioFile maps a public narration reference back to its file name.
func AudioFile(audioRef string) string {
	if audioRef == "" || strings.Contains(audioRef, "://") {
		return ""
	}
	return path.Base(audioRef)
}
