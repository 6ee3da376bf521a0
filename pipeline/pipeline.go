// Package pipeline runs one ingestion request through extraction, image
// assignment, enrichment and publishing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/korjavin/newsdigestbot/assigner"
	"github.com/korjavin/newsdigestbot/extractor"
	"github.com/korjavin/newsdigestbot/logger"
	"github.com/korjavin/newsdigestbot/models"
	"github.com/korjavin/newsdigestbot/publisher"
)

// Mode selects how items are published.
type Mode string

const (
	// ModeAll posts each item with vocabulary and quiz inline.
	ModeAll Mode = "all"
	// ModeExtractedOnly posts the extracted items without enrichment.
	ModeExtractedOnly Mode = "extracted-only"
	// ModeThreaded posts each item and threads vocabulary and quiz as replies.
	ModeThreaded Mode = "threaded"
)

// ParseMode accepts the mode names above; empty means ModeThreaded.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return ModeThreaded, nil
	case ModeAll:
		return ModeAll, nil
	case ModeExtractedOnly, "extracted":
		return ModeExtractedOnly, nil
	case ModeThreaded, "replies":
		return ModeThreaded, nil
	}
	return "", fmt.Errorf("unknown publish mode %q", s)
}

// ErrNoChannel is returned when items must be published but no target
// channel was given.
var ErrNoChannel = errors.New("no target channel configured")

type Extractor interface {
	Extract(ctx context.Context, in extractor.Input) (*extractor.Extraction, error)
}

type Enricher interface {
	EnrichAll(ctx context.Context, items []models.ContentItem) error
}

type Publisher interface {
	PostAll(ctx context.Context, items []models.ContentItem, channelID string) publisher.BulkReport
	PostExtractedOnly(ctx context.Context, items []models.ContentItem, channelID string) publisher.BulkReport
	PostQuizVocabAsReplies(ctx context.Context, items []models.ContentItem, channelID string) publisher.BulkReport
}

type Pipeline struct {
	extractor Extractor
	enricher  Enricher
	publisher Publisher
	log       *logger.Logger
}

func New(ext Extractor, enr Enricher, pub Publisher, log *logger.Logger) *Pipeline {
	return &Pipeline{
		extractor: ext,
		enricher:  enr,
		publisher: pub,
		log:       log.With("service", "Pipeline"),
	}
}

type Request struct {
	Input     extractor.Input
	ChannelID string
	Mode      Mode
	// DryRun prepares the items without publishing them.
	DryRun bool
}

type Report struct {
	Items   []models.ContentItem  `json:"items"`
	Images  []string              `json:"images"`
	Publish *publisher.BulkReport `json:"publish,omitempty"`
}

// Prepare extracts and assigns images, and enriches news items unless mode
// is ModeExtractedOnly.
func (p *Pipeline) Prepare(ctx context.Context, in extractor.Input, mode Mode) (*extractor.Extraction, error) {
	ext, err := p.extractor.Extract(ctx, in)
	if err != nil {
		return nil, err
	}
	assigner.Assign(ext.Items, ext.Images)

	if mode != ModeExtractedOnly && p.enricher != nil {
		if err := p.enricher.EnrichAll(ctx, ext.Items); err != nil {
			return nil, fmt.Errorf("enrich: %w", err)
		}
	}
	p.log.Info("Prepared items", "items", len(ext.Items), "images", len(ext.Images), "mode", mode)
	return ext, nil
}

// Publish posts prepared items according to mode.
func (p *Pipeline) Publish(ctx context.Context, items []models.ContentItem, channelID string, mode Mode) publisher.BulkReport {
	switch mode {
	case ModeAll:
		return p.publisher.PostAll(ctx, items, channelID)
	case ModeExtractedOnly:
		return p.publisher.PostExtractedOnly(ctx, items, channelID)
	default:
		return p.publisher.PostQuizVocabAsReplies(ctx, items, channelID)
	}
}

// Run prepares and, unless DryRun is set, publishes the request.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	if req.Mode == "" {
		req.Mode = ModeThreaded
	}
	ext, err := p.Prepare(ctx, req.Input, req.Mode)
	if err != nil {
		return nil, err
	}
	report := &Report{Items: ext.Items, Images: ext.Images}
	if req.DryRun || len(ext.Items) == 0 {
		return report, nil
	}
	if req.ChannelID == "" {
		return nil, ErrNoChannel
	}
	bulk := p.Publish(ctx, ext.Items, req.ChannelID, req.Mode)
	report.Publish = &bulk
	return report, nil
}
