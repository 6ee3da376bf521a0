package publisher

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/korjavin/newsdigestbot/channel"
	"github.com/korjavin/newsdigestbot/models"
)

// Result describes one successfully published item.
type Result struct {
	Index         int               `json:"index"`
	Title         string            `json:"title"`
	MessageID     channel.MessageID `json:"messageId"`
	QuizMessageID channel.MessageID `json:"quizMessageId,omitempty"`
}

// Failure describes one item that could not be published.
type Failure struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Error string `json:"error"`
}

// BulkReport lists successes and failures in input order. A failed item is
// absent from Results.
type BulkReport struct {
	Results  []Result  `json:"results"`
	Failures []Failure `json:"failures"`
}

type itemOp func(ctx context.Context, item *models.ContentItem) (Result, error)

// PostAll publishes every item with vocabulary and quiz inline.
func (p *Publisher) PostAll(ctx context.Context, items []models.ContentItem, channelID string) BulkReport {
	return p.bulk(ctx, items, func(ctx context.Context, item *models.ContentItem) (Result, error) {
		id, err := p.Publish(ctx, item, channelID, Options{IncludeVocabulary: true, IncludeQuiz: true})
		res := Result{MessageID: id}
		if len(item.Quiz) > 0 {
			res.QuizMessageID = id
		}
		return res, err
	})
}

// PostExtractedOnly publishes the items without any enrichment.
func (p *Publisher) PostExtractedOnly(ctx context.Context, items []models.ContentItem, channelID string) BulkReport {
	return p.bulk(ctx, items, func(ctx context.Context, item *models.ContentItem) (Result, error) {
		id, err := p.Publish(ctx, item, channelID, Options{})
		return Result{MessageID: id}, err
	})
}

// PostQuizVocabAsReplies publishes each item and threads its vocabulary and
// quiz as replies. Items that are not news get the primary message only.
func (p *Publisher) PostQuizVocabAsReplies(ctx context.Context, items []models.ContentItem, channelID string) BulkReport {
	return p.bulk(ctx, items, func(ctx context.Context, item *models.ContentItem) (Result, error) {
		if !item.IsNews() || (len(item.Quiz) == 0 && len(item.Vocabulary) == 0) {
			if item.PublishedMessageID != "" {
				return Result{MessageID: channel.MessageID(item.PublishedMessageID)}, nil
			}
			id, err := p.Publish(ctx, item, channelID, Options{})
			return Result{MessageID: id}, err
		}
		quizID, err := p.PublishThreadedExtras(ctx, item, channelID)
		return Result{MessageID: channel.MessageID(item.PublishedMessageID), QuizMessageID: quizID}, err
	})
}

// bulk runs op for every item concurrently and collects per-item outcomes.
func (p *Publisher) bulk(ctx context.Context, items []models.ContentItem, op itemOp) BulkReport {
	type outcome struct {
		res Result
		err error
	}
	outcomes := make([]outcome, len(items))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i := range items {
		g.Go(func() error {
			res, err := op(ctx, &items[i])
			res.Index = i
			res.Title = items[i].Title
			outcomes[i] = outcome{res: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	report := BulkReport{Results: []Result{}, Failures: []Failure{}}
	for i, o := range outcomes {
		if o.err != nil {
			p.log.Warn("Bulk publish item failed", "index", i, "title", items[i].Title, "error", o.err)
			report.Failures = append(report.Failures, Failure{Index: i, Title: items[i].Title, Error: o.err.Error()})
			continue
		}
		report.Results = append(report.Results, o.res)
	}
	p.log.Info("Bulk publish finished", "ok", len(report.Results), "failed", len(report.Failures))
	return report
}
