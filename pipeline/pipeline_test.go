package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/korjavin/newsdigestbot/extractor"
	"github.com/korjavin/newsdigestbot/logger"
	"github.com/korjavin/newsdigestbot/models"
	"github.com/korjavin/newsdigestbot/publisher"
)

type fakeExtractor struct {
	out *extractor.Extraction
	err error
}

func (f fakeExtractor) Extract(ctx context.Context, in extractor.Input) (*extractor.Extraction, error) {
	return f.out, f.err
}

type fakeEnricher struct{ calls int }

func (f *fakeEnricher) EnrichAll(ctx context.Context, items []models.ContentItem) error {
	f.calls++
	for i := range items {
		if items[i].IsNews() {
			items[i].Quiz = []models.QuizQuestion{{Prompt: "q", Options: []string{"a"}, Correct: "a"}}
		}
	}
	return nil
}

type fakePublisher struct{ mode string }

func (f *fakePublisher) report(items []models.ContentItem) publisher.BulkReport {
	var r publisher.BulkReport
	for i, it := range items {
		r.Results = append(r.Results, publisher.Result{Index: i, Title: it.Title})
	}
	return r
}

func (f *fakePublisher) PostAll(ctx context.Context, items []models.ContentItem, ch string) publisher.BulkReport {
	f.mode = "all"
	return f.report(items)
}

func (f *fakePublisher) PostExtractedOnly(ctx context.Context, items []models.ContentItem, ch string) publisher.BulkReport {
	f.mode = "extracted"
	return f.report(items)
}

func (f *fakePublisher) PostQuizVocabAsReplies(ctx context.Context, items []models.ContentItem, ch string) publisher.BulkReport {
	f.mode = "threaded"
	return f.report(items)
}

func extraction() *extractor.Extraction {
	return &extractor.Extraction{
		Items: []models.ContentItem{
			{Category: models.CategoryTools, Title: "tool"},
			{Category: models.CategoryNews, Title: "news"},
		},
		Images: []string{"https://i.imgur.com/a.png"},
	}
}

func TestRunModes(t *testing.T) {
	tests := []struct {
		mode        Mode
		wantPublish string
		wantEnrich  int
	}{
		{ModeAll, "all", 1},
		{ModeExtractedOnly, "extracted", 0},
		{ModeThreaded, "threaded", 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			enr := &fakeEnricher{}
			pub := &fakePublisher{}
			p := New(fakeExtractor{out: extraction()}, enr, pub, logger.Nop())

			report, err := p.Run(context.Background(), Request{ChannelID: "@news", Mode: tt.mode})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if pub.mode != tt.wantPublish || enr.calls != tt.wantEnrich {
				t.Fatalf("publish=%s enrich=%d", pub.mode, enr.calls)
			}
			if report.Publish == nil || len(report.Publish.Results) != 2 {
				t.Fatalf("report = %+v", report)
			}
			// news is assigned first
			if report.Items[1].ImageRef != "https://i.imgur.com/a.png" || report.Items[0].ImageRef != "" {
				t.Fatalf("images = %q %q", report.Items[0].ImageRef, report.Items[1].ImageRef)
			}
		})
	}
}

func TestRunDryRunAndErrors(t *testing.T) {
	pub := &fakePublisher{}
	p := New(fakeExtractor{out: extraction()}, &fakeEnricher{}, pub, logger.Nop())
	report, err := p.Run(context.Background(), Request{DryRun: true})
	if err != nil || report.Publish != nil || pub.mode != "" {
		t.Fatalf("dry run: %+v, %v, published=%q", report, err, pub.mode)
	}

	if _, err := p.Run(context.Background(), Request{}); !errors.Is(err, ErrNoChannel) {
		t.Fatalf("expected ErrNoChannel, got %v", err)
	}

	p = New(fakeExtractor{err: extractor.ErrNoContent}, nil, pub, logger.Nop())
	if _, err := p.Run(context.Background(), Request{ChannelID: "@news"}); !errors.Is(err, extractor.ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeThreaded, "ALL": ModeAll, "extracted-only": ModeExtractedOnly, "threaded": ModeThreaded} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("sideways"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
