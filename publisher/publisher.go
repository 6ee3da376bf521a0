// Package publisher posts content items to a channel: the primary message,
// threaded vocabulary and quiz replies, and image/audio attachments.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/korjavin/newsdigestbot/blocks"
	"github.com/korjavin/newsdigestbot/channel"
	"github.com/korjavin/newsdigestbot/database"
	"github.com/korjavin/newsdigestbot/logger"
	"github.com/korjavin/newsdigestbot/models"
)

// ErrNoMessageID is returned when the channel accepted a post but returned no id.
var ErrNoMessageID = errors.New("channel returned no message id")

const (
	defaultDownloadTimeout = 15 * time.Second
	defaultConcurrency     = 4
)

// Options selects the extras rendered inline in the primary message.
type Options struct {
	IncludeVocabulary bool
	IncludeQuiz       bool
}

type Config struct {
	AudioDir        string
	TempDir         string
	DownloadTimeout time.Duration
	// Concurrency bounds the per-item operations of bulk publishing.
	Concurrency int
}

type Publisher struct {
	ch         channel.Publisher
	posts      database.PostStore
	cfg        Config
	httpClient *http.Client
	log        *logger.Logger
}

// New creates a Publisher. posts may be nil, in which case published quizzes
// cannot be resolved later.
func New(ch channel.Publisher, posts database.PostStore, cfg Config, log *logger.Logger) *Publisher {
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = defaultDownloadTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Publisher{
		ch:         ch,
		posts:      posts,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.DownloadTimeout},
		log:        log.With("service", "Publisher"),
	}
}

// Publish posts the item as a primary message and then attaches its image and
// audio. Only a failed primary post is an error; attachments degrade silently.
func (p *Publisher) Publish(ctx context.Context, item *models.ContentItem, channelID string, opts Options) (channel.MessageID, error) {
	b := blocks.ForItem(item)
	var questions []models.QuizQuestion
	if item.IsNews() {
		if opts.IncludeVocabulary {
			b.Vocabulary(item.Vocabulary)
		}
		if opts.IncludeQuiz {
			questions = item.Quiz
			b.Quiz(questions)
		}
	}

	id, err := p.post(ctx, channelID, b.Build(), "")
	if err != nil {
		return "", fmt.Errorf("post %q: %w", item.Title, err)
	}
	item.PublishedMessageID = id.String()
	p.savePost(ctx, id, channelID, item, questions)

	p.attachImage(ctx, channelID, item, id)
	p.attachAudio(ctx, channelID, item, id)

	p.log.Info("Published item", "title", item.Title, "message_id", id, "category", item.Category)
	return id, nil
}

// PublishThreadedExtras posts vocabulary and quiz as replies to the item's
// primary message, posting the primary first when the item has none yet. It
// returns the quiz reply id, which is the id quiz answers reference.
func (p *Publisher) PublishThreadedExtras(ctx context.Context, item *models.ContentItem, channelID string) (channel.MessageID, error) {
	if item.PublishedMessageID == "" {
		if _, err := p.Publish(ctx, item, channelID, Options{}); err != nil {
			return "", err
		}
	}
	parent := channel.MessageID(item.PublishedMessageID)

	var vocabErr, quizErr error
	if len(item.Vocabulary) > 0 {
		msg := blocks.New().Vocabulary(item.Vocabulary).Fallback("Vocabulary: " + item.Title).Build()
		if _, err := p.post(ctx, channelID, msg, parent); err != nil {
			vocabErr = fmt.Errorf("vocabulary reply for %q: %w", item.Title, err)
			p.log.Warn("Vocabulary reply failed", "title", item.Title, "error", err)
		}
	}

	var quizID channel.MessageID
	if len(item.Quiz) > 0 {
		msg := blocks.New().Quiz(item.Quiz).Fallback("Quiz: " + item.Title).Build()
		id, err := p.post(ctx, channelID, msg, parent)
		if err != nil {
			quizErr = fmt.Errorf("quiz reply for %q: %w", item.Title, err)
			p.log.Warn("Quiz reply failed", "title", item.Title, "error", err)
		} else {
			quizID = id
			p.savePost(ctx, id, channelID, item, item.Quiz)
		}
	}
	return quizID, errors.Join(vocabErr, quizErr)
}

func (p *Publisher) post(ctx context.Context, channelID string, msg blocks.Message, parent channel.MessageID) (channel.MessageID, error) {
	id, err := p.ch.PostMessage(ctx, channelID, msg, parent)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNoMessageID
	}
	return id, nil
}

// savePost records the post so answers and voice replies can be resolved.
func (p *Publisher) savePost(ctx context.Context, id channel.MessageID, channelID string, item *models.ContentItem, questions []models.QuizQuestion) {
	if p.posts == nil {
		return
	}
	postedAt, ok := id.PostedAt()
	if !ok {
		postedAt = time.Now().UTC()
	}
	rec := models.PostRecord{
		MessageID: id.String(),
		ChannelID: channelID,
		PostedAt:  postedAt,
		Title:     item.Title,
		Text:      item.NarrationText(),
		Questions: questions,
	}
	if err := p.posts.SavePost(ctx, rec); err != nil {
		p.log.Error("Failed to save post record", "message_id", id, "error", err)
	}
}

func isRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
