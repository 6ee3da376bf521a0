package bot

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/newsdigestbot/extractor"
	"github.com/korjavin/newsdigestbot/pipeline"
)

// handleIngest publishes whatever an admin sends in a private chat
func (b *Bot) handleIngest(ctx context.Context, message *tgbotapi.Message) {
	in := ingestInput(message)
	if strings.TrimSpace(in.Text) == "" && len(in.URLs) == 0 && len(message.Photo) == 0 {
		b.sendMessage(message.Chat.ID, "Send me some text, links or a photo to publish.")
		return
	}

	b.react(ctx, message, reactionWorking)

	// The pipeline can take minutes; run it without blocking the update loop.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("Recovered from panic in ingestion goroutine", "panic", r)
				b.react(context.Background(), message, reactionFailed)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()

		if len(message.Photo) > 0 {
			uri, err := b.photoDataURI(ctx, message.Photo)
			if err != nil {
				b.log.Warn("Could not fetch photo", "error", err)
			} else {
				in.Images = append(in.Images, uri)
			}
		}

		report, err := b.pipeline.Run(ctx, pipeline.Request{
			Input:     in,
			ChannelID: b.cfg.TargetChatID,
			Mode:      b.mode,
		})
		if err != nil {
			b.log.Error("Ingestion failed", "error", err)
			b.react(ctx, message, reactionFailed)
			b.replyMessage(message.Chat.ID, message.MessageID, "❌ "+escape(userFacingError(err)))
			return
		}

		b.react(ctx, message, reactionDone)
		b.replyMessage(message.Chat.ID, message.MessageID, formatIngestReport(report))
	}()
}

// ingestInput collects text and explicit links from a message
func ingestInput(message *tgbotapi.Message) extractor.Input {
	text := message.Text
	entities := message.Entities
	if text == "" {
		text = message.Caption
		entities = message.CaptionEntities
	}

	var urls []string
	for _, e := range entities {
		if e.Type == "text_link" && e.URL != "" {
			urls = append(urls, e.URL)
		}
	}
	return extractor.Input{Text: text, URLs: urls}
}

// photoDataURI downloads the largest photo size as a data URI
func (b *Bot) photoDataURI(ctx context.Context, sizes []tgbotapi.PhotoSize) (string, error) {
	largest := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > largest.Width*largest.Height {
			largest = s
		}
	}
	data, err := b.downloadFile(ctx, largest.FileID)
	if err != nil {
		return "", err
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func formatIngestReport(report *pipeline.Report) string {
	if len(report.Items) == 0 {
		return "I couldn't find anything to publish in that message."
	}

	var sb strings.Builder
	if report.Publish == nil {
		fmt.Fprintf(&sb, "Prepared %d item(s):\n", len(report.Items))
		for _, it := range report.Items {
			fmt.Fprintf(&sb, "• [%s] %s\n", it.Category, escape(it.Title))
		}
		return sb.String()
	}

	fmt.Fprintf(&sb, "✅ Published %d of %d item(s)", len(report.Publish.Results), len(report.Items))
	for _, r := range report.Publish.Results {
		fmt.Fprintf(&sb, "\n• %s", escape(r.Title))
	}
	if len(report.Publish.Failures) > 0 {
		sb.WriteString("\n\nFailed:")
		for _, f := range report.Publish.Failures {
			fmt.Fprintf(&sb, "\n• %s: %s", escape(f.Title), escape(f.Error))
		}
	}
	return sb.String()
}

func userFacingError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, extractor.ErrNoContent):
		return "There was nothing to process in that message."
	case errors.Is(err, extractor.ErrGenerationTimeout):
		return "The content model took too long to respond. Please try again."
	case errors.Is(err, pipeline.ErrNoChannel):
		return "No target channel is configured (TARGET_CHAT_ID)."
	}
	return "Publishing failed: " + err.Error()
}
