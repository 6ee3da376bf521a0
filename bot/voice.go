package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/newsdigestbot/ai"
	"github.com/korjavin/newsdigestbot/database"
	"github.com/korjavin/newsdigestbot/models"
)

const judgeTimeout = 90 * time.Second

// handleVoice scores a voice reply against the text of the post it answers
func (b *Bot) handleVoice(ctx context.Context, message *tgbotapi.Message) {
	if b.judge == nil || b.pronunciation == nil {
		return
	}
	parentID := postID(message.ReplyToMessage)
	post, err := b.posts.GetPost(ctx, parentID.String())
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			b.log.Error("Error loading post for voice reply", "post", parentID, "error", err)
		}
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("Recovered from panic in voice goroutine", "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), judgeTimeout)
		defer cancel()

		audio, err := b.downloadFile(ctx, message.Voice.FileID)
		if err != nil {
			b.log.Warn("Could not download voice message", "error", err)
			return
		}

		mimeType := message.Voice.MimeType
		if mimeType == "" {
			mimeType = "audio/ogg"
		}
		verdict, err := b.judge.Judge(ctx, audio, mimeType, post.Text)
		if err != nil {
			if !errors.Is(err, ai.ErrJudgeDisabled) {
				b.log.Warn("Pronunciation judge failed", "error", err)
				b.replyMessage(message.Chat.ID, message.MessageID, "Sorry, I couldn't score this recording. Please try again later.")
			}
			return
		}

		rec := models.PronunciationRecord{
			UserID:          userKey(message.From),
			ThreadID:        post.MessageID,
			OriginalText:    post.Text,
			TranscribedText: verdict.Transcript,
			Score:           verdict.Score,
			Feedback:        verdict.Feedback,
			Timestamp:       time.Now().UTC(),
		}
		if err := b.pronunciation.AppendPronunciation(ctx, rec); err != nil {
			b.log.Error("Error saving pronunciation attempt", "error", err)
		}

		b.replyMessage(message.Chat.ID, message.MessageID, formatVerdict(verdict))
	}()
}

func formatVerdict(v *ai.Judgement) string {
	text := fmt.Sprintf("🎙️ Pronunciation score: <b>%d/100</b>", v.Score)
	if v.Transcript != "" {
		text += "\nI heard: <i>" + escape(v.Transcript) + "</i>"
	}
	if v.Feedback != "" {
		text += "\n\n" + escape(v.Feedback)
	}
	return text
}
