package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/newsdigestbot/blocks"
	"github.com/korjavin/newsdigestbot/channel"
	"github.com/korjavin/newsdigestbot/database"
	"github.com/korjavin/newsdigestbot/models"
)

// handleCallback processes callback queries from quiz buttons
func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	b.log.Debug("Handling callback", "user", callback.From.UserName, "user_id", callback.From.ID, "data", callback.Data)

	questionIndex, optionIndex, ok := channel.ParseQuizCallback(callback.Data)
	if !ok || callback.Message == nil {
		b.log.Warn("Invalid callback data", "data", callback.Data)
		b.sendCallbackResponse(callback.ID, "", false)
		return
	}

	quizID := channel.NewMessageID(callback.Message.Time(), int64(callback.Message.MessageID))
	post, err := b.posts.GetPost(ctx, quizID.String())
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			b.log.Error("Error loading quiz", "quiz", quizID, "error", err)
		}
		b.sendCallbackResponse(callback.ID, "Sorry, this quiz is no longer available.", true)
		return
	}

	question, option, ok := resolveAnswer(post, questionIndex, optionIndex)
	if !ok {
		b.log.Warn("Callback does not match quiz", "quiz", quizID, "question", questionIndex, "option", optionIndex)
		b.sendCallbackResponse(callback.ID, "Sorry, this option is no longer available.", true)
		return
	}

	accepted, err := b.recorder.Record(ctx, models.AnswerEvent{
		UserID:         userKey(callback.From),
		QuizMessageID:  quizID.String(),
		QuestionIndex:  questionIndex,
		SelectedOption: option,
		QuestionText:   question.Prompt,
	}, question.Correct)
	if err != nil {
		b.log.Error("Error saving answer", "quiz", quizID, "error", err)
		b.sendCallbackResponse(callback.ID, "Sorry, I couldn't save your answer. Please try again later.", true)
		return
	}

	b.sendCallbackResponse(callback.ID, answerFeedback(accepted, option == question.Correct, question.Correct), true)
}

// resolveAnswer looks up the question and option a button refers to
func resolveAnswer(post *models.PostRecord, questionIndex, optionIndex int) (models.QuizQuestion, string, bool) {
	if questionIndex < 0 || questionIndex >= len(post.Questions) {
		return models.QuizQuestion{}, "", false
	}
	q := post.Questions[questionIndex]
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return models.QuizQuestion{}, "", false
	}
	return q, q.Options[optionIndex], true
}

// answerFeedback is the popup text shown after tapping an option
func answerFeedback(accepted, correct bool, correctAnswer string) string {
	switch {
	case !accepted:
		return "You already answered this question. Only your first answer counts."
	case correct:
		return "✅ Correct! Well done!"
	}
	return fmt.Sprintf("❌ Not quite. The right answer is: %s", blocks.TruncateOption(correctAnswer))
}
