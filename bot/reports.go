package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/newsdigestbot/models"
	"github.com/korjavin/newsdigestbot/scoring"
)

const (
	leaderboardSize = 10
	hardestSize     = 5
)

// handleStatCommand handles the /stat command
func (b *Bot) handleStatCommand(ctx context.Context, message *tgbotapi.Message) {
	st, ok, err := b.scoring.UserStanding(ctx, nil, userKey(message.From))
	if err != nil {
		b.log.Error("Error getting scores", "error", err)
		b.sendMessage(message.Chat.ID, "Sorry, I couldn't retrieve your statistics. Please try again later.")
		return
	}
	b.sendMessage(message.Chat.ID, formatUserStat(st, ok))
}

// handleLeaderboardCommand handles /leaderboard [week|all]
func (b *Bot) handleLeaderboardCommand(ctx context.Context, message *tgbotapi.Message) {
	allTime := strings.EqualFold(strings.TrimSpace(message.CommandArguments()), "all")
	var week *scoring.Week
	title := "🏆 All-time leaderboard"
	if !allTime {
		w := scoring.WeekOf(time.Now(), b.scoring.Location())
		week = &w
		title = "🏆 Leaderboard for the week of " + w.Key()
	}

	scores, err := b.scoring.Scores(ctx, week)
	if err != nil {
		b.log.Error("Error getting leaderboard", "error", err)
		b.sendMessage(message.Chat.ID, "Sorry, I couldn't build the leaderboard. Please try again later.")
		return
	}
	b.sendMessage(message.Chat.ID, formatLeaderboard(title, scores, leaderboardSize))
}

// handleHardestCommand handles /hardest
func (b *Bot) handleHardestCommand(ctx context.Context, message *tgbotapi.Message) {
	w := scoring.WeekOf(time.Now(), b.scoring.Location())
	stats, err := b.scoring.QuestionStats(ctx, &w, scoring.OrderHardestFirst)
	if err != nil {
		b.log.Error("Error getting question stats", "error", err)
		b.sendMessage(message.Chat.ID, "Sorry, I couldn't load the question statistics. Please try again later.")
		return
	}
	b.sendMessage(message.Chat.ID, formatHardest(stats, hardestSize))
}

// handlePronunciationCommand handles /pronunciation
func (b *Bot) handlePronunciationCommand(ctx context.Context, message *tgbotapi.Message) {
	scores, err := b.scoring.PronunciationScores(ctx)
	if err != nil {
		b.log.Error("Error getting pronunciation scores", "error", err)
		b.sendMessage(message.Chat.ID, "Sorry, I couldn't load the pronunciation ranking. Please try again later.")
		return
	}
	b.sendMessage(message.Chat.ID, formatPronunciation(scores, leaderboardSize))
}

func formatUserStat(st scoring.Standing, ok bool) string {
	if !ok {
		return "You haven't answered any quiz yet. Tap an option under a quiz in the channel to get started!"
	}
	return fmt.Sprintf(`📊 Your Statistics:

Questions Answered: %d
Correct Answers: %d ✅
Incorrect Answers: %d ❌
Accuracy: %.1f%%
Rank: %d of %d`, st.TotalAnswered, st.CorrectAnswers, st.TotalAnswered-st.CorrectAnswers, st.Accuracy, st.Rank, st.Total)
}

func formatLeaderboard(title string, scores []models.UserScore, limit int) string {
	if len(scores) == 0 {
		return title + "\n\nNo answers yet."
	}
	var sb strings.Builder
	sb.WriteString("<b>" + escape(title) + "</b>\n")
	for i, s := range scores {
		if i == limit {
			break
		}
		fmt.Fprintf(&sb, "\n%s %s: %d pts (%d/%d, %.0f%%)", medal(i), escape(s.DisplayName), s.Score, s.CorrectAnswers, s.TotalAnswered, s.Accuracy)
	}
	return sb.String()
}

func formatHardest(stats []models.QuestionStat, limit int) string {
	if len(stats) == 0 {
		return "No quiz answers this week yet."
	}
	var sb strings.Builder
	sb.WriteString("<b>🧠 Hardest questions this week</b>\n")
	for i, s := range stats {
		if i == limit {
			break
		}
		text := s.QuestionText
		if text == "" {
			text = fmt.Sprintf("Question %d", s.QuestionIndex+1)
		}
		if len([]rune(text)) > 60 {
			text = string([]rune(text)[:57]) + "..."
		}
		fmt.Fprintf(&sb, "\n%d. %s: %.0f%% correct (%d answers)", i+1, escape(text), s.Difficulty, s.Attempts)
	}
	return sb.String()
}

func formatPronunciation(scores []models.UserPronunciationScore, limit int) string {
	if len(scores) == 0 {
		return "No pronunciation attempts yet. Reply to a post with a voice message to try!"
	}
	var sb strings.Builder
	sb.WriteString("<b>🎙️ Pronunciation ranking</b>\n")
	for i, s := range scores {
		if i == limit {
			break
		}
		fmt.Fprintf(&sb, "\n%s %s: avg %.0f, best %d, %d attempt(s), trend %+d", medal(i), escape(s.DisplayName), s.AverageScore, s.BestScore, s.Attempts, s.Trend)
	}
	return sb.String()
}

func medal(rank int) string {
	switch rank {
	case 0:
		return "🥇"
	case 1:
		return "🥈"
	case 2:
		return "🥉"
	}
	return fmt.Sprintf("%d.", rank+1)
}
