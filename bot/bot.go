package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/newsdigestbot/ai"
	"github.com/korjavin/newsdigestbot/channel"
	"github.com/korjavin/newsdigestbot/config"
	"github.com/korjavin/newsdigestbot/database"
	"github.com/korjavin/newsdigestbot/logger"
	"github.com/korjavin/newsdigestbot/pipeline"
	"github.com/korjavin/newsdigestbot/recorder"
	"github.com/korjavin/newsdigestbot/scoring"
)

// Bot represents the Telegram bot
type Bot struct {
	api           *tgbotapi.BotAPI
	cfg           *config.Config
	channel       channel.Publisher
	pipeline      *pipeline.Pipeline
	recorder      *recorder.Recorder
	scoring       *scoring.Engine
	posts         database.PostStore
	pronunciation database.PronunciationStore
	judge         ai.Judge
	mode          pipeline.Mode
	httpClient    *http.Client
	log           *logger.Logger
}

// Deps are the collaborators the bot dispatches to.
type Deps struct {
	Channel       channel.Publisher
	Pipeline      *pipeline.Pipeline
	Recorder      *recorder.Recorder
	Scoring       *scoring.Engine
	Posts         database.PostStore
	Pronunciation database.PronunciationStore
	Judge         ai.Judge
}

const (
	cmdStart         = "start"
	cmdHelp          = "help"
	cmdStat          = "stat"
	cmdLeaderboard   = "leaderboard"
	cmdHardest       = "hardest"
	cmdPronunciation = "pronunciation"

	reactionWorking = "👀"
	reactionDone    = "✅"
	reactionFailed  = "❌"

	ingestTimeout = 5 * time.Minute
)

// New creates a new bot instance
func New(api *tgbotapi.BotAPI, cfg *config.Config, deps Deps, log *logger.Logger) (*Bot, error) {
	mode, err := pipeline.ParseMode(cfg.PublishMode)
	if err != nil {
		return nil, fmt.Errorf("PUBLISH_MODE: %w", err)
	}
	return &Bot{
		api:           api,
		cfg:           cfg,
		channel:       deps.Channel,
		pipeline:      deps.Pipeline,
		recorder:      deps.Recorder,
		scoring:       deps.Scoring,
		posts:         deps.Posts,
		pronunciation: deps.Pronunciation,
		judge:         deps.Judge,
		mode:          mode,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		log:           log.With("service", "Bot"),
	}, nil
}

// Start listens for updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) {
	b.log.Info("Starting bot polling...", "bot", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query", "channel_post"}

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.log.Info("Stopping bot polling")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.dispatch(ctx, update)
		}
	}
}

// Stop ends long polling.
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Recovered from panic while handling update", "update_id", update.UpdateID, "panic", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// handleMessage processes incoming messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	userID := message.From.ID
	b.log.Debug("Received message", "user", message.From.UserName, "user_id", userID, "text", logger.Truncate(message.Text, 100))

	if message.Voice != nil && message.ReplyToMessage != nil {
		b.handleVoice(ctx, message)
		return
	}

	if message.IsCommand() {
		switch message.Command() {
		case cmdStart:
			b.handleStartCommand(message)
		case cmdHelp:
			b.handleHelpCommand(message)
		case cmdStat:
			b.handleStatCommand(ctx, message)
		case cmdLeaderboard:
			b.handleLeaderboardCommand(ctx, message)
		case cmdHardest:
			b.handleHardestCommand(ctx, message)
		case cmdPronunciation:
			b.handlePronunciationCommand(ctx, message)
		default:
			b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see what I can do.")
		}
		return
	}

	if message.Chat.IsPrivate() && b.cfg.IsAdmin(userID) {
		b.handleIngest(ctx, message)
		return
	}

	if message.Chat.IsPrivate() {
		b.sendMessage(message.Chat.ID, "Answer the quizzes in the channel, or use /help to see the available reports.")
	}
}

// handleStartCommand handles the /start command
func (b *Bot) handleStartCommand(message *tgbotapi.Message) {
	welcomeText := `Welcome to the News Digest bot!

Every digest post comes with a short quiz and a few vocabulary words. Tap an option under a quiz to answer; only your first answer counts.

Reply to a post with a voice message to practise pronunciation.

Commands:
/stat - Your score and accuracy
/leaderboard [week|all] - Top players
/hardest - This week's hardest questions
/pronunciation - Pronunciation ranking
/help - Show this help`

	if b.cfg.IsAdmin(message.From.ID) {
		welcomeText += "\n\nAs an admin you can send me text, links or photos and I will publish them as a digest."
	}
	b.sendMessage(message.Chat.ID, welcomeText)
}

// handleHelpCommand handles the /help command
func (b *Bot) handleHelpCommand(message *tgbotapi.Message) {
	b.handleStartCommand(message)
}

// sendMessage sends a text message
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("Error sending message", "chat_id", chatID, "error", err)

		// If sending fails with HTML, try without formatting
		plainMsg := tgbotapi.NewMessage(chatID, text)
		if _, err := b.api.Send(plainMsg); err != nil {
			b.log.Error("Plain text fallback also failed", "chat_id", chatID, "error", err)
		}
	}
}

// replyMessage sends text as a reply to the given message
func (b *Bot) replyMessage(chatID int64, replyTo int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyToMessageID = replyTo
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("Error sending reply", "chat_id", chatID, "error", err)
	}
}

// sendCallbackResponse sends a response to a callback query
func (b *Bot) sendCallbackResponse(callbackID, text string, alert bool) {
	callback := tgbotapi.NewCallback(callbackID, text)
	callback.ShowAlert = alert
	if _, err := b.api.Request(callback); err != nil {
		b.log.Warn("Error sending callback response", "error", err)
	}
}

// react sets a reaction on a message; failures are only logged
func (b *Bot) react(ctx context.Context, message *tgbotapi.Message, emoji string) {
	if b.channel == nil {
		return
	}
	id := channel.NewMessageID(message.Time(), int64(message.MessageID))
	if err := b.channel.AddReaction(ctx, strconv.FormatInt(message.Chat.ID, 10), id, emoji); err != nil {
		b.log.Debug("Could not set reaction", "emoji", emoji, "error", err)
	}
}

// downloadFile fetches a Telegram file by id
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 20<<20))
}

// postID maps the message a user interacted with back to the id the post was
// published under. Replies in a linked discussion group point at the
// automatic forward of the channel post.
func postID(message *tgbotapi.Message) channel.MessageID {
	if message.ForwardFromChat != nil && message.ForwardFromMessageID != 0 {
		return channel.NewMessageID(time.Unix(int64(message.ForwardDate), 0), int64(message.ForwardFromMessageID))
	}
	return channel.NewMessageID(message.Time(), int64(message.MessageID))
}

// userKey is the id responses are stored under.
func userKey(user *tgbotapi.User) string {
	return strconv.FormatInt(user.ID, 10)
}

func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
