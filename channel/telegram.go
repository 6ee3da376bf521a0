package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/newsdigestbot/blocks"
	"github.com/korjavin/newsdigestbot/logger"
)

const (
	// QuizCallbackPrefix starts the callback data of quiz option buttons:
	// "quiz:<question index>:<option index>".
	QuizCallbackPrefix = "quiz:"

	telegramTextLimit = 4096
	dividerLine       = "──────────"
)

// Telegram implements Publisher on top of the Bot API.
type Telegram struct {
	api *tgbotapi.BotAPI
	log *logger.Logger
}

// NewTelegram wraps an authorised Bot API client.
func NewTelegram(api *tgbotapi.BotAPI, log *logger.Logger) *Telegram {
	return &Telegram{api: api, log: log.With("service", "TelegramPublisher")}
}

// PostMessage renders msg to HTML with an inline keyboard for quiz controls.
func (t *Telegram) PostMessage(ctx context.Context, channelID string, msg blocks.Message, threadParent MessageID) (MessageID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	chatID, username, err := parseTarget(channelID)
	if err != nil {
		return "", err
	}

	text, keyboard := Render(msg)
	cfg := tgbotapi.NewMessage(chatID, text)
	cfg.ChannelUsername = username
	cfg.ParseMode = tgbotapi.ModeHTML
	if keyboard != nil {
		cfg.ReplyMarkup = *keyboard
	}
	if threadParent != "" {
		seq, ok := threadParent.Seq()
		if !ok {
			return "", fmt.Errorf("invalid thread parent %q", threadParent)
		}
		cfg.ReplyToMessageID = int(seq)
	}

	sent, err := t.api.Send(cfg)
	if err != nil {
		t.log.Warn("Telegram send failed", "channel", channelID, "error", err)
		return "", err
	}
	id := NewMessageID(time.Unix(int64(sent.Date), 0), int64(sent.MessageID))
	t.log.Debug("Message posted", "channel", channelID, "message_id", id, "thread_parent", threadParent)
	return id, nil
}

// UploadFile sends images as photos, audio as audio and anything else as a document.
func (t *Telegram) UploadFile(ctx context.Context, channelID string, f File, threadParent MessageID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, username, err := parseTarget(channelID)
	if err != nil {
		return err
	}
	replyTo := 0
	if threadParent != "" {
		seq, ok := threadParent.Seq()
		if !ok {
			return fmt.Errorf("invalid thread parent %q", threadParent)
		}
		replyTo = int(seq)
	}
	data := tgbotapi.FileBytes{Name: f.Name, Bytes: f.Data}

	var cfg tgbotapi.Chattable
	switch f.Type {
	case FileImage:
		photo := tgbotapi.NewPhoto(chatID, data)
		photo.ChannelUsername = username
		photo.ReplyToMessageID = replyTo
		cfg = photo
	case FileAudio:
		audio := tgbotapi.NewAudio(chatID, data)
		audio.ChannelUsername = username
		audio.ReplyToMessageID = replyTo
		cfg = audio
	default:
		doc := tgbotapi.NewDocument(chatID, data)
		doc.ChannelUsername = username
		doc.ReplyToMessageID = replyTo
		cfg = doc
	}
	if _, err := t.api.Send(cfg); err != nil {
		t.log.Warn("Telegram upload failed", "channel", channelID, "file", f.Name, "error", err)
		return err
	}
	return nil
}

// AddReaction sets an emoji reaction. The pinned Bot API client predates
// setMessageReaction, so the raw endpoint is called.
func (t *Telegram) AddReaction(ctx context.Context, channelID string, id MessageID, emoji string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	seq, ok := id.Seq()
	if !ok {
		return fmt.Errorf("invalid message id %q", id)
	}
	reaction, err := json.Marshal([]map[string]string{{"type": "emoji", "emoji": emoji}})
	if err != nil {
		return err
	}
	params := tgbotapi.Params{}
	params["chat_id"] = channelID
	params.AddNonZero64("message_id", seq)
	params["reaction"] = string(reaction)

	_, err = t.api.MakeRequest("setMessageReaction", params)
	return err
}

// LookupUser returns "@username" when the user has one, else their full name.
func (t *Telegram) LookupUser(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	chat, err := t.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: id}})
	if err != nil {
		return "", err
	}
	if chat.UserName != "" {
		return "@" + chat.UserName, nil
	}
	name := strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	if name == "" {
		return "", errors.New("user has no public name")
	}
	return name, nil
}

// ParseQuizCallback decodes quiz button callback data.
func ParseQuizCallback(data string) (questionIndex, optionIndex int, ok bool) {
	if !strings.HasPrefix(data, QuizCallbackPrefix) {
		return 0, 0, false
	}
	q, o, found := strings.Cut(strings.TrimPrefix(data, QuizCallbackPrefix), ":")
	if !found {
		return 0, 0, false
	}
	qi, err := strconv.Atoi(q)
	if err != nil || qi < 0 {
		return 0, 0, false
	}
	oi, err := strconv.Atoi(o)
	if err != nil || oi < 0 {
		return 0, 0, false
	}
	return qi, oi, true
}

// Render converts a composed message to Telegram HTML plus an optional
// inline keyboard holding one row per quiz option. Messages over the Telegram
// limit are shortened block by block so markup always stays balanced.
func Render(msg blocks.Message) (string, *tgbotapi.InlineKeyboardMarkup) {
	text, rows := render(fitBlocks(msg.Blocks))
	if strings.TrimSpace(text) == "" || utf8.RuneCountInString(text) > telegramTextLimit {
		text = escapeWithin(msg.FallbackText, telegramTextLimit)
		rows = nil
	}
	if len(rows) == 0 {
		return text, nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return text, &markup
}

func render(bs []blocks.Block) (string, [][]tgbotapi.InlineKeyboardButton) {
	var parts []string
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, b := range bs {
		switch b.Kind {
		case blocks.KindHeader:
			parts = append(parts, "<b>"+html.EscapeString(b.Text)+"</b>")
		case blocks.KindSection:
			if b.Text != "" {
				parts = append(parts, html.EscapeString(b.Text))
			}
		case blocks.KindLink:
			parts = append(parts, fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(b.URL), html.EscapeString(b.Text)))
		case blocks.KindDivider:
			parts = append(parts, dividerLine)
		case blocks.KindVocabulary:
			var sb strings.Builder
			sb.WriteString("<b>" + html.EscapeString(b.Text) + "</b>")
			for _, term := range b.Terms {
				sb.WriteString(fmt.Sprintf("\n• <b>%s</b>: %s", html.EscapeString(term.Term), html.EscapeString(term.Definition)))
			}
			parts = append(parts, sb.String())
		case blocks.KindQuiz:
			if b.Quiz == nil {
				continue
			}
			q := b.Quiz
			var sb strings.Builder
			sb.WriteString(fmt.Sprintf("<b>❓ Q%d.</b> %s", q.QuestionIndex+1, html.EscapeString(q.Prompt)))
			for j, opt := range q.Options {
				sb.WriteString(fmt.Sprintf("\n%c) %s", 'A'+j, html.EscapeString(opt.Value)))
				label := fmt.Sprintf("Q%d %c · %s", q.QuestionIndex+1, 'A'+j, opt.Text)
				data := fmt.Sprintf("%s%d:%d", QuizCallbackPrefix, q.QuestionIndex, j)
				rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, data)))
			}
			parts = append(parts, sb.String())
		}
	}
	return strings.Join(parts, "\n\n"), rows
}

// fitBlocks shortens the body first, then drops vocabulary, links and
// dividers. Quiz blocks are never cut, so the keyboard matches the text.
func fitBlocks(in []blocks.Block) []blocks.Block {
	bs := append([]blocks.Block(nil), in...)
	for {
		text, _ := render(bs)
		over := utf8.RuneCountInString(text) - telegramTextLimit
		if over <= 0 {
			return bs
		}
		if i := longestSection(bs); i >= 0 {
			bs[i].Text = shorten(bs[i].Text, over)
			continue
		}
		if i := lastDroppable(bs); i >= 0 {
			bs = append(bs[:i:i], bs[i+1:]...)
			continue
		}
		return bs
	}
}

func longestSection(bs []blocks.Block) int {
	best, bestLen := -1, 0
	for i, b := range bs {
		if b.Kind != blocks.KindSection {
			continue
		}
		if n := utf8.RuneCountInString(b.Text); n > bestLen {
			best, bestLen = i, n
		}
	}
	return best
}

func lastDroppable(bs []blocks.Block) int {
	for i := len(bs) - 1; i >= 0; i-- {
		switch bs[i].Kind {
		case blocks.KindVocabulary, blocks.KindLink, blocks.KindDivider:
			return i
		}
	}
	return -1
}

// shorten removes at least n runes from the end of s and appends an
// ellipsis. Escaping never makes the removed part shorter.
func shorten(s string, n int) string {
	runes := []rune(s)
	keep := len(runes) - n - 1
	if keep <= 0 {
		return ""
	}
	return strings.TrimRightFunc(string(runes[:keep]), unicode.IsSpace) + "…"
}

// escapeWithin escapes s and trims it until the escaped text fits limit.
func escapeWithin(s string, limit int) string {
	out := html.EscapeString(s)
	for utf8.RuneCountInString(out) > limit {
		s = shorten(s, utf8.RuneCountInString(out)-limit)
		out = html.EscapeString(s)
	}
	return out
}

// parseTarget accepts a numeric chat id or an "@channel" username.
func parseTarget(channelID string) (int64, string, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return 0, "", errors.New("empty channel id")
	}
	if strings.HasPrefix(channelID, "@") {
		return 0, channelID, nil
	}
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid channel id %q: %w", channelID, err)
	}
	return id, "", nil
}
