package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/christopherklint97/worktracker/internal/report"
)

// maxMessageRunes keeps messages under Telegram's 4096 character limit.
const maxMessageRunes = 3500

// Telegram is the Sender backed by the Telegram Bot API, with long polling
// for incoming messages.
type Telegram struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
	logger      *slog.Logger
}

func NewTelegram(token string, pollTimeout int, logger *slog.Logger) (*Telegram, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if token == "" {
		return nil, fmt.Errorf("bot token is empty: set bot.token in config or BOT_TOKEN")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to Telegram: %w", err)
	}
	if pollTimeout <= 0 {
		pollTimeout = 60
	}
	logger.Info("authorized on Telegram", "bot", api.Self.UserName)
	return &Telegram{api: api, pollTimeout: pollTimeout, logger: logger}, nil
}

// Run delivers text messages to handle until ctx is cancelled. Updates are
// handled one at a time in arrival order.
func (t *Telegram) Run(ctx context.Context, handle func(context.Context, Incoming) error) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	updates := t.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		t.api.StopReceivingUpdates()
	}()

	for update := range updates {
		m := update.Message
		if m == nil || m.From == nil || m.Text == "" {
			continue
		}
		in := Incoming{
			UserID:    m.From.ID,
			ChatID:    m.Chat.ID,
			Username:  m.From.UserName,
			FirstName: m.From.FirstName,
			LastName:  m.From.LastName,
			Text:      m.Text,
		}
		if err := handle(ctx, in); err != nil {
			t.logger.Warn("handling message failed", "user", in.UserID, "error", err)
		}
	}
	return ctx.Err()
}

// SendText sends text, split into several messages when long. The keyboard
// goes with the last part.
func (t *Telegram) SendText(ctx context.Context, chatID int64, text string, kb report.Keyboard) error {
	// Telegram API rejects invalid UTF-8.
	text = strings.ToValidUTF8(text, " ")
	parts := SplitText(text, maxMessageRunes)
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, part)
		if i == len(parts)-1 {
			if markup := keyboardMarkup(kb); markup != nil {
				msg.ReplyMarkup = markup
			}
		}
		if _, err := t.api.Send(msg); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
	}
	return nil
}

func (t *Telegram) SendDocument(ctx context.Context, chatID int64, doc Document, kb report.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: doc.Name, Bytes: doc.Data})
	msg.Caption = doc.Caption
	if markup := keyboardMarkup(kb); markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("sending document: %w", err)
	}
	return nil
}

func keyboardMarkup(kb report.Keyboard) interface{} {
	switch kb {
	case report.KeyboardMenu:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(MenuRows))
		for _, row := range MenuRows {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, label := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		markup := tgbotapi.NewReplyKeyboard(rows...)
		markup.ResizeKeyboard = true
		return markup
	case report.KeyboardYesNo:
		markup := tgbotapi.NewOneTimeReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(report.AnswerYes),
			tgbotapi.NewKeyboardButton(report.AnswerNo),
		))
		markup.ResizeKeyboard = true
		return markup
	case report.KeyboardRemove:
		return tgbotapi.NewRemoveKeyboard(true)
	}
	return nil
}

// SplitText cuts text into parts of at most maxRunes runes, preferring to
// break after a newline in the second half of each part.
func SplitText(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = maxMessageRunes
	}
	r := []rune(text)
	if len(r) <= maxRunes {
		return []string{text}
	}

	parts := make([]string, 0, (len(r)/maxRunes)+1)
	for len(r) > maxRunes {
		split := maxRunes
		for i := maxRunes; i > maxRunes/2; i-- {
			if r[i] == '\n' {
				split = i + 1
				break
			}
		}
		parts = append(parts, strings.TrimSpace(string(r[:split])))
		r = r[split:]
	}
	if len(r) > 0 {
		parts = append(parts, strings.TrimSpace(string(r)))
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}
