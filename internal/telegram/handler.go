package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/PoluyanbIch/GoQuizBot/internal/logging"
	"github.com/PoluyanbIch/GoQuizBot/internal/service"
)

const defaultUpdateTimeout = 60

// Dialogue turns one inbound message into the replies to send back.
type Dialogue interface {
	Handle(ctx context.Context, ev service.Event) ([]service.Reply, error)
	FailureReply() service.Reply
}

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Options struct {
	Debug         bool
	UpdateTimeout int
}

// Bot relays Telegram messages to the quiz dialogue.
type Bot struct {
	sender   messageSender
	updates  updateSource
	dialogue Dialogue
	timeout  int
	logger   zerolog.Logger
}

func NewBot(token string, dialogue Dialogue, logger zerolog.Logger, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = opts.Debug

	b := newBot(api, api, dialogue, logger, opts)
	b.logger.Info().Str("account", api.Self.UserName).Msg("authorised")
	return b, nil
}

func newBot(sender messageSender, updates updateSource, dialogue Dialogue, logger zerolog.Logger, opts Options) *Bot {
	timeout := opts.UpdateTimeout
	if timeout <= 0 {
		timeout = defaultUpdateTimeout
	}
	return &Bot{
		sender:   sender,
		updates:  updates,
		dialogue: dialogue,
		timeout:  timeout,
		logger:   logger.With().Str("component", "telegram").Logger(),
	}
}

// Start long-polls for updates until ctx is cancelled. Messages are handled one at a time.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout

	updates := b.updates.GetUpdatesChan(u)
	b.logger.Info().Msg("receiving updates")

	for {
		select {
		case <-ctx.Done():
			b.updates.StopReceivingUpdates()
			b.logger.Info().Msg("stopped receiving updates")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	// Only text from a user drives the dialogue.
	if msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return
	}
	chatID := msg.Chat.ID
	logger := b.logger.With().
		Int64("user_id", msg.From.ID).
		Int64("chat_id", chatID).
		Logger()
	ctx = logging.IntoContext(ctx, logger)

	replies, err := b.dialogue.Handle(ctx, service.Event{
		UserID:      msg.From.ID,
		DisplayName: displayName(msg.From),
		Text:        msg.Text,
	})
	if err != nil {
		logger.Error().Err(err).Msg("handle message")
		replies = []service.Reply{b.dialogue.FailureReply()}
	}

	for _, r := range replies {
		b.send(chatID, r, logger)
	}
}

func (b *Bot) send(chatID int64, r service.Reply, logger zerolog.Logger) {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	if r.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdownV2
	}
	if r.Keyboard != nil {
		msg.ReplyMarkup = buildKeyboard(r.Keyboard)
	}
	if _, err := b.sender.Send(msg); err != nil {
		logger.Error().Err(err).Msg("send message")
	}
}

func buildKeyboard(rows [][]string) interface{} {
	if len(rows) == 0 {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	buttons := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			line = append(line, tgbotapi.NewKeyboardButton(label))
		}
		buttons = append(buttons, tgbotapi.NewKeyboardButtonRow(line...))
	}
	kb := tgbotapi.NewReplyKeyboard(buttons...)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}

func displayName(user *tgbotapi.User) string {
	if user.UserName != "" {
		return "@" + user.UserName
	}
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}
