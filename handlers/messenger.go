package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/maratbg/tgfleet/types"
)

// TelegramMessenger adapts the bot API to types.Messenger.
type TelegramMessenger struct {
	b *bot.Bot
}

var _ types.Messenger = (*TelegramMessenger)(nil)

func NewTelegramMessenger(b *bot.Bot) *TelegramMessenger {
	return &TelegramMessenger{b: b}
}

func (m *TelegramMessenger) Reply(ctx context.Context, chatID int64, text string) error {
	_, err := m.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	return err
}

func (m *TelegramMessenger) SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]types.KeyboardOption) error {
	pad := func(s string) string { return " " + s + " " }
	kb := make([][]models.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, opt := range row {
			buttons = append(buttons, models.InlineKeyboardButton{
				Text:         pad(opt.Label),
				CallbackData: opt.Code,
			})
		}
		kb = append(kb, buttons)
	}

	_, err := m.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: models.InlineKeyboardMarkup{InlineKeyboard: kb},
	})
	return err
}
