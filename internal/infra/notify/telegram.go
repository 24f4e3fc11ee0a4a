package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ChatResolver maps a customer to their Telegram chat. Backed by the
// read-only customer directory owned by the CRUD system.
type ChatResolver interface {
	ChatID(ctx context.Context, customerID int64) (int64, error)
}

type TelegramGateway struct {
	bot   *tgbotapi.BotAPI
	chats ChatResolver
}

// NewTelegramGateway builds the gateway with a bounded per-request timeout;
// tgbotapi does not take a context, so the limit lives on the HTTP client.
func NewTelegramGateway(token string, timeout time.Duration, chats ChatResolver) (*TelegramGateway, error) {
	client := &http.Client{Timeout: timeout}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	return &TelegramGateway{bot: bot, chats: chats}, nil
}

func (g *TelegramGateway) Send(ctx context.Context, customerID int64, kind Kind, message string) (Delivery, error) {
	chatID, err := g.chats.ChatID(ctx, customerID)
	if err != nil {
		return Delivery{Delivered: false, ErrorCode: "no_chat"}, err
	}

	sent, err := g.bot.Send(tgbotapi.NewMessage(chatID, message))
	if err != nil {
		return Delivery{Delivered: false, ErrorCode: "send_failed"}, err
	}
	return Delivery{Delivered: true, ProviderRef: strconv.Itoa(sent.MessageID)}, nil
}
