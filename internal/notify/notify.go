// Package notify sends best-effort admin notifications to Telegram.
package notify

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakehub/internal/common"
)

// Notifier delivers a text to the admins. Failures are logged, never returned:
// a lost notification must not fail a ledger operation.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Noop drops every message.
type Noop struct{}

func (Noop) Notify(context.Context, string) {}

// Telegram sends messages to a fixed set of admin chats.
type Telegram struct {
	bot   *telego.Bot
	chats []int64
}

// NewTelegram creates the bot client. Options are passed through to telego
// (tests point it at a fake API server).
func NewTelegram(token string, chats []int64, opts ...telego.BotOption) (*Telegram, error) {
	opts = append([]telego.BotOption{telego.WithDiscardLogger()}, opts...)
	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chats: chats}, nil
}

// Notify sends text to every admin chat.
func (t *Telegram) Notify(ctx context.Context, text string) {
	for _, chatID := range t.chats {
		if _, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
			log.WithError(err).WithField("chat_id", chatID).Warn("Telegram notification failed")
		}
	}
}

// New picks Telegram when a token is configured and Noop otherwise.
func New(token string, chats []int64) Notifier {
	if token == "" || len(chats) == 0 {
		return Noop{}
	}
	t, err := NewTelegram(token, chats)
	if err != nil {
		log.WithError(err).Warn("Telegram notifications disabled")
		return Noop{}
	}
	return t
}

// WithdrawalSubmitted formats the admin message for a new withdrawal.
func WithdrawalSubmitted(id, userID int64, username string, gross, net decimal.Decimal, network, address string) string {
	return fmt.Sprintf("New withdrawal #%d\nUser: %s (id %d)\nAmount: %s (net %s)\nNetwork: %s\nAddress: %s",
		id, username, userID, common.FormatUSDT(gross), common.FormatUSDT(net), network, address)
}

// SalaryRequested formats the admin message for a salary request.
func SalaryRequested(id, userID int64, username string, tier int, amount decimal.Decimal, wallet string) string {
	return fmt.Sprintf("Salary request #%d\nUser: %s (id %d)\nTier %d: %s\nWallet: %s",
		id, username, userID, tier, common.FormatUSDT(amount), wallet)
}
