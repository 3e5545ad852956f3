package telegram

import (
	"errors"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier delivers price alerts as plain chat messages.
type Notifier struct {
	api    sender
	logger *zap.Logger
}

func NewNotifier(api *tgbotapi.BotAPI, logger *zap.Logger) *Notifier {
	return &Notifier{api: api, logger: logger}
}

func (n *Notifier) Notify(telegramUserID int64, text string) error {
	n.logger.Debug("telegram notify send", zap.Int64("telegram_user_id", telegramUserID), zap.Int("length", len(text)))
	msg := tgbotapi.NewMessage(telegramUserID, text)
	if _, err := n.api.Send(msg); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden {
			n.logger.Info("subscriber blocked the bot", zap.Int64("telegram_user_id", telegramUserID))
		} else {
			n.logger.Warn("failed to notify", zap.Int64("telegram_user_id", telegramUserID), zap.Error(err))
		}
		return err
	}
	return nil
}
