package errormgr

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// NotificationHandler pushes team-notification errors to the operators'
// Telegram channel. Opt-in is driven entirely by the error config.
type NotificationHandler struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

func NewNotificationHandler(botToken string, chatID int64, logger *zap.Logger) (*NotificationHandler, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("initialize notification bot: %w", err)
	}

	return &NotificationHandler{
		bot:    bot,
		chatID: chatID,
		logger: logger,
	}, nil
}

func (h *NotificationHandler) ShouldHandle(cfg ErrorConfig) bool {
	return cfg.NotifyTeam
}

func (h *NotificationHandler) Handle(_ context.Context, code string, cfg ErrorConfig, errCtx map[string]any, cause error) {
	text := fmt.Sprintf("🚨 %s [%s]\nstatus: %d", code, cfg.Type, cfg.HTTPStatus)
	if original, ok := errCtx[contextKeyOriginalCode]; ok {
		text += fmt.Sprintf("\noriginal code: %v", original)
	}
	if cause != nil {
		text += "\ncause: " + cause.Error()
	}

	msg := tgbotapi.NewMessage(h.chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.Error("failed to send error notification",
			zap.String("error_code", code),
			zap.Error(err),
		)
	}
}
