// Package alerts notifies operators about payments that need manual follow-up.
package alerts

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/learnhub/payrecon/pkg/config"
	"github.com/learnhub/payrecon/pkg/logger"
)

// Alert describes one operator-facing incident.
type Alert struct {
	Title         string
	OrderID       string
	TransactionID string
	Detail        string
}

// Notifier delivers alerts to operators.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// New returns a Telegram notifier when the bot is configured and a log-only
// notifier otherwise.
func New(cfg config.AlertsConfig, logg *logger.Logger, opts ...Option) Notifier {
	if strings.TrimSpace(cfg.TelegramBotToken) == "" || strings.TrimSpace(cfg.TelegramChatID) == "" {
		return &LogNotifier{logg: logg}
	}
	return NewTelegram(cfg, opts...)
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) Notify(ctx context.Context, alert Alert) error {
	if n == nil || n.logg == nil {
		return nil
	}
	ctx = n.logg.WithFields(ctx, map[string]any{
		"alert_title":    alert.Title,
		"order_id":       alert.OrderID,
		"transaction_id": alert.TransactionID,
		"alert_detail":   alert.Detail,
	})
	n.logg.Warn(ctx, "operator alert")
	return nil
}

func formatHTML(alert Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(alert.Title))
	if alert.OrderID != "" {
		fmt.Fprintf(&b, "Order: <code>%s</code>\n", html.EscapeString(alert.OrderID))
	}
	if alert.TransactionID != "" {
		fmt.Fprintf(&b, "Transaction: <code>%s</code>\n", html.EscapeString(alert.TransactionID))
	}
	if alert.Detail != "" {
		fmt.Fprintf(&b, "%s\n", html.EscapeString(alert.Detail))
	}
	return strings.TrimRight(b.String(), "\n")
}
