package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/learnhub/payrecon/pkg/config"
	pkgerrors "github.com/learnhub/payrecon/pkg/errors"
)

const (
	defaultTelegramBaseURL       = "https://api.telegram.org"
	responseReadLimit      int64 = 1024
)

// Option configures optional Telegram behavior.
type Option func(*Telegram)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Telegram) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// WithBaseURL overrides the Bot API base URL.
func WithBaseURL(baseURL string) Option {
	return func(t *Telegram) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			t.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// Telegram posts alerts to an admin chat through the Bot API.
type Telegram struct {
	httpClient *http.Client
	baseURL    string
	botToken   string
	chatID     string
}

func NewTelegram(cfg config.AlertsConfig, opts ...Option) *Telegram {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	t := &Telegram{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultTelegramBaseURL,
		botToken:   strings.TrimSpace(cfg.TelegramBotToken),
		chatID:     strings.TrimSpace(cfg.TelegramChatID),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *Telegram) Notify(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(telegramMessage{
		ChatID:    t.chatID,
		Text:      formatHTML(alert),
		ParseMode: "HTML",
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal telegram message")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// the token is part of the URL; keep it out of the error
		return pkgerrors.New(pkgerrors.CodeDependency, "telegram request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "telegram send failed")
	}
	return nil
}
