// Package notify delivers operator messages.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultAPIURL = "https://api.telegram.org"

type tgMsg struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// Telegram sends messages through the Telegram Bot API.
type Telegram struct {
	apiURL   string
	botToken string
	chatID   int64
	client   *http.Client
}

// NewTelegram creates a sender. An empty apiURL uses the public Bot API.
func NewTelegram(apiURL, botToken string, chatID int64) *Telegram {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Telegram{
		apiURL:   strings.TrimRight(apiURL, "/"),
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify implements domain.Notifier.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.botToken)

	data, err := json.Marshal(tgMsg{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram api returned status %s", res.Status)
	}
	return nil
}
