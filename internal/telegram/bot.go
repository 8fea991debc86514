// Package telegram implements the bot: an outbound Bot API client and
// an inbound webhook handler that maps chat commands onto the prompt
// library.
package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/promptvaultdev/promptvault/internal/config"
	"github.com/promptvaultdev/promptvault/internal/vault"
)

// Bot is a minimal Telegram Bot API client. Only the methods the
// webhook handler needs are implemented.
type Bot struct {
	token   string
	apiBase string
	client  *http.Client
}

// NewBot resolves the bot token and returns a client. A missing token
// leaves the bot disabled rather than failing startup.
func NewBot(v *vault.Vault, cfg *config.Config) *Bot {
	b := &Bot{
		apiBase: cfg.Telegram.APIBase,
		client:  &http.Client{Timeout: cfg.Telegram.TimeoutDuration()},
	}
	if b.apiBase == "" {
		b.apiBase = config.DefaultTelegramAPIBase
	}

	if !cfg.Telegram.Enabled {
		return b
	}
	token, err := v.ResolveKeyRef(cfg.Telegram.KeyRef)
	if err != nil || token == "" {
		log.Warn().Msg("telegram: enabled but no bot token resolved")
		return b
	}
	b.token = token
	return b
}

// Enabled reports whether a bot token is available.
func (b *Bot) Enabled() bool {
	return b.token != ""
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (b *Bot) call(method string, payload any) error {
	if b.token == "" {
		return fmt.Errorf("telegram: bot token not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: encode %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", b.apiBase, b.token, method)
	resp, err := b.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("telegram: decode %s response: %w", method, err)
	}
	if !out.OK {
		return fmt.Errorf("telegram: %s failed: %s", method, out.Description)
	}
	return nil
}

// SendMessage sends an HTML-formatted message to a chat.
func (b *Bot) SendMessage(chatID int64, text string) error {
	return b.call("sendMessage", map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
}

// SetWebhook registers the webhook URL with the Bot API. The secret,
// when set, is echoed back by Telegram on every update and checked by
// the handler.
func (b *Bot) SetWebhook(url, secret string) error {
	payload := map[string]any{"url": url}
	if secret != "" {
		payload["secret_token"] = secret
	}
	return b.call("setWebhook", payload)
}
