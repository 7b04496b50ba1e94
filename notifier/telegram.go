// Package notifier sends messages to, and polls updates from, the Telegram
// Bot API. Both calls return success or a retriable error.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opsmind/pulseguard/core"
	"github.com/opsmind/pulseguard/pkg/logger"
)

const (
	sendTimeout = 10 * time.Second
	longPollTimeout = 30 * time.Second
	longPollServerWait = 25 // seconds, Telegram-side long-poll wait
	maxMessageChars = 4096

	defaultAPIBase = "https://api.telegram.org"
)

// apiBase is overridden in tests to point at an httptest server.
var apiBase = defaultAPIBase

// Client is a thin Telegram Bot API client: send a text message, long-poll
// for inbound updates. No retry/circuit-breaking here — see ResilientClient.
type Client struct {
	botToken string
	httpClient *http.Client
	log logger.Logger
}

// NewClient returns a Client authenticated with botToken.
func NewClient(botToken string, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Client{
		botToken: botToken,
		httpClient: &http.Client{},
		log: log,
	}
}

func (c *Client) apiURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", apiBase, c.botToken, method)
}

// Update is one inbound Telegram update, trimmed to the fields the command
// gateway needs.
type Update struct {
	UpdateID int64 `json:"update_id"`
	Message *UpdateMessage `json:"message"`
}

// UpdateMessage is the message payload of an Update.
type UpdateMessage struct {
	MessageID int64 `json:"message_id"`
	Text string `json:"text"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	From *struct {
		ID int64 `json:"id"`
		Username string `json:"username"`
	} `json:"from"`
}

type sendMessageResponse struct {
	OK bool `json:"ok"`
	ErrorCode int `json:"error_code"`
	Description string `json:"description"`
}

// parseModeRejection marks a 400 response Telegram returns when it can't
// parse the message under the requested parse_mode.
type parseModeRejection struct {
	description string
}

func (e *parseModeRejection) Error() string {
	return fmt.Sprintf("telegram rejected message formatting: %s", e.description)
}

// SendMessage posts text to chatID. Text over Telegram's 4096-character
// limit is cut short and ends with a truncation marker, the whole staying
// within the limit. If the server rejects Markdown parsing (HTTP 400), it
// re-sends the same text with no parse mode.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	const truncationMarker = "\n… (truncated)"
	if len(text) > maxMessageChars {
		text = text[:maxMessageChars-len(truncationMarker)] + truncationMarker
	}

	err := c.send(ctx, chatID, text, "Markdown")
	if err == nil {
		return nil
	}
	if _, rejected := err.(*parseModeRejection); rejected {
		return c.send(ctx, chatID, text, "")
	}
	return err
}

func (c *Client) send(ctx context.Context, chatID, text, parseMode string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	payload := map[string]interface{}{
		"chat_id": chatID,
		"text": text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return core.NewFrameworkError("notifier.SendMessage", "marshal", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return core.NewFrameworkError("notifier.SendMessage", "build_request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", core.ErrRequestFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	raw, _ := io.ReadAll(resp.Body)
	var parsed sendMessageResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode == http.StatusBadRequest {
		return &parseModeRejection{description: parsed.Description}
	}
	return fmt.Errorf("telegram sendMessage failed (status %d): %s: %w", resp.StatusCode, parsed.Description, core.ErrRequestFailed)
}

type getUpdatesResponse struct {
	OK bool `json:"ok"`
	Result []Update `json:"result"`
}

// GetUpdates long-polls for pending inbound updates after offset, waiting up
// to longPollServerWait seconds server-side.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	ctx, cancel := context.WithTimeout(ctx, longPollTimeout)
	defer cancel()

	url := fmt.Sprintf("%s?offset=%d&timeout=%d", c.apiURL("getUpdates"), offset, longPollServerWait)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, core.NewFrameworkError("notifier.GetUpdates", "build_request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", core.ErrRequestFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram getUpdates failed (status %d): %w", resp.StatusCode, core.ErrRequestFailed)
	}

	var parsed getUpdatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, core.NewFrameworkError("notifier.GetUpdates", "decode", err)
	}
	return parsed.Result, nil
}
