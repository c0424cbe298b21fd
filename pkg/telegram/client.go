// Package telegram provides the Bot API client and the deep-link pairing
// protocol that binds a workflow to a chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultAPIBase    = "https://api.telegram.org"
	sendTimeout       = 10 * time.Second
	getUpdatesTimeout = 10 * time.Second
)

// Client is a minimal Telegram Bot API client covering sendMessage and
// getUpdates.
type Client struct {
	httpClient *http.Client
	apiBase    string
	botToken   string
	botName    string
}

// NewClient creates a client for the given bot token. botName is the public
// @username used to build deep links.
func NewClient(botToken, botName string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: sendTimeout},
		apiBase:    defaultAPIBase,
		botToken:   botToken,
		botName:    botName,
	}
}

// SetAPIBase overrides the API endpoint, for tests.
func (c *Client) SetAPIBase(base string) {
	c.apiBase = base
}

// BotName returns the bot's public username.
func (c *Client) BotName() string {
	return c.botName
}

// Update mirrors the Bot API update object, limited to the fields the
// pairing loop inspects.
type Update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		From *struct {
			Username string `json:"username"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// SendMessage delivers text to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sendMessage payload: %w", err)
	}

	resp, err := c.post(ctx, "sendMessage", body)
	if err != nil {
		return err
	}

	if !resp.OK {
		return fmt.Errorf("sendMessage rejected: %s", resp.Description)
	}

	return nil
}

// GetUpdates polls the bot update feed starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	payload := map[string]any{
		"offset":  offset,
		"timeout": 0,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal getUpdates payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, getUpdatesTimeout)
	defer cancel()

	resp, err := c.post(ctx, "getUpdates", body)
	if err != nil {
		return nil, err
	}

	if !resp.OK {
		return nil, fmt.Errorf("getUpdates rejected: %s", resp.Description)
	}

	var updates []Update
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return nil, fmt.Errorf("failed to parse updates: %w", err)
	}

	return updates, nil
}

// DeepLink builds the t.me URL that carries the pairing token as a /start
// payload.
func (c *Client) DeepLink(token string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", c.botName, token)
}

func (c *Client) post(ctx context.Context, method string, body []byte) (*apiResponse, error) {
	url := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.botToken, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}

	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", method, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", method, httpResp.StatusCode)
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", method, err)
	}

	return &resp, nil
}

// FormatChatID renders a numeric chat id the way destinations store it.
func FormatChatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
