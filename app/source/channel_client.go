package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBotAPIBase = "https://api.telegram.org"

var _ ChannelClient = (*BotClient)(nil)

// BotClient reads channel posts through the Telegram Bot HTTP API.
// The token is assumed to belong to a bot that is a member of the
// configured channels; obtaining it is out of scope here.
type BotClient struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewBotClient builds a client for the given bot token. baseURL
// overrides the public API endpoint, mainly for tests; empty means the
// default.
func NewBotClient(client *http.Client, baseURL, token string) *BotClient {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultBotAPIBase
	}
	return &BotClient{client: client, baseURL: baseURL, token: token}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type apiChat struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type apiUpdate struct {
	UpdateID    int64       `json:"update_id"`
	ChannelPost *apiMessage `json:"channel_post"`
}

type apiMessage struct {
	MessageID int64   `json:"message_id"`
	Date      int64   `json:"date"`
	Text      string  `json:"text"`
	Caption   string  `json:"caption"`
	Chat      apiChat `json:"chat"`
}

// CheckChannel verifies the bot can see the channel.
func (c *BotClient) CheckChannel(ctx context.Context, channel string) error {
	params := url.Values{"chat_id": {normalizeChannelRef(channel)}}
	var chat apiChat
	if err := c.call(ctx, "getChat", params, &chat); err != nil {
		return fmt.Errorf("channel %s not accessible: %w", channel, err)
	}
	return nil
}

// RecentMessages returns the most recent posts visible to the bot for
// the channel. The Bot API only exposes posts delivered as updates, so
// a quiet channel may legitimately return an empty list.
func (c *BotClient) RecentMessages(ctx context.Context, channel string, limit int) ([]ChannelMessage, error) {
	params := url.Values{"allowed_updates": {`["channel_post"]`}}
	var updates []apiUpdate
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, fmt.Errorf("failed to read channel updates: %w", err)
	}

	want := strings.TrimPrefix(channel, "@")

	var messages []ChannelMessage
	for _, u := range updates {
		post := u.ChannelPost
		if post == nil || !strings.EqualFold(post.Chat.Username, want) {
			continue
		}

		text := post.Text
		if text == "" {
			text = post.Caption
		}

		messages = append(messages, ChannelMessage{
			ID:   post.MessageID,
			Text: text,
			Date: time.Unix(post.Date, 0).UTC(),
			Link: fmt.Sprintf("https://t.me/%s/%d", want, post.MessageID),
		})
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return messages, nil
}

func (c *BotClient) call(ctx context.Context, method string, params url.Values, result interface{}) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !body.OK {
		return fmt.Errorf("API error: %s", body.Description)
	}

	if result != nil {
		if err := json.Unmarshal(body.Result, result); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}

	return nil
}

func normalizeChannelRef(channel string) string {
	if strings.HasPrefix(channel, "@") || strings.HasPrefix(channel, "-") {
		return channel
	}
	return "@" + channel
}
