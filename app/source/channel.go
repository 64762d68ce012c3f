package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/newssift/newssift/app/store"
)

const channelTitleMaxLen = 120

// ChannelMessage is one message read from a chat channel.
type ChannelMessage struct {
	ID   int64
	Text string
	Date time.Time
	Link string
}

// ChannelClient is an already-authenticated capability for reading
// chat-channel messages. Session establishment is the caller's
// concern.
type ChannelClient interface {
	CheckChannel(ctx context.Context, channel string) error
	RecentMessages(ctx context.Context, channel string, limit int) ([]ChannelMessage, error)
}

var _ Fetcher = (*ChannelFetcher)(nil)

// ChannelFetcher retrieves messages from a chat channel. It holds an
// ordered list of backend variants (live client first, export-file
// reader second) tried in sequence until one succeeds.
type ChannelFetcher struct {
	desc     store.SourceDescriptor
	variants []channelVariant
}

type channelVariant interface {
	Name() string
	Validate(ctx context.Context) error
	Messages(ctx context.Context, limit int) ([]ChannelMessage, error)
}

// NewChannelFetcher builds a channel fetcher from whichever backends
// the deps provide.
func NewChannelFetcher(desc store.SourceDescriptor, deps Deps) (Fetcher, error) {
	f := &ChannelFetcher{desc: desc}

	if deps.ChannelClient != nil {
		f.variants = append(f.variants, &clientVariant{client: deps.ChannelClient, channel: desc.ChannelID})
	}
	if deps.ExportsDir != "" {
		f.variants = append(f.variants, &exportVariant{dir: deps.ExportsDir, channel: desc.ChannelID})
	}

	return f, nil
}

// ValidateConfig checks the channel identifier and that at least one
// backend considers itself usable. No network probe for channels; the
// verdict is cached indefinitely.
func (f *ChannelFetcher) ValidateConfig(ctx context.Context) error {
	if f.desc.ChannelID == "" {
		return fmt.Errorf("channel identifier is required")
	}
	if len(f.variants) == 0 {
		return fmt.Errorf("no channel backend configured")
	}

	var lastErr error
	for _, v := range f.variants {
		if err := v.Validate(ctx); err != nil {
			lastErr = fmt.Errorf("%s: %w", v.Name(), err)
			continue
		}
		return nil
	}
	return lastErr
}

// Fetch tries each backend in order and returns the first successful
// result, converted to raw items.
func (f *ChannelFetcher) Fetch(ctx context.Context) ([]RawItem, error) {
	limit := f.desc.MaxItems
	if limit <= 0 {
		limit = 10
	}

	var lastErr error
	for _, v := range f.variants {
		messages, err := v.Messages(ctx, limit)
		if err != nil {
			slog.Warn("Channel backend failed, trying next",
				"source", f.desc.Name, "backend", v.Name(), "error", err)
			lastErr = err
			continue
		}

		items := make([]RawItem, 0, len(messages))
		for _, msg := range messages {
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			items = append(items, f.rawItem(msg))
		}
		return items, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no channel backend configured")
	}
	return nil, lastErr
}

func (f *ChannelFetcher) rawItem(msg ChannelMessage) RawItem {
	link := msg.Link
	if link == "" {
		link = fmt.Sprintf("https://t.me/%s/%d", strings.TrimPrefix(f.desc.ChannelID, "@"), msg.ID)
	}

	return RawItem{
		Title:       messageTitle(msg.Text),
		Body:        msg.Text,
		URL:         link,
		PublishedAt: msg.Date,
		Channel:     strings.TrimPrefix(f.desc.ChannelID, "@"),
		MessageID:   msg.ID,
	}
}

// messageTitle derives a title from the first non-empty line of the
// message, truncated to a readable length.
func messageTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > channelTitleMaxLen {
			return string(runes[:channelTitleMaxLen]) + "…"
		}
		return line
	}
	return ""
}

// clientVariant reads messages through the injected channel client.
type clientVariant struct {
	client  ChannelClient
	channel string
}

func (v *clientVariant) Name() string { return "client" }

func (v *clientVariant) Validate(ctx context.Context) error {
	return v.client.CheckChannel(ctx, v.channel)
}

func (v *clientVariant) Messages(ctx context.Context, limit int) ([]ChannelMessage, error) {
	return v.client.RecentMessages(ctx, v.channel, limit)
}

// exportVariant reads messages from a channel export file, the
// offline fallback when no live client is available.
type exportVariant struct {
	dir     string
	channel string
}

func (v *exportVariant) Name() string { return "export" }

func (v *exportVariant) path() string {
	name := strings.TrimPrefix(v.channel, "@")
	return filepath.Join(v.dir, name+".json")
}

func (v *exportVariant) Validate(ctx context.Context) error {
	if _, err := os.Stat(v.path()); err != nil {
		return fmt.Errorf("export file not found: %w", err)
	}
	return nil
}

// exportFile matches the channel export JSON shape. The text field is
// either a plain string or a list of strings and entity objects.
type exportFile struct {
	Name     string          `json:"name"`
	Messages []exportMessage `json:"messages"`
}

type exportMessage struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	Date string          `json:"date"`
	Text json.RawMessage `json:"text"`
}

func (v *exportVariant) Messages(ctx context.Context, limit int) ([]ChannelMessage, error) {
	data, err := os.ReadFile(v.path())
	if err != nil {
		return nil, fmt.Errorf("failed to read export file: %w", err)
	}

	var export exportFile
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse export file: %w", err)
	}

	// Exports list oldest first; take the tail.
	messages := export.Messages
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	out := make([]ChannelMessage, 0, len(messages))
	for _, m := range messages {
		if m.Type != "" && m.Type != "message" {
			continue
		}
		out = append(out, ChannelMessage{
			ID:   m.ID,
			Text: flattenExportText(m.Text),
			Date: parseExportDate(m.Date),
		})
	}

	return out, nil
}

func flattenExportText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []interface{}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}

	var b strings.Builder
	for _, part := range parts {
		switch p := part.(type) {
		case string:
			b.WriteString(p)
		case map[string]interface{}:
			if text, ok := p["text"].(string); ok {
				b.WriteString(text)
			}
		}
	}
	return b.String()
}

func parseExportDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
