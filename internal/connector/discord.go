package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"omnichat-platform/internal/channel"
)

// Discord posts to the REST API with a bot token. The recipient here is a
// channel id, not a user id: replies land in the channel the user wrote from.
type Discord struct {
	httpClient *http.Client
	apiURL     string
	botToken   string
}

func NewDiscord(apiURL, botToken string) *Discord {
	return &Discord{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		botToken:   botToken,
	}
}

func (d *Discord) ChannelType() channel.Type { return channel.TypeDiscord }

func (d *Discord) Send(ctx context.Context, recipientID, text string) error {
	body, _ := json.Marshal(map[string]string{"content": text})
	u := fmt.Sprintf("%s/channels/%s/messages", d.apiURL, recipientID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+d.botToken)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: discord send: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: discord send: status %d: %s", ErrTransport, resp.StatusCode, string(b))
	}
	return nil
}
