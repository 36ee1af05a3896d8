package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"omnichat-platform/internal/channel"
)

// Messenger talks to the Graph API Send API with a page access token.
type Messenger struct {
	httpClient *http.Client
	apiURL     string
	pageToken  string
}

func NewMessenger(apiURL, pageToken string) *Messenger {
	return &Messenger{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		pageToken:  pageToken,
	}
}

func (m *Messenger) ChannelType() channel.Type { return channel.TypeMessenger }

func (m *Messenger) Send(ctx context.Context, recipientID, text string) error {
	payload := map[string]any{
		"recipient": map[string]string{"id": recipientID},
		"message":   map[string]string{"text": text},
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL+"/me/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("messenger: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.pageToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: messenger send: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: messenger send: status %d: %s", ErrTransport, resp.StatusCode, string(b))
	}
	return nil
}

// FetchProfile resolves a PSID to display names. Wired into the parser table
// as its ProfileLookup.
func (m *Messenger) FetchProfile(psid string) (firstName, lastName string, err error) {
	u := fmt.Sprintf("%s/%s?fields=first_name,last_name&access_token=%s",
		m.apiURL, url.PathEscape(psid), url.QueryEscape(m.pageToken))
	resp, err := m.httpClient.Get(u)
	if err != nil {
		return "", "", fmt.Errorf("%w: messenger profile: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: messenger profile: status %d", ErrTransport, resp.StatusCode)
	}
	var out struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("messenger: decode profile: %w", err)
	}
	return out.FirstName, out.LastName, nil
}
