package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"omnichat-platform/internal/channel"
)

// Telegram talks to the bot API. Outbound sends address the user's chat id;
// media uploads pick the bot method matching the attachment kind so clients
// render previews instead of bare files.
type Telegram struct {
	httpClient *http.Client
	apiURL     string
	token      string
}

func NewTelegram(apiURL, token string) *Telegram {
	return &Telegram{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		token:      token,
	}
}

func (t *Telegram) ChannelType() channel.Type { return channel.TypeTelegram }

func (t *Telegram) methodURL(method string) string {
	return t.apiURL + t.token + "/" + method
}

func (t *Telegram) Send(ctx context.Context, recipientID, text string) error {
	body, _ := json.Marshal(map[string]string{
		"chat_id": recipientID,
		"text":    text,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req, "sendMessage")
}

// SendMediaBytes uploads attachment bytes alongside a caption. GIFs go out
// as animations so Telegram clients loop them.
func (t *Telegram) SendMediaBytes(ctx context.Context, recipientID, caption, filename string, kind channel.AttachmentKind, data []byte) error {
	method, field := "sendDocument", "document"
	switch {
	case kind == channel.AttachmentImage && strings.EqualFold(path.Ext(filename), ".gif"):
		method, field = "sendAnimation", "animation"
	case kind == channel.AttachmentImage:
		method, field = "sendPhoto", "photo"
	case kind == channel.AttachmentVideo:
		method, field = "sendVideo", "video"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", recipientID); err != nil {
		return fmt.Errorf("telegram: multipart: %w", err)
	}
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return fmt.Errorf("telegram: multipart: %w", err)
		}
	}
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("telegram: multipart: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("telegram: multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("telegram: multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL(method), &buf)
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return t.do(req, method)
}

// FetchFile resolves a file_id to its bot-API path and downloads the bytes.
// Used to copy inbound media into our own storage before the platform URL
// expires.
func (t *Telegram) FetchFile(ctx context.Context, fileID string) (filename string, data []byte, err error) {
	u := t.methodURL("getFile") + "?file_id=" + url.QueryEscape(fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", nil, fmt.Errorf("telegram: build request: %w", err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: telegram getFile: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("%w: telegram getFile: status %d", ErrTransport, resp.StatusCode)
	}

	var out struct {
		OK     bool `json:"ok"`
		Result struct {
			FilePath string `json:"file_path"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", nil, fmt.Errorf("telegram: decode getFile: %w", err)
	}
	if !out.OK || out.Result.FilePath == "" {
		return "", nil, fmt.Errorf("%w: telegram getFile: no file path for %s", ErrTransport, fileID)
	}

	dlURL := strings.Replace(t.apiURL, "/bot", "/file/bot", 1) + t.token + "/" + out.Result.FilePath
	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, dlURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("telegram: build request: %w", err)
	}
	dlResp, err := t.httpClient.Do(dlReq)
	if err != nil {
		return "", nil, fmt.Errorf("%w: telegram file download: %v", ErrTransport, err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("%w: telegram file download: status %d", ErrTransport, dlResp.StatusCode)
	}
	data, err = io.ReadAll(dlResp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("telegram: read file body: %w", err)
	}
	return path.Base(out.Result.FilePath), data, nil
}

func (t *Telegram) do(req *http.Request, method string) error {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: telegram %s: %v", ErrTransport, method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: telegram %s: status %d: %s", ErrTransport, method, resp.StatusCode, string(b))
	}
	return nil
}
