package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fridgeops_backend/platform/config"
	"fridgeops_backend/platform/logger"
	"fridgeops_backend/platform/phone"
)

const sendTimeout = 10 * time.Second

// maxMediaBytes caps attachment downloads. WhatsApp images top out well
// below this; anything larger is rejected rather than buffered.
const maxMediaBytes = 25 << 20

// MediaInfo is the resolved download location for an uploaded attachment.
type MediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// Client talks to the WhatsApp Cloud API (Graph API). When the access token
// or phone number id is not configured, sends become logged no-ops so the
// rest of the pipeline keeps working in development.
type Client struct {
	cfg  config.WhatsAppConfig
	http *http.Client
	log  *logger.Logger
}

// NewClient creates a WhatsApp Cloud API client.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: sendTimeout},
		log:  log,
	}
}

type sendTextRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

// SendText sends a plain text message to a WhatsApp id.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	if !c.cfg.IsWhatsAppEnabled() {
		c.log.Debug("whatsapp disabled, skipping send", "to", to)
		return nil
	}

	payload, err := json.Marshal(sendTextRequest{
		MessagingProduct: "whatsapp",
		To:               phone.NormalizeWaID(to),
		Type:             "text",
		Text:             sendText{Body: body},
	})
	if err != nil {
		return fmt.Errorf("encode send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.cfg.GetWhatsAppAPIBase(), c.cfg.GetWhatsAppPhoneNumberID())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.GetWhatsAppAccessToken())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("whatsapp send failed with status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

// ResolveMedia exchanges a media id for its short-lived download URL.
func (c *Client) ResolveMedia(ctx context.Context, mediaID string) (MediaInfo, error) {
	url := fmt.Sprintf("%s/%s", c.cfg.GetWhatsAppAPIBase(), mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("build media request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.GetWhatsAppAccessToken())

	resp, err := c.http.Do(req)
	if err != nil {
		return MediaInfo{}, fmt.Errorf("resolve media %s: %w", mediaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return MediaInfo{}, fmt.Errorf("resolve media %s failed with status %d: %s", mediaID, resp.StatusCode, string(detail))
	}

	var info MediaInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return MediaInfo{}, fmt.Errorf("decode media info: %w", err)
	}
	if info.MimeType == "" {
		info.MimeType = "image/jpeg"
	}
	return info, nil
}

// Download fetches attachment bytes from a resolved media URL. The URL is
// only valid with the same bearer token that resolved it.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.GetWhatsAppAccessToken())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download media failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read media body: %w", err)
	}
	if len(data) > maxMediaBytes {
		return nil, fmt.Errorf("media exceeds %d byte limit", maxMediaBytes)
	}
	return data, nil
}
