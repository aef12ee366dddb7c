// Package whatsapp is the WhatsApp Business Cloud API channel.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rafamhanel/web-app-agenda/internal/apperrors"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v18.0"
	defaultHTTPTimeout  = 10 * time.Second
	serviceName         = "whatsapp"
)

// Credentials identify the business number messages are sent from.
type Credentials struct {
	AccessToken   string
	PhoneNumberID string
}

// Client sends messages via the WhatsApp Cloud API.
type Client struct {
	creds        Credentials
	graphAPIBase string
	httpClient   *http.Client
}

// Option tunes a Client.
type Option func(*Client)

// WithGraphAPIBase points the client at another Graph API base URL. A blank
// base keeps the default.
func WithGraphAPIBase(base string) Option {
	return func(c *Client) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.graphAPIBase = base
		}
	}
}

// WithTimeout bounds every Graph API call. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a Graph API client for creds.
func NewClient(creds Credentials, opts ...Option) *Client {
	c := &Client{
		creds:        creds,
		graphAPIBase: defaultGraphAPIBase,
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForAccount builds a client for a professional's own credentials, filling
// blanks from defaults. It returns nil when a token or number is still missing.
func ForAccount(account, defaults Credentials, opts ...Option) *Client {
	creds := Credentials{
		AccessToken:   firstNonEmpty(account.AccessToken, defaults.AccessToken),
		PhoneNumberID: firstNonEmpty(account.PhoneNumberID, defaults.PhoneNumberID),
	}
	if creds.AccessToken == "" || creds.PhoneNumberID == "" {
		return nil
	}
	return NewClient(creds, opts...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) (*SendResponse, error) {
	return c.post(ctx, "send_text", sendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &TextBody{Body: body},
	})
}

// SendTemplate sends an approved template message.
func (c *Client) SendTemplate(ctx context.Context, to string, tpl Template) (*SendResponse, error) {
	return c.post(ctx, "send_template", sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template:         &tpl,
	})
}

// MarkRead marks an inbound message as read.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	_, err := c.post(ctx, "mark_read", sendRequest{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
	})
	return err
}

func (c *Client) post(ctx context.Context, op string, req sendRequest) (*SendResponse, error) {
	if c.creds.AccessToken == "" || c.creds.PhoneNumberID == "" {
		return nil, apperrors.External(serviceName, op, fmt.Errorf("whatsapp: credentials not configured"))
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.graphAPIBase, c.creds.PhoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.External(serviceName, op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.External(serviceName, op, fmt.Errorf("read response: %w", err))
	}

	var sendResp SendResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &sendResp); err != nil && resp.StatusCode == http.StatusOK {
			return nil, apperrors.External(serviceName, op, fmt.Errorf("unmarshal response: %w", err))
		}
	}
	if sendResp.Error != nil {
		return &sendResp, apperrors.External(serviceName, op, sendResp.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return &sendResp, apperrors.External(serviceName, op, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)))
	}
	return &sendResp, nil
}
