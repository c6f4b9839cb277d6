package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/movingops/jobreport-backend/pkg/config"
)

const (
	// SecretHeader carries the shared secret expected by the relay.
	SecretHeader          = "X-Webhook-Secret"
	responseBodyReadLimit = 1024
)

// WebhookSender posts the message as JSON to a mail relay.
type WebhookSender struct {
	url        string
	secret     string
	httpClient *http.Client
}

type webhookPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html,omitempty"`
}

// NewWebhookSender validates the relay settings. A nil client gets one with cfg.Timeout.
func NewWebhookSender(cfg config.MailConfig, client *http.Client) (*WebhookSender, error) {
	url := strings.TrimSpace(cfg.WebhookURL)
	if url == "" {
		return nil, errors.New("mail webhook url is required")
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &WebhookSender{url: url, secret: cfg.WebhookSecret, httpClient: client}, nil
}

// Send implements Sender.
func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	body, err := json.Marshal(webhookPayload{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.secret != "" {
		req.Header.Set(SecretHeader, s.secret)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
