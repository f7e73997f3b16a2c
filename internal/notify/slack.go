// Package notify posts CI status messages to a Slack incoming webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// Sender posts messages to one webhook URL.
type Sender struct {
	webhookURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSender creates a webhook sender.
func NewSender(webhookURL string, timeout time.Duration, logger *zap.Logger) *Sender {
	return &Sender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Send posts a plain-text message.
func (s *Sender) Send(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// SendWithFile posts a message with the contents of a file appended in
// a fenced block. An unreadable file does not stop the notification;
// an error note is appended instead so the channel still hears about
// the run.
func (s *Sender) SendWithFile(ctx context.Context, text, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("Could not read attachment file, sending error note instead",
			zap.String("path", path),
			zap.Error(err))
		return s.Send(ctx, text+"\nError: Could not read file")
	}
	return s.Send(ctx, text+"\n```"+string(content)+"```")
}
