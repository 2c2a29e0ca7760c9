package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"FeedDigest/internal/config"
	"FeedDigest/internal/domain"
	"FeedDigest/internal/ports"
)

// SendGridMailer delivers messages through the SendGrid v3 mail/send API.
type SendGridMailer struct {
	endpoint string
	apiKey   string
	from     string
	fromName string
	client   *http.Client
	policy   *bluemonday.Policy
	logger   *slog.Logger
}

var _ ports.Mailer = (*SendGridMailer)(nil)

// NewSendGridMailer creates a mailer from mail configuration.
func NewSendGridMailer(cfg config.MailConfig, logger *slog.Logger) *SendGridMailer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SendGridMailer{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		from:     cfg.From,
		fromName: cfg.FromName,
		client:   &http.Client{Timeout: timeout},
		policy:   bluemonday.StrictPolicy(),
		logger:   logger,
	}
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendRequest struct {
	Personalizations []struct {
		To []address `json:"to"`
	} `json:"personalizations"`
	From    address   `json:"from"`
	Subject string    `json:"subject"`
	Content []content `json:"content"`
}

// Send reports success only for 200, 201 and 202. Every failure wraps domain.ErrDispatch.
func (m *SendGridMailer) Send(ctx context.Context, msg ports.Message) error {
	if m.apiKey == "" || m.endpoint == "" || msg.To == "" {
		return fmt.Errorf("sendgrid mailer misconfigured: %w", domain.ErrDispatch)
	}

	var payload sendRequest
	payload.Personalizations = make([]struct {
		To []address `json:"to"`
	}, 1)
	payload.Personalizations[0].To = []address{{Email: msg.To}}
	payload.From = address{Email: m.from, Name: m.fromName}
	payload.Subject = msg.Subject
	payload.Content = []content{
		{Type: "text/plain", Value: m.plainText(msg.HTML)},
		{Type: "text/html", Value: msg.HTML},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sendgrid payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w: %w", domain.ErrDispatch, err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	m.logger.Info("sending digest", "to", msg.To)
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w: %w", domain.ErrDispatch, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		m.logger.Info("email sent", "status", resp.StatusCode)
		return nil
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sendgrid error %s: %s: %w", resp.Status, strings.TrimSpace(string(detail)), domain.ErrDispatch)
	}
}

// plainText drops markup and collapses the blank lines it leaves behind.
func (m *SendGridMailer) plainText(html string) string {
	stripped := m.policy.Sanitize(html)
	lines := strings.Split(stripped, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
