/*
sendgrid.go - SendGrid compatible mail API client

PURPOSE:
  Delivers one report email (HTML body plus CSV attachments) to every
  recipient through a single POST to a SendGrid v3 style /mail/send
  endpoint.

PAYLOAD:
  {
    "personalizations": [{"to": [{"email": "..."}]}],
    "from":    {"email": "..."},
    "subject": "...",
    "content": [{"type": "text/html", "value": "..."}],
    "attachments": [{"content": "<base64>", "type": "text/csv",
                     "filename": "...", "disposition": "attachment"}]
  }

  Authorization: Bearer <token>

OUTCOME:
  Any 2xx status is success. Everything else, including a timeout, is a
  *report.DeliveryError. There is exactly one attempt.
*/
package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/stage5-reports/report"
)

// DefaultTimeout bounds one delivery attempt.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a rejected response is kept.
const maxErrorBody = 512

// Config holds the mail API settings.
type Config struct {
	Token    string
	Endpoint string
	Sender   string
	Timeout  time.Duration

	// HTTPClient overrides the default client; Timeout still applies.
	HTTPClient *http.Client
}

// SendGrid sends report emails through a SendGrid v3 compatible API.
type SendGrid struct {
	token      string
	endpoint   string
	sender     string
	httpClient *http.Client
}

// NewSendGrid validates cfg and builds a client.
func NewSendGrid(cfg Config) (*SendGrid, error) {
	var errs []error
	if strings.TrimSpace(cfg.Token) == "" {
		errs = append(errs, report.MissingSetting("SENDGRID_BEARER_TOKEN"))
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		errs = append(errs, report.MissingSetting("SENDGRID_ENDPOINT"))
	}
	if strings.TrimSpace(cfg.Sender) == "" {
		errs = append(errs, report.MissingSetting("SENDER_EMAIL"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := &http.Client{Timeout: timeout}
	if cfg.HTTPClient != nil {
		c := *cfg.HTTPClient
		c.Timeout = timeout
		client = &c
	}

	return &SendGrid{
		token:      cfg.Token,
		endpoint:   cfg.Endpoint,
		sender:     cfg.Sender,
		httpClient: client,
	}, nil
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

type address struct {
	Email string `json:"email"`
}

type personalization struct {
	To []address `json:"to"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type attachment struct {
	Content     string `json:"content"`
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition"`
}

type mailRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
	Attachments      []attachment      `json:"attachments,omitempty"`
}

func (s *SendGrid) payload(email report.Email) mailRequest {
	to := make([]address, 0, len(email.Recipients))
	for _, r := range email.Recipients {
		to = append(to, address{Email: r})
	}

	attachments := make([]attachment, 0, len(email.Attachments))
	for _, a := range email.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "text/csv"
		}
		attachments = append(attachments, attachment{
			Content:     base64.StdEncoding.EncodeToString(a.Data),
			Type:        ct,
			Filename:    a.Filename,
			Disposition: "attachment",
		})
	}

	return mailRequest{
		Personalizations: []personalization{{To: to}},
		From:             address{Email: s.sender},
		Subject:          email.Subject,
		Content:          []content{{Type: "text/html", Value: email.HTMLBody}},
		Attachments:      attachments,
	}
}

// =============================================================================
// DELIVERY
// =============================================================================

// Send delivers email in a single attempt.
func (s *SendGrid) Send(ctx context.Context, email report.Email) error {
	if len(email.Recipients) == 0 {
		return report.MissingSetting("RECIPIENT_EMAILS")
	}

	jsonData, err := json.Marshal(s.payload(email))
	if err != nil {
		return &report.DeliveryError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return &report.DeliveryError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &report.DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &report.DeliveryError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	zerolog.Ctx(ctx).Info().
		Int("status", resp.StatusCode).
		Int("recipients", len(email.Recipients)).
		Int("attachments", len(email.Attachments)).
		Msg("report email sent")
	return nil
}
