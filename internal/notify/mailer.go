// Package notify delivers compliance alerts and weekly reports by email.
package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Message is one outbound email. Attachments are optional; the weekly
// report attaches its PDF, sweep alerts are body-only.
type Message struct {
	To          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}

// Mailer sends one message. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them. It is the
// default when no SendGrid key is configured, so a bare dev setup still
// surfaces every alert.
type LogMailer struct {
	Log zerolog.Logger
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	m.Log.Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Int("attachments", len(msg.Attachments)).
		Msg("email suppressed (no mailer configured)")
	return nil
}

// SendGrid sends through the SendGrid v3 mail API.
type SendGrid struct {
	baseURL string
	apiKey  string
	from    string
	http    *http.Client
	log     zerolog.Logger
}

func NewSendGrid(apiKey, from string, log zerolog.Logger) *SendGrid {
	return &SendGrid{
		baseURL: "https://api.sendgrid.com",
		apiKey:  apiKey,
		from:    from,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// SetBaseURL overrides the API endpoint. Tests point it at a local server.
func (s *SendGrid) SetBaseURL(u string) {
	s.baseURL = strings.TrimRight(u, "/")
}

type sgAddress struct {
	Email string `json:"email"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgAttachment struct {
	Content  string `json:"content"`
	Type     string `json:"type,omitempty"`
	Filename string `json:"filename"`
}

type sgSendRequest struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
	Attachments      []sgAttachment      `json:"attachments,omitempty"`
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("notify: message has no recipients")
	}
	if msg.Text == "" && msg.HTML == "" {
		return fmt.Errorf("notify: message has no body")
	}

	var contents []sgContent
	if msg.Text != "" {
		contents = append(contents, sgContent{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		contents = append(contents, sgContent{Type: "text/html", Value: msg.HTML})
	}

	var atts []sgAttachment
	for _, a := range msg.Attachments {
		if a.Filename == "" || len(a.Content) == 0 {
			return fmt.Errorf("notify: attachment needs filename and content")
		}
		atts = append(atts, sgAttachment{
			Content:  base64.StdEncoding.EncodeToString(a.Content),
			Type:     a.MIMEType,
			Filename: a.Filename,
		})
	}

	to := make([]sgAddress, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, sgAddress{Email: addr})
	}

	wire := sgSendRequest{
		Personalizations: []sgPersonalization{{To: to}},
		From:             sgAddress{Email: s.from},
		Subject:          msg.Subject,
		Content:          contents,
		Attachments:      atts,
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("notify: sendgrid returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	s.log.Debug().Strs("to", msg.To).Str("subject", msg.Subject).Msg("email sent")
	return nil
}
