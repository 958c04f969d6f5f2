package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestSendGridSend(t *testing.T) {
	var got sgSendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sg := NewSendGrid("key-123", "alerts@carebridge.test", zerolog.Nop())
	sg.SetBaseURL(srv.URL)

	err := sg.Send(context.Background(), Message{
		To:      []string{"nurse@example.org"},
		Subject: "Recert due",
		Text:    "Eleanor Vance recert due in 12 days",
		Attachments: []Attachment{
			{Filename: "report.pdf", MIMEType: "application/pdf", Content: []byte("%PDF-fake")},
		},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if auth != "Bearer key-123" {
		t.Fatalf("auth header = %q", auth)
	}
	if got.From.Email != "alerts@carebridge.test" {
		t.Fatalf("from = %q", got.From.Email)
	}
	if len(got.Personalizations) != 1 || got.Personalizations[0].To[0].Email != "nurse@example.org" {
		t.Fatalf("personalizations = %+v", got.Personalizations)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("attachments = %d", len(got.Attachments))
	}
	raw, err := base64.StdEncoding.DecodeString(got.Attachments[0].Content)
	if err != nil || string(raw) != "%PDF-fake" {
		t.Fatalf("attachment content = %q, %v", got.Attachments[0].Content, err)
	}
}

func TestSendGridErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad key"}]}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	sg := NewSendGrid("bad", "alerts@carebridge.test", zerolog.Nop())
	sg.SetBaseURL(srv.URL)

	err := sg.Send(context.Background(), Message{To: []string{"a@b.c"}, Subject: "x", Text: "y"})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestSendValidation(t *testing.T) {
	sg := NewSendGrid("k", "f@t.test", zerolog.Nop())
	if err := sg.Send(context.Background(), Message{Subject: "x", Text: "y"}); err == nil {
		t.Fatal("expected error for missing recipients")
	}
	if err := sg.Send(context.Background(), Message{To: []string{"a@b.c"}, Subject: "x"}); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestLogMailerNeverFails(t *testing.T) {
	m := LogMailer{Log: zerolog.Nop()}
	if err := m.Send(context.Background(), Message{To: []string{"a@b.c"}, Subject: "s", Text: "t"}); err != nil {
		t.Fatalf("log mailer: %v", err)
	}
}
