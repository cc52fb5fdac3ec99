package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGatewayMailerSend(t *testing.T) {
	t.Parallel()

	var got gatewayPayload
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewGatewayMailer(srv.URL, "gw_secret", "no-reply@corates.io")
	err := m.Send(context.Background(), Message{
		To:      "target@example.com",
		Subject: "Your verification code",
		Body:    "Code: 042317",
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if got.From != "no-reply@corates.io" || got.To != "target@example.com" {
		t.Errorf("unexpected payload: %+v", got)
	}
	if gotAuth != "Bearer gw_secret" {
		t.Errorf("expected bearer auth header, got %q", gotAuth)
	}
}

func TestGatewayMailerSendFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
	}{
		{"server_error", http.StatusInternalServerError},
		{"rejected", http.StatusUnprocessableEntity},
		{"unauthorized", http.StatusUnauthorized},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.status)
			}))
			defer srv.Close()

			m := NewGatewayMailer(srv.URL, "", "no-reply@corates.io")
			err := m.Send(context.Background(), Message{To: "target@example.com"})
			if !errors.Is(err, ErrSendFailed) {
				t.Fatalf("expected ErrSendFailed, got %v", err)
			}
		})
	}
}

func TestGatewayMailerUnreachable(t *testing.T) {
	t.Parallel()

	m := NewGatewayMailer("http://127.0.0.1:1", "", "no-reply@corates.io")
	err := m.Send(context.Background(), Message{To: "target@example.com"})
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
}
