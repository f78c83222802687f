package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/freightdocs/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	// Private key should be base64url-encoded, 32 bytes P-256 scalar
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

// newBrowserSubscription returns a subscription with real client keys pointing at endpoint.
func newBrowserSubscription(t *testing.T, endpoint string) *model.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	auth := make([]byte, 16)
	rand.Read(auth)
	return &model.PushSubscription{
		ID:        1,
		Endpoint:  endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(auth),
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	return NewService(pub, priv, "ops@freight.test")
}

func TestSendStatuses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
		anyErr  bool
	}{
		{"created", http.StatusCreated, nil, false},
		{"gone", http.StatusGone, ErrExpired, true},
		{"server error", http.StatusInternalServerError, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAuth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			s := newTestService(t)
			err := s.Send(context.Background(), newBrowserSubscription(t, server.URL+"/push/abc"), Payload{Title: "Load update", Body: "LD-1 delivered"})
			if tt.anyErr != (err != nil) {
				t.Fatalf("err = %v, want error %v", err, tt.anyErr)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if gotAuth == "" {
				t.Error("expected VAPID authorization header")
			}
		})
	}
}

func TestSendNotConfigured(t *testing.T) {
	s := NewService("", "", "")
	if s.Configured() {
		t.Fatal("expected unconfigured service")
	}
	if err := s.Send(context.Background(), &model.PushSubscription{}, Payload{}); err == nil {
		t.Error("expected error when not configured")
	}
}

type fakeSender struct {
	expired map[string]bool
	sent    []string
}

func (f *fakeSender) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	if f.expired[sub.Endpoint] {
		return ErrExpired
	}
	f.sent = append(f.sent, sub.Endpoint)
	return nil
}

type fakeSubs struct {
	subs    []model.PushSubscription
	deleted []string
}

func (f *fakeSubs) ListByUser(userID int64) ([]model.PushSubscription, error) {
	var out []model.PushSubscription
	for _, s := range f.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubs) ListByTeam(teamID int64) ([]model.PushSubscription, error) {
	var out []model.PushSubscription
	for _, s := range f.subs {
		if s.TeamID == teamID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubs) DeleteByEndpoint(endpoint string) error {
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func TestNotifierRemovesExpired(t *testing.T) {
	subs := &fakeSubs{subs: []model.PushSubscription{
		{ID: 1, UserID: 5, TeamID: 1, Endpoint: "https://push.test/a"},
		{ID: 2, UserID: 5, TeamID: 1, Endpoint: "https://push.test/b"},
		{ID: 3, UserID: 6, TeamID: 1, Endpoint: "https://push.test/c"},
	}}
	sender := &fakeSender{expired: map[string]bool{"https://push.test/b": true}}
	n := &Notifier{service: sender, subs: subs, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	if err := n.NotifyUser(context.Background(), 5, "t", "b", ""); err != nil {
		t.Fatalf("notify user: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "https://push.test/a" {
		t.Errorf("sent = %v", sender.sent)
	}
	if len(subs.deleted) != 1 || subs.deleted[0] != "https://push.test/b" {
		t.Errorf("deleted = %v", subs.deleted)
	}

	sender.sent = nil
	if err := n.NotifyTeam(context.Background(), 1, Payload{Title: "x"}); err != nil {
		t.Fatalf("notify team: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Errorf("team sent = %v, want 2 endpoints", sender.sent)
	}
}

func TestNotifierUnconfiguredIsNoop(t *testing.T) {
	n := NewNotifier(NewService("", "", ""), &fakeSubs{}, slog.Default())
	if err := n.NotifyUser(context.Background(), 1, "t", "b", ""); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}
