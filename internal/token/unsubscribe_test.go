package token

import (
	"errors"
	"testing"
	"time"
)

func TestUnsubscribeTokenRoundTrip(t *testing.T) {
	s, _ := newTestService(t)

	tok, err := s.GenerateUnsubscribeToken(UnsubscribeSubject{Email: "a@b.com"}, "missing_documents")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	v := s.ValidateUnsubscribeToken(tok)
	if !v.Valid {
		t.Fatalf("validate = %+v, want valid", v)
	}
	if v.Email != "a@b.com" || v.Category != "missing_documents" {
		t.Errorf("got email %q category %q", v.Email, v.Category)
	}

	tok, err = s.GenerateUnsubscribeToken(UnsubscribeSubject{UserID: 12}, "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	v = s.ValidateUnsubscribeToken(tok)
	if !v.Valid || v.UserID != 12 || v.Category != "" {
		t.Errorf("validate = %+v, want user 12 global", v)
	}
}

func TestUnsubscribeTokenExpiry(t *testing.T) {
	s, clock := newTestService(t)

	tok, _ := s.GenerateUnsubscribeToken(UnsubscribeSubject{Email: "a@b.com"}, "")

	clock.t = clock.t.Add(29 * 24 * time.Hour)
	if v := s.ValidateUnsubscribeToken(tok); !v.Valid {
		t.Fatalf("day 29: %+v, want valid", v)
	}

	clock.t = clock.t.Add(2 * 24 * time.Hour)
	v := s.ValidateUnsubscribeToken(tok)
	if v.Valid || !v.Expired {
		t.Errorf("day 31: %+v, want expired", v)
	}
}

func TestUnsubscribeTokenTampered(t *testing.T) {
	s, _ := newTestService(t)

	tok, _ := s.GenerateUnsubscribeToken(UnsubscribeSubject{Email: "a@b.com"}, "")
	b := []byte(tok)
	if b[2] == 'A' {
		b[2] = 'B'
	} else {
		b[2] = 'A'
	}

	v := s.ValidateUnsubscribeToken(string(b))
	if v.Valid {
		t.Fatal("tampered token accepted")
	}
	if v.Error != ErrMsgInvalidSignature {
		t.Errorf("error = %q, want %q", v.Error, ErrMsgInvalidSignature)
	}
}

func TestUnsubscribeTokenWrongSecret(t *testing.T) {
	s, _ := newTestService(t)
	other := New("another-secret")

	tok, _ := s.GenerateUnsubscribeToken(UnsubscribeSubject{Email: "a@b.com"}, "")
	if v := other.ValidateUnsubscribeToken(tok); v.Valid {
		t.Error("token signed with a different secret was accepted")
	}
}

func TestUnsubscribeTokenNoSecret(t *testing.T) {
	s := New("")

	if _, err := s.GenerateUnsubscribeToken(UnsubscribeSubject{Email: "a@b.com"}, ""); !errors.Is(err, ErrNoSecret) {
		t.Errorf("err = %v, want ErrNoSecret", err)
	}
	if v := s.ValidateUnsubscribeToken("e30.c2ln"); v.Valid {
		t.Error("validation without a secret should fail")
	}
}

func TestUnsubscribeTokenMalformed(t *testing.T) {
	s, _ := newTestService(t)

	for _, tok := range []string{"", "nodot", ".sig", "payload.", "a.b.c"} {
		if v := s.ValidateUnsubscribeToken(tok); v.Valid {
			t.Errorf("token %q accepted", tok)
		}
	}
}
