package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:  1,
		Email:   "a@b.com",
		Subject: "auth0|abc",
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.UserID != 1 {
		t.Errorf("UserID = %d, want 1", got.UserID)
	}
	if got.Email != "a@b.com" {
		t.Errorf("Email = %q, want %q", got.Email, "a@b.com")
	}
	if got.Subject != "auth0|abc" {
		t.Errorf("Subject = %q, want %q", got.Subject, "auth0|abc")
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestUserID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: 7})
	if UserID(ctx) != 7 {
		t.Errorf("UserID = %d, want 7", UserID(ctx))
	}
	if UserID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}

func TestEmail(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{Email: "x@y.com"})
	if Email(ctx) != "x@y.com" {
		t.Errorf("Email = %q, want %q", Email(ctx), "x@y.com")
	}
	if Email(context.Background()) != "" {
		t.Error("expected empty email for missing context")
	}
}
