package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/freightdocs/internal/auth"
	"github.com/dukerupert/freightdocs/internal/database"
	"github.com/dukerupert/freightdocs/internal/store"
)

const testSecret = "test-secret-key"

func setupAuthMiddlewareDB(t *testing.T) *store.UserStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewUserStore(db)
}

func TestRequireAuth(t *testing.T) {
	us := setupAuthMiddlewareDB(t)

	valid, err := GenerateToken(testSecret, "auth0|alice", "alice@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	expired, _ := GenerateToken(testSecret, "auth0|alice", "alice@example.com", -time.Minute)
	wrongKey, _ := GenerateToken("other-secret", "auth0|alice", "alice@example.com", time.Hour)
	noEmail, _ := GenerateToken(testSecret, "auth0|alice", "", time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"email": "alice@example.com"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name       string
		authHeader string
		query      string
		wantStatus int
	}{
		{"valid token", "Bearer " + valid, "", http.StatusOK},
		{"lowercase scheme", "bearer " + valid, "", http.StatusOK},
		{"query token", "", "?access_token=" + valid, http.StatusOK},
		{"missing header", "", "", http.StatusUnauthorized},
		{"invalid format", valid, "", http.StatusUnauthorized},
		{"invalid token", "Bearer invalid.token.here", "", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized},
		{"wrong key", "Bearer " + wrongKey, "", http.StatusUnauthorized},
		{"no email", "Bearer " + noEmail, "", http.StatusUnauthorized},
		{"alg none", "Bearer " + none, "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAC auth.AuthContext
			handler := RequireAuth(testSecret, us, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAC, _ = auth.FromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/"+tt.query, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if gotAC.UserID == 0 {
					t.Error("expected provisioned user id")
				}
				if gotAC.Email != "alice@example.com" {
					t.Errorf("Email = %q, want %q", gotAC.Email, "alice@example.com")
				}
				if gotAC.Subject != "auth0|alice" {
					t.Errorf("Subject = %q, want %q", gotAC.Subject, "auth0|alice")
				}
			}
		})
	}
}

func TestRequireAuthReusesUser(t *testing.T) {
	us := setupAuthMiddlewareDB(t)
	existing, err := us.Create("bob@example.com", "Bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tok, _ := GenerateToken(testSecret, "sub", "BOB@example.com", time.Hour)

	var got int64
	handler := RequireAuth(testSecret, us, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.UserID(r.Context())
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != existing.ID {
		t.Errorf("UserID = %d, want %d", got, existing.ID)
	}
}
