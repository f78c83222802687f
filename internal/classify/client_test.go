package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientClassifyToolCall(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":null,"tool_calls":[{"type":"function",
			"function":{"name":"classify_document","arguments":"{\"type\":\"bol\",\"confidence\":0.92,\"reason\":\"shipper and carrier blocks\"}"}}]}}]}`))
	}))
	defer server.Close()

	c := NewClient("test-key", WithBaseURL(server.URL), WithModel("test-model"))
	res, err := c.Classify(context.Background(), "https://storage.test/doc.pdf?sig=1")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if res.Type != "bol" || res.Confidence != 0.92 {
		t.Errorf("result = %+v, want bol/0.92", res)
	}
	if got.Model != "test-model" {
		t.Errorf("model = %q, want %q", got.Model, "test-model")
	}
	if got.ToolChoice.Function.Name != toolName {
		t.Errorf("tool_choice = %q, want %q", got.ToolChoice.Function.Name, toolName)
	}
}

func TestClientClassifyFreeText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"Type: invoice\nConfidence: 0.81"}}]}`))
	}))
	defer server.Close()

	c := NewClient("k", WithBaseURL(server.URL))
	res, err := c.Classify(context.Background(), "u")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if res.Type != "invoice" || res.Confidence != 0.81 {
		t.Errorf("result = %+v, want invoice/0.81", res)
	}
}

func TestClientClassifyErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"rate limited", http.StatusTooManyRequests, `{}`},
		{"bad envelope", http.StatusOK, `not json`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient("k", WithBaseURL(server.URL))
			if _, err := c.Classify(context.Background(), "u"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestClientNotConfigured(t *testing.T) {
	c := NewClient("")
	if c.Configured() {
		t.Fatal("expected unconfigured client")
	}
	_, err := c.Classify(context.Background(), "u")
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Errorf("err = %v, want not configured", err)
	}
}

func TestClientTimeout(t *testing.T) {
	if got := NewClient("k").httpClient.Timeout; got != DefaultRequestTimeout {
		t.Errorf("default timeout = %v, want %v", got, DefaultRequestTimeout)
	}
	if got := NewClient("k", WithTimeout(5*time.Second)).httpClient.Timeout; got != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", got)
	}
}
