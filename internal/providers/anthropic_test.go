package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/callwise/go-failover-backend/internal/services"
)

func TestAnthropic_Complete_LiftsSystemTurn(t *testing.T) {
	var gotVersion, gotKey string
	var gotReq anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("anthropic-version")
		gotKey = r.Header.Get("x-api-key")
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path: %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "claude-3-5-haiku-20241022",
			"content": []map[string]string{
				{"type": "text", "text": "short answer"},
			},
		})
	}))
	defer srv.Close()

	p := NewAnthropic(srv.URL, "key-1", "")
	reply, err := p.Complete(context.Background(), []services.Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
		{Role: "user", Content: "more"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply.Content != "short answer" || reply.Model != "claude-3-5-haiku-20241022" {
		t.Fatalf("reply: %+v", reply)
	}

	if gotKey != "key-1" || gotVersion != anthropicVersion {
		t.Fatalf("headers: key=%q version=%q", gotKey, gotVersion)
	}
	// System turn moves to the top-level field, never into messages.
	if gotReq.System != "be terse" {
		t.Fatalf("system: %q", gotReq.System)
	}
	if len(gotReq.Messages) != 3 {
		t.Fatalf("messages: %+v", gotReq.Messages)
	}
	if gotReq.Model != defaultAnthropicModel || gotReq.MaxTokens != anthropicMaxReplyTokens {
		t.Fatalf("request: %+v", gotReq)
	}
}

func TestAnthropic_Complete_Errors(t *testing.T) {
	t.Run("http error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"type":"overloaded_error"}}`))
		}))
		defer srv.Close()

		p := NewAnthropic(srv.URL, "k", "m")
		_, err := p.Complete(context.Background(), []services.Message{{Role: "user", Content: "x"}})
		if err == nil || !strings.Contains(err.Error(), "500") {
			t.Fatalf("expected status error, got %v", err)
		}
	})

	t.Run("no text block", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"model":"m","content":[{"type":"tool_use"}]}`))
		}))
		defer srv.Close()

		p := NewAnthropic(srv.URL, "k", "m")
		_, err := p.Complete(context.Background(), []services.Message{{Role: "user", Content: "x"}})
		if err == nil || !strings.Contains(err.Error(), "no text block") {
			t.Fatalf("expected no-text-block error, got %v", err)
		}
	})
}

func TestAnthropic_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path: %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	p := NewAnthropic(srv.URL, "k", "m")
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Fatalf("probe: %v", err)
	}
}
