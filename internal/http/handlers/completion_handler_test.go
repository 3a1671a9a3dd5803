package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/callwise/go-failover-backend/internal/domain"
	"github.com/callwise/go-failover-backend/internal/http/middleware"
	"github.com/callwise/go-failover-backend/internal/repo"
	"github.com/callwise/go-failover-backend/internal/services"
)

// ---------- service stubs ----------

type stubCompletionSvc struct {
	complete func(context.Context, []services.Message, services.CompletionOptions) services.CompletionResult
	status   func(context.Context) services.AIStatus
}

func (s stubCompletionSvc) Complete(ctx context.Context, msgs []services.Message, opts services.CompletionOptions) services.CompletionResult {
	if s.complete != nil {
		return s.complete(ctx, msgs, opts)
	}
	return services.CompletionResult{Content: "ok", Provider: domain.ProviderOpenAI}
}

func (s stubCompletionSvc) Status(ctx context.Context) services.AIStatus {
	if s.status != nil {
		return s.status(ctx)
	}
	return services.AIStatus{Enabled: true, PreferredProvider: domain.ProviderOpenAI}
}

type stubFlagSvc struct {
	enabled map[string]bool
	flags   []domain.Flag
	listErr error
	set     func(key string, enabled bool, value *string, notes, updatedBy string) bool
}

func (s stubFlagSvc) IsEnabled(_ context.Context, key string, def bool) bool {
	if v, ok := s.enabled[key]; ok {
		return v
	}
	return def
}

func (s stubFlagSvc) RefreshAll(context.Context) ([]domain.Flag, error) {
	return s.flags, s.listErr
}

func (s stubFlagSvc) SetFlag(_ context.Context, key string, enabled bool, value *string, notes, updatedBy string) bool {
	if s.set != nil {
		return s.set(key, enabled, value, notes, updatedBy)
	}
	return true
}

type stubCircuitSvc struct {
	snapshot []domain.CircuitRecord
	resetErr error
}

func (s stubCircuitSvc) Snapshot(context.Context) []domain.CircuitRecord { return s.snapshot }

func (s stubCircuitSvc) ResetCircuit(context.Context, domain.Provider, domain.Component) error {
	return s.resetErr
}

type stubIncidentSvc struct {
	items []domain.Incident
	total int64
	err   error
	stats map[string]int64
}

func (s stubIncidentSvc) ListPage(context.Context, repo.IncidentFilter, int, int) ([]domain.Incident, int64, error) {
	return s.items, s.total, s.err
}

func (s stubIncidentSvc) Stats(context.Context, time.Duration) (map[string]int64, error) {
	return s.stats, s.err
}

func newTestHandlers(completion CompletionService, flags FlagService, circuits CircuitService, incidents IncidentService) *Handlers {
	if completion == nil {
		completion = stubCompletionSvc{}
	}
	if flags == nil {
		flags = stubFlagSvc{}
	}
	if circuits == nil {
		circuits = stubCircuitSvc{}
	}
	if incidents == nil {
		incidents = stubIncidentSvc{}
	}
	return New(completion, flags, circuits, incidents, nil)
}

// ---------- CreateCompletion ----------

func TestCreateCompletion_BadRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newTestHandlers(nil, nil, nil, nil)
	r := gin.New()
	r.POST("/ai/completions", h.CreateCompletion)

	for name, body := range map[string]string{
		"malformed":        "{bad",
		"empty messages":   `{"messages":[]}`,
		"missing messages": `{}`,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/ai/completions", bytes.NewBufferString(body))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s -> %d body=%s", name, w.Code, w.Body.String())
		}
	}
}

func TestCreateCompletion_UnknownPreferredProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newTestHandlers(nil, nil, nil, nil)
	r := gin.New()
	r.POST("/ai/completions", h.CreateCompletion)

	w := httptest.NewRecorder()
	body := `{"messages":[{"role":"user","content":"hi"}],"preferred_provider":"gpt9"}`
	req := httptest.NewRequest(http.MethodPost, "/ai/completions", bytes.NewBufferString(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown provider -> %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Code != ErrCodeUnknownProvider {
		t.Fatalf("code = %q", resp.Code)
	}
}

func TestCreateCompletion_PropagatesOptionsAndAnswers200(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotOpts services.CompletionOptions
	var gotMsgs []services.Message
	svc := stubCompletionSvc{
		complete: func(_ context.Context, msgs []services.Message, opts services.CompletionOptions) services.CompletionResult {
			gotMsgs, gotOpts = msgs, opts
			return services.CompletionResult{Content: "hello", Provider: domain.ProviderAnthropic, Model: "m1"}
		},
	}
	h := newTestHandlers(svc, nil, nil, nil)

	r := gin.New()
	// Same ordering as the router: the validator stashes the key first.
	r.POST("/ai/completions",
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil),
		h.CreateCompletion)

	w := httptest.NewRecorder()
	body := `{"messages":[{"role":"user","content":"hi"}],"preferred_provider":"ANTHROPIC","max_retries":2,"timeout_ms":1500}`
	req := httptest.NewRequest(http.MethodPost, "/ai/completions", bytes.NewBufferString(body))
	req.Header.Set(middleware.HeaderIdempotencyKey, "op-1")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", w.Code, w.Body.String())
	}
	if len(gotMsgs) != 1 || gotMsgs[0].Content != "hi" {
		t.Fatalf("messages not propagated: %+v", gotMsgs)
	}
	if gotOpts.PreferredProvider != domain.ProviderAnthropic {
		t.Fatalf("preferred provider not normalized: %q", gotOpts.PreferredProvider)
	}
	if gotOpts.MaxRetries == nil || *gotOpts.MaxRetries != 2 {
		t.Fatalf("max retries: %v", gotOpts.MaxRetries)
	}
	if gotOpts.Timeout != 1500*time.Millisecond {
		t.Fatalf("timeout: %v", gotOpts.Timeout)
	}
	if gotOpts.IdempotencyKey != "op-1" {
		t.Fatalf("idempotency key: %q", gotOpts.IdempotencyKey)
	}

	var res services.CompletionResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("json: %v", err)
	}
	if res.Provider != domain.ProviderAnthropic || res.Content != "hello" {
		t.Fatalf("envelope: %+v", res)
	}
}

func TestCreateCompletion_DegradedResultIsStill200(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := stubCompletionSvc{
		complete: func(context.Context, []services.Message, services.CompletionOptions) services.CompletionResult {
			return services.CompletionResult{
				Content:  services.DefaultFallbackContent,
				Provider: domain.ProviderFallback,
				Err:      "All providers failed",
			}
		},
	}
	h := newTestHandlers(svc, nil, nil, nil)
	r := gin.New()
	r.POST("/ai/completions", h.CreateCompletion)

	w := httptest.NewRecorder()
	body := `{"messages":[{"role":"user","content":"hi"}]}`
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ai/completions", bytes.NewBufferString(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("degradation must not change the status: %d", w.Code)
	}
	var res services.CompletionResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("json: %v", err)
	}
	if res.Err != "All providers failed" || res.Provider != domain.ProviderFallback {
		t.Fatalf("envelope: %+v", res)
	}
}

// ---------- AIStatus ----------

func TestAIStatus_ReturnsAggregate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := stubCompletionSvc{
		status: func(context.Context) services.AIStatus {
			return services.AIStatus{
				Enabled:           true,
				PreferredProvider: domain.ProviderAnthropic,
				Providers:         map[string]bool{"openai": true, "anthropic": false},
				VoiceAvailable:    true,
			}
		},
	}
	h := newTestHandlers(svc, nil, nil, nil)
	r := gin.New()
	r.GET("/ai/status", h.AIStatus)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ai/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var st services.AIStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !st.Enabled || st.PreferredProvider != domain.ProviderAnthropic || !st.VoiceAvailable {
		t.Fatalf("aggregate: %+v", st)
	}
	if st.Providers["anthropic"] {
		t.Fatalf("provider map lost: %+v", st.Providers)
	}
}

// ---------- helpers ----------

func TestActorAndClampPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := actor(c); got != "operator" {
		t.Fatalf("fallback actor = %q", got)
	}
	c.Request.Header.Set("X-Updated-By", " oncall ")
	if got := actor(c); got != "oncall" {
		t.Fatalf("header actor = %q", got)
	}

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=-5&page_size=9999", nil)
	p, ps := clampPagination(c)
	if p != 1 || ps != 100 {
		t.Fatalf("clamp bounds got p=%d ps=%d", p, ps)
	}

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=&page_size=0", nil)
	p, ps = clampPagination(c)
	if p != 1 || ps != 1 {
		t.Fatalf("clamp defaults got p=%d ps=%d", p, ps)
	}
}
