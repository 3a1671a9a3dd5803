// Completion HTTP handlers.
//
// This file exposes the orchestrator endpoints:
//   - POST /ai/completions  (run a completion across providers)
//   - GET  /ai/status       (master flag, preference, provider health)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. The completion endpoint always
// answers 200 with a result envelope — provider failure is data, not an HTTP
// error.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/callwise/go-failover-backend/internal/domain"
	"github.com/callwise/go-failover-backend/internal/http/middleware"
	"github.com/callwise/go-failover-backend/internal/providers"
	"github.com/callwise/go-failover-backend/internal/repo"
	"github.com/callwise/go-failover-backend/internal/services"
	"github.com/callwise/go-failover-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// CompletionService drives completion calls across providers and reports
// aggregate availability.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type CompletionService interface {
	// Complete runs one completion through the provider chain and always
	// returns a result envelope, degraded to a fallback when needed.
	Complete(ctx context.Context, messages []services.Message, opts services.CompletionOptions) services.CompletionResult
	// Status reports the current availability aggregate.
	Status(ctx context.Context) services.AIStatus
}

// FlagService exposes the flag store to the operator endpoints.
type FlagService interface {
	// IsEnabled returns the flag's enabled bit, or def when unavailable.
	IsEnabled(ctx context.Context, key string, def bool) bool
	// RefreshAll reloads and returns every flag.
	RefreshAll(ctx context.Context) ([]domain.Flag, error)
	// SetFlag updates an existing flag; false means no flag was updated.
	SetFlag(ctx context.Context, key string, enabled bool, value *string, notes, updatedBy string) bool
}

// CircuitService exposes the breaker registry to the operator endpoints.
type CircuitService interface {
	// Snapshot returns the current state of every tracked circuit.
	Snapshot(ctx context.Context) []domain.CircuitRecord
	// ResetCircuit force-closes one circuit.
	ResetCircuit(ctx context.Context, p domain.Provider, c domain.Component) error
}

// IncidentService exposes the incident feed to the operator endpoints.
type IncidentService interface {
	// ListPage returns a page of incidents, newest first, and the total.
	ListPage(ctx context.Context, f repo.IncidentFilter, page, pageSize int) ([]domain.Incident, int64, error)
	// Stats returns per-severity counts over a trailing window.
	Stats(ctx context.Context, window time.Duration) (map[string]int64, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for completions, flags, circuits, incidents
// and deep health. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	completionSvc CompletionService
	flagSvc       FlagService
	circuitSvc    CircuitService
	incidentSvc   IncidentService
	checkers      []providers.HealthChecker
}

// New constructs and returns a Handlers instance bound to the given services.
// checkers may be empty; the deep health endpoint then reports no upstreams.
func New(completionSvc CompletionService, flagSvc FlagService, circuitSvc CircuitService, incidentSvc IncidentService, checkers []providers.HealthChecker) *Handlers {
	return &Handlers{
		completionSvc: completionSvc,
		flagSvc:       flagSvc,
		circuitSvc:    circuitSvc,
		incidentSvc:   incidentSvc,
		checkers:      checkers,
	}
}

// actor extracts the operator identity from the "X-Updated-By" header,
// falling back to "operator". Flag writes record it for the audit trail.
func actor(c *gin.Context) string {
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-Updated-By")); h != "" {
			return h
		}
	}
	return "operator"
}

//
// DTOs
//

// CompletionRequest is the JSON payload for running a completion.
type CompletionRequest struct {
	// Messages is the conversation to complete, oldest first.
	Messages []services.Message `json:"messages" binding:"required,min=1"`
	// PreferredProvider optionally overrides the configured preference.
	PreferredProvider string `json:"preferred_provider" example:"anthropic"`
	// MaxRetries optionally overrides the per-provider retry budget.
	MaxRetries *int `json:"max_retries" example:"1"`
	// TimeoutMS optionally bounds each provider attempt, in milliseconds.
	TimeoutMS int `json:"timeout_ms" example:"10000"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// CreateCompletion godoc
// @ID          createCompletion
// @Summary     Run a completion
// @Description Runs one completion across the provider chain with retries and
// @Description failover. Always returns 200 with a result envelope; when all
// @Description providers fail the envelope carries the fallback content and an
// @Description error string.
// @Tags        AI
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Dedup key for the logical operation"  example(ai:resp:call-42:7)
// @Param       body             body    handlers.CompletionRequest  true  "Completion payload"
//
// @Success     200  {object}  services.CompletionResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /ai/completions [post]
func (h *Handlers) CreateCompletion(c *gin.Context) {
	var req CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Messages) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "messages required")
		return
	}

	pref := domain.Provider(strings.ToLower(strings.TrimSpace(req.PreferredProvider)))
	if pref != "" && !domain.ValidProvider(pref) {
		fail(c, http.StatusBadRequest, ErrCodeUnknownProvider, "unknown provider: "+string(pref))
		return
	}

	opts := services.CompletionOptions{
		PreferredProvider: pref,
		MaxRetries:        req.MaxRetries,
		Timeout:           time.Duration(req.TimeoutMS) * time.Millisecond,
	}
	if key, ok := middleware.GetIdempotencyKey(c); ok {
		opts.IdempotencyKey = key
	}

	res := h.completionSvc.Complete(c.Request.Context(), req.Messages, opts)
	ok(c, http.StatusOK, res)
}

// AIStatus godoc
// @ID          aiStatus
// @Summary     AI availability status
// @Description Returns the master flag, preferred provider, per-provider
// @Description enablement and voice availability.
// @Tags        AI
// @Produce     json
//
// @Success     200  {object}  services.AIStatus
// @Router      /ai/status [get]
func (h *Handlers) AIStatus(c *gin.Context) {
	ok(c, http.StatusOK, h.completionSvc.Status(c.Request.Context()))
}
