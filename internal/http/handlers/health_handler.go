// Deep health HTTP handler.
//
// GET /health/providers probes every configured upstream adapter. The probes
// are gated by the health_checks_enabled flag so operators can silence
// outbound traffic during provider incidents or load tests.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/callwise/go-failover-backend/internal/services"
)

// probeTimeout bounds one upstream health probe.
const probeTimeout = 5 * time.Second

// ProviderHealth is one upstream probe result.
type ProviderHealth struct {
	Provider string `json:"provider"`
	Healthy  bool   `json:"healthy"`
	Error    string `json:"error,omitempty"`
}

// ProviderHealthResponse wraps all upstream probe results.
type ProviderHealthResponse struct {
	Checked   bool             `json:"checked"`
	Providers []ProviderHealth `json:"providers"`
}

// ProvidersHealth godoc
// @ID          providersHealth
// @Summary     Probe upstream providers
// @Description Performs a live health probe against each configured upstream.
// @Description Returns checked=false without probing when the
// @Description health_checks_enabled flag is off.
// @Tags        Health
// @Produce     json
//
// @Success     200  {object}  handlers.ProviderHealthResponse
// @Router      /health/providers [get]
func (h *Handlers) ProvidersHealth(c *gin.Context) {
	ctx := c.Request.Context()

	if !h.flagSvc.IsEnabled(ctx, services.FlagHealthChecksOn, true) {
		ok(c, http.StatusOK, ProviderHealthResponse{Checked: false, Providers: []ProviderHealth{}})
		return
	}

	results := make([]ProviderHealth, 0, len(h.checkers))
	for _, hc := range h.checkers {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := hc.HealthCheck(probeCtx)
		cancel()

		r := ProviderHealth{Provider: string(hc.Name()), Healthy: err == nil}
		if err != nil {
			r.Error = err.Error()
		}
		results = append(results, r)
	}
	ok(c, http.StatusOK, ProviderHealthResponse{Checked: true, Providers: results})
}
