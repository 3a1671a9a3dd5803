// Circuit breaker HTTP handlers.
//
// This file exposes the breaker registry to operators:
//   - GET  /circuits                              (snapshot of every circuit)
//   - POST /circuits/{provider}/{component}/reset (force-close one circuit)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/callwise/go-failover-backend/internal/domain"
	"github.com/callwise/go-failover-backend/internal/services"
)

// ListCircuitsResponse wraps the breaker registry snapshot.
type ListCircuitsResponse struct {
	Circuits []domain.CircuitRecord `json:"circuits"`
}

// ListCircuits godoc
// @ID          listCircuits
// @Summary     List circuit breakers
// @Description Returns the current state of every tracked provider/component
// @Description circuit, including failure counts and cooldown deadlines.
// @Tags        Circuits
// @Produce     json
//
// @Success     200  {object}  handlers.ListCircuitsResponse
// @Router      /circuits [get]
func (h *Handlers) ListCircuits(c *gin.Context) {
	recs := h.circuitSvc.Snapshot(c.Request.Context())
	ok(c, http.StatusOK, ListCircuitsResponse{Circuits: recs})
}

// ResetCircuit godoc
// @ID          resetCircuit
// @Summary     Reset a circuit breaker
// @Description Force-closes one circuit, clearing its failure count and
// @Description cooldown. Intended for operators after an upstream recovers.
// @Tags        Circuits
// @Produce     json
//
// @Param       provider   path  string  true  "Provider name"   example(openai)
// @Param       component  path  string  true  "Component name"  example(api)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Unknown provider or component"
// @Failure     404  {object} handlers.ErrorResponse "Circuit not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /circuits/{provider}/{component}/reset [post]
func (h *Handlers) ResetCircuit(c *gin.Context) {
	provider := domain.Provider(strings.ToLower(c.Param("provider")))
	component := domain.Component(strings.ToLower(c.Param("component")))

	err := h.circuitSvc.ResetCircuit(c.Request.Context(), provider, component)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrUnknownProvider):
		fail(c, http.StatusBadRequest, ErrCodeUnknownProvider, "unknown provider: "+string(provider))
	case errors.Is(err, services.ErrUnknownComponent):
		fail(c, http.StatusBadRequest, ErrCodeUnknownComponent, "unknown component: "+string(component))
	case errors.Is(err, services.ErrCircuitNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "circuit not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
	}
}
