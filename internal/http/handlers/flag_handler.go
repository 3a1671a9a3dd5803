// Feature flag HTTP handlers.
//
// This file exposes the flag store to operators:
//   - GET /flags        (list all flags)
//   - PUT /flags/{key}  (toggle or revalue an existing flag)
//
// Flags are provisioned at startup; the PUT endpoint never creates one.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/callwise/go-failover-backend/internal/domain"
)

// UpdateFlagRequest is the JSON payload for updating a flag.
type UpdateFlagRequest struct {
	// Enabled sets the flag's on/off bit.
	Enabled *bool `json:"enabled" binding:"required"`
	// Value optionally replaces the flag's string payload; omit to keep it.
	Value *string `json:"value" example:"anthropic"`
	// Notes optionally records why the flag was changed.
	Notes string `json:"notes" example:"openai elevated error rate"`
}

// ListFlagsResponse wraps the full flag catalogue.
type ListFlagsResponse struct {
	Flags []domain.Flag `json:"flags"`
}

// ListFlags godoc
// @ID          listFlags
// @Summary     List feature flags
// @Description Returns every flag with its current state. Reading through
// @Description this endpoint also refreshes the in-process flag cache.
// @Tags        Flags
// @Produce     json
//
// @Success     200  {object}  handlers.ListFlagsResponse
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /flags [get]
func (h *Handlers) ListFlags(c *gin.Context) {
	flags, err := h.flagSvc.RefreshAll(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListFlagsResponse{Flags: flags})
}

// UpdateFlag godoc
// @ID          updateFlag
// @Summary     Update a feature flag
// @Description Toggles or revalues an already-provisioned flag. Unknown keys
// @Description return 404; flags cannot be created through this endpoint.
// @Tags        Flags
// @Accept      json
// @Produce     json
//
// @Param       X-Updated-By  path  string  false "Operator identity for the audit trail"  example(oncall)
// @Param       key           path  string  true  "Flag key"  example(ai_enabled)
// @Param       body          body  handlers.UpdateFlagRequest  true  "New flag state"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Flag not found"
// @Router      /flags/{key} [put]
func (h *Handlers) UpdateFlag(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "flag key required")
		return
	}

	var req UpdateFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "enabled is required")
		return
	}

	if !h.flagSvc.SetFlag(c.Request.Context(), key, *req.Enabled, req.Value, req.Notes, actor(c)) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "flag not found")
		return
	}
	noContent(c)
}
