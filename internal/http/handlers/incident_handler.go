// Incident feed HTTP handlers.
//
// This file exposes the append-only incident log to operators:
//   - GET /incidents        (list, paginated, filterable by severity/source)
//   - GET /incidents/stats  (per-severity counts over a trailing window)
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/callwise/go-failover-backend/internal/domain"
	"github.com/callwise/go-failover-backend/internal/repo"
	"github.com/callwise/go-failover-backend/internal/utils"
)

// ListIncidentsResponse wraps a page of incidents and pagination information.
type ListIncidentsResponse struct {
	Incidents  []domain.Incident `json:"incidents"`
	Pagination Pagination        `json:"pagination"`
}

// IncidentStatsResponse reports per-severity incident counts for a window.
type IncidentStatsResponse struct {
	WindowHours int              `json:"window_hours"`
	Counts      map[string]int64 `json:"counts"`
}

// ListIncidents godoc
// @ID          listIncidents
// @Summary     List incidents (paginated)
// @Description Returns a page of incidents, newest first. Filterable by
// @Description severity (info, warn, critical) and source.
// @Tags        Incidents
// @Produce     json
//
// @Param       severity   query  string  false "Filter by severity"  Enums(info, warn, critical)
// @Param       source     query  string  false "Filter by source"    example(circuit_breaker)
// @Param       page       query  int     false "Page number"         minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"      minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListIncidentsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /incidents [get]
func (h *Handlers) ListIncidents(c *gin.Context) {
	f := repo.IncidentFilter{
		Severity: strings.ToLower(strings.TrimSpace(c.Query("severity"))),
		Source:   strings.TrimSpace(c.Query("source")),
	}
	if f.Severity != "" && !domain.ValidSeverity(f.Severity) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "severity must be info, warn or critical")
		return
	}
	page, pageSize := clampPagination(c)

	items, total, err := h.incidentSvc.ListPage(c.Request.Context(), f, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListIncidentsResponse{
		Incidents: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// IncidentStats godoc
// @ID          incidentStats
// @Summary     Incident counts by severity
// @Description Returns per-severity incident counts over a trailing window
// @Description (default 24h, max 7 days).
// @Tags        Incidents
// @Produce     json
//
// @Param       window_hours  query  int  false "Trailing window in hours"  minimum(1) maximum(168) default(24)
//
// @Success     200  {object} handlers.IncidentStatsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /incidents/stats [get]
func (h *Handlers) IncidentStats(c *gin.Context) {
	hours := utils.AtoiDefault(c.Query("window_hours"), 24)
	if hours < 1 {
		hours = 1
	}
	if hours > 168 {
		hours = 168
	}

	counts, err := h.incidentSvc.Stats(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, IncidentStatsResponse{WindowHours: hours, Counts: counts})
}
