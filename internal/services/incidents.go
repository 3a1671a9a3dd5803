// Package services – IncidentService
//
// This file implements the append-only incident log written by the breaker
// and the orchestrator. Writes are best-effort: a store outage for the
// incident log must never block a business operation, so Log swallows and
// logs persistence errors instead of returning them. The read side feeds
// the operator incident view (list, filter, rolling-window stats).
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/callwise/go-failover-backend/internal/domain"
	"github.com/callwise/go-failover-backend/internal/repo"
)

// IncidentService appends and reads incidents. The write path is exclusively
// internal (breaker + orchestrator); there is no mutation or delete.
type IncidentService struct {
	DB *gorm.DB
}

// NewIncidentService constructs an IncidentService.
func NewIncidentService(db *gorm.DB) *IncidentService {
	return &IncidentService{DB: db}
}

// Log appends one incident. Invalid severities are coerced to warn rather
// than dropped: a malformed audit write is still worth keeping. Persistence
// failures are logged and swallowed.
func (s *IncidentService) Log(ctx context.Context, severity, source, message string, meta map[string]any) {
	switch severity {
	case domain.SeverityInfo, domain.SeverityWarn, domain.SeverityCritical:
	default:
		severity = domain.SeverityWarn
	}
	if _, err := repo.AppendIncident(ctx, s.DB, severity, source, message, marshalMeta(meta)); err != nil {
		log.Warn().Err(err).Str("source", source).Str("severity", severity).
			Msg("incident write failed")
		return
	}
	log.WithLevel(zerologLevel(severity)).
		Str("source", source).Str("incident", message).Msg("incident recorded")
}

// ListPage returns a page of incidents (newest first) matching the filter,
// plus the total count for pagination metadata.
func (s *IncidentService) ListPage(ctx context.Context, f repo.IncidentFilter, page, pageSize int) ([]domain.Incident, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountIncidents(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Incident{}, 0, nil
	}
	items, err := repo.ListIncidentsPage(ctx, s.DB, f, offset, pageSize)
	return items, total, err
}

// Stats returns per-severity counts over the rolling window ending now.
func (s *IncidentService) Stats(ctx context.Context, window time.Duration) (map[string]int64, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return repo.IncidentStats(ctx, s.DB, window, time.Now().UTC())
}

// zerologLevel maps incident severities onto log levels so the incident
// stream shows up in structured logs at a proportional level.
func zerologLevel(severity string) zerolog.Level {
	switch severity {
	case domain.SeverityCritical:
		return zerolog.ErrorLevel
	case domain.SeverityWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
