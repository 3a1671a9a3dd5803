// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Incident
// model. The table is append-only: there are no update or delete functions
// here, and none should be added.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/callwise/go-failover-backend/internal/domain"
)

// AppendIncident inserts one incident row. Meta is a pre-encoded JSON string
// (may be empty).
func AppendIncident(ctx context.Context, db *gorm.DB, severity, source, message, meta string) (*domain.Incident, error) {
	inc := &domain.Incident{
		ID:        uuid.NewString(),
		Severity:  severity,
		Source:    source,
		Message:   message,
		Meta:      meta,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(inc).Error; err != nil {
		return nil, err
	}
	return inc, nil
}

// IncidentFilter narrows incident feed queries. Zero values mean "no filter".
type IncidentFilter struct {
	Severity string
	Source   string
}

// CountIncidents returns the number of incidents matching the filter.
func CountIncidents(ctx context.Context, db *gorm.DB, f IncidentFilter) (int64, error) {
	var total int64
	err := incidentQuery(db.WithContext(ctx), f).Count(&total).Error
	return total, err
}

// ListIncidentsPage returns a page of incidents matching the filter, newest
// first. Use CountIncidents for pagination metadata.
func ListIncidentsPage(ctx context.Context, db *gorm.DB, f IncidentFilter, offset, limit int) ([]domain.Incident, error) {
	var out []domain.Incident
	err := incidentQuery(db.WithContext(ctx), f).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// IncidentStats returns per-severity counts over the rolling window ending
// now. Missing severities are reported as zero.
func IncidentStats(ctx context.Context, db *gorm.DB, window time.Duration, now time.Time) (map[string]int64, error) {
	since := now.Add(-window)
	var rows []struct {
		Severity string
		N        int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Incident{}).
		Select("severity, COUNT(*) as n").
		Where("created_at >= ?", since).
		Group("severity").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	stats := map[string]int64{
		domain.SeverityInfo:     0,
		domain.SeverityWarn:     0,
		domain.SeverityCritical: 0,
	}
	for _, r := range rows {
		stats[r.Severity] = r.N
	}
	return stats, nil
}

func incidentQuery(db *gorm.DB, f IncidentFilter) *gorm.DB {
	q := db.Model(&domain.Incident{})
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	return q
}
