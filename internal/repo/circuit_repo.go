// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// CircuitRecord model: one row per (provider, component) pair, created
// lazily on first write and mutated only by the breaker service.
//
// Concurrency note: the breaker's read-then-write spans a provider call and
// is not atomic end to end. The per-record updates here are written to be
// idempotent and order-tolerant; TransitionHalfOpen additionally uses a
// conditional update guarded by the expected cooldown so concurrent readers
// collapse to a single permitted trial per cooldown window.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/callwise/go-failover-backend/internal/domain"
)

// GetCircuit fetches the record for (provider, component), or ErrNotFound.
func GetCircuit(ctx context.Context, db *gorm.DB, p domain.Provider, c domain.Component) (*domain.CircuitRecord, error) {
	var rec domain.CircuitRecord
	err := db.WithContext(ctx).
		Where("provider = ? AND component = ?", p, c).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListCircuits returns every circuit record ordered by provider then
// component, for the status endpoint and operator views.
func ListCircuits(ctx context.Context, db *gorm.DB) ([]domain.CircuitRecord, error) {
	var out []domain.CircuitRecord
	err := db.WithContext(ctx).
		Order("provider asc, component asc").
		Find(&out).Error
	return out, err
}

// CreateCircuit inserts a fresh closed/healthy record for the pair. On a
// unique violation (a concurrent writer got there first) the existing row
// is fetched and returned instead.
func CreateCircuit(ctx context.Context, db *gorm.DB, p domain.Provider, c domain.Component) (*domain.CircuitRecord, error) {
	rec := &domain.CircuitRecord{
		ID:        uuid.NewString(),
		Provider:  p,
		Component: c,
		State:     domain.StateHealthy,
		Circuit:   domain.CircuitClosed,
		UpdatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return GetCircuit(ctx, db, p, c)
		}
		return nil, err
	}
	return rec, nil
}

// SaveCircuit persists the full mutable state of rec keyed by its ID.
// Zero values and NULLs are written explicitly (Select) so that clearing
// cooldown_until or last_error on close actually sticks.
func SaveCircuit(ctx context.Context, db *gorm.DB, rec *domain.CircuitRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.CircuitRecord{}).
		Where("id = ?", rec.ID).
		Select("state", "circuit", "failure_count", "success_count",
			"last_error", "last_checked_at", "last_success_at",
			"cooldown_until", "updated_at").
		Updates(rec).Error
}

// TransitionHalfOpen flips an open circuit to half_open, but only when the
// stored cooldown still matches the one the caller observed. Returns true
// when this caller won the transition. A false return with no error means
// another caller already took the trial slot.
func TransitionHalfOpen(ctx context.Context, db *gorm.DB, id string, expectedCooldown time.Time, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.CircuitRecord{}).
		Where("id = ? AND circuit = ? AND cooldown_until = ?", id, domain.CircuitOpen, expectedCooldown).
		Updates(map[string]any{
			"circuit":         domain.CircuitHalfOpen,
			"last_checked_at": now,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// TouchChecked stamps last_checked_at without altering circuit state.
func TouchChecked(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.CircuitRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_checked_at": now, "updated_at": now}).Error
}
