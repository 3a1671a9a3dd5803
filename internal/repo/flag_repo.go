// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Flag model.
//
// Flags are provisioned ahead of time (seed or migration) and only mutated
// through UpdateFlag; there is deliberately no delete path.
//
// Error semantics:
//   - When a flag is not found, functions return ErrNotFound.
//   - On DB errors (connectivity issues, etc.), the raw gorm error is
//     propagated; the service layer maps it to a fail-open default.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/callwise/go-failover-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetFlag fetches a single flag by key, or ErrNotFound if missing.
func GetFlag(ctx context.Context, db *gorm.DB, key string) (*domain.Flag, error) {
	var f domain.Flag
	err := db.WithContext(ctx).Where("key = ?", key).First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFlags returns every flag ordered by key. Used to refresh the whole
// in-process cache and by the operator flag list endpoint.
func ListFlags(ctx context.Context, db *gorm.DB) ([]domain.Flag, error) {
	var out []domain.Flag
	err := db.WithContext(ctx).Order("key asc").Find(&out).Error
	return out, err
}

// UpdateFlag mutates an existing flag. A nil value leaves Value untouched;
// a pointer to the empty string clears it. If no row matches the key, it
// returns ErrNotFound: flags are not created ad hoc by this path.
func UpdateFlag(ctx context.Context, db *gorm.DB, key string, enabled bool, value *string, notes, updatedBy string) error {
	updates := map[string]any{
		"enabled":    enabled,
		"notes":      notes,
		"updated_by": updatedBy,
		"updated_at": time.Now().UTC(),
	}
	if value != nil {
		updates["value"] = *value
	}
	res := db.WithContext(ctx).
		Model(&domain.Flag{}).
		Where("key = ?", key).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedFlag inserts a flag if it does not exist yet. Existing rows are left
// untouched so operator edits survive restarts.
func SeedFlag(ctx context.Context, db *gorm.DB, f domain.Flag) error {
	if f.Scope == "" {
		f.Scope = domain.FlagScopeGlobal
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}
	err := db.WithContext(ctx).Create(&f).Error
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	return err
}

// isUniqueViolation reports whether err is a unique-constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") || strings.Contains(low, "constraint failed: unique")
}
