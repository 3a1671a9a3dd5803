// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the dedup
// ledger: rows keyed by (namespace, key) whose first successful insert
// claims a logical operation.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/callwise/go-failover-backend/internal/domain"
)

// ErrDuplicate indicates that an idempotency record already exists for the
// given (namespace, key) tuple.
var ErrDuplicate = errors.New("duplicate")

// IdempotencyExists reports whether a non-expired claim exists. A read-only
// check only; under concurrency, CreateIdempotency's unique violation is
// the authoritative dedup signal.
func IdempotencyExists(ctx context.Context, db *gorm.DB, namespace, key string, now time.Time) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, nil
	}
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.IdempotencyKey{}).
		Where("namespace = ? AND key = ? AND (expires_at IS NULL OR expires_at > ?)", namespace, key, now).
		Count(&n).Error
	return n > 0, err
}

// CreateIdempotency inserts a claim and returns ErrDuplicate on unique
// violation. A ttl of zero stores a claim that never expires.
func CreateIdempotency(ctx context.Context, db *gorm.DB, namespace, key, payloadHash string, ttl time.Duration) (*domain.IdempotencyKey, error) {
	now := time.Now().UTC()
	rec := &domain.IdempotencyKey{
		ID:          uuid.NewString(),
		Namespace:   namespace,
		Key:         key,
		PayloadHash: payloadHash,
		CreatedAt:   now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		rec.ExpiresAt = &exp
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// DeleteExpiredIdempotency removes rows whose expiry has passed and returns
// the number deleted. Intended for the periodic sweep, not the request path.
func DeleteExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&domain.IdempotencyKey{})
	return res.RowsAffected, res.Error
}
