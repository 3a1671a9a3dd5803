// Package services – IdempotencyService
//
// This file implements the dedup ledger used to claim logical operations
// exactly once. The contract is deliberately small: Exists is a read-only
// hint, and CheckAndSet/Create is the authoritative claim — the atomic
// unique-constraint violation on insert is the dedup signal, because an
// exists-then-create sequence has a race window under concurrent callers.
//
// Failure semantics are fail-open throughout: a possible duplicate
// execution is preferred over blocking all traffic when the store is
// unreachable.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/callwise/go-failover-backend/internal/repo"
)

// DefaultIdempotencyTTL is how long a claim stays authoritative before the
// sweep may reclaim it.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyService claims and checks logical-operation keys.
type IdempotencyService struct {
	DB  *gorm.DB
	TTL time.Duration
}

// NewIdempotencyService constructs an IdempotencyService with the given
// default claim TTL (DefaultIdempotencyTTL when ttl <= 0).
func NewIdempotencyService(db *gorm.DB, ttl time.Duration) *IdempotencyService {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyService{DB: db, TTL: ttl}
}

// Exists reports whether a live claim is recorded for (namespace, key).
// On store error it returns false: fail open.
func (s *IdempotencyService) Exists(ctx context.Context, namespace, key string) bool {
	ok, err := repo.IdempotencyExists(ctx, s.DB, namespace, key, time.Now().UTC())
	if err != nil {
		log.Warn().Err(err).Str("namespace", namespace).Msg("idempotency read failed, assuming new")
		return false
	}
	return ok
}

// Create attempts to claim (namespace, key). It returns true when this
// caller made the claim, false when the key was already recorded or the
// store write failed. payloadHash may be empty.
func (s *IdempotencyService) Create(ctx context.Context, namespace, key, payloadHash string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = s.TTL
	}
	_, err := repo.CreateIdempotency(ctx, s.DB, namespace, key, payloadHash, ttl)
	if err == nil {
		return true
	}
	if !errors.Is(err, repo.ErrDuplicate) {
		log.Warn().Err(err).Str("namespace", namespace).Msg("idempotency claim failed")
	}
	return false
}

// CheckAndSet is Create under a name that reads naturally at call sites:
// "are we the first to claim this work".
func (s *IdempotencyService) CheckAndSet(ctx context.Context, namespace, key, payloadHash string, ttl time.Duration) bool {
	return s.Create(ctx, namespace, key, payloadHash, ttl)
}

// CleanupExpired deletes claims whose expiry has passed and returns the
// number removed. Intended to run on a schedule, not on the request path.
func (s *IdempotencyService) CleanupExpired(ctx context.Context) (int64, error) {
	return repo.DeleteExpiredIdempotency(ctx, s.DB, time.Now().UTC())
}

// Deterministic key builders. Producers and idempotent consumers derive the
// same key independently, so each rule is fixed here rather than improvised
// at call sites.

// CallEventKey builds the dedup key for an inbound status callback:
// event type + the provider-assigned call identifier + the event second.
func CallEventKey(eventType, providerCallID string, occurredAt time.Time) string {
	return fmt.Sprintf("%s:%s:%d", eventType, providerCallID, occurredAt.UTC().Unix())
}

// NotificationKey builds the dedup key for an outbound notification:
// channel + recipient + a digest of the rendered content.
func NotificationKey(channel, recipient, digest string) string {
	return fmt.Sprintf("%s:%s:%s", channel, recipient, digest)
}

// JobKey builds the dedup key for a scheduled background job run.
func JobKey(name string, runAt time.Time) string {
	return fmt.Sprintf("%s:%d", name, runAt.UTC().Unix())
}

// PayloadHash returns the hex SHA-256 of b, for detecting key reuse with a
// different payload.
func PayloadHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
