// Package services – FlagService
//
// This file implements the FlagService, the read-mostly switchboard the
// orchestrator and breaker consult before touching any provider. Reads are
// served from a process-local TTL cache to bound store load; the cache is
// purely a latency optimization and correctness never depends on it being
// fresh, because every flag check is advisory (fail open to the caller's
// default). Writes go straight to the store and invalidate the cached entry.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/rs/zerolog/log"

	"github.com/callwise/go-failover-backend/internal/domain"
	"github.com/callwise/go-failover-backend/internal/repo"
)

// Flag keys provisioned by the startup seed.
const (
	FlagAIEnabled        = "ai_enabled"
	FlagAIPreferred      = "ai_preferred_provider"
	FlagOpenAIEnabled    = "provider_openai_enabled"
	FlagAnthropicEnabled = "provider_anthropic_enabled"
	FlagCallsEnabled     = "calls_enabled"
	FlagMessagingEnabled = "messaging_enabled"
	FlagVoiceEnabled     = "voice_enabled"
	FlagHealthChecksOn   = "health_checks_enabled"
)

// ProviderFlag returns the per-provider enable flag key for p.
func ProviderFlag(p domain.Provider) string {
	return "provider_" + string(p) + "_enabled"
}

// DefaultFlagTTL bounds flag staleness against store load.
const DefaultFlagTTL = 30 * time.Second

// cachedFlag is one cache slot: the flag row (nil when the store had no
// row at fetch time) plus the fetch timestamp for TTL checks.
type cachedFlag struct {
	flag      *domain.Flag
	fetchedAt time.Time
}

// FlagService reads and mutates feature flags with a TTL read cache.
// The zero value is not usable; construct with NewFlagService.
type FlagService struct {
	DB  *gorm.DB
	TTL time.Duration

	// Clock is injectable so tests can control TTL expiry.
	Clock func() time.Time

	mu    sync.Mutex
	cache map[string]cachedFlag
}

// NewFlagService constructs a FlagService with the given cache TTL
// (DefaultFlagTTL when ttl <= 0).
func NewFlagService(db *gorm.DB, ttl time.Duration) *FlagService {
	if ttl <= 0 {
		ttl = DefaultFlagTTL
	}
	return &FlagService{
		DB:    db,
		TTL:   ttl,
		Clock: time.Now,
		cache: make(map[string]cachedFlag),
	}
}

// IsEnabled returns the flag's enabled bit, or def when the flag is absent
// or the store is unreachable. It never returns an error: flag checks are
// advisory and degrade to the caller-supplied default.
func (s *FlagService) IsEnabled(ctx context.Context, key string, def bool) bool {
	f, ok := s.lookup(ctx, key)
	if !ok || f == nil {
		return def
	}
	return f.Enabled
}

// Value returns the flag's string payload, or nil when the flag is absent,
// has no value, or the store is unreachable.
func (s *FlagService) Value(ctx context.Context, key string) *string {
	f, ok := s.lookup(ctx, key)
	if !ok || f == nil {
		return nil
	}
	return f.Value
}

// SetFlag updates an already-provisioned flag and invalidates its cache
// entry. It returns false (with a log line) when the flag does not exist
// or the store write fails; flags are never created through this path.
func (s *FlagService) SetFlag(ctx context.Context, key string, enabled bool, value *string, notes, updatedBy string) bool {
	if err := repo.UpdateFlag(ctx, s.DB, key, enabled, value, notes, updatedBy); err != nil {
		log.Warn().Err(err).Str("flag", key).Msg("flag update failed")
		return false
	}
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return true
}

// RefreshAll reloads every flag into the cache in one query and resets the
// TTL clock for all entries. On store error the existing cache is kept.
func (s *FlagService) RefreshAll(ctx context.Context) ([]domain.Flag, error) {
	flags, err := repo.ListFlags(ctx, s.DB)
	if err != nil {
		log.Warn().Err(err).Msg("flag refresh failed")
		return nil, err
	}
	now := s.now()
	s.mu.Lock()
	s.cache = make(map[string]cachedFlag, len(flags))
	for i := range flags {
		f := flags[i]
		s.cache[f.Key] = cachedFlag{flag: &f, fetchedAt: now}
	}
	s.mu.Unlock()
	return flags, nil
}

// lookup serves a flag from cache when fresh, refetching on miss or expiry.
// The bool result is false only on a store error with no cached row to fall
// back on; absent flags are cached as nil rows so repeated checks of an
// unprovisioned key do not hammer the store.
func (s *FlagService) lookup(ctx context.Context, key string) (*domain.Flag, bool) {
	now := s.now()

	s.mu.Lock()
	if c, ok := s.cache[key]; ok && now.Sub(c.fetchedAt) < s.TTL {
		s.mu.Unlock()
		return c.flag, true
	}
	s.mu.Unlock()

	f, err := repo.GetFlag(ctx, s.DB, key)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.store(key, nil, now)
			return nil, true
		}
		log.Warn().Err(err).Str("flag", key).Msg("flag read failed, serving default")
		return nil, false
	}
	s.store(key, f, now)
	return f, true
}

func (s *FlagService) store(key string, f *domain.Flag, now time.Time) {
	s.mu.Lock()
	s.cache[key] = cachedFlag{flag: f, fetchedAt: now}
	s.mu.Unlock()
}

func (s *FlagService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}
