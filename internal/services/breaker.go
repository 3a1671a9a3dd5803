// Package services – CircuitBreakerService
//
// This file implements the per-(provider, component) circuit breaker
// registry persisted through the shared store. The gate has three states
// (closed/open/half_open), with an observability label (healthy/degraded/
// down) updated alongside it.
//
// The registry never raises on read, and on write failures against the
// backing store it logs and proceeds: bookkeeping is fail-open and never
// blocks the caller's business operation on audit-trail durability.
//
// Concurrency: the read-then-write around a provider call is not atomic
// end to end (see IsCircuitOpen). The open→half_open flip is a conditional
// update guarded by the expected cooldown, which collapses concurrent
// readers to a single permitted trial; any remaining race degrades to one
// extra trial request or a close immediately followed by a reopen, both of
// which self-heal because cooldowns carry an absolute expiry.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/callwise/go-failover-backend/internal/domain"
	"github.com/callwise/go-failover-backend/internal/repo"
)

// Breaker tuning constants.
const (
	// FailureThreshold is the consecutive-failure count that opens a
	// closed circuit.
	FailureThreshold = 3

	// DownThreshold is the failure count at which the observability label
	// escalates from degraded to down.
	DownThreshold = 2 * FailureThreshold

	// Cooldown is the window an opened circuit refuses traffic.
	Cooldown = 5 * time.Minute

	// ExtendedCooldown is applied when a half-open trial fails: a probe
	// failure after a cooldown is a stronger signal than a first failure.
	ExtendedCooldown = 10 * time.Minute
)

// circuitTransitions counts gate transitions by destination state.
var circuitTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "circuit_transitions_total",
		Help: "Circuit breaker state transitions by provider, component and new state.",
	},
	[]string{"provider", "component", "to"},
)

func init() {
	prometheus.MustRegister(circuitTransitions)
}

// CircuitBreakerService owns all circuit records and is the only writer of
// circuit state. It emits incidents on open transitions.
type CircuitBreakerService struct {
	DB        *gorm.DB
	Incidents *IncidentService

	// Thresholds default to the package constants when zero.
	FailureThreshold int
	Cooldown         time.Duration
	ExtendedCooldown time.Duration

	// Clock is injectable so tests can control cooldown expiry.
	Clock func() time.Time
}

// NewCircuitBreakerService constructs a breaker registry with default
// thresholds.
func NewCircuitBreakerService(db *gorm.DB, incidents *IncidentService) *CircuitBreakerService {
	return &CircuitBreakerService{
		DB:               db,
		Incidents:        incidents,
		FailureThreshold: FailureThreshold,
		Cooldown:         Cooldown,
		ExtendedCooldown: ExtendedCooldown,
		Clock:            time.Now,
	}
}

// IsCircuitOpen reports whether traffic to (provider, component) must be
// refused. Reading an open circuit whose cooldown has elapsed flips it to
// half_open and permits exactly one trial (the conditional update makes
// concurrent readers lose the flip and stay blocked). It never returns an
// error: store failures and unknown records read as closed.
func (s *CircuitBreakerService) IsCircuitOpen(ctx context.Context, p domain.Provider, c domain.Component) bool {
	rec, err := repo.GetCircuit(ctx, s.DB, p, c)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			log.Warn().Err(err).Str("provider", string(p)).Str("component", string(c)).
				Msg("circuit read failed, treating as closed")
		}
		return false
	}

	now := s.now()
	switch rec.Circuit {
	case domain.CircuitOpen:
		if rec.CooldownUntil != nil && !now.Before(*rec.CooldownUntil) {
			won, err := repo.TransitionHalfOpen(ctx, s.DB, rec.ID, *rec.CooldownUntil, now)
			if err != nil {
				log.Warn().Err(err).Str("provider", string(p)).Str("component", string(c)).
					Msg("half-open transition failed, permitting trial anyway")
				return false
			}
			if won {
				circuitTransitions.WithLabelValues(string(p), string(c), domain.CircuitHalfOpen).Inc()
				return false
			}
			// Another caller claimed the trial slot.
			s.touchChecked(ctx, rec.ID, now)
			return true
		}
		s.touchChecked(ctx, rec.ID, now)
		return true
	default:
		// closed and half_open both permit traffic; half_open relies on
		// the single caller that won the flip being the trial.
		return false
	}
}

// RecordSuccess closes the circuit for (provider, component): failure count
// resets, cooldown and last error clear, the observability label returns to
// healthy, and the success counters are stamped. Safe to call from any
// state; close always wins over a stale open from an older failure.
func (s *CircuitBreakerService) RecordSuccess(ctx context.Context, p domain.Provider, c domain.Component) {
	rec, ok := s.fetchOrCreate(ctx, p, c)
	if !ok {
		return
	}
	now := s.now()
	reopening := rec.Circuit != domain.CircuitClosed

	rec.Circuit = domain.CircuitClosed
	rec.State = domain.StateHealthy
	rec.FailureCount = 0
	rec.SuccessCount++
	rec.LastError = ""
	rec.CooldownUntil = nil
	rec.LastSuccessAt = &now
	rec.LastCheckedAt = &now

	if err := repo.SaveCircuit(ctx, s.DB, rec); err != nil {
		log.Warn().Err(err).Str("provider", string(p)).Str("component", string(c)).
			Msg("circuit success write failed")
		return
	}
	if reopening {
		circuitTransitions.WithLabelValues(string(p), string(c), domain.CircuitClosed).Inc()
		log.Info().Str("provider", string(p)).Str("component", string(c)).
			Msg("circuit closed after successful trial")
	}
}

// RecordFailure increments the failure count for (provider, component) and
// applies the state machine:
//
//   - closed → open once the count reaches the failure threshold, with the
//     standard cooldown and a warn incident (the label becomes degraded, or
//     down at twice the threshold);
//   - half_open → open immediately with the extended cooldown and a
//     critical incident, regardless of the raw count;
//   - open → open: the count still increments (late-arriving responses) but
//     the cooldown is not extended further.
func (s *CircuitBreakerService) RecordFailure(ctx context.Context, p domain.Provider, c domain.Component, cause error) {
	rec, ok := s.fetchOrCreate(ctx, p, c)
	if !ok {
		return
	}
	now := s.now()
	wasHalfOpen := rec.Circuit == domain.CircuitHalfOpen
	wasOpen := rec.Circuit == domain.CircuitOpen

	rec.FailureCount++
	rec.LastCheckedAt = &now
	if cause != nil {
		rec.LastError = cause.Error()
	}
	if rec.FailureCount >= 2*s.threshold() {
		rec.State = domain.StateDown
	} else if rec.FailureCount >= s.threshold() {
		rec.State = domain.StateDegraded
	}

	switch {
	case wasHalfOpen:
		until := now.Add(s.extendedCooldown())
		rec.Circuit = domain.CircuitOpen
		rec.CooldownUntil = &until
		s.persistFailure(ctx, rec, p, c)
		circuitTransitions.WithLabelValues(string(p), string(c), domain.CircuitOpen).Inc()
		s.logIncident(ctx, domain.SeverityCritical, p, c,
			"circuit re-opened after failed half-open trial", rec)
	case wasOpen:
		// Cooldown stays as set by the transition that opened the gate.
		s.persistFailure(ctx, rec, p, c)
	case rec.FailureCount >= s.threshold():
		until := now.Add(s.cooldown())
		rec.Circuit = domain.CircuitOpen
		rec.CooldownUntil = &until
		s.persistFailure(ctx, rec, p, c)
		circuitTransitions.WithLabelValues(string(p), string(c), domain.CircuitOpen).Inc()
		s.logIncident(ctx, domain.SeverityWarn, p, c, "circuit opened", rec)
	default:
		s.persistFailure(ctx, rec, p, c)
	}
}

// ResetCircuit is the administrative escape hatch: it restores the record
// for (provider, component) to closed/healthy with zeroed failure count.
func (s *CircuitBreakerService) ResetCircuit(ctx context.Context, p domain.Provider, c domain.Component) error {
	if !domain.ValidProvider(p) {
		return ErrUnknownProvider
	}
	if !domain.ValidComponent(c) {
		return ErrUnknownComponent
	}
	rec, err := repo.GetCircuit(ctx, s.DB, p, c)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrCircuitNotFound
		}
		return err
	}
	now := s.now()
	rec.Circuit = domain.CircuitClosed
	rec.State = domain.StateHealthy
	rec.FailureCount = 0
	rec.LastError = ""
	rec.CooldownUntil = nil
	rec.LastCheckedAt = &now
	if err := repo.SaveCircuit(ctx, s.DB, rec); err != nil {
		return err
	}
	circuitTransitions.WithLabelValues(string(p), string(c), domain.CircuitClosed).Inc()
	log.Info().Str("provider", string(p)).Str("component", string(c)).Msg("circuit reset")
	return nil
}

// Snapshot returns every circuit record for status and operator views.
// A store error degrades to an empty list.
func (s *CircuitBreakerService) Snapshot(ctx context.Context) []domain.CircuitRecord {
	recs, err := repo.ListCircuits(ctx, s.DB)
	if err != nil {
		log.Warn().Err(err).Msg("circuit snapshot failed")
		return nil
	}
	return recs
}

// fetchOrCreate loads the record for the pair, lazily creating a fresh
// closed/healthy row on first write. Unknown pairs and store failures are
// logged and reported as not-ok (the caller proceeds without bookkeeping).
func (s *CircuitBreakerService) fetchOrCreate(ctx context.Context, p domain.Provider, c domain.Component) (*domain.CircuitRecord, bool) {
	if !domain.ValidProvider(p) || !domain.ValidComponent(c) {
		log.Error().Str("provider", string(p)).Str("component", string(c)).
			Msg("rejecting unknown circuit pair")
		return nil, false
	}
	rec, err := repo.GetCircuit(ctx, s.DB, p, c)
	if errors.Is(err, repo.ErrNotFound) {
		rec, err = repo.CreateCircuit(ctx, s.DB, p, c)
	}
	if err != nil {
		log.Warn().Err(err).Str("provider", string(p)).Str("component", string(c)).
			Msg("circuit record unavailable, skipping bookkeeping")
		return nil, false
	}
	return rec, true
}

// touchChecked stamps last_checked_at on gate checks that refuse traffic,
// so operator views show when a blocked pair was last asked for. Best-effort.
func (s *CircuitBreakerService) touchChecked(ctx context.Context, id string, now time.Time) {
	if err := repo.TouchChecked(ctx, s.DB, id, now); err != nil {
		log.Warn().Err(err).Msg("circuit check stamp failed")
	}
}

func (s *CircuitBreakerService) persistFailure(ctx context.Context, rec *domain.CircuitRecord, p domain.Provider, c domain.Component) {
	if err := repo.SaveCircuit(ctx, s.DB, rec); err != nil {
		log.Warn().Err(err).Str("provider", string(p)).Str("component", string(c)).
			Msg("circuit failure write failed")
	}
}

// logIncident records an open-transition incident carrying the failure
// count and computed cooldown. Best-effort.
func (s *CircuitBreakerService) logIncident(ctx context.Context, severity string, p domain.Provider, c domain.Component, message string, rec *domain.CircuitRecord) {
	if s.Incidents == nil {
		return
	}
	meta := map[string]any{
		"failure_count": rec.FailureCount,
		"last_error":    rec.LastError,
	}
	if rec.CooldownUntil != nil {
		meta["cooldown_until"] = rec.CooldownUntil.UTC().Format(time.RFC3339)
	}
	s.Incidents.Log(ctx, severity, string(p)+"/"+string(c), message, meta)
}

func (s *CircuitBreakerService) threshold() int {
	if s.FailureThreshold > 0 {
		return s.FailureThreshold
	}
	return FailureThreshold
}

func (s *CircuitBreakerService) cooldown() time.Duration {
	if s.Cooldown > 0 {
		return s.Cooldown
	}
	return Cooldown
}

func (s *CircuitBreakerService) extendedCooldown() time.Duration {
	if s.ExtendedCooldown > 0 {
		return s.ExtendedCooldown
	}
	return ExtendedCooldown
}

func (s *CircuitBreakerService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// marshalMeta is shared by incident writers; a failed encode degrades to
// the empty payload rather than blocking the write.
func marshalMeta(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(b)
}
