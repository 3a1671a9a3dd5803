// Package services – CompletionService
//
// This file implements the completion orchestrator: the component that
// composes flags, circuit breaker, idempotency ledger and incident log to
// execute a logical "get an AI completion" against an ordered list of
// providers, with retry, circuit-awareness, and a guaranteed-safe fallback
// result.
//
// The orchestrator never returns an error to its caller. Every path
// terminates in a normal CompletionResult: failure is communicated through
// the Err field and the degraded "fallback" provider tag. Side effects
// (breaker writes, incident writes) are best-effort and never gate the
// returned value.
//
// Observability: Complete is OpenTelemetry-instrumented; the span carries
// the chosen provider and the attempt count.
package services

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/callwise/go-failover-backend/internal/domain"
)

const (
	// DefaultMaxRetries is the per-provider retry budget beyond the first
	// attempt (so two attempts per provider by default).
	DefaultMaxRetries = 1

	// DefaultFallbackContent is the fixed, safe reply returned whenever no
	// provider could be used.
	DefaultFallbackContent = "I'm sorry, I can't generate a response right now. Please try again in a few minutes."

	errAIDisabled   = "ai is disabled"
	errAllFailed    = "All providers failed"
	errDuplicateKey = "operation already processed"
)

var (
	completionAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_attempts_total",
			Help: "Provider completion attempts by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	completionFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "completion_fallbacks_total",
			Help: "Completions answered with the canned fallback content.",
		},
	)
)

func init() {
	prometheus.MustRegister(completionAttempts, completionFallbacks)
}

// Message is one chat turn handed to a completion provider.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// ProviderReply is a successful provider response.
type ProviderReply struct {
	Content string
	Model   string
}

// CompletionProvider is the black-box asynchronous operation the
// orchestrator drives: call the provider, get a reply or an error. Adapters
// live in internal/providers.
type CompletionProvider interface {
	// Name returns the provider identity used for flags and circuits.
	Name() domain.Provider
	// Complete performs one completion attempt. It must honor ctx
	// cancellation: an expired deadline is treated as attempt failure.
	Complete(ctx context.Context, msgs []Message) (*ProviderReply, error)
}

// CompletionOptions tunes a single Complete call. The zero value defers to
// the service defaults.
type CompletionOptions struct {
	// PreferredProvider overrides the flag-configured preference.
	PreferredProvider domain.Provider
	// MaxRetries overrides the per-provider retry budget; nil keeps the
	// service default.
	MaxRetries *int
	// Timeout bounds each individual provider attempt. Zero means no
	// per-attempt deadline beyond the request context.
	Timeout time.Duration
	// IdempotencyKey, when set, dedups the logical operation in the
	// ai_completions namespace.
	IdempotencyKey string
}

// CompletionResult is the orchestrator's reply envelope. Provider is
// "fallback" when no real provider produced the content; Err then explains
// why, but the envelope is still a normal return value.
type CompletionResult struct {
	Content  string          `json:"content"`
	Provider domain.Provider `json:"provider"`
	Model    string          `json:"model,omitempty"`
	Err      string          `json:"error,omitempty"`
	Replayed bool            `json:"replayed,omitempty"`
}

// AIStatus is a read-only aggregate for the operator UI: master flag,
// preferred provider, per-provider enablement, and voice availability.
// The fields are independent reads with no ordering guarantee beyond
// "approximately simultaneous".
type AIStatus struct {
	Enabled           bool            `json:"enabled"`
	PreferredProvider domain.Provider `json:"preferred_provider"`
	Providers         map[string]bool `json:"providers"`
	VoiceAvailable    bool            `json:"voice_available"`
}

// CompletionService orchestrates completion calls across providers.
type CompletionService struct {
	Flags       *FlagService
	Breaker     *CircuitBreakerService
	Incidents   *IncidentService
	Idempotency *IdempotencyService

	// Providers in the fixed fallback order. The preferred provider is
	// moved to the front at call time; relative order of the rest is kept.
	Providers []CompletionProvider

	// DefaultProvider is the hard default when neither options nor flags
	// name a preference.
	DefaultProvider domain.Provider

	// MaxRetries is the per-provider retry budget beyond the first attempt.
	MaxRetries int

	// DefaultTimeout bounds each provider attempt when the call options do
	// not set one. Zero leaves attempts bound only by the request context.
	DefaultTimeout time.Duration

	// FallbackContent overrides DefaultFallbackContent when non-empty.
	FallbackContent string
}

// NewCompletionService constructs the orchestrator over the given ordered
// providers.
func NewCompletionService(flags *FlagService, breaker *CircuitBreakerService, incidents *IncidentService, idem *IdempotencyService, providers []CompletionProvider) *CompletionService {
	return &CompletionService{
		Flags:           flags,
		Breaker:         breaker,
		Incidents:       incidents,
		Idempotency:     idem,
		Providers:       providers,
		DefaultProvider: domain.ProviderOpenAI,
		MaxRetries:      DefaultMaxRetries,
	}
}

// Complete executes the logical completion operation. It consults the
// master flag, builds the provider attempt order, skips disabled providers
// and open circuits, retries within each provider before failing over, and
// always returns a well-formed result.
func (s *CompletionService) Complete(ctx context.Context, messages []Message, opts CompletionOptions) CompletionResult {
	tr := otel.Tracer("services/CompletionService")
	ctx, span := tr.Start(ctx, "Complete",
		trace.WithAttributes(attribute.Int("messages", len(messages))),
	)
	defer span.End()

	// 1) Master gate: no provider is contacted when AI is off.
	if !s.Flags.IsEnabled(ctx, FlagAIEnabled, true) {
		return CompletionResult{
			Content:  s.fallback(),
			Provider: domain.ProviderFallback,
			Err:      errAIDisabled,
		}
	}

	// Replay short-circuit: a recorded key means the work already happened.
	if opts.IdempotencyKey != "" && s.Idempotency != nil &&
		s.Idempotency.Exists(ctx, domain.NamespaceCompletions, opts.IdempotencyKey) {
		span.SetAttributes(attribute.Bool("replayed", true))
		return CompletionResult{
			Provider: domain.ProviderFallback,
			Err:      errDuplicateKey,
			Replayed: true,
		}
	}

	retries := s.MaxRetries
	if opts.MaxRetries != nil && *opts.MaxRetries >= 0 {
		retries = *opts.MaxRetries
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.DefaultTimeout
	}

	claimed := false
	for _, p := range s.attemptOrder(ctx, opts.PreferredProvider) {
		name := p.Name()

		// a) Individual enable flag.
		if !s.Flags.IsEnabled(ctx, ProviderFlag(name), true) {
			log.Debug().Str("provider", string(name)).Msg("provider disabled by flag, skipping")
			continue
		}
		// b) Circuit gate. A skip is not a failure: nothing is recorded.
		if s.Breaker.IsCircuitOpen(ctx, name, domain.ComponentAPI) {
			log.Debug().Str("provider", string(name)).Msg("circuit open, skipping provider")
			completionAttempts.WithLabelValues(string(name), "skipped").Inc()
			continue
		}

		// The operation is claimed once the first real attempt launches.
		if opts.IdempotencyKey != "" && s.Idempotency != nil && !claimed {
			s.Idempotency.CheckAndSet(ctx, domain.NamespaceCompletions, opts.IdempotencyKey, "", 0)
			claimed = true
		}

		// c) Up to retries+1 sequential attempts against this provider.
		var lastErr error
		for attempt := 0; attempt <= retries; attempt++ {
			reply, err := s.attempt(ctx, p, messages, timeout)
			if err == nil {
				s.Breaker.RecordSuccess(ctx, name, domain.ComponentAPI)
				completionAttempts.WithLabelValues(string(name), "success").Inc()
				span.SetAttributes(
					attribute.String("provider", string(name)),
					attribute.Int("attempt", attempt+1),
				)
				return CompletionResult{
					Content:  reply.Content,
					Provider: name,
					Model:    reply.Model,
				}
			}
			lastErr = err
			log.Debug().Err(err).Str("provider", string(name)).Int("attempt", attempt+1).
				Msg("completion attempt failed")
		}

		// Only exhaustion is reported to the breaker; intermediate retry
		// failures stay local.
		s.Breaker.RecordFailure(ctx, name, domain.ComponentAPI, lastErr)
		completionAttempts.WithLabelValues(string(name), "exhausted").Inc()
		log.Warn().Err(lastErr).Str("provider", string(name)).Int("attempts", retries+1).
			Msg("provider exhausted, failing over")
	}

	// 5) Everyone skipped or exhausted.
	completionFallbacks.Inc()
	if s.Incidents != nil {
		s.Incidents.Log(ctx, domain.SeverityCritical, "ai/orchestrator",
			"All providers failed, returning fallback",
			map[string]any{"message_count": len(messages)})
	}
	return CompletionResult{
		Content:  s.fallback(),
		Provider: domain.ProviderFallback,
		Err:      errAllFailed,
	}
}

// Status reports the operator-facing aggregate: master flag, resolved
// preference, per-provider enablement, and voice availability (voice flag
// AND the twilio/voice circuit not open).
func (s *CompletionService) Status(ctx context.Context) AIStatus {
	st := AIStatus{
		Enabled:           s.Flags.IsEnabled(ctx, FlagAIEnabled, true),
		PreferredProvider: s.preferred(ctx, ""),
		Providers:         make(map[string]bool, len(s.Providers)),
	}
	for _, p := range s.Providers {
		name := p.Name()
		st.Providers[string(name)] = s.Flags.IsEnabled(ctx, ProviderFlag(name), true)
	}
	st.VoiceAvailable = s.Flags.IsEnabled(ctx, FlagVoiceEnabled, false) &&
		!s.Breaker.IsCircuitOpen(ctx, domain.ProviderTwilio, domain.ComponentVoice)
	return st
}

// attempt runs a single provider call, bounding it with the per-attempt
// timeout when one is configured. Deadline expiry cancels the in-flight
// call and counts as a failure for this attempt.
func (s *CompletionService) attempt(ctx context.Context, p CompletionProvider, messages []Message, timeout time.Duration) (*ProviderReply, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.Complete(ctx, messages)
}

// attemptOrder resolves the preferred provider (explicit option, then flag
// value, then hard default) and returns the providers with the preferred
// one first and the remaining fixed fallback order preserved.
func (s *CompletionService) attemptOrder(ctx context.Context, explicit domain.Provider) []CompletionProvider {
	pref := s.preferred(ctx, explicit)
	ordered := make([]CompletionProvider, 0, len(s.Providers))
	for _, p := range s.Providers {
		if p.Name() == pref {
			ordered = append(ordered, p)
			break
		}
	}
	for _, p := range s.Providers {
		if p.Name() != pref {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

func (s *CompletionService) preferred(ctx context.Context, explicit domain.Provider) domain.Provider {
	if explicit != "" && domain.ValidProvider(explicit) {
		return explicit
	}
	if v := s.Flags.Value(ctx, FlagAIPreferred); v != nil && domain.ValidProvider(domain.Provider(*v)) {
		return domain.Provider(*v)
	}
	if s.DefaultProvider != "" {
		return s.DefaultProvider
	}
	return domain.ProviderOpenAI
}

func (s *CompletionService) fallback() string {
	if s.FallbackContent != "" {
		return s.FallbackContent
	}
	return DefaultFallbackContent
}
