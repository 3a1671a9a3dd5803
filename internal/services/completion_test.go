package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/callwise/go-failover-backend/internal/domain"
	"github.com/callwise/go-failover-backend/internal/repo"
)

// scriptedProvider fails its first failN calls and then succeeds with a
// fixed reply. Call counting makes attempt ordering assertable.
type scriptedProvider struct {
	name  domain.Provider
	failN int
	calls int
}

func (p *scriptedProvider) Name() domain.Provider { return p.name }

func (p *scriptedProvider) Complete(ctx context.Context, msgs []Message) (*ProviderReply, error) {
	p.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.calls <= p.failN {
		return nil, fmt.Errorf("%s: scripted failure %d", p.name, p.calls)
	}
	return &ProviderReply{Content: "reply from " + string(p.name), Model: string(p.name) + "-model"}, nil
}

func newCompletionDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("completion_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Flag{}, &domain.CircuitRecord{}, &domain.Incident{}, &domain.IdempotencyKey{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newOrchestrator wires a full service stack over one in-test store with
// two scripted providers (openai first, anthropic second).
func newOrchestrator(t *testing.T, db *gorm.DB) (*CompletionService, *scriptedProvider, *scriptedProvider) {
	t.Helper()

	openai := &scriptedProvider{name: domain.ProviderOpenAI}
	anthropic := &scriptedProvider{name: domain.ProviderAnthropic}

	incidents := NewIncidentService(db)
	svc := NewCompletionService(
		NewFlagService(db, time.Minute),
		NewCircuitBreakerService(db, incidents),
		incidents,
		NewIdempotencyService(db, time.Hour),
		[]CompletionProvider{openai, anthropic},
	)
	return svc, openai, anthropic
}

func setFlagRow(t *testing.T, db *gorm.DB, key string, enabled bool, value *string) {
	t.Helper()
	if err := repo.SeedFlag(context.Background(), db, domain.Flag{Key: key, Enabled: enabled, Value: value}); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}

func userMessages() []Message {
	return []Message{{Role: "user", Content: "hello"}}
}

func TestComplete_MasterFlagOffReturnsFallbackWithoutCalls(t *testing.T) {
	db := newCompletionDB(t)
	svc, openai, anthropic := newOrchestrator(t, db)
	setFlagRow(t, db, FlagAIEnabled, false, nil)

	res := svc.Complete(context.Background(), userMessages(), CompletionOptions{})

	if res.Provider != domain.ProviderFallback || res.Err != errAIDisabled {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Content != DefaultFallbackContent {
		t.Fatalf("expected canned fallback content, got %q", res.Content)
	}
	if openai.calls != 0 || anthropic.calls != 0 {
		t.Fatalf("no provider may be contacted when AI is off")
	}
	// The gate is not a provider failure: no circuit bookkeeping.
	if recs, _ := repo.ListCircuits(context.Background(), db); len(recs) != 0 {
		t.Fatalf("disabled gate must not touch circuits: %+v", recs)
	}
}

func TestComplete_PreferredProviderGoesFirst(t *testing.T) {
	db := newCompletionDB(t)
	svc, openai, anthropic := newOrchestrator(t, db)

	res := svc.Complete(context.Background(), userMessages(), CompletionOptions{
		PreferredProvider: domain.ProviderAnthropic,
	})

	if res.Provider != domain.ProviderAnthropic || res.Err != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if anthropic.calls != 1 || openai.calls != 0 {
		t.Fatalf("preferred provider must absorb the call: openai=%d anthropic=%d", openai.calls, anthropic.calls)
	}
	if res.Model != "anthropic-model" || res.Content != "reply from anthropic" {
		t.Fatalf("reply not propagated: %+v", res)
	}
}

func TestComplete_FlagValueSetsPreference(t *testing.T) {
	db := newCompletionDB(t)
	svc, openai, anthropic := newOrchestrator(t, db)
	setFlagRow(t, db, FlagAIPreferred, true, strptrC("anthropic"))

	res := svc.Complete(context.Background(), userMessages(), CompletionOptions{})

	if res.Provider != domain.ProviderAnthropic {
		t.Fatalf("flag preference ignored: %+v", res)
	}
	if anthropic.calls != 1 || openai.calls != 0 {
		t.Fatalf("calls: openai=%d anthropic=%d", openai.calls, anthropic.calls)
	}
}

func TestComplete_DisabledProviderIsSkippedSilently(t *testing.T) {
	db := newCompletionDB(t)
	svc, openai, anthropic := newOrchestrator(t, db)
	setFlagRow(t, db, FlagOpenAIEnabled, false, nil)

	res := svc.Complete(context.Background(), userMessages(), CompletionOptions{})

	if res.Provider != domain.ProviderAnthropic {
		t.Fatalf("expected failover to anthropic: %+v", res)
	}
	if openai.calls != 0 || anthropic.calls != 1 {
		t.Fatalf("calls: openai=%d anthropic=%d", openai.calls, anthropic.calls)
	}
	// A flag skip is not a failure: openai's circuit stays untouched.
	if _, err := repo.GetCircuit(context.Background(), db, domain.ProviderOpenAI, domain.ComponentAPI); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("flag skip must not create circuit state, err=%v", err)
	}
}

func TestComplete_OpenCircuitSkipsWithoutFailureBookkeeping(t *testing.T) {
	db := newCompletionDB(t)
	svc, openai, anthropic := newOrchestrator(t, db)
	ctx := context.Background()

	// Open openai's circuit the way production does: threshold failures.
	for i := 0; i < FailureThreshold; i++ {
		svc.Breaker.RecordFailure(ctx, domain.ProviderOpenAI, domain.ComponentAPI, errors.New("outage"))
	}
	before, err := repo.GetCircuit(ctx, db, domain.ProviderOpenAI, domain.ComponentAPI)
	if err != nil {
		t.Fatalf("get circuit: %v", err)
	}

	res := svc.Complete(ctx, userMessages(), CompletionOptions{})

	if res.Provider != domain.ProviderAnthropic {
		t.Fatalf("expected failover around open circuit: %+v", res)
	}
	if openai.calls != 0 || anthropic.calls != 1 {
		t.Fatalf("calls: openai=%d anthropic=%d", openai.calls, anthropic.calls)
	}
	after, err := repo.GetCircuit(ctx, db, domain.ProviderOpenAI, domain.ComponentAPI)
	if err != nil {
		t.Fatalf("get circuit: %v", err)
	}
	if after.FailureCount != before.FailureCount {
		t.Fatalf("a circuit skip must not nudge the failure count: %d → %d", before.FailureCount, after.FailureCount)
	}
}

func TestComplete_RetriesWithinProviderBeforeFailingOver(t *testing.T) {
	db := newCompletionDB(t)
	svc, openai, anthropic := newOrchestrator(t, db)
	openai.failN = 1 // first attempt fails, retry succeeds

	res := svc.Complete(context.Background(), userMessages(), CompletionOptions{})

	if res.Provider != domain.ProviderOpenAI || res.Err != "" {
		t.Fatalf("retry should rescue the preferred provider: %+v", res)
	}
	if openai.calls != 2 || anthropic.calls != 0 {
		t.Fatalf("calls: openai=%d anthropic=%d", openai.calls, anthropic.calls)
	}
	// An intermediate retry failure rescued by a success leaves the
	// circuit closed with a zeroed count.
	rec, err := repo.GetCircuit(context.Background(), db, domain.ProviderOpenAI, domain.ComponentAPI)
	if err != nil {
		t.Fatalf("get circuit: %v", err)
	}
	if rec.Circuit != domain.CircuitClosed || rec.FailureCount != 0 {
		t.Fatalf("rescued provider must end closed/zeroed: %+v", rec)
	}
}

func TestComplete_ExhaustionRecordsOneFailureAndFailsOver(t *testing.T) {
	db := newCompletionDB(t)
	svc, openai, anthropic := newOrchestrator(t, db)
	openai.failN = 10 // exhausts its retry budget

	res := svc.Complete(context.Background(), userMessages(), CompletionOptions{})

	if res.Provider != domain.ProviderAnthropic || res.Err != "" {
		t.Fatalf("expected anthropic rescue: %+v", res)
	}
	if openai.calls != DefaultMaxRetries+1 || anthropic.calls != 1 {
		t.Fatalf("calls: openai=%d anthropic=%d (want %d/1)", openai.calls, anthropic.calls, DefaultMaxRetries+1)
	}
	// Exhaustion counts once against the breaker, not once per attempt.
	rec, err := repo.GetCircuit(context.Background(), db, domain.ProviderOpenAI, domain.ComponentAPI)
	if err != nil {
		t.Fatalf("get circuit: %v", err)
	}
	if rec.FailureCount != 1 {
		t.Fatalf("exhaustion must record exactly one failure, got %d", rec.FailureCount)
	}
}

func TestComplete_AllProvidersFailReturnsFallbackAndCriticalIncident(t *testing.T) {
	db := newCompletionDB(t)
	svc, openai, anthropic := newOrchestrator(t, db)
	openai.failN = 10
	anthropic.failN = 10

	res := svc.Complete(context.Background(), userMessages(), CompletionOptions{})

	if res.Provider != domain.ProviderFallback || res.Err != errAllFailed {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Content != DefaultFallbackContent {
		t.Fatalf("fallback content: %q", res.Content)
	}

	n, err := repo.CountIncidents(context.Background(), db, repo.IncidentFilter{
		Severity: domain.SeverityCritical, Source: "ai/orchestrator",
	})
	if err != nil {
		t.Fatalf("count incidents: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one orchestrator critical incident, got %d", n)
	}

	// Both providers took a breaker hit.
	for _, p := range []domain.Provider{domain.ProviderOpenAI, domain.ProviderAnthropic} {
		rec, err := repo.GetCircuit(context.Background(), db, p, domain.ComponentAPI)
		if err != nil {
			t.Fatalf("get circuit %s: %v", p, err)
		}
		if rec.FailureCount != 1 {
			t.Fatalf("%s failure count: %d", p, rec.FailureCount)
		}
	}
}

func TestComplete_MaxRetriesOptionOverridesBudget(t *testing.T) {
	db := newCompletionDB(t)
	svc, openai, _ := newOrchestrator(t, db)
	openai.failN = 10

	zero := 0
	svc.Complete(context.Background(), userMessages(), CompletionOptions{MaxRetries: &zero})

	if openai.calls != 1 {
		t.Fatalf("max_retries=0 means a single attempt, got %d", openai.calls)
	}
}

func TestComplete_IdempotencyKeyReplaysShortCircuit(t *testing.T) {
	db := newCompletionDB(t)
	svc, openai, _ := newOrchestrator(t, db)

	first := svc.Complete(context.Background(), userMessages(), CompletionOptions{IdempotencyKey: "op-9"})
	if first.Provider != domain.ProviderOpenAI || first.Replayed {
		t.Fatalf("first call: %+v", first)
	}

	second := svc.Complete(context.Background(), userMessages(), CompletionOptions{IdempotencyKey: "op-9"})
	if !second.Replayed || second.Err != errDuplicateKey {
		t.Fatalf("second call must replay: %+v", second)
	}
	if openai.calls != 1 {
		t.Fatalf("replay must not re-contact providers, calls=%d", openai.calls)
	}

	// A different key is fresh work.
	third := svc.Complete(context.Background(), userMessages(), CompletionOptions{IdempotencyKey: "op-10"})
	if third.Replayed || openai.calls != 2 {
		t.Fatalf("distinct key must execute: %+v calls=%d", third, openai.calls)
	}
}

func TestStatus_AggregatesFlagsAndVoiceCircuit(t *testing.T) {
	db := newCompletionDB(t)
	svc, _, _ := newOrchestrator(t, db)
	ctx := context.Background()
	setFlagRow(t, db, FlagVoiceEnabled, true, nil)
	setFlagRow(t, db, FlagAnthropicEnabled, false, nil)

	st := svc.Status(ctx)
	if !st.Enabled {
		t.Fatalf("master flag defaults on")
	}
	if st.PreferredProvider != domain.ProviderOpenAI {
		t.Fatalf("hard default preference: %q", st.PreferredProvider)
	}
	if !st.Providers["openai"] || st.Providers["anthropic"] {
		t.Fatalf("provider map: %+v", st.Providers)
	}
	if !st.VoiceAvailable {
		t.Fatalf("voice flag on + closed circuit must be available")
	}

	// Opening twilio/voice flips availability even with the flag on.
	for i := 0; i < FailureThreshold; i++ {
		svc.Breaker.RecordFailure(ctx, domain.ProviderTwilio, domain.ComponentVoice, errors.New("carrier down"))
	}
	if svc.Status(ctx).VoiceAvailable {
		t.Fatalf("open voice circuit must mask availability")
	}
}

func TestStatus_VoiceDefaultsOff(t *testing.T) {
	db := newCompletionDB(t)
	svc, _, _ := newOrchestrator(t, db)

	if svc.Status(context.Background()).VoiceAvailable {
		t.Fatalf("voice availability must default to off without the flag")
	}
}

// strptrC avoids clashing with the repo test helper of the same shape.
func strptrC(s string) *string { return &s }
