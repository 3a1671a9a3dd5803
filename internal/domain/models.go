// Package domain defines the persistence models for feature flags, circuit
// records, and incidents. These types are mapped with GORM and form the core
// data layer of the resilience backend.
package domain

import "time"

// Flag scopes.
const (
	FlagScopeGlobal      = "global"
	FlagScopeEnvironment = "environment"
	FlagScopeTenant      = "tenant"
)

// Flag is a named switch controlling whether a capability or provider is
// enabled. Flags are provisioned ahead of time (seed or migration), mutated
// only through an explicit set operation, and never deleted: disabling keeps
// the row with Enabled=false.
//
// Fields:
//   - Key: stable unique identifier (e.g. "ai_enabled").
//   - Enabled: the boolean switch consumers branch on.
//   - Value: optional string payload (e.g. a preferred provider name).
//   - Scope: global/environment/tenant (enforced by DB constraint).
//   - Notes: free-form operator annotation.
//   - UpdatedBy: who last changed the flag.
type Flag struct {
	Key       string    `json:"key"        gorm:"type:varchar(64);primaryKey"`
	Enabled   bool      `json:"enabled"    gorm:"not null"`
	Value     *string   `json:"value,omitempty" gorm:"type:varchar(255)"`
	Scope     string    `json:"scope"      gorm:"type:varchar(16);not null;default:'global';check:scope IN ('global','environment','tenant')"`
	Notes     string    `json:"notes"      gorm:"type:text"`
	UpdatedBy string    `json:"updated_by" gorm:"type:varchar(64)"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Flag.
func (Flag) TableName() string { return "flags" }

// Observability labels for CircuitRecord.State.
const (
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateDown     = "down"
)

// Gate states for CircuitRecord.Circuit.
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half_open"
)

// CircuitRecord is the persisted health/circuit state for one
// (provider, component) pair. One row per pair, created lazily on first
// write; mutated exclusively by the breaker's success/failure/transition
// operations; never deleted.
//
// Invariants:
//   - Circuit == "open" implies CooldownUntil is set (and was in the future
//     at the moment of opening).
//   - Circuit == "closed" implies FailureCount == 0 (closing always resets).
type CircuitRecord struct {
	ID            string     `json:"id"            gorm:"type:char(36);primaryKey"`
	Provider      Provider   `json:"provider"      gorm:"type:varchar(32);not null;uniqueIndex:ux_circuit_provider_component,priority:1"`
	Component     Component  `json:"component"     gorm:"type:varchar(32);not null;uniqueIndex:ux_circuit_provider_component,priority:2"`
	State         string     `json:"state"         gorm:"type:varchar(16);not null;default:'healthy';check:state IN ('healthy','degraded','down')"`
	Circuit       string     `json:"circuit"       gorm:"type:varchar(16);not null;default:'closed';check:circuit IN ('closed','open','half_open')"`
	FailureCount  int        `json:"failure_count" gorm:"not null;default:0"`
	SuccessCount  int        `json:"success_count" gorm:"not null;default:0"`
	LastError     string     `json:"last_error"    gorm:"type:text"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty" gorm:"index"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName returns the database table name for CircuitRecord.
func (CircuitRecord) TableName() string { return "circuit_records" }

// Incident severities.
const (
	SeverityInfo     = "info"
	SeverityWarn     = "warn"
	SeverityCritical = "critical"
)

// ValidSeverity reports whether s is a known incident severity.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityInfo, SeverityWarn, SeverityCritical:
		return true
	}
	return false
}

// Incident is an append-only audit record of a failure or anomaly, written
// by the breaker and the orchestrator. Rows are never mutated or deleted by
// this layer.
//
// Fields:
//   - Severity: info/warn/critical (enforced by DB constraint).
//   - Source: free-form origin tag, conventionally "provider/component"
//     (e.g. "openai/api") or a subsystem name.
//   - Meta: structured JSON payload (counts, cooldowns, identifiers).
type Incident struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Severity  string    `json:"severity"   gorm:"type:varchar(16);not null;index;check:severity IN ('info','warn','critical')"`
	Source    string    `json:"source"     gorm:"type:varchar(128);not null;index"`
	Message   string    `json:"message"    gorm:"type:text;not null"`
	Meta      string    `json:"meta"       gorm:"type:text"` // JSON-encoded payload
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for Incident.
func (Incident) TableName() string { return "incidents" }
