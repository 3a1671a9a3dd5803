// Package domain defines the core persistence models for the resilience
// layer. This file holds the dedup ledger row used to claim logical
// operations exactly once.
package domain

import "time"

// Idempotency namespaces. Each namespace documents its own deterministic
// key-construction rule at the call site (see services.IdempotencyService
// key builders).
const (
	NamespaceCallsStatus   = "calls_status"   // inbound status-callback dedup
	NamespaceNotifications = "notifications"  // outbound notification dedup
	NamespaceJobs          = "jobs"           // background-job dedup
	NamespaceCompletions   = "ai_completions" // HTTP replay guard
)

// IdempotencyKey marks a logical operation as claimed. The row is created
// exactly once per (namespace, key) via an insert that fails on uniqueness
// violation; that failure is the dedup signal, not an error. Expired rows
// are garbage-collected by a periodic sweep, not enforced synchronously.
type IdempotencyKey struct {
	ID          string     `gorm:"type:char(36);primaryKey"`
	Namespace   string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_idem_namespace_key,priority:1"`
	Key         string     `gorm:"type:varchar(255);not null;uniqueIndex:ux_idem_namespace_key,priority:2"`
	PayloadHash string     `gorm:"type:varchar(64)"` // optional, detects key reuse with a different payload
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime"`
	ExpiresAt   *time.Time `gorm:"index"` // nil means the claim never expires
}

// TableName implements the GORM tabler interface.
func (IdempotencyKey) TableName() string { return "idempotency_keys" }
