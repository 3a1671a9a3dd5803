// Package services defines the business logic of the resilience layer:
// feature flags, the circuit breaker registry, the idempotency ledger, the
// incident log, and the completion orchestrator. This file centralizes
// common service-level error values so that they can be consistently
// returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer. Note that nothing below the
// orchestrator's public surface ever propagates an error to transport code:
// every failure mode degrades to a typed result with an error field.
package services

import "errors"

var (
	// ErrFlagNotFound indicates that the requested flag has not been
	// provisioned. Flags are created by seed/migration, never ad hoc.
	ErrFlagNotFound = errors.New("flag not found")

	// ErrUnknownProvider is returned when a provider outside the closed
	// set reaches a service boundary.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnknownComponent is returned when a component outside the closed
	// set reaches a service boundary.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrCircuitNotFound indicates that no circuit record exists yet for
	// the requested (provider, component) pair.
	ErrCircuitNotFound = errors.New("circuit record not found")
)
