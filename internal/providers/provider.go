// Package providers implements the concrete adapters behind the
// orchestrator's provider interface. Each adapter wraps one external
// service with a small resty client; no provider SDK call happens outside
// this package.
//
// Adapters are transport-thin: they translate between the orchestrator's
// neutral message shape and the provider wire format, and surface every
// non-2xx or transport error as a plain error for the retry/breaker
// machinery to judge. They perform no retries of their own — retry policy
// belongs to the orchestrator.
package providers

import (
	"context"
	"fmt"

	"github.com/callwise/go-failover-backend/internal/domain"
)

// HealthChecker is implemented by adapters that can cheaply probe their
// upstream. Used by the deep health endpoint.
type HealthChecker interface {
	Name() domain.Provider
	HealthCheck(ctx context.Context) error
}

// statusError reports a non-2xx provider response.
func statusError(provider domain.Provider, status int, body string) error {
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Errorf("%s: unexpected status %d: %s", provider, status, body)
}
