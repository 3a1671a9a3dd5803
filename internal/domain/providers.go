// Package domain defines the core persistence models for the resilience
// layer. These types are used by GORM for database schema mapping and are
// shared across the repository and service layers.
//
// This file defines the closed set of providers and components the circuit
// breaker tracks. Provider/component pairs are validated at the boundary;
// unknown pairs are rejected rather than lazily accepted as free-form
// strings.
package domain

// Provider identifies an external dependency the breaker can gate.
type Provider string

// Known providers.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderTwilio    Provider = "twilio"
	ProviderDatabase  Provider = "database"
	ProviderWorker    Provider = "worker"

	// ProviderFallback is not a real provider: it tags completion results
	// that were served from the canned fallback content.
	ProviderFallback Provider = "fallback"
)

// Component identifies the facet of a provider being gated (a provider can
// be healthy for one component and down for another).
type Component string

// Known components.
const (
	ComponentAPI      Component = "api"
	ComponentVoice    Component = "voice"
	ComponentDatabase Component = "database"
	ComponentJobs     Component = "jobs"
)

// ValidProvider reports whether p names a provider the breaker may track.
// ProviderFallback is intentionally excluded: it never has a circuit.
func ValidProvider(p Provider) bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderTwilio, ProviderDatabase, ProviderWorker:
		return true
	}
	return false
}

// ValidComponent reports whether c names a known component.
func ValidComponent(c Component) bool {
	switch c {
	case ComponentAPI, ComponentVoice, ComponentDatabase, ComponentJobs:
		return true
	}
	return false
}

// CompletionProviders is the fixed failover order for AI completions: the
// preferred provider (when set) is moved to the front, the rest keep this
// order.
var CompletionProviders = []Provider{ProviderOpenAI, ProviderAnthropic}
