package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/agentflow/pkg/ports"
)

var (
	// ErrInvalidModelRef is returned for references not shaped "provider:model".
	ErrInvalidModelRef = errors.New("invalid model reference")
	// ErrUnknownProvider is returned when no factory is registered for a provider.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrMissingAPIKey is returned when a hosted provider has no credentials.
	ErrMissingAPIKey = errors.New("api key not configured")
	// ErrEmptyResponse is returned when a provider answers without text.
	ErrEmptyResponse = errors.New("empty response content")
)

// Provider names known to DefaultRegistry.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderEcho      = "echo"
)

// ModelRef identifies a model at a provider.
type ModelRef struct {
	Provider string `mapstructure:"provider" json:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" json:"model" yaml:"model"`
}

// String renders the reference as "provider:model".
func (r ModelRef) String() string {
	return r.Provider + ":" + r.Model
}

// ParseModelRef parses "provider:model". Only the first colon separates the
// two parts, so model names may contain colons.
func ParseModelRef(s string) (ModelRef, error) {
	provider, model, ok := strings.Cut(strings.TrimSpace(s), ":")
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.TrimSpace(model)
	if !ok || provider == "" || model == "" {
		return ModelRef{}, fmt.Errorf("%w: %q (want provider:model)", ErrInvalidModelRef, s)
	}
	return ModelRef{Provider: provider, Model: model}, nil
}

// Factory builds a completer for a model of one provider.
type Factory func(model string) (ports.Completer, error)

// Registry maps provider names to factories.
// Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Keys carries provider credentials.
type Keys struct {
	Anthropic string
	OpenAI    string
}

// DefaultRegistry registers the anthropic, openai and echo providers.
// Hosted providers fail with ErrMissingAPIKey at build time when their key is empty.
func DefaultRegistry(keys Keys) *Registry {
	r := NewRegistry()
	r.Register(ProviderAnthropic, func(model string) (ports.Completer, error) {
		if keys.Anthropic == "" {
			return nil, fmt.Errorf("%s: %w", ProviderAnthropic, ErrMissingAPIKey)
		}
		return NewAnthropic(keys.Anthropic, model), nil
	})
	r.Register(ProviderOpenAI, func(model string) (ports.Completer, error) {
		if keys.OpenAI == "" {
			return nil, fmt.Errorf("%s: %w", ProviderOpenAI, ErrMissingAPIKey)
		}
		return NewOpenAI(keys.OpenAI, model), nil
	})
	r.Register(ProviderEcho, func(model string) (ports.Completer, error) {
		return NewEcho(model), nil
	})
	return r
}

// Register adds or replaces the factory for provider.
func (r *Registry) Register(provider string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(provider)] = f
}

// Has reports whether provider is registered.
func (r *Registry) Has(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(provider)]
	return ok
}

// Providers returns the registered provider names, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds a completer for ref.
func (r *Registry) New(ref ModelRef) (ports.Completer, error) {
	r.mu.RLock()
	f, ok := r.factories[ref.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, ref.Provider)
	}
	return f(ref.Model)
}
