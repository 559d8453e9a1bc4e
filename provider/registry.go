package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a provider from its config.
type Factory func(cfg Config) (Provider, error)

// Registry maps provider names to factories. Names are case-insensitive.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
// Returns an error if the name is already registered.
func (r *Registry) Register(name string, f Factory) error {
	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[key]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.factories[key] = f
	return nil
}

// New builds the provider registered under name.
func (r *Registry) New(name string, cfg Config) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported provider type: %s", name)
	}
	return f(cfg)
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin returns a registry holding the anthropic and openai providers.
func Builtin() *Registry {
	r := NewRegistry()
	_ = r.Register("anthropic", func(cfg Config) (Provider, error) {
		p, err := NewAnthropicProvider(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	_ = r.Register("openai", func(cfg Config) (Provider, error) {
		p, err := NewOpenAIProvider(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	return r
}
