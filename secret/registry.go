package secret

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ProviderFactory creates a Provider from its config section.
type ProviderFactory func(cfg map[string]any) (Provider, error)

// Registry maps provider names from configuration to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// NewDefaultRegistry creates a registry with the file and env providers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("file", func(cfg map[string]any) (Provider, error) {
		dir, _ := cfg["dir"].(string)
		return FileProvider{Dir: dir}, nil
	})
	_ = r.Register("env", func(cfg map[string]any) (Provider, error) {
		prefix, _ := cfg["prefix"].(string)
		return EnvProvider{Prefix: prefix}, nil
	})
	return r
}

// Register adds a factory. Names are unique.
func (r *Registry) Register(name string, factory ProviderFactory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return errors.New("secret: provider name and factory are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("secret: provider %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates the named provider.
func (r *Registry) Create(name string, cfg map[string]any) (Provider, error) {
	name = strings.TrimSpace(name)

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return factory(cfg)
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
