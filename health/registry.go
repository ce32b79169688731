package health

import (
	"fmt"
	"sync"
)

// Registry holds the health records of all registered services. Reads return
// copies; every write replaces a record atomically under the lock.
type Registry struct {
	mu      sync.RWMutex
	records map[string]ServiceHealth
	order   []string // registration order
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]ServiceHealth)}
}

// Add creates the initial record for reg.
func (r *Registry) Add(reg Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[reg.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateService, reg.Name)
	}
	r.records[reg.Name] = NewServiceHealth(reg)
	r.order = append(r.order, reg.Name)
	return nil
}

// Get returns a copy of the named record.
func (r *Registry) Get(name string) (ServiceHealth, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.records[name]
	if !ok {
		return ServiceHealth{}, fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	return h.Clone(), nil
}

// Update replaces the named record with fn(current) and returns the previous
// and new values. fn runs under the write lock and must not block.
func (r *Registry) Update(name string, fn func(ServiceHealth) ServiceHealth) (prev, next ServiceHealth, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.records[name]
	if !ok {
		return ServiceHealth{}, ServiceHealth{}, fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	prev = h.Clone()
	next = fn(h.Clone())
	r.records[name] = next
	return prev, next.Clone(), nil
}

// Names returns service names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// All returns copies of every record in registration order.
func (r *Registry) All() []ServiceHealth {
	return r.filter(func(ServiceHealth) bool { return true })
}

// Unhealthy returns copies of every record whose status is not healthy.
func (r *Registry) Unhealthy() []ServiceHealth {
	return r.filter(func(h ServiceHealth) bool { return !h.Healthy() })
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) filter(keep func(ServiceHealth) bool) []ServiceHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ServiceHealth, 0, len(r.order))
	for _, name := range r.order {
		if h := r.records[name]; keep(h) {
			out = append(out, h.Clone())
		}
	}
	return out
}
