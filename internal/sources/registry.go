package sources

import (
	"fmt"
	"sync"

	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/contracts"
)

// Registry manages the set of registered source adapters
type Registry struct {
	adapters map[string]contracts.SourceAdapter
	mu       sync.RWMutex
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]contracts.SourceAdapter),
	}
}

// Register adds an adapter to the registry
func (r *Registry) Register(adapter contracts.SourceAdapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := adapter.Key()
	if _, exists := r.adapters[key]; exists {
		return fmt.Errorf("adapter for source %s is already registered", key)
	}

	r.adapters[key] = adapter
	return nil
}

// Get retrieves an adapter by source key
func (r *Registry) Get(key string) (contracts.SourceAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, exists := r.adapters[key]
	return adapter, exists
}

// All returns every registered adapter
func (r *Registry) All() []contracts.SourceAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapters := make([]contracts.SourceAdapter, 0, len(r.adapters))
	for _, adapter := range r.adapters {
		adapters = append(adapters, adapter)
	}
	return adapters
}

// Count returns the number of registered adapters
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.adapters)
}
