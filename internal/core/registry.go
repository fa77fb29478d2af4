package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]EntityDefinition)
	registryMu sync.RWMutex
)

// Register adds an entity definition to the registry.
// Panics if an entity with the same key is already registered.
func Register(def EntityDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if def.Info.Key == "" {
		panic("entity key is required")
	}
	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("entity already registered: %s", def.Info.Key))
	}

	registry[def.Info.Key] = def
}

// Get returns an entity definition by key.
// Returns false if not found.
func Get(key string) (EntityDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered entity definitions sorted by key.
func All() []EntityDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntityDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// Keys returns the registered entity keys sorted alphabetically.
func Keys() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EntityCount returns the number of registered entities.
func EntityCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered entities.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]EntityDefinition)
}

// UpserterRegistry maps entity keys to the Upserter for their remote
// collection. It is built once by the driver and passed to the Service.
type UpserterRegistry struct {
	upserters map[string]Upserter
}

// NewUpserterRegistry returns an empty registry.
func NewUpserterRegistry() *UpserterRegistry {
	return &UpserterRegistry{upserters: make(map[string]Upserter)}
}

// Set binds an Upserter to an entity key, replacing any previous binding.
func (r *UpserterRegistry) Set(entity string, u Upserter) {
	r.upserters[entity] = u
}

// Lookup returns the Upserter bound to entity.
func (r *UpserterRegistry) Lookup(entity string) (Upserter, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no upserter for %s", ErrUnknownEntity, entity)
	}
	u, ok := r.upserters[entity]
	if !ok {
		return nil, fmt.Errorf("%w: no upserter for %s", ErrUnknownEntity, entity)
	}
	return u, nil
}
