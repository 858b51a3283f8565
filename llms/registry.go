package llms

import "sync"

// Registry caches one Client instance per key (typically a setting or agent
// name), so concurrent callers configured with the same key share a single
// underlying HTTP client and connection pool.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]Client
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]Client)}
}

// GetOrCreate returns the cached Client for key, calling factory to build
// one the first time key is seen.
func (r *Registry) GetOrCreate(key string, factory func() (Client, error)) (Client, error) {
	r.mu.RLock()
	if c, ok := r.instances[key]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.instances[key]; ok {
		return c, nil
	}
	c, err := factory()
	if err != nil {
		return nil, err
	}
	r.instances[key] = c
	return c, nil
}

// ClearKey evicts a cached instance, forcing the next GetOrCreate to rebuild
// it (used when a setting's credentials or model changes).
func (r *Registry) ClearKey(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, key)
}

// Set installs an already-constructed Client under key, overwriting any
// prior entry. Used by UpdateAll-style hot-swap facilities.
func (r *Registry) Set(key string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[key] = c
}

// Keys returns every currently cached instance key.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.instances))
	for k := range r.instances {
		keys = append(keys, k)
	}
	return keys
}
