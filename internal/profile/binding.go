package profile

import (
	"sync"

	"profile_server/internal/batch"
	"profile_server/platform/config"
)

// MethodName is the name the aggregation is registered under.
const MethodName = "batch"

// Binding registers the aggregation method on first use and hands out the
// same method afterwards.
type Binding struct {
	once     sync.Once
	registry *batch.Registry
	cfg      config.ServerCacheConfig
	method   *batch.Method
}

// NewBinding creates an unbound binding. Nothing is registered until
// Method is first called.
func NewBinding(registry *batch.Registry, cfg config.ServerCacheConfig) *Binding {
	return &Binding{registry: registry, cfg: cfg}
}

// Method returns the registered method, registering it if needed.
func (b *Binding) Method() *batch.Method {
	b.once.Do(func() {
		b.method, _ = b.registry.Ensure(MethodName, KeyFor, PolicyFrom(b.cfg))
	})
	return b.method
}

// PolicyFrom reads the cache policy from configuration.
func PolicyFrom(cfg config.ServerCacheConfig) batch.Policy {
	return batch.Policy{
		ExpiresIn:       cfg.GetServerCacheExpiresIn(),
		GenerateTimeout: cfg.GetServerCacheGenerateTimeout(),
		StaleFor:        cfg.GetServerCacheStaleFor(),
	}
}
