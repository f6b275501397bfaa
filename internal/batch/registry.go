package batch

import (
	"sync"
	"time"

	"profile_server/platform/logger"
)

// Registry holds the batch methods registered on a server. Methods share
// the registry's store and fetcher.
type Registry struct {
	mu      sync.Mutex
	methods map[string]*Method
	store   Store
	fetcher Fetcher
	log     *logger.Logger
	now     func() time.Time
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(store Store, fetcher Fetcher, log *logger.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		methods: make(map[string]*Method),
		store:   store,
		fetcher: fetcher,
		log:     log.Named("batch"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ensure returns the method registered under name, registering it with key
// and policy first if needed. created reports whether this call registered it.
// An existing registration keeps the key and policy it was first given.
func (r *Registry) Ensure(name string, key KeyFunc, policy Policy) (m *Method, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.methods[name]; ok {
		return existing, false
	}
	m = newMethod(name, key, policy, r.store, r.fetcher, r.log, r.now)
	r.methods[name] = m
	r.log.Info("batch method registered",
		"method", name,
		"expiresIn", policy.ExpiresIn.String(),
		"generateTimeout", policy.GenerateTimeout.String(),
		"staleFor", policy.StaleFor.String(),
	)
	return m, true
}
