package batch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryEnsureIsIdempotent(t *testing.T) {
	reg := NewRegistry(NewMemoryStore(), &countingFetcher{}, testLogger())

	first, created := reg.Ensure("batch", userKey, defaultPolicy)
	require.True(t, created)

	second, created := reg.Ensure("batch", userKey, Policy{ExpiresIn: time.Second, GenerateTimeout: time.Second})
	assert.False(t, created)
	assert.Same(t, first, second)
	assert.Equal(t, defaultPolicy, second.Policy())

	other, created := reg.Ensure("other", userKey, defaultPolicy)
	assert.True(t, created)
	assert.NotSame(t, first, other)
	assert.Equal(t, "other", other.Name())
}

func TestRegistryEnsureConcurrent(t *testing.T) {
	reg := NewRegistry(NewMemoryStore(), &countingFetcher{}, testLogger())

	const workers = 32
	var created atomic.Int32
	methods := make([]*Method, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, ok := reg.Ensure("batch", userKey, defaultPolicy)
			if ok {
				created.Add(1)
			}
			methods[i] = m
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	for _, m := range methods {
		assert.Same(t, methods[0], m)
	}
}
