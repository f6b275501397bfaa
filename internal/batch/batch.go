// Package batch fetches a set of named sub-resources for a caller, merges
// them into one value and caches the merged value under a caller-derived key.
//
// Concurrent calls for the same key share one computation. Cached values
// younger than Policy.ExpiresIn are served without fetching. A fresh
// computation is bounded by Policy.GenerateTimeout; when it fails and a
// previous value is still retained (Policy.StaleFor), that value is served
// together with a Report describing the failure.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"profile_server/platform/apperr"
	"profile_server/platform/httpkit"
	"profile_server/platform/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Value maps a field name to its (nullable) value.
type Value map[string]*string

// Args carries what one invocation needs to reach the backing services.
type Args struct {
	Credentials httpkit.Credentials
	// Authorization is forwarded verbatim to the backing services.
	Authorization string
}

// KeyFunc derives the cache key for an invocation.
type KeyFunc func(Args) string

// Policy configures caching for a method.
type Policy struct {
	ExpiresIn       time.Duration
	GenerateTimeout time.Duration
	// StaleFor keeps expired entries around this long so they can be served
	// when regeneration fails. Zero disables stale fallback.
	StaleFor time.Duration
}

// Cached describes where a cache-sourced value came from.
type Cached struct {
	Stored time.Time
	// TTL is how long the value stays fresh. Zero for stale values.
	TTL time.Duration
}

// Report carries a non-fatal problem observed while producing a usable value.
type Report struct {
	Error error
}

// Outcome is the result of one invocation. Cached is nil for freshly
// computed values. Report may be set alongside a usable Value.
type Outcome struct {
	Value  Value
	Cached *Cached
	Report *Report
}

// FromCache reports whether the value was served from the store.
func (o *Outcome) FromCache() bool {
	return o != nil && o.Cached != nil
}

func (o *Outcome) clone() *Outcome {
	out := &Outcome{Report: o.Report}
	if o.Value != nil {
		out.Value = make(Value, len(o.Value))
		for k, v := range o.Value {
			if v != nil {
				s := *v
				out.Value[k] = &s
			} else {
				out.Value[k] = nil
			}
		}
	}
	if o.Cached != nil {
		c := *o.Cached
		out.Cached = &c
	}
	return out
}

// Method is a registered, cached batch capability.
type Method struct {
	name    string
	key     KeyFunc
	policy  Policy
	store   Store
	fetcher Fetcher
	log     *logger.Logger
	now     func() time.Time
	tracer  trace.Tracer
	group   singleflight.Group

	// versions counts drops per key. A computation that started before a
	// drop does not write its result back.
	mu       sync.Mutex
	versions map[string]uint64
}

// Name returns the registered method name.
func (m *Method) Name() string { return m.name }

// Policy returns the cache policy the method was registered with.
func (m *Method) Policy() Policy { return m.policy }

// Call resolves routes for args, from cache when possible. The returned
// outcome is owned by the caller. A non-nil error means no usable value.
func (m *Method) Call(ctx context.Context, args Args, routes Routes) (*Outcome, error) {
	key := m.key(args)
	if key == "" {
		return nil, apperr.Internal("empty batch cache key").WithOp("batch." + m.name)
	}

	base := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (any, error) {
		return m.resolve(base, key, args, routes)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Outcome).clone(), nil
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.KindUnavailable, "request cancelled", ctx.Err())
	}
}

// Drop removes the cached value for key. Computations already running for
// key still answer their callers but no longer populate the store.
func (m *Method) Drop(ctx context.Context, key string) error {
	m.mu.Lock()
	m.versions[key]++
	m.mu.Unlock()

	m.group.Forget(key)
	return m.store.Drop(ctx, m.storeKey(key))
}

// storeIfCurrent writes entry unless key was dropped after version was read.
// The lock is held across the write so a concurrent Drop removes it afterwards.
func (m *Method) storeIfCurrent(ctx context.Context, key string, version uint64, entry Entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[key] != version {
		return false, nil
	}
	return true, m.store.Set(ctx, m.storeKey(key), entry, m.policy.ExpiresIn+m.policy.StaleFor)
}

func (m *Method) version(key string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versions[key]
}

func (m *Method) storeKey(key string) string {
	return m.name + ":" + key
}

func (m *Method) resolve(ctx context.Context, key string, args Args, routes Routes) (*Outcome, error) {
	storeKey := m.storeKey(key)
	version := m.version(key)
	var report *Report

	entry, err := m.store.Get(ctx, storeKey)
	if err != nil {
		m.log.CacheError("get", storeKey, err)
		report = &Report{Error: err}
		entry = nil
	}

	var age time.Duration
	if entry != nil {
		age = m.now().Sub(entry.Stored)
		if age < m.policy.ExpiresIn {
			return &Outcome{
				Value:  entry.Value,
				Cached: &Cached{Stored: entry.Stored, TTL: m.policy.ExpiresIn - age},
			}, nil
		}
	}

	value, genErr := m.generateWithTimeout(ctx, args, routes)
	if genErr == nil {
		stored, err := m.storeIfCurrent(ctx, key, version, Entry{Value: value, Stored: m.now()})
		if err != nil {
			m.log.CacheError("set", storeKey, err)
			report = &Report{Error: err}
		}
		if !stored {
			m.log.Debug("batch result superseded by drop, not cached", "method", m.name, "key", storeKey)
		}
		return &Outcome{Value: value, Report: report}, nil
	}

	if entry != nil && age < m.policy.ExpiresIn+m.policy.StaleFor {
		return &Outcome{
			Value:  entry.Value,
			Cached: &Cached{Stored: entry.Stored},
			Report: &Report{Error: genErr},
		}, nil
	}

	return nil, genErr
}

func (m *Method) generateWithTimeout(ctx context.Context, args Args, routes Routes) (Value, error) {
	genCtx, cancel := context.WithTimeout(ctx, m.policy.GenerateTimeout)
	defer cancel()

	type result struct {
		value Value
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := m.generate(genCtx, args, routes)
		ch <- result{value: v, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return nil, m.timeoutError()
		}
		return r.value, r.err
	case <-genCtx.Done():
		return nil, m.timeoutError()
	}
}

func (m *Method) timeoutError() *apperr.Error {
	return apperr.Wrap(apperr.KindTimeout, "batch generation timed out", context.DeadlineExceeded).
		WithOp("batch." + m.name)
}

func (m *Method) generate(ctx context.Context, args Args, routes Routes) (Value, error) {
	ctx, span := m.tracer.Start(ctx, "batch.generate", trace.WithAttributes(
		attribute.String("batch.method", m.name),
		attribute.Int("batch.routes", len(routes)),
	))
	defer span.End()

	values := make([]*string, len(routes))
	g, gctx := errgroup.WithContext(ctx)
	for i, route := range routes {
		g.Go(func() error {
			v, err := m.fetcher.Fetch(gctx, args, route)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", route.Path, err)
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch fetch failed")
		return nil, err
	}

	out := make(Value, len(routes))
	for i, route := range routes {
		out[route.Field] = values[i]
	}
	return out, nil
}

func newMethod(name string, key KeyFunc, policy Policy, store Store, fetcher Fetcher, log *logger.Logger, now func() time.Time) *Method {
	return &Method{
		name:     name,
		key:      key,
		policy:   policy,
		store:    store,
		fetcher:  fetcher,
		log:      log,
		now:      now,
		tracer:   otel.Tracer("profile_server/internal/batch"),
		versions: make(map[string]uint64),
	}
}
