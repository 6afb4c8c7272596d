package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/operately/pagedata/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrInvalidKey = errors.New("invalid cache key")
	ErrFetchPanic = errors.New("fetch function panicked")
)

type Fetcher[T any] func(ctx context.Context) (T, error)

type FetchOption func(*fetchOptions)

type fetchOptions struct {
	forceRefresh bool
}

// WithForceRefresh bypasses a cached entry and fetches again.
// A fetch already in flight for the key is joined instead of started twice.
func WithForceRefresh(forceRefresh bool) FetchOption {
	return func(o *fetchOptions) {
		o.forceRefresh = forceRefresh
	}
}

type call[T any] struct {
	done    chan struct{}
	value   T
	err     error
	waiters int

	// Set when the key was invalidated or the loader cleared while the fetch ran.
	// The result still reaches the waiters but is not stored.
	detached bool
}

// Loader is the single entry point for reading page data through a KeyedCache.
// It runs at most one fetch per key at a time and only writes the cache on success.
type Loader[T any] struct {
	name  string
	cache *KeyedCache[T]

	calls map[string]*call[T]
	lock  sync.Mutex

	evictListeners []func(key string)
	listenersLock  sync.RWMutex
}

func NewLoader[T any](name string, store Store[T]) *Loader[T] {
	l := &Loader[T]{
		name:  name,
		cache: NewKeyedCache(store),
		calls: make(map[string]*call[T]),
	}
	store.onEvict(l.evicted)
	return l
}

func (l *Loader[T]) Name() string {
	return l.name
}

func (l *Loader[T]) Get(key string) (Entry[T], bool) {
	return l.cache.Get(key)
}

// Invalidate drops the entry for key. A fetch in flight for key is not stored when it completes.
func (l *Loader[T]) Invalidate(key string) {
	l.lock.Lock()
	if c, ok := l.calls[key]; ok {
		c.detached = true
		delete(l.calls, key)
	}
	l.cache.Invalidate(key)
	l.lock.Unlock()

	l.evicted(key)
}

// Clear drops every cached entry, e.g. on logout.
// Fetches in flight are not stored when they complete. Evict listeners are not called.
func (l *Loader[T]) Clear() {
	l.lock.Lock()
	defer l.lock.Unlock()

	for key, c := range l.calls {
		c.detached = true
		delete(l.calls, key)
	}
	l.cache.Clear()
}

// OnEvict registers fn to be called with the key of every entry that expires, is pushed out
// by the store's capacity, or is invalidated.
// fn may be called while the loader is locked and must not call back into the loader.
func (l *Loader[T]) OnEvict(fn func(key string)) {
	l.listenersLock.Lock()
	defer l.listenersLock.Unlock()

	l.evictListeners = append(l.evictListeners, fn)
}

func (l *Loader[T]) evicted(key string) {
	l.listenersLock.RLock()
	listeners := slices.Clone(l.evictListeners)
	l.listenersLock.RUnlock()

	for _, fn := range listeners {
		fn(key)
	}
}

func (l *Loader[T]) Len() int {
	return l.cache.Len()
}

// FetchOrUse returns the cached value for key, or runs fetch and caches its result.
//
// Concurrent callers for the same key share one fetch and receive the same value or error.
// A failed fetch leaves the cache untouched. If ctx ends while waiting, ctx.Err() is returned,
// but the fetch keeps running and still stores its result.
func (l *Loader[T]) FetchOrUse(ctx context.Context, key string, fetch Fetcher[T], opts ...FetchOption) (T, error) {
	var empty T
	if key == "" {
		return empty, ErrInvalidKey
	}

	options := fetchOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	logger := logging.FromContext(ctx).With("cacheName", l.name, "key", key)

	l.lock.Lock()
	if !options.forceRefresh {
		if entry, ok := l.cache.Get(key); ok {
			l.lock.Unlock()
			recordLookup(ctx, l.name, "hit")
			logger.InfoContext(ctx, "Loading page data", "cache", "hit", "version", entry.Version)
			return entry.Value, nil
		}
	}

	if c, ok := l.calls[key]; ok {
		c.waiters++
		l.lock.Unlock()
		recordLookup(ctx, l.name, "coalesced")
		logger.InfoContext(ctx, "Loading page data", "cache", "coalesced", "forceRefresh", options.forceRefresh)
		return l.wait(ctx, c)
	}

	c := &call[T]{done: make(chan struct{}), waiters: 1}
	l.calls[key] = c
	l.lock.Unlock()

	recordLookup(ctx, l.name, "miss")
	logger.InfoContext(ctx, "Loading page data", "cache", "miss", "forceRefresh", options.forceRefresh)

	go l.run(context.WithoutCancel(ctx), key, fetch, c)

	return l.wait(ctx, c)
}

func (l *Loader[T]) run(ctx context.Context, key string, fetch Fetcher[T], c *call[T]) {
	start := time.Now()
	value, err := safeFetch(ctx, fetch)

	attributes := metric.WithAttributes(
		attribute.String("cache", l.name),
		attribute.Bool("success", err == nil),
	)
	metrics.fetchDuration.Record(ctx, time.Since(start).Seconds(), attributes)

	l.lock.Lock()
	detached := c.detached
	if err != nil {
		c.err = err
	} else {
		c.value = value
		if !detached {
			l.cache.set(key, value)
		}
	}
	if !detached {
		delete(l.calls, key)
	}
	l.lock.Unlock()

	if detached && err == nil {
		logging.FromContext(ctx).InfoContext(ctx, "Discarded page data fetched before invalidation", "cacheName", l.name, "key", key)
	}

	if err != nil {
		metrics.fetchErrorCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache", l.name)))
		logging.FromContext(ctx).WarnContext(ctx, "Failed to fetch page data", "cacheName", l.name, "key", key, "error", err.Error())
	}

	close(c.done)
}

func (l *Loader[T]) wait(ctx context.Context, c *call[T]) (T, error) {
	var empty T
	select {
	case <-c.done:
		if c.err != nil {
			return empty, c.err
		}
		return c.value, nil
	case <-ctx.Done():
		return empty, ctx.Err()
	}
}

// waiters reports how many callers are attached to the in-flight fetch for key.
func (l *Loader[T]) waiters(key string) int {
	l.lock.Lock()
	defer l.lock.Unlock()

	c, ok := l.calls[key]
	if !ok {
		return 0
	}
	return c.waiters
}

func safeFetch[T any](ctx context.Context, fetch Fetcher[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var empty T
			value = empty
			err = fmt.Errorf("%w: %v", ErrFetchPanic, r)
		}
	}()
	return fetch(ctx)
}
