package app

import (
	"context"
	"sync"

	"github.com/operately/pagedata/internal/adapters/cache"
	"github.com/operately/pagedata/internal/logging"
	"github.com/operately/pagedata/internal/revalidate"
)

type subscriber interface {
	Subscribe(key string, handler revalidate.Handler) (unsubscribe func())
}

// Subscriptions keeps at most one revalidation handler per key on the bus,
// so loading a page many times does not register it many times.
type Subscriptions struct {
	bus          subscriber
	unsubscribes map[string]func()
	lock         sync.Mutex
}

func NewSubscriptions(bus subscriber) *Subscriptions {
	return &Subscriptions{
		bus:          bus,
		unsubscribes: make(map[string]func()),
	}
}

// Watch subscribes handler to key unless key is already watched.
// Reports whether a new subscription was made.
func (s *Subscriptions) Watch(key string, handler revalidate.Handler) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.unsubscribes[key]; ok {
		return false
	}
	s.unsubscribes[key] = s.bus.Subscribe(key, handler)
	return true
}

func (s *Subscriptions) Unwatch(key string) {
	s.lock.Lock()
	unsubscribe, ok := s.unsubscribes[key]
	delete(s.unsubscribes, key)
	s.lock.Unlock()

	if ok {
		unsubscribe()
	}
}

// Clear removes every subscription made through s
func (s *Subscriptions) Clear() {
	s.lock.Lock()
	unsubscribes := s.unsubscribes
	s.unsubscribes = make(map[string]func())
	s.lock.Unlock()

	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
}

func (s *Subscriptions) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.unsubscribes)
}

// refetchOnStale returns a handler that loads the page again, bypassing the cache.
// Pages no longer cached are left alone, so evicted pages do not come back on their own.
func refetchOnStale[T any](key string, isCached func() bool, load func(ctx context.Context, forceRefresh bool) (T, error)) revalidate.Handler {
	return func(ctx context.Context) {
		if !isCached() {
			logging.FromContext(ctx).InfoContext(ctx, "Skipping refresh of evicted page data", "key", key)
			return
		}
		_, err := load(ctx, true)
		if err != nil {
			// NOTE: The fetch functions handle their own error reporting
			logging.FromContext(ctx).WarnContext(ctx, "Failed to refresh stale page data", "key", key, "error", err.Error())
		}
	}
}

// unwatchOnEvict stops watching keys the loader dropped
func unwatchOnEvict[T any](loader *cache.Loader[T], subscriptions *Subscriptions) {
	loader.OnEvict(subscriptions.Unwatch)
}
