package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type ttlStore[T any] struct {
	cache *ttlcache.Cache[string, Entry[T]]
}

func (s *ttlStore[T]) get(key string) (Entry[T], bool) {
	item := s.cache.Get(key)
	if item == nil {
		return Entry[T]{}, false
	}
	return item.Value(), true
}

func (s *ttlStore[T]) set(key string, entry Entry[T]) {
	s.cache.Set(key, entry, ttlcache.DefaultTTL)
}

func (s *ttlStore[T]) delete(key string) {
	s.cache.Delete(key)
}

func (s *ttlStore[T]) purge() {
	s.cache.DeleteAll()
}

func (s *ttlStore[T]) len() int {
	return s.cache.Len()
}

// Eviction callbacks run on their own goroutine, so the key may have been written again since.
func (s *ttlStore[T]) onEvict(fn func(key string)) {
	s.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, Entry[T]]) {
		if reason == ttlcache.EvictionReasonDeleted {
			return
		}
		if s.cache.Has(item.Key()) {
			return
		}
		fn(item.Key())
	})
}

// NewTTLStore returns a store where entries expire ttl after they were last written.
// Reads do not extend the lifetime of an entry. Call stop to end the expiry goroutine.
func NewTTLStore[T any](ttl time.Duration) (store Store[T], stop func()) {
	cache := ttlcache.New[string, Entry[T]](
		ttlcache.WithTTL[string, Entry[T]](ttl),
		ttlcache.WithDisableTouchOnHit[string, Entry[T]](),
	)
	go cache.Start()
	return &ttlStore[T]{cache: cache}, cache.Stop
}
