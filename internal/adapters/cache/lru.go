package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

type lruStore[T any] struct {
	cache   *lru.Cache[string, Entry[T]]
	evicted func(key string)

	// Set while delete or purge run, which also call the eviction callback
	removing bool
}

func (s *lruStore[T]) get(key string) (Entry[T], bool) {
	return s.cache.Get(key)
}

func (s *lruStore[T]) set(key string, entry Entry[T]) {
	s.cache.Add(key, entry)
}

func (s *lruStore[T]) delete(key string) {
	s.removing = true
	defer func() { s.removing = false }()
	s.cache.Remove(key)
}

func (s *lruStore[T]) purge() {
	s.removing = true
	defer func() { s.removing = false }()
	s.cache.Purge()
}

func (s *lruStore[T]) onEvict(fn func(key string)) {
	s.evicted = fn
}

func (s *lruStore[T]) len() int {
	return s.cache.Len()
}

// NewLRUStore returns a store holding at most maxEntries entries.
// The least recently used entry is evicted when a new key is inserted into a full store.
func NewLRUStore[T any](maxEntries int) (Store[T], error) {
	store := &lruStore[T]{}
	cache, err := lru.NewWithEvict(maxEntries, func(key string, _ Entry[T]) {
		if store.removing || store.evicted == nil {
			return
		}
		store.evicted(key)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	store.cache = cache
	return store, nil
}
