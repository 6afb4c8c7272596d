package cache

import (
	"strings"
	"sync"
)

// KeyedCache maps cache keys to the latest fetched value and its version.
type KeyedCache[T any] struct {
	store Store[T]
	lock  sync.Mutex
}

func NewKeyedCache[T any](store Store[T]) *KeyedCache[T] {
	return &KeyedCache[T]{store: store}
}

func (c *KeyedCache[T]) Get(key string) (Entry[T], bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.store.get(key)
}

// set replaces the value for key and bumps its version.
func (c *KeyedCache[T]) set(key string, value T) Entry[T] {
	c.lock.Lock()
	defer c.lock.Unlock()

	version := uint64(1)
	if old, ok := c.store.get(key); ok {
		version = old.Version + 1
	}

	entry := Entry[T]{Key: key, Value: value, Version: version}
	c.store.set(key, entry)
	return entry
}

func (c *KeyedCache[T]) Invalidate(key string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.store.delete(key)
}

func (c *KeyedCache[T]) Clear() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.store.purge()
}

func (c *KeyedCache[T]) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.store.len()
}

// Key joins a version tag, a page name and its parameters into a cache key,
// e.g. Key("v3", "PersonalWorkMap", "42") == "v3-PersonalWorkMap-42".
// Bumping the version tag abandons entries written with an older payload shape.
func Key(version string, page string, params ...string) string {
	parts := make([]string, 0, 2+len(params))
	parts = append(parts, version, page)
	parts = append(parts, params...)
	return strings.Join(parts, "-")
}
