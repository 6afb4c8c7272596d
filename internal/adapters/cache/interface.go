package cache

// Entry is the most recent successfully fetched value for a key.
// Version starts at 1 on first insert and grows by one on every replace.
type Entry[T any] struct {
	Key     string
	Value   T
	Version uint64
}

// Store holds entries for a KeyedCache.
// Implementations are not required to be safe for concurrent use; KeyedCache serializes access.
type Store[T any] interface {
	get(key string) (Entry[T], bool)
	set(key string, entry Entry[T])
	delete(key string)
	purge()
	len() int
	// onEvict sets the function called with the key of an entry the store dropped on its own,
	// through expiry or capacity. delete and purge are not reported.
	onEvict(fn func(key string))
}
