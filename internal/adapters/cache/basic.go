package cache

type basicStore[T any] struct {
	entries map[string]Entry[T]
}

func (s *basicStore[T]) get(key string) (Entry[T], bool) {
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *basicStore[T]) set(key string, entry Entry[T]) {
	s.entries[key] = entry
}

func (s *basicStore[T]) delete(key string) {
	delete(s.entries, key)
}

func (s *basicStore[T]) purge() {
	clear(s.entries)
}

func (s *basicStore[T]) len() int {
	return len(s.entries)
}

// Entries are never dropped without a delete or purge
func (s *basicStore[T]) onEvict(fn func(key string)) {}

// NewBasicStore returns an unbounded store without expiry.
// Entries live until they are invalidated or the process exits.
func NewBasicStore[T any]() Store[T] {
	return &basicStore[T]{
		entries: make(map[string]Entry[T]),
	}
}
