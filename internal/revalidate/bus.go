// Package revalidate lets code that changed remote data announce which cached pages went stale,
// so whoever shows those pages can fetch them again.
package revalidate

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/operately/pagedata/internal/logging"
)

// Handler is called when the data behind a key may be stale.
// By convention it refetches the key with a forced refresh.
type Handler func(ctx context.Context)

type subscription struct {
	handler Handler
	active  atomic.Bool
}

type Bus struct {
	subscriptions map[string][]*subscription
	observers     map[string][]*subscription
	lock          sync.Mutex
}

func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string][]*subscription),
		observers:     make(map[string][]*subscription),
	}
}

// Subscribe registers handler for key and returns a function that removes it again.
// The returned function may be called any number of times.
func (b *Bus) Subscribe(key string, handler Handler) (unsubscribe func()) {
	return b.add(b.subscriptions, key, handler)
}

// Observe registers handler for key like Subscribe, but it is called after every subscriber
// of the key has returned. Observers therefore see the refetched page.
func (b *Bus) Observe(key string, handler Handler) (unsubscribe func()) {
	return b.add(b.observers, key, handler)
}

func (b *Bus) add(handlers map[string][]*subscription, key string, handler Handler) func() {
	sub := &subscription{handler: handler}
	sub.active.Store(true)

	b.lock.Lock()
	handlers[key] = append(handlers[key], sub)
	b.lock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			b.remove(handlers, key, sub)
		})
	}
}

func (b *Bus) remove(handlers map[string][]*subscription, key string, sub *subscription) {
	b.lock.Lock()
	defer b.lock.Unlock()

	remaining := slices.DeleteFunc(handlers[key], func(s *subscription) bool {
		return s == sub
	})
	if len(remaining) == 0 {
		delete(handlers, key)
		return
	}
	handlers[key] = remaining
}

// Notify calls every handler subscribed to key, in subscription order, and then every observer
// of key, before returning.
// Handlers may subscribe or unsubscribe while being notified.
// Returns the number of handlers called.
func (b *Bus) Notify(ctx context.Context, key string) int {
	b.lock.Lock()
	subs := slices.Clone(b.subscriptions[key])
	observers := slices.Clone(b.observers[key])
	b.lock.Unlock()

	logging.FromContext(ctx).InfoContext(ctx, "Notifying stale page data", "key", key, "subscribers", len(subs), "observers", len(observers))

	called := 0
	for _, sub := range slices.Concat(subs, observers) {
		// Unsubscribed by an earlier handler in this round
		if !sub.active.Load() {
			continue
		}
		sub.handler(ctx)
		called++
	}
	return called
}

// NotifyPrefix notifies every key starting with prefix.
// Keys are notified in lexical order.
func (b *Bus) NotifyPrefix(ctx context.Context, prefix string) int {
	called := 0
	for _, key := range b.Keys() {
		if strings.HasPrefix(key, prefix) {
			called += b.Notify(ctx, key)
		}
	}
	return called
}

// Keys returns the keys with at least one subscriber or observer, sorted.
func (b *Bus) Keys() []string {
	b.lock.Lock()
	defer b.lock.Unlock()

	keys := make([]string, 0, len(b.subscriptions)+len(b.observers))
	for key := range b.subscriptions {
		keys = append(keys, key)
	}
	for key := range b.observers {
		if _, ok := b.subscriptions[key]; !ok {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}

func (b *Bus) Subscribers(key string) int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return len(b.subscriptions[key])
}

func (b *Bus) Observers(key string) int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return len(b.observers[key])
}
