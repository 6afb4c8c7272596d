package cache

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownPolicy = errors.New("unknown cache policy")

type Policy string

const (
	PolicyUnbounded Policy = "unbounded"
	PolicyTTL       Policy = "ttl"
	PolicyLRU       Policy = "lru"
)

func ParsePolicy(raw string) (Policy, error) {
	switch Policy(raw) {
	case PolicyUnbounded, PolicyTTL, PolicyLRU:
		return Policy(raw), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownPolicy, raw)
}

type StoreSettings struct {
	Policy     Policy
	TTL        time.Duration
	MaxEntries int
}

// NewStore builds the store selected by settings.Policy.
// stop must be called when the store is no longer used.
func NewStore[T any](settings StoreSettings) (Store[T], func(), error) {
	noop := func() {}

	switch settings.Policy {
	case PolicyUnbounded, "":
		return NewBasicStore[T](), noop, nil
	case PolicyTTL:
		if settings.TTL <= 0 {
			return nil, nil, fmt.Errorf("ttl must be positive, got %s", settings.TTL)
		}
		store, stop := NewTTLStore[T](settings.TTL)
		return store, stop, nil
	case PolicyLRU:
		store, err := NewLRUStore[T](settings.MaxEntries)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	}

	return nil, nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, settings.Policy)
}
