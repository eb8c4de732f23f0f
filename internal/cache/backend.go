package cache

import (
	"context"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Backend is the set of primitives every storage driver must provide.
// Implementations must be safe for concurrent use by multiple goroutines.
//
// Keys reach the backend already validated and namespaced. The ttl passed to
// Set is either a positive whole number of seconds or zero, meaning the entry
// never expires; the facade never asks a backend to store an expired entry.
type Backend[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	// Delete must succeed when the key is absent.
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	// Clear removes every entry the backend manages. Whether that is one
	// namespace or the whole store is up to the driver.
	Clear(ctx context.Context) error
}

// BatchGetter is implemented by backends with a native multi-key read.
// The returned map holds only the keys that were found.
type BatchGetter[V any] interface {
	GetMulti(ctx context.Context, keys []string) (map[string]V, error)
}

// BatchSetter is implemented by backends with a native multi-key write.
// All items share ttl, with the same meaning as in Backend.Set.
type BatchSetter[V any] interface {
	SetMulti(ctx context.Context, items *orderedmap.OrderedMap[string, V], ttl time.Duration) error
}

// BatchDeleter is implemented by backends with a native multi-key delete.
type BatchDeleter interface {
	DeleteMulti(ctx context.Context, keys []string) error
}

// Purger is implemented by backends that keep expired entries on disk until
// asked to drop them. Purge returns the number of entries removed.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}
