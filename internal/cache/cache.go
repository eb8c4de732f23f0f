package cache

import (
	"context"
	"fmt"
)

// Options configures a Cache. Neither field can change once New returns.
type Options struct {
	// Namespace scopes every key handed to the backend as "namespace:key".
	// Empty leaves keys untouched.
	Namespace string
	// DefaultTTL applies to writes made with NoTTL. Leaving it unset means
	// such entries never expire.
	DefaultTTL TTL
}

// Cache is the contract every backend sits behind: it validates keys,
// resolves lifetimes and then delegates to the backend primitives.
// It keeps no state beyond its options and is safe for concurrent use as long
// as the backend is.
type Cache[V any] struct {
	backend   Backend[V]
	namespace string
	lifetime  Expiry
}

// New wraps backend. The default lifetime is resolved here, once, without
// falling back to any other default.
func New[V any](backend Backend[V], opts Options) (*Cache[V], error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", ErrInvalidArgument)
	}
	if err := validateNamespace(opts.Namespace); err != nil {
		return nil, err
	}
	lifetime, err := NormalizeTTL(opts.DefaultTTL, Expiry{}, false)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{backend: backend, namespace: opts.Namespace, lifetime: lifetime}, nil
}

// Namespace returns the namespace the cache was built with.
func (c *Cache[V]) Namespace() string { return c.namespace }

// DefaultLifetime returns the lifetime applied to writes made with NoTTL.
func (c *Cache[V]) DefaultLifetime() Expiry { return c.lifetime }

// Get returns the value stored under key, or def if there is none.
func (c *Cache[V]) Get(ctx context.Context, key string, def V) (V, error) {
	if err := ValidateKey(key); err != nil {
		var zero V
		return zero, err
	}
	v, ok, err := c.backend.Get(ctx, c.qualify(key))
	if err != nil {
		var zero V
		return zero, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// Set stores value under key. A lifetime that resolves to zero or fewer
// seconds deletes the key instead.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, ttl TTL) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	exp, err := NormalizeTTL(ttl, c.lifetime, true)
	if err != nil {
		return err
	}
	if exp.Immediate() {
		return c.backend.Delete(ctx, c.qualify(key))
	}
	return c.backend.Set(ctx, c.qualify(key), value, exp.Duration())
}

// Delete removes key. Removing an absent key is not an error.
func (c *Cache[V]) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return c.backend.Delete(ctx, c.qualify(key))
}

// Has reports whether key is present.
func (c *Cache[V]) Has(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	return c.backend.Has(ctx, c.qualify(key))
}

// Clear empties the backend. See the backend for what that covers.
func (c *Cache[V]) Clear(ctx context.Context) error {
	return c.backend.Clear(ctx)
}

func (c *Cache[V]) qualify(key string) string {
	if c.namespace == "" {
		return key
	}
	return c.namespace + ":" + key
}

func (c *Cache[V]) qualifyAll(keys []string) []string {
	if c.namespace == "" {
		return keys
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = c.qualify(k)
	}
	return out
}
