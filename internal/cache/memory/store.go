// Package memory is an in-process cache backend built on ttlcache. It
// implements only the required primitives, so batch calls go through the
// per-key fallback in package cache.
package memory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/leonardcser/cache-mcp/internal/cache"
)

// Store holds values of any type in memory. Clear empties this store only.
type Store[V any] struct {
	c       *ttlcache.Cache[string, V]
	started atomic.Bool
}

var _ cache.Backend[any] = (*Store[any])(nil)

// New returns an empty store. Reads never extend an entry's lifetime.
func New[V any]() *Store[V] {
	return &Store[V]{
		c: ttlcache.New[string, V](ttlcache.WithDisableTouchOnHit[string, V]()),
	}
}

// Start runs the background loop that drops expired entries. Expired entries
// are never returned even without it; it only reclaims memory.
func (s *Store[V]) Start() {
	if s.started.CompareAndSwap(false, true) {
		go s.c.Start()
	}
}

// Stop ends the loop started by Start.
func (s *Store[V]) Stop() {
	if s.started.CompareAndSwap(true, false) {
		s.c.Stop()
	}
}

// Len returns the number of entries held, including expired ones not yet dropped.
func (s *Store[V]) Len() int { return s.c.Len() }

func (s *Store[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	item := s.c.Get(key)
	if item == nil || item.IsExpired() {
		return zero, false, nil
	}
	return item.Value(), true, nil
}

func (s *Store[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	s.c.Set(key, value, ttl)
	return nil
}

func (s *Store[V]) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.c.Delete(key)
	return nil
}

func (s *Store[V]) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *Store[V]) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.c.DeleteAll()
	return nil
}
