// Package memcached is a cache backend talking to one or more memcached
// servers. Values are raw bytes; memcached enforces expiry itself.
//
// Memcached keys are at most 250 bytes of printable, space-free text. Keys
// outside that are stored under "@" plus their SHA-256 in hex; "@" never
// appears in a validated key or namespace, so the two forms cannot collide.
package memcached

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/leonardcser/cache-mcp/internal/cache"
)

const (
	// memcached reads expirations longer than 30 days as absolute unix times.
	maxRelativeExpiration = 30 * 24 * time.Hour
	maxKeyLength          = 250
)

// wireKey returns key as memcached will accept it.
func wireKey(key string) string {
	if len(key) <= maxKeyLength && !hasControlOrSpace(key) {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return "@" + hex.EncodeToString(sum[:])
}

func hasControlOrSpace(key string) bool {
	for i := 0; i < len(key); i++ {
		if c := key[i]; c <= ' ' || c == 0x7f {
			return true
		}
	}
	return false
}

type Options struct {
	// Servers are host:port addresses, picked per key by consistent hashing.
	Servers []string
	// Timeout bounds each socket read or write. Zero keeps the client default.
	Timeout time.Duration
	// MaxIdleConns per server. Zero keeps the client default.
	MaxIdleConns int
}

// Store is a memcached backend. Clear flushes every server, which removes
// entries written by anyone, not just this store.
type Store struct {
	mc  *memcache.Client
	now func() time.Time
}

var (
	_ cache.Backend[[]byte]     = (*Store)(nil)
	_ cache.BatchGetter[[]byte] = (*Store)(nil)
)

func New(opts Options) (*Store, error) {
	if len(opts.Servers) == 0 {
		return nil, errors.New("memcached: no servers configured")
	}
	mc := memcache.New(opts.Servers...)
	if opts.Timeout > 0 {
		mc.Timeout = opts.Timeout
	}
	if opts.MaxIdleConns > 0 {
		mc.MaxIdleConns = opts.MaxIdleConns
	}
	return &Store{mc: mc, now: time.Now}, nil
}

// Ping checks that every server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.mc.Ping()
}

func (s *Store) expiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > maxRelativeExpiration {
		return int32(min(s.now().Add(ttl).Unix(), math.MaxInt32))
	}
	secs := int32(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	item, err := s.mc.Get(wireKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("memcached: get %q: %w", key, err)
	}
	return item.Value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.mc.Set(&memcache.Item{
		Key:        wireKey(key),
		Value:      value,
		Expiration: s.expiration(ttl),
	})
	if err != nil {
		return fmt.Errorf("memcached: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.mc.Delete(wireKey(key))
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return fmt.Errorf("memcached: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.mc.FlushAll()
}

// GetMulti fetches all keys in one round trip per server.
func (s *Store) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wire := make([]string, len(keys))
	for i, k := range keys {
		wire[i] = wireKey(k)
	}
	items, err := s.mc.GetMulti(wire)
	if err != nil {
		return nil, fmt.Errorf("memcached: get multi: %w", err)
	}
	out := make(map[string][]byte, len(items))
	for i, k := range keys {
		if item, ok := items[wire[i]]; ok {
			out[k] = item.Value
		}
	}
	return out, nil
}
