package bolt

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	bbolt "go.etcd.io/bbolt"

	"github.com/leonardcser/cache-mcp/internal/cache"
)

// Store is a persistent cache backend kept in a single Bolt bucket.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	db     *bbolt.DB
	bucket []byte
	mu     sync.RWMutex
	now    func() time.Time
}

type Options struct {
	// Bucket is the name of the Bolt bucket to use.
	Bucket string
}

var (
	_ cache.Backend[[]byte]     = (*Store)(nil)
	_ cache.BatchGetter[[]byte] = (*Store)(nil)
	_ cache.BatchSetter[[]byte] = (*Store)(nil)
	_ cache.BatchDeleter        = (*Store)(nil)
	_ cache.Purger              = (*Store)(nil)
)

// Open initializes or opens a Store at the given path.
func Open(path string, opts Options) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	bucket := []byte("cache")
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, bucket: bucket, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Layout: 8 bytes big endian expiresAt (unix seconds, 0 = never) || raw value.
func (s *Store) encode(value []byte, ttl time.Duration) []byte {
	expiresAt := int64(0)
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).Unix()
	}
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAt))
	copy(buf[8:], value)
	return buf
}

// live returns a copy of the value held in v, or false if v is absent,
// malformed or expired.
func (s *Store) live(v []byte) ([]byte, bool) {
	if len(v) < 8 {
		return nil, false
	}
	expiresAt := int64(binary.BigEndian.Uint64(v[:8]))
	if expiresAt > 0 && s.now().Unix() > expiresAt {
		return nil, false
	}
	return append([]byte(nil), v[8:]...), true
}

// Get returns the cached value if present and not expired.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []byte
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		out, found = s.live(tx.Bucket(s.bucket).Get([]byte(key)))
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, found, nil
}

// Set stores value with an absolute expiration of now+ttl; ttl 0 never expires.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := s.encode(value, ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	})
}

// Delete removes a key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.DeleteMulti(ctx, []string{key})
}

// Has reports whether key holds a live entry.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, found, err := s.Get(ctx, key)
	return found, err
}

// Clear drops and recreates the bucket. Other buckets in the file are kept.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
}

// GetMulti reads all keys in one transaction.
func (s *Store) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(keys))
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for _, k := range keys {
			if v, ok := s.live(b.Get([]byte(k))); ok {
				out[k] = v
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetMulti writes all items in one transaction, so either all land or none do.
func (s *Store) SetMulti(ctx context.Context, items *orderedmap.OrderedMap[string, []byte], ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for p := items.Oldest(); p != nil; p = p.Next() {
			if err := b.Put([]byte(p.Key), s.encode(p.Value, ttl)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteMulti removes all keys in one transaction.
func (s *Store) DeleteMulti(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Purge deletes expired entries and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if _, ok := s.live(v); !ok {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(stale)
		return nil
	})
	return n, err
}
