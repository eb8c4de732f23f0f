// Package postgres is a cache backend that keeps entries in a PostgreSQL
// table. Expired rows are invisible to reads and removed by Purge.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/leonardcser/cache-mcp/internal/cache"
)

const (
	defaultTable   = "cache_entries"
	defaultTimeout = 3 * time.Second
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// DB is the part of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Options struct {
	// Table holds the entries and is created when missing. Clear empties it.
	Table string
	// QueryTimeout bounds every statement. Zero means 3s.
	QueryTimeout time.Duration
}

type queries struct {
	create, get, set, del, has, clear, getMulti, delMulti, purge string
}

func buildQueries(table string) queries {
	t := pgx.Identifier{table}.Sanitize()
	live := "(expires_at IS NULL OR expires_at > now())"
	return queries{
		create: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key TEXT PRIMARY KEY,
	value BYTEA NOT NULL,
	expires_at TIMESTAMPTZ
)`, t),
		get: fmt.Sprintf(`SELECT value FROM %s WHERE key = $1 AND %s`, t, live),
		set: fmt.Sprintf(`INSERT INTO %s (key, value, expires_at)
VALUES ($1, $2, CASE WHEN $3::bigint > 0 THEN now() + $3::bigint * interval '1 second' END)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`, t),
		del:      fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, t),
		has:      fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE key = $1 AND %s)`, t, live),
		clear:    fmt.Sprintf(`DELETE FROM %s`, t),
		getMulti: fmt.Sprintf(`SELECT key, value FROM %s WHERE key = ANY($1) AND %s`, t, live),
		delMulti: fmt.Sprintf(`DELETE FROM %s WHERE key = ANY($1)`, t),
		purge:    fmt.Sprintf(`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at <= now()`, t),
	}
}

// Store is a PostgreSQL cache backend.
type Store struct {
	db      DB
	pool    *pgxpool.Pool
	q       queries
	timeout time.Duration
}

var (
	_ cache.Backend[[]byte]     = (*Store)(nil)
	_ cache.BatchGetter[[]byte] = (*Store)(nil)
	_ cache.BatchSetter[[]byte] = (*Store)(nil)
	_ cache.BatchDeleter        = (*Store)(nil)
	_ cache.Purger              = (*Store)(nil)
)

// Connect opens a pool for dsn and returns a store that owns it.
func Connect(ctx context.Context, dsn string, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	s, err := New(ctx, pool, opts)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.pool = pool
	return s, nil
}

// New returns a store using db and creates the table if needed.
func New(ctx context.Context, db DB, opts Options) (*Store, error) {
	table := opts.Table
	if table == "" {
		table = defaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", table)
	}
	timeout := opts.QueryTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	s := &Store{db: db, q: buildQueries(table), timeout: timeout}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.Exec(ctx, s.q.create); err != nil {
		return nil, fmt.Errorf("postgres: create table %s: %w", table, err)
	}
	return s, nil
}

// Close releases the pool if the store opened it.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func seconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return int64(ttl / time.Second)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var value []byte
	err := s.db.QueryRow(ctx, s.q.get, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.Exec(ctx, s.q.set, key, value, seconds(ttl)); err != nil {
		return fmt.Errorf("postgres: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.Exec(ctx, s.q.del, key); err != nil {
		return fmt.Errorf("postgres: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var ok bool
	if err := s.db.QueryRow(ctx, s.q.has, key).Scan(&ok); err != nil {
		return false, fmt.Errorf("postgres: has %q: %w", key, err)
	}
	return ok, nil
}

func (s *Store) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.Exec(ctx, s.q.clear); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

func (s *Store) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.db.Query(ctx, s.q.getMulti, keys)
	if err != nil {
		return nil, fmt.Errorf("postgres: get multi: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]byte, len(keys))
	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("postgres: get multi: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: get multi: %w", err)
	}
	return out, nil
}

// SetMulti sends every upsert in one batch, which runs as a single implicit
// transaction.
func (s *Store) SetMulti(ctx context.Context, items *orderedmap.OrderedMap[string, []byte], ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	secs := seconds(ttl)
	batch := &pgx.Batch{}
	for p := items.Oldest(); p != nil; p = p.Next() {
		batch.Queue(s.q.set, p.Key, p.Value, secs)
	}
	br := s.db.SendBatch(ctx, batch)
	for p := items.Oldest(); p != nil; p = p.Next() {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: set %q: %w", p.Key, err)
		}
	}
	return br.Close()
}

func (s *Store) DeleteMulti(ctx context.Context, keys []string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.Exec(ctx, s.q.delMulti, keys); err != nil {
		return fmt.Errorf("postgres: delete multi: %w", err)
	}
	return nil
}

func (s *Store) Purge(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	tag, err := s.db.Exec(ctx, s.q.purge)
	if err != nil {
		return 0, fmt.Errorf("postgres: purge: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
