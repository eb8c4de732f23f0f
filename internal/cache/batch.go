package cache

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/multierr"

	"github.com/leonardcser/cache-mcp/internal/logger"
)

// Keys adapts a list of keys for GetMultiple and DeleteMultiple.
func Keys(keys ...string) iter.Seq[string] { return slices.Values(keys) }

// GetMultiple returns a map holding every requested key, in request order.
// Keys the backend does not have map to def.
func (c *Cache[V]) GetMultiple(ctx context.Context, keys iter.Seq[string], def V) (*orderedmap.OrderedMap[string, V], error) {
	list, err := collect(keys)
	if err != nil {
		return nil, err
	}
	out := orderedmap.New[string, V]()
	if len(list) == 0 {
		return out, nil
	}
	if err := ValidateKeys(list); err != nil {
		return nil, err
	}
	found, err := GetMulti(ctx, c.backend, c.qualifyAll(list))
	if err != nil {
		return nil, err
	}
	for _, k := range list {
		if v, ok := found[c.qualify(k)]; ok {
			out.Set(k, v)
		} else {
			out.Set(k, def)
		}
	}
	return out, nil
}

// SetMultiple stores every entry of values with the same lifetime. A lifetime
// that resolves to zero or fewer seconds deletes the keys instead.
func (c *Cache[V]) SetMultiple(ctx context.Context, values *orderedmap.OrderedMap[string, V], ttl TTL) error {
	if values == nil {
		return fmt.Errorf("%w: nil values", ErrInvalidArgument)
	}
	if values.Len() == 0 {
		return nil
	}
	keys := make([]string, 0, values.Len())
	for p := values.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	if err := ValidateKeys(keys); err != nil {
		return err
	}
	exp, err := NormalizeTTL(ttl, c.lifetime, true)
	if err != nil {
		return err
	}
	if exp.Immediate() {
		return DeleteMulti(ctx, c.backend, c.qualifyAll(keys))
	}
	items := values
	if c.namespace != "" {
		items = orderedmap.New[string, V]()
		for p := values.Oldest(); p != nil; p = p.Next() {
			items.Set(c.qualify(p.Key), p.Value)
		}
	}
	return SetMulti(ctx, c.backend, items, exp.Duration())
}

// DeleteMultiple removes every key.
func (c *Cache[V]) DeleteMultiple(ctx context.Context, keys iter.Seq[string]) error {
	list, err := collect(keys)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}
	if err := ValidateKeys(list); err != nil {
		return err
	}
	return DeleteMulti(ctx, c.backend, c.qualifyAll(list))
}

func collect(keys iter.Seq[string]) ([]string, error) {
	if keys == nil {
		return nil, fmt.Errorf("%w: nil key sequence", ErrInvalidArgument)
	}
	return slices.Collect(keys), nil
}

// GetMulti reads keys from b, natively when b is a BatchGetter and one key at
// a time otherwise. The result holds only the keys that were found.
func GetMulti[V any](ctx context.Context, b Backend[V], keys []string) (map[string]V, error) {
	if bg, ok := b.(BatchGetter[V]); ok {
		return bg.GetMulti(ctx, keys)
	}
	out := make(map[string]V, len(keys))
	for _, k := range keys {
		v, ok, err := b.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("get %q: %w", k, err)
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

// SetMulti writes items to b, natively when b is a BatchSetter. Otherwise
// every item is attempted and the failures are returned together.
func SetMulti[V any](ctx context.Context, b Backend[V], items *orderedmap.OrderedMap[string, V], ttl time.Duration) error {
	if bs, ok := b.(BatchSetter[V]); ok {
		return bs.SetMulti(ctx, items, ttl)
	}
	var errs error
	for p := items.Oldest(); p != nil; p = p.Next() {
		if err := b.Set(ctx, p.Key, p.Value, ttl); err != nil {
			logger.Warnf("cache: set %q failed: %v", p.Key, err)
			errs = multierr.Append(errs, fmt.Errorf("set %q: %w", p.Key, err))
		}
	}
	return errs
}

// DeleteMulti removes keys from b, natively when b is a BatchDeleter.
// Otherwise every key is attempted and the failures are returned together.
func DeleteMulti[V any](ctx context.Context, b Backend[V], keys []string) error {
	if bd, ok := b.(BatchDeleter); ok {
		return bd.DeleteMulti(ctx, keys)
	}
	var errs error
	for _, k := range keys {
		if err := b.Delete(ctx, k); err != nil {
			logger.Warnf("cache: delete %q failed: %v", k, err)
			errs = multierr.Append(errs, fmt.Errorf("delete %q: %w", k, err))
		}
	}
	return errs
}
