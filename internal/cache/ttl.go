package cache

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type ttlKind uint8

const (
	ttlAbsent ttlKind = iota
	ttlSeconds
	ttlDuration
)

// TTL is a lifetime supplied by a caller. The zero value, NoTTL, means no
// lifetime was given and the cache default applies.
type TTL struct {
	kind ttlKind
	secs int64
	d    time.Duration
}

// NoTTL leaves the lifetime to the cache default.
var NoTTL TTL

// Seconds is a lifetime in whole seconds. Zero or negative values remove the
// entry instead of storing it.
func Seconds(n int64) TTL { return TTL{kind: ttlSeconds, secs: n} }

// After is a lifetime given as a duration. Fractions of a second are dropped.
func After(d time.Duration) TTL { return TTL{kind: ttlDuration, d: d} }

// IsZero reports whether no lifetime was given.
func (t TTL) IsZero() bool { return t.kind == ttlAbsent }

func (t TTL) String() string {
	switch t.kind {
	case ttlAbsent:
		return "default"
	case ttlSeconds:
		return strconv.FormatInt(t.secs, 10) + "s"
	case ttlDuration:
		return t.d.String()
	}
	return "invalid"
}

// Expiry is a normalized lifetime: either no expiry at all, or a signed count
// of seconds. The zero value never expires.
type Expiry struct {
	expires bool
	seconds int64
}

// Expires reports whether the entry has a finite lifetime.
func (e Expiry) Expires() bool { return e.expires }

// Seconds returns the lifetime in seconds, or 0 when the entry never expires.
func (e Expiry) Seconds() int64 { return e.seconds }

// Immediate reports whether the entry should be removed rather than stored.
func (e Expiry) Immediate() bool { return e.expires && e.seconds <= 0 }

// maxSeconds is the longest lifetime a time.Duration can hold in whole seconds.
const maxSeconds = int64(math.MaxInt64 / time.Second)

// Duration is the lifetime in the form backends receive it: 0 for entries
// that never expire. Lifetimes too long for a time.Duration are capped at
// about 292 years.
func (e Expiry) Duration() time.Duration {
	if !e.expires {
		return 0
	}
	return time.Duration(min(e.seconds, maxSeconds)) * time.Second
}

func (e Expiry) String() string {
	if !e.expires {
		return "never"
	}
	return strconv.FormatInt(e.seconds, 10) + "s"
}

// NormalizeTTL resolves ttl to an Expiry. An absent ttl resolves to def when
// useDefault is set and to no expiry otherwise. Explicit seconds are returned
// unchanged; durations become whole seconds and may not be negative.
func NormalizeTTL(ttl TTL, def Expiry, useDefault bool) (Expiry, error) {
	switch ttl.kind {
	case ttlAbsent:
		if useDefault {
			return def, nil
		}
		return Expiry{}, nil
	case ttlSeconds:
		return Expiry{expires: true, seconds: ttl.secs}, nil
	case ttlDuration:
		if ttl.d < 0 {
			return Expiry{}, fmt.Errorf("%w: negative duration %s", ErrInvalidTTL, ttl.d)
		}
		return Expiry{expires: true, seconds: int64(ttl.d / time.Second)}, nil
	}
	return Expiry{}, fmt.Errorf("%w: unknown kind %d", ErrInvalidTTL, ttl.kind)
}

// ParseTTL converts an untyped value, typically decoded JSON, into a TTL.
// nil is NoTTL; integral numbers are seconds; strings are either integer
// seconds or a Go duration such as "90s" or "15m".
func ParseTTL(raw any) (TTL, error) {
	switch v := raw.(type) {
	case nil:
		return NoTTL, nil
	case time.Duration:
		return After(v), nil
	case int:
		return Seconds(int64(v)), nil
	case int32:
		return Seconds(int64(v)), nil
	case int64:
		return Seconds(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || v >= math.MaxInt64 || v < math.MinInt64 {
			return NoTTL, fmt.Errorf("%w: %v is not a whole number of seconds", ErrInvalidTTL, v)
		}
		return Seconds(int64(v)), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return NoTTL, fmt.Errorf("%w: %v is not a whole number of seconds", ErrInvalidTTL, v)
		}
		return Seconds(n), nil
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Seconds(n), nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return NoTTL, fmt.Errorf("%w: %q", ErrInvalidTTL, v)
		}
		return After(d), nil
	}
	return NoTTL, fmt.Errorf("%w: unsupported type %T", ErrInvalidTTL, raw)
}
