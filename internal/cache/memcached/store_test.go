package memcached

import (
	"context"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresServers(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	s, err := New(Options{Servers: []string{"127.0.0.1:11211"}, Timeout: time.Second, MaxIdleConns: 4})
	require.NoError(t, err)
	assert.Equal(t, time.Second, s.mc.Timeout)
	assert.Equal(t, 4, s.mc.MaxIdleConns)
}

func TestStore_Expiration(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := &Store{now: func() time.Time { return now }}

	tests := []struct {
		name string
		ttl  time.Duration
		want int32
	}{
		{name: "never", ttl: 0, want: 0},
		{name: "negative never", ttl: -time.Second, want: 0},
		{name: "sub-second rounds up", ttl: 200 * time.Millisecond, want: 1},
		{name: "relative", ttl: 90 * time.Second, want: 90},
		{name: "thirty days stays relative", ttl: 30 * 24 * time.Hour, want: int32(30 * 24 * 3600)},
		{name: "longer becomes absolute", ttl: 31 * 24 * time.Hour, want: int32(now.Add(31 * 24 * time.Hour).Unix())},
		{name: "absolute capped at int32", ttl: time.Duration(math.MaxInt64), want: math.MaxInt32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.expiration(tt.ttl))
		})
	}
}

func TestWireKey(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		hashed bool
	}{
		{name: "plain", key: "ns:user.42"},
		{name: "multibyte", key: "ns:" + strings.Repeat("é", 64)},
		{name: "exactly 250 bytes", key: strings.Repeat("k", 250)},
		{name: "too long", key: "ns:" + strings.Repeat("\U0001F600", 64), hashed: true},
		{name: "space", key: "a b", hashed: true},
		{name: "tab", key: "a\tb", hashed: true},
		{name: "newline", key: "a\nb", hashed: true},
		{name: "delete char", key: "a\x7fb", hashed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wireKey(tt.key)
			if !tt.hashed {
				assert.Equal(t, tt.key, got)
				return
			}
			assert.True(t, strings.HasPrefix(got, "@"))
			assert.Len(t, got, 65)
			assert.False(t, hasControlOrSpace(got))
			assert.Equal(t, got, wireKey(tt.key))
		})
	}

	assert.NotEqual(t, wireKey("a b"), wireKey("a  b"))
}

// Runs against a live server when CACHE_MCP_TEST_MEMCACHED names one.
func TestStore_Integration(t *testing.T) {
	servers := os.Getenv("CACHE_MCP_TEST_MEMCACHED")
	if servers == "" {
		t.Skip("CACHE_MCP_TEST_MEMCACHED not set")
	}
	ctx := context.Background()
	s, err := New(Options{Servers: strings.Split(servers, ",")})
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Clear(ctx))

	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))

	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	got, err := s.GetMulti(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	has, err := s.Has(ctx, "a")
	require.NoError(t, err)
	assert.False(t, has)

	long := "ns:" + strings.Repeat("\U0001F600", 64)
	require.NoError(t, s.Set(ctx, "with space", []byte("s"), 0))
	require.NoError(t, s.Set(ctx, long, []byte("long"), 0))
	got, err = s.GetMulti(ctx, []string{"with space", long})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"with space": []byte("s"), long: []byte("long")}, got)

	require.NoError(t, s.Clear(ctx))
	has, err = s.Has(ctx, "b")
	require.NoError(t, err)
	assert.False(t, has)
}
