package cache

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTTL(t *testing.T) {
	def := Expiry{expires: true, seconds: 300}

	tests := []struct {
		name       string
		ttl        TTL
		useDefault bool
		want       Expiry
		wantErr    bool
	}{
		{name: "absent uses default", ttl: NoTTL, useDefault: true, want: def},
		{name: "absent without default never expires", ttl: NoTTL, want: Expiry{}},
		{name: "seconds unchanged", ttl: Seconds(60), want: Expiry{expires: true, seconds: 60}},
		{name: "zero seconds", ttl: Seconds(0), want: Expiry{expires: true, seconds: 0}},
		{name: "negative seconds kept", ttl: Seconds(-5), want: Expiry{expires: true, seconds: -5}},
		{name: "duration in whole seconds", ttl: After(90 * time.Second), want: Expiry{expires: true, seconds: 90}},
		{name: "duration truncated", ttl: After(2500 * time.Millisecond), want: Expiry{expires: true, seconds: 2}},
		{name: "sub-second duration", ttl: After(500 * time.Millisecond), want: Expiry{expires: true, seconds: 0}},
		{name: "negative duration", ttl: After(-time.Second), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTTL(tt.ttl, def, tt.useDefault)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTTL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpiry(t *testing.T) {
	never := Expiry{}
	assert.False(t, never.Expires())
	assert.False(t, never.Immediate())
	assert.Equal(t, time.Duration(0), never.Duration())
	assert.Equal(t, "never", never.String())

	e, err := NormalizeTTL(Seconds(0), Expiry{}, false)
	require.NoError(t, err)
	assert.True(t, e.Immediate())

	e, err = NormalizeTTL(Seconds(10), Expiry{}, false)
	require.NoError(t, err)
	assert.False(t, e.Immediate())
	assert.Equal(t, int64(10), e.Seconds())
	assert.Equal(t, 10*time.Second, e.Duration())
	assert.Equal(t, "10s", e.String())

	e, err = NormalizeTTL(Seconds(math.MaxInt64), Expiry{}, false)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(maxSeconds)*time.Second, e.Duration())
	assert.Positive(t, e.Duration())
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    TTL
		wantErr bool
	}{
		{name: "nil", raw: nil, want: NoTTL},
		{name: "int", raw: 30, want: Seconds(30)},
		{name: "int64", raw: int64(-1), want: Seconds(-1)},
		{name: "whole float", raw: 45.0, want: Seconds(45)},
		{name: "json number", raw: json.Number("12"), want: Seconds(12)},
		{name: "duration", raw: time.Minute, want: After(time.Minute)},
		{name: "numeric string", raw: "20", want: Seconds(20)},
		{name: "duration string", raw: "1m30s", want: After(90 * time.Second)},
		{name: "fractional float", raw: 1.5, wantErr: true},
		{name: "nan", raw: math.NaN(), wantErr: true},
		{name: "infinity", raw: math.Inf(1), wantErr: true},
		{name: "fractional json number", raw: json.Number("1.5"), wantErr: true},
		{name: "garbage string", raw: "soon", wantErr: true},
		{name: "bool", raw: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTTL(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTTL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTTL_String(t *testing.T) {
	assert.Equal(t, "default", NoTTL.String())
	assert.True(t, NoTTL.IsZero())
	assert.Equal(t, "5s", Seconds(5).String())
	assert.Equal(t, "1m0s", After(time.Minute).String())
	assert.False(t, Seconds(0).IsZero())
}
