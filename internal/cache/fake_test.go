package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// call records one backend primitive invocation.
type call struct {
	op   string
	keys []string
	ttl  time.Duration
}

// fakeBackend is an in-memory Backend that records calls. Keys listed in
// failOn make Set and Delete fail.
type fakeBackend struct {
	mu     sync.Mutex
	data   map[string]string
	calls  []call
	failOn map[string]bool
}

var errBoom = errors.New("boom")

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: map[string]string{}, failOn: map[string]bool{}}
}

func (f *fakeBackend) record(op string, ttl time.Duration, keys ...string) {
	f.calls = append(f.calls, call{op: op, keys: keys, ttl: ttl})
}

func (f *fakeBackend) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op
	}
	return out
}

func (f *fakeBackend) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get", 0, key)
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeBackend) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("set", ttl, key)
	if f.failOn[key] {
		return errBoom
	}
	f.data[key] = value
	return nil
}

func (f *fakeBackend) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete", 0, key)
	if f.failOn[key] {
		return errBoom
	}
	delete(f.data, key)
	return nil
}

func (f *fakeBackend) Has(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("has", 0, key)
	_, ok := f.data[key]
	return ok, nil
}

func (f *fakeBackend) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("clear", 0)
	f.data = map[string]string{}
	return nil
}

// batchBackend adds native batch support to fakeBackend.
type batchBackend struct {
	*fakeBackend
}

func newBatchBackend() *batchBackend { return &batchBackend{newFakeBackend()} }

func (b *batchBackend) GetMulti(_ context.Context, keys []string) (map[string]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("get_multi", 0, keys...)
	out := map[string]string{}
	for _, k := range keys {
		if v, ok := b.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (b *batchBackend) SetMulti(_ context.Context, items *orderedmap.OrderedMap[string, string], ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for p := items.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
		b.data[p.Key] = p.Value
	}
	b.record("set_multi", ttl, keys...)
	return nil
}

func (b *batchBackend) DeleteMulti(_ context.Context, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("delete_multi", 0, keys...)
	for _, k := range keys {
		delete(b.data, k)
	}
	return nil
}
