package socket

import (
	"context"
	"encoding/json"
	"net"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/leonardcser/cache-mcp/internal/cache"
)

const dialTimeout = 500 * time.Millisecond

// Client is a cache backend served by a daemon over a Unix socket.
// Each call uses its own connection.
type Client struct {
	socketPath string
}

var (
	_ cache.Backend[[]byte]     = (*Client)(nil)
	_ cache.BatchGetter[[]byte] = (*Client)(nil)
	_ cache.BatchSetter[[]byte] = (*Client)(nil)
	_ cache.BatchDeleter        = (*Client)(nil)
)

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// RemoteError is a failure reported by the daemon.
type RemoteError struct {
	Op  string
	Msg string
}

func (e *RemoteError) Error() string { return "cache daemon: " + e.Op + ": " + e.Msg }

func (c *Client) withConn(ctx context.Context, fn func(conn net.Conn) error) error {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return fn(conn)
}

func (c *Client) roundTrip(ctx context.Context, req Request) (Response, error) {
	var resp Response
	err := c.withConn(ctx, func(conn net.Conn) error {
		if err := json.NewEncoder(conn).Encode(&req); err != nil {
			return err
		}
		if err := json.NewDecoder(conn).Decode(&resp); err != nil {
			return err
		}
		if !resp.OK {
			return &RemoteError{Op: req.Op, Msg: resp.Error}
		}
		return nil
	})
	return resp, err
}

func ttlSeconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return int64(ttl / time.Second)
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := c.roundTrip(ctx, Request{Op: OpGet, Key: key})
	if err != nil {
		return nil, false, err
	}
	if !resp.Found {
		return nil, false, nil
	}
	return append([]byte(nil), resp.Value...), true, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := c.roundTrip(ctx, Request{Op: OpSet, Key: key, Value: value, TTLSeconds: ttlSeconds(ttl)})
	return err
}

func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.roundTrip(ctx, Request{Op: OpDelete, Key: key})
	return err
}

func (c *Client) Has(ctx context.Context, key string) (bool, error) {
	resp, err := c.roundTrip(ctx, Request{Op: OpHas, Key: key})
	if err != nil {
		return false, err
	}
	return resp.Found, nil
}

func (c *Client) Clear(ctx context.Context) error {
	_, err := c.roundTrip(ctx, Request{Op: OpClear})
	return err
}

func (c *Client) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	resp, err := c.roundTrip(ctx, Request{Op: OpGetMulti, Keys: keys})
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(resp.Items))
	for _, it := range resp.Items {
		out[it.Key] = it.Value
	}
	return out, nil
}

func (c *Client) SetMulti(ctx context.Context, items *orderedmap.OrderedMap[string, []byte], ttl time.Duration) error {
	req := Request{Op: OpSetMulti, Items: make([]Item, 0, items.Len()), TTLSeconds: ttlSeconds(ttl)}
	for p := items.Oldest(); p != nil; p = p.Next() {
		req.Items = append(req.Items, Item{Key: p.Key, Value: p.Value})
	}
	_, err := c.roundTrip(ctx, req)
	return err
}

func (c *Client) DeleteMulti(ctx context.Context, keys []string) error {
	_, err := c.roundTrip(ctx, Request{Op: OpDeleteMulti, Keys: keys})
	return err
}

// Ping checks that the daemon accepts connections.
func (c *Client) Ping(ctx context.Context) error {
	return c.withConn(ctx, func(net.Conn) error { return nil })
}

