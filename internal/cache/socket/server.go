package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/leonardcser/cache-mcp/internal/cache"
	"github.com/leonardcser/cache-mcp/internal/logger"
)

// Serve accepts connections on l and answers requests from backend until l is
// closed. Batch requests use the backend's native batch support when it has
// one.
func Serve(ctx context.Context, l net.Listener, backend cache.Backend[[]byte]) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			logger.Warnf("socket: accept: %v", err)
			continue
		}
		go handleConn(ctx, conn, backend)
	}
}

func handleConn(ctx context.Context, conn net.Conn, backend cache.Backend[[]byte]) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		resp := handle(ctx, backend, req)
		if !resp.OK {
			logger.Debugf("socket: %s failed: %s", req.Op, resp.Error)
		}
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func handle(ctx context.Context, backend cache.Backend[[]byte], req Request) Response {
	if req.TTLSeconds < 0 {
		return Response{Error: "negative ttl_seconds"}
	}
	ttl := ttlDuration(req.TTLSeconds)
	switch req.Op {
	case OpGet:
		v, found, err := backend.Get(ctx, req.Key)
		if err != nil {
			return failure(err)
		}
		return Response{OK: true, Found: found, Value: v}
	case OpSet:
		return result(backend.Set(ctx, req.Key, req.Value, ttl))
	case OpDelete:
		return result(backend.Delete(ctx, req.Key))
	case OpHas:
		found, err := backend.Has(ctx, req.Key)
		if err != nil {
			return failure(err)
		}
		return Response{OK: true, Found: found}
	case OpClear:
		return result(backend.Clear(ctx))
	case OpGetMulti:
		found, err := cache.GetMulti(ctx, backend, req.Keys)
		if err != nil {
			return failure(err)
		}
		resp := Response{OK: true, Items: make([]Item, 0, len(found))}
		for _, k := range req.Keys {
			if v, ok := found[k]; ok {
				resp.Items = append(resp.Items, Item{Key: k, Value: v})
			}
		}
		return resp
	case OpSetMulti:
		items := orderedmap.New[string, []byte]()
		for _, it := range req.Items {
			items.Set(it.Key, it.Value)
		}
		return result(cache.SetMulti(ctx, backend, items, ttl))
	case OpDeleteMulti:
		return result(cache.DeleteMulti(ctx, backend, req.Keys))
	default:
		return Response{Error: "unknown op"}
	}
}

func result(err error) Response {
	if err != nil {
		return failure(err)
	}
	return Response{OK: true}
}

func ttlDuration(secs int64) time.Duration { return time.Duration(secs) * time.Second }

func failure(err error) Response { return Response{Error: err.Error()} }
