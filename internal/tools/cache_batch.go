package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/leonardcser/cache-mcp/internal/cache"
)

// CacheGetMultipleHandler returns the MCP tool handler for the
// "cache-get-multiple" tool. The result is a JSON object in request order.
func CacheGetMultipleHandler(c *Cache) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keys, err := cache.ParseKeys(req.GetArguments()["keys"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		def := req.GetString("default", "")
		values, err := c.GetMultiple(ctx, cache.Keys(keys...), []byte(def))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatValues(values)), nil
	}
}

// CacheSetMultipleHandler returns the MCP tool handler for the
// "cache-set-multiple" tool.
func CacheSetMultipleHandler(c *Cache) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		entries, err := parseEntries(args["entries"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ttl, err := cache.ParseTTL(args["ttl"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := c.SetMultiple(ctx, entries, ttl); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("OK (%d entries)", entries.Len())), nil
	}
}

// CacheDeleteMultipleHandler returns the MCP tool handler for the
// "cache-delete-multiple" tool.
func CacheDeleteMultipleHandler(c *Cache) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keys, err := cache.ParseKeys(req.GetArguments()["keys"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := c.DeleteMultiple(ctx, cache.Keys(keys...)); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("OK"), nil
	}
}

// parseEntries reads a list of {"key": ..., "value": ...} objects, keeping
// their order. The shape of the whole list is checked before any key is.
// A later entry for the same key replaces the earlier value.
func parseEntries(raw any) (*orderedmap.OrderedMap[string, []byte], error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list of entries, got %T", cache.ErrInvalidArgument, raw)
	}
	rawKeys := make([]any, len(list))
	values := make([]string, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d is not an object", cache.ErrInvalidArgument, i)
		}
		if values[i], ok = entry["value"].(string); !ok {
			return nil, fmt.Errorf("%w: entry %d has no string value", cache.ErrInvalidArgument, i)
		}
		rawKeys[i] = entry["key"]
	}
	out := orderedmap.New[string, []byte]()
	for i, rk := range rawKeys {
		key, err := cache.ParseKey(rk)
		if err != nil {
			return nil, err
		}
		out.Set(key, []byte(values[i]))
	}
	return out, nil
}

func formatValues(values *orderedmap.OrderedMap[string, []byte]) string {
	text := orderedmap.New[string, string]()
	for p := values.Oldest(); p != nil; p = p.Next() {
		text.Set(p.Key, string(p.Value))
	}
	b, err := json.Marshal(text)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
