package tools

import (
	"context"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/cache-mcp/internal/cache"
)

// Cache is the facade the tools operate on.
type Cache = cache.Cache[[]byte]

type handler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// CacheGetHandler returns the MCP tool handler for the "cache-get" tool.
func CacheGetHandler(c *Cache) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		key, err := cache.ParseKey(args["key"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		def := req.GetString("default", "")
		v, err := c.Get(ctx, key, []byte(def))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(v)), nil
	}
}

// CacheSetHandler returns the MCP tool handler for the "cache-set" tool.
func CacheSetHandler(c *Cache) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		key, err := cache.ParseKey(args["key"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ttl, err := cache.ParseTTL(args["ttl"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := c.Set(ctx, key, []byte(value), ttl); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("OK"), nil
	}
}

// CacheDeleteHandler returns the MCP tool handler for the "cache-delete" tool.
func CacheDeleteHandler(c *Cache) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := cache.ParseKey(req.GetArguments()["key"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := c.Delete(ctx, key); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("OK"), nil
	}
}

// CacheHasHandler returns the MCP tool handler for the "cache-has" tool.
func CacheHasHandler(c *Cache) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := cache.ParseKey(req.GetArguments()["key"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ok, err := c.Has(ctx, key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(strconv.FormatBool(ok)), nil
	}
}

// CacheClearHandler returns the MCP tool handler for the "cache-clear" tool.
func CacheClearHandler(c *Cache) handler {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := c.Clear(ctx); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("OK"), nil
	}
}
