package main

import (
	"context"
	"flag"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/cache-mcp/internal/cache"
	"github.com/leonardcser/cache-mcp/internal/cache/socket"
	"github.com/leonardcser/cache-mcp/internal/config"
	"github.com/leonardcser/cache-mcp/internal/logger"
	tools "github.com/leonardcser/cache-mcp/internal/tools"
)

const daemonBinary = "cache-mcp-daemon"

var configPath = flag.String("config", "", "config file (default $CACHE_MCP_CONFIG, then ./config.yaml)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if cfg.Log.Dir != "" {
		err = logger.Init(cfg.Log.Dir, cfg.Log.Verbosity)
	} else {
		err = logger.InitFromEnv()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Infof("Starting Cache MCP server")

	// Connect to cache daemon; start it if needed, then connect.
	sock := cfg.Socket
	logger.Infof("Attempting to connect to cache daemon at %s", sock)
	client, err := connectCache(sock)
	if err != nil {
		logger.Warnf("Failed to connect to cache daemon: %v, attempting to start daemon", err)
		if startErr := startCacheDaemon(); startErr != nil {
			logger.Errorf("Failed to start cache daemon: %v", startErr)
		} else {
			logger.Infof("Cache daemon started successfully")
		}
		// wait for socket to appear
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if c2, err2 := connectCache(sock); err2 == nil {
				client = c2
				err = nil
				break
			}
			time.Sleep(200 * time.Millisecond)
		}
		if client == nil {
			logger.Errorf("Failed to connect to cache daemon after startup attempt: %v", err)
			panic(err)
		}
	}
	logger.Infof("Successfully connected to cache daemon")

	defaultTTL := cache.NoTTL
	if cfg.DefaultTTL > 0 {
		defaultTTL = cache.After(cfg.DefaultTTL)
	}
	c, err := cache.New[[]byte](client, cache.Options{Namespace: cfg.Namespace, DefaultTTL: defaultTTL})
	if err != nil {
		logger.Errorf("Invalid cache options: %v", err)
		panic(err)
	}
	logger.Infof("Cache ready (namespace %q, default lifetime %s)", c.Namespace(), c.DefaultLifetime())

	s := server.NewMCPServer(
		"Cache MCP",
		"0.1.0",
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)
	registerTools(s, c)

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Errorf("server error: %v", err)
	}
}

func registerTools(s *server.MCPServer, c *tools.Cache) {
	keyArg := mcp.WithString("key", mcp.Required(), mcp.Description("Cache key: 1-64 characters, none of {}()/\\@:"))
	ttlArg := mcp.WithString("ttl", mcp.Description("Lifetime in seconds or a Go duration such as \"90s\". Zero or less deletes. Omit for the default lifetime"))
	keysArg := mcp.WithArray("keys", mcp.Required(), mcp.Description("Cache keys"), mcp.WithStringItems())

	s.AddTool(mcp.NewTool("cache-get",
		mcp.WithDescription(multiline(
			"Reads a single value from the cache",
			"\nUsage notes:",
			"- Returns the default (empty unless given) when the key is absent or expired",
			"- Invalid keys are reported as errors",
		)),
		keyArg,
		mcp.WithString("default", mcp.Description("Value returned on a miss")),
	), tools.CacheGetHandler(c))

	s.AddTool(mcp.NewTool("cache-set",
		mcp.WithDescription(multiline(
			"Stores a value in the cache",
			"\nUsage notes:",
			"- A ttl of zero or less removes the key instead of storing it",
			"- Without a ttl the server's default lifetime applies",
		)),
		keyArg,
		mcp.WithString("value", mcp.Required(), mcp.Description("Value to store")),
		ttlArg,
	), tools.CacheSetHandler(c))

	s.AddTool(mcp.NewTool("cache-delete",
		mcp.WithDescription("Removes a key from the cache. Removing an absent key succeeds"),
		keyArg,
	), tools.CacheDeleteHandler(c))

	s.AddTool(mcp.NewTool("cache-has",
		mcp.WithDescription("Reports whether a live entry exists for the key"),
		keyArg,
	), tools.CacheHasHandler(c))

	s.AddTool(mcp.NewTool("cache-clear",
		mcp.WithDescription("Removes every entry the cache backend holds"),
	), tools.CacheClearHandler(c))

	s.AddTool(mcp.NewTool("cache-get-multiple",
		mcp.WithDescription(multiline(
			"Reads several values at once",
			"\nUsage notes:",
			"- Returns a JSON object with one member per requested key, in request order",
			"- Missing keys map to the default",
			"- One invalid key fails the whole request",
		)),
		keysArg,
		mcp.WithString("default", mcp.Description("Value returned for missing keys")),
	), tools.CacheGetMultipleHandler(c))

	s.AddTool(mcp.NewTool("cache-set-multiple",
		mcp.WithDescription(multiline(
			"Stores several values with one shared lifetime",
			"\nUsage notes:",
			"- Every key is validated before anything is written",
			"- A ttl of zero or less removes all the given keys",
		)),
		mcp.WithArray("entries", mcp.Required(),
			mcp.Description("Entries to store, in order"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key":   map[string]any{"type": "string"},
					"value": map[string]any{"type": "string"},
				},
				"required": []string{"key", "value"},
			}),
		),
		ttlArg,
	), tools.CacheSetMultipleHandler(c))

	s.AddTool(mcp.NewTool("cache-delete-multiple",
		mcp.WithDescription("Removes several keys at once. Every key is validated first"),
		keysArg,
	), tools.CacheDeleteMultipleHandler(c))

	logger.Infof("Registered cache tools")
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }

func connectCache(sock string) (*socket.Client, error) {
	client := socket.NewClient(sock)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func startCacheDaemon() error {
	// 1) Try daemon binary next to this server executable
	if exePath, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exePath), daemonBinary)
		if _, statErr := os.Stat(sibling); statErr == nil {
			return spawn(sibling)
		}
	}

	// 2) Try PATH binary
	if path, err := exec.LookPath(daemonBinary); err == nil {
		return spawn(path)
	}

	// 3) Try local binary in current working directory (best-effort)
	if _, err := os.Stat("./" + daemonBinary); err == nil {
		return spawn("./" + daemonBinary)
	}

	return exec.ErrNotFound
}

// spawn starts the daemon detached, handing it the same config file.
func spawn(path string) error {
	cmd := exec.Command(path)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Env = os.Environ()
	if *configPath != "" {
		cmd.Env = append(cmd.Env, config.EnvConfigPath+"="+*configPath)
	}
	return cmd.Start()
}
