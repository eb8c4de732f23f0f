package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/robfig/cron"

	"github.com/leonardcser/cache-mcp/internal/cache"
	"github.com/leonardcser/cache-mcp/internal/cache/bolt"
	"github.com/leonardcser/cache-mcp/internal/cache/memcached"
	"github.com/leonardcser/cache-mcp/internal/cache/memory"
	"github.com/leonardcser/cache-mcp/internal/cache/postgres"
	"github.com/leonardcser/cache-mcp/internal/cache/socket"
	"github.com/leonardcser/cache-mcp/internal/config"
	"github.com/leonardcser/cache-mcp/internal/logger"
)

var configPath = flag.String("config", "", "config file (default $CACHE_MCP_CONFIG, then ./config.yaml)")

func main() {
	// Also registers glog's flags.
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if err := initLogger(cfg); err != nil {
		panic(err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Errorf("Failed to open %s backend: %v", cfg.Backend.Driver, err)
		logger.Close()
		os.Exit(1)
	}
	defer closeBackend()

	if sched := schedulePurge(cfg.PurgeSchedule, backend); sched != nil {
		defer sched.Stop()
	}

	// Ensure socket dir exists and remove stale socket
	sock := cfg.Socket
	_ = os.MkdirAll(filepath.Dir(sock), 0o755)
	_ = os.Remove(sock)

	l, err := net.Listen("unix", sock)
	if err != nil {
		logger.Errorf("Failed to listen on %s: %v", sock, err)
		logger.Close()
		os.Exit(1)
	}
	_ = os.Chmod(sock, 0o600)
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	logger.Infof("Serving %s backend on %s", cfg.Backend.Driver, sock)
	if err := socket.Serve(ctx, l, backend); err != nil {
		logger.Errorf("serve error: %v", err)
	}
	_ = os.Remove(sock)
	logger.Infof("Cache daemon stopped")
}

func initLogger(cfg *config.Config) error {
	if cfg.Log.Dir != "" {
		return logger.Init(cfg.Log.Dir, cfg.Log.Verbosity)
	}
	return logger.InitFromEnv()
}

func openBackend(ctx context.Context, cfg *config.Config) (cache.Backend[[]byte], func(), error) {
	b := cfg.Backend
	switch b.Driver {
	case "memory":
		s := memory.New[[]byte]()
		s.Start()
		return s, s.Stop, nil
	case "bolt":
		_ = os.MkdirAll(filepath.Dir(b.Bolt.Path), 0o755)
		s, err := bolt.Open(b.Bolt.Path, bolt.Options{Bucket: b.Bolt.Bucket})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "memcached":
		s, err := memcached.New(memcached.Options{Servers: b.Memcached.Servers, Timeout: b.Memcached.Timeout})
		if err != nil {
			return nil, nil, err
		}
		if err := s.Ping(ctx); err != nil {
			logger.Warnf("memcached not reachable yet: %v", err)
		}
		return s, func() {}, nil
	case "postgres":
		s, err := postgres.Connect(ctx, b.Postgres.DSN, postgres.Options{Table: b.Postgres.Table})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend driver %q", b.Driver)
}

// schedulePurge runs Purge on schedule for backends that keep expired entries.
func schedulePurge(schedule string, backend cache.Backend[[]byte]) *cron.Cron {
	p, ok := backend.(cache.Purger)
	if !ok || schedule == "" {
		return nil
	}
	c := cron.New()
	err := c.AddFunc(schedule, func() {
		n, err := p.Purge(context.Background())
		if err != nil {
			logger.Warnf("Purge failed: %v", err)
			return
		}
		logger.Debugf("Purged %d expired entries", n)
	})
	if err != nil {
		logger.Warnf("Invalid purge schedule %q: %v", schedule, err)
		return nil
	}
	c.Start()
	logger.Infof("Purging expired entries %s", schedule)
	return c
}
