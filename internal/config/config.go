package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvConfigPath names the config file to load when no path is given.
const EnvConfigPath = "CACHE_MCP_CONFIG"

// Config is shared by the cache daemon and the MCP server.
type Config struct {
	Namespace     string        `mapstructure:"namespace"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"    validate:"gte=0"`
	Socket        string        `mapstructure:"socket"         validate:"required"`
	PurgeSchedule string        `mapstructure:"purge_schedule"`
	Backend       BackendConfig `mapstructure:"backend"`
	Log           LogConfig     `mapstructure:"log"`
}

type BackendConfig struct {
	Driver    string          `mapstructure:"driver"    validate:"required,oneof=bolt memory memcached postgres"`
	Bolt      BoltConfig      `mapstructure:"bolt"`
	Memcached MemcachedConfig `mapstructure:"memcached"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
}

type BoltConfig struct {
	Path   string `mapstructure:"path"`
	Bucket string `mapstructure:"bucket"`
}

type MemcachedConfig struct {
	Servers []string      `mapstructure:"servers" validate:"dive,hostname_port"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

type LogConfig struct {
	Dir       string `mapstructure:"dir"`
	Verbosity int    `mapstructure:"verbosity" validate:"gte=0"`
}

// Load reads path, or config.yaml from the usual places when path is empty,
// then applies CACHE_MCP_* environment overrides. Only an explicitly named
// file has to exist; every setting has a default.
func Load(path string) (*Config, error) {
	vip := viper.New()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			vip.AddConfigPath(filepath.Join(dir, "cache-mcp"))
		}
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix("CACHE_MCP")
	vip.AutomaticEnv()
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	vip.SetDefault("namespace", "")
	vip.SetDefault("default_ttl", "15m")
	vip.SetDefault("socket", filepath.Join(cacheHome(), "cache.sock"))
	vip.SetDefault("purge_schedule", "@every 10m")
	vip.SetDefault("backend.driver", "bolt")
	vip.SetDefault("backend.bolt.path", filepath.Join(cacheHome(), "cache.bbolt"))
	vip.SetDefault("backend.bolt.bucket", "cache")
	vip.SetDefault("backend.memcached.servers", []string{})
	vip.SetDefault("backend.memcached.timeout", "0s")
	vip.SetDefault("backend.postgres.dsn", "")
	vip.SetDefault("backend.postgres.table", "cache_entries")
	vip.SetDefault("log.dir", "")
	vip.SetDefault("log.verbosity", 0)

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	validate.RegisterStructValidation(configRules, Config{})
	validate.RegisterStructValidation(backendRules, BackendConfig{})
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// configRules rejects a default TTL shorter than one second, since it would
// truncate to zero and turn every write without a TTL into a delete.
func configRules(sl validator.StructLevel) {
	c := sl.Current().Interface().(Config)
	if c.DefaultTTL > 0 && c.DefaultTTL < time.Second {
		sl.ReportError(c.DefaultTTL, "DefaultTTL", "DefaultTTL", "zero_or_whole_seconds", "")
	}
}

// backendRules requires the settings of whichever driver is selected.
func backendRules(sl validator.StructLevel) {
	b := sl.Current().Interface().(BackendConfig)
	switch b.Driver {
	case "bolt":
		if b.Bolt.Path == "" {
			sl.ReportError(b.Bolt.Path, "Bolt.Path", "Path", "required_for_driver", b.Driver)
		}
	case "memcached":
		if len(b.Memcached.Servers) == 0 {
			sl.ReportError(b.Memcached.Servers, "Memcached.Servers", "Servers", "required_for_driver", b.Driver)
		}
	case "postgres":
		if b.Postgres.DSN == "" {
			sl.ReportError(b.Postgres.DSN, "Postgres.DSN", "DSN", "required_for_driver", b.Driver)
		}
	}
}

func cacheHome() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".cache", "cache-mcp")
}
