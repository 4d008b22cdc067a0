// Package config loads the settings of the seacache client.
package config

import (
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/skyline93/seacache/internal/cache"
	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/mirror"
	"github.com/skyline93/seacache/internal/seaf"
)

// EnvPrefix prefixes the environment variables read by Load.
const EnvPrefix = "SEACACHE"

// MemoryIndex selects the in-memory index instead of a database file.
const MemoryIndex = "memory"

// Config holds all settings of the client.
type Config struct {
	Server string
	User   string
	Token  string

	DataDir  string
	CacheDir string
	// Index is the path of the index database, or MemoryIndex.
	Index string

	RefreshTTL  time.Duration
	PasswordTTL time.Duration
	Compression cache.CompressionMode

	LogLevel log.Level

	MetricsAddr     string
	RefreshInterval time.Duration
	Concurrency     int
}

// NewConfig returns a new config with default options applied.
func NewConfig() Config {
	return Config{
		DataDir:         DefaultDataDir(),
		CacheDir:        DefaultCacheDir(),
		RefreshTTL:      mirror.DefaultRefreshTTL,
		PasswordTTL:     mirror.DefaultPasswordTTL,
		Compression:     cache.CompressionAuto,
		LogLevel:        log.InfoLevel,
		MetricsAddr:     "127.0.0.1:9470",
		RefreshInterval: 5 * time.Minute,
		Concurrency:     4,
	}
}

// SetDefaults registers the defaults of NewConfig with v.
func SetDefaults(v *viper.Viper) {
	cfg := NewConfig()
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("cache_dir", cfg.CacheDir)
	v.SetDefault("refresh_ttl", cfg.RefreshTTL)
	v.SetDefault("password_ttl", cfg.PasswordTTL)
	v.SetDefault("compression", cfg.Compression.String())
	v.SetDefault("log_level", cfg.LogLevel.String())
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("refresh_interval", cfg.RefreshInterval)
	v.SetDefault("concurrency", cfg.Concurrency)
}

// Load reads the config from v. Keys missing from v keep the defaults of
// NewConfig.
func Load(v *viper.Viper) (Config, error) {
	cfg := NewConfig()

	cfg.Server = v.GetString("server")
	cfg.User = v.GetString("user")
	cfg.Token = v.GetString("token")

	if s := v.GetString("data_dir"); s != "" {
		cfg.DataDir = s
	}
	if s := v.GetString("cache_dir"); s != "" {
		cfg.CacheDir = s
	}
	cfg.Index = v.GetString("index")
	if cfg.Index == "" {
		cfg.Index = filepath.Join(cfg.CacheDir, "index.db")
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"refresh_ttl", &cfg.RefreshTTL},
		{"password_ttl", &cfg.PasswordTTL},
		{"refresh_interval", &cfg.RefreshInterval},
	}
	for _, d := range durations {
		if !v.IsSet(d.key) {
			continue
		}
		val := v.GetDuration(d.key)
		if val <= 0 {
			return Config{}, errors.Errorf("%s must be positive, got %q", d.key, v.GetString(d.key))
		}
		*d.dst = val
	}

	if v.IsSet("compression") {
		mode, err := cache.ParseCompression(v.GetString("compression"))
		if err != nil {
			return Config{}, err
		}
		cfg.Compression = mode
	}

	if v.IsSet("log_level") {
		lvl, err := log.ParseLevel(v.GetString("log_level"))
		if err != nil {
			return Config{}, errors.Wrap(err, "log_level")
		}
		cfg.LogLevel = lvl
	}

	if v.IsSet("metrics_addr") {
		cfg.MetricsAddr = v.GetString("metrics_addr")
	}
	if v.IsSet("concurrency") {
		cfg.Concurrency = v.GetInt("concurrency")
		if cfg.Concurrency < 1 {
			return Config{}, errors.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
		}
	}

	return cfg, nil
}

// RequireRemote returns an error unless the settings needed to talk to the
// server are present.
func (c Config) RequireRemote() error {
	if c.Server == "" {
		return errors.Fatal("no server configured, use --server or $SEACACHE_SERVER")
	}
	if c.User == "" {
		return errors.Fatal("no user configured, use --user or $SEACACHE_USER")
	}
	return nil
}

// Account returns the account described by the config.
func (c Config) Account() seaf.Account {
	return seaf.Account{Server: c.Server, Email: c.User, Token: c.Token}
}

// ConfigDir returns the directory searched for config.yaml.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "seacache")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "seacache")
	}
	return ".seacache"
}

// DefaultDataDir holds the local repo copies.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "seacache")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "seacache")
	}
	return ".seacache"
}

func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "seacache")
	}
	return filepath.Join(".seacache", "cache")
}
