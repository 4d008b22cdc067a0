package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/skyline93/seacache/internal/cache"
	"github.com/skyline93/seacache/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	v.Set("cache_dir", "/tmp/sc")

	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RefreshTTL != 10*time.Minute || cfg.PasswordTTL != 59*time.Minute {
		t.Errorf("ttls %v %v", cfg.RefreshTTL, cfg.PasswordTTL)
	}
	if cfg.Index != filepath.Join("/tmp/sc", "index.db") {
		t.Errorf("index %q", cfg.Index)
	}
	if cfg.Compression != cache.CompressionAuto || cfg.LogLevel != log.InfoLevel {
		t.Errorf("compression %v level %v", cfg.Compression, cfg.LogLevel)
	}
}

func TestLoadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server: https://cloud.example.com
user: foo@example.com
token: abc
index: memory
refresh_ttl: 30s
compression: max
log_level: debug
concurrency: 8
`
	if err := os.WriteFile(file, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.RequireRemote(); err != nil {
		t.Fatal(err)
	}
	if cfg.Index != MemoryIndex || cfg.RefreshTTL != 30*time.Second || cfg.Concurrency != 8 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Compression != cache.CompressionMax || cfg.LogLevel != log.DebugLevel {
		t.Errorf("compression %v level %v", cfg.Compression, cfg.LogLevel)
	}
	if a := cfg.Account(); a.Email != "foo@example.com" || a.Token != "abc" {
		t.Errorf("account %+v", a)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("SEACACHE_SERVER", "https://env.example.com")

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server != "https://env.example.com" {
		t.Errorf("server %q", cfg.Server)
	}
	if err := cfg.RequireRemote(); !errors.IsFatal(err) {
		t.Errorf("missing user not reported: %v", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	for key, val := range map[string]interface{}{
		"compression": "fast",
		"log_level":   "loud",
		"refresh_ttl": "-1m",
		"concurrency": 0,
	} {
		v := viper.New()
		v.Set(key, val)
		if _, err := Load(v); err == nil {
			t.Errorf("%v=%v accepted", key, val)
		}
	}
}
