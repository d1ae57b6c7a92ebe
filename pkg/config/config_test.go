package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// helper to build a minimal valid config that can be tweaked in tests.
func validBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.Registry.Backend = "redis"
	cfg.Registry.Redis.Address = "localhost:6379"
	cfg.Registry.Redis.PoolSize = 10
	cfg.Tracing.Enabled = true
	cfg.Tracing.JaegerEndpoint = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 0.5
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name: "ping interval must be > 0",
			mutate: func(c *Config) {
				c.Signal.PingInterval = 0
			},
		},
		{
			name: "pong timeout must be > 0",
			mutate: func(c *Config) {
				c.Signal.PongTimeout = -time.Second
			},
		},
		{
			name: "max message size must be >= 0",
			mutate: func(c *Config) {
				c.Signal.MaxMessageSizeBytes = -1
			},
		},
		{
			name: "registry backend must be known",
			mutate: func(c *Config) {
				c.Registry.Backend = "postgres"
			},
		},
		{
			name: "session ttl must be > 0",
			mutate: func(c *Config) {
				c.Registry.SessionTTL = 0
			},
		},
		{
			name: "redis address required when redis backend",
			mutate: func(c *Config) {
				c.Registry.Redis.Address = ""
			},
		},
		{
			name: "redis pool size must be > 0 when redis backend",
			mutate: func(c *Config) {
				c.Registry.Redis.PoolSize = 0
			},
		},
		{
			name: "jaeger endpoint required when tracing enabled",
			mutate: func(c *Config) {
				c.Tracing.JaegerEndpoint = ""
			},
		},
		{
			name: "sample rate must be in range",
			mutate: func(c *Config) {
				c.Tracing.SampleRate = 1.5
			},
		},
		{
			name: "unknown extra backend",
			mutate: func(c *Config) {
				c.Backends = []string{"direct-peer", "multicast"}
			},
		},
		{
			name: "document root must not be empty",
			mutate: func(c *Config) {
				c.DocumentRoot = ""
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tc.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Registry.Backend != "memory" {
		t.Errorf("Registry.Backend = %q, want memory", cfg.Registry.Backend)
	}
	if cfg.DocumentRoot != "html" {
		t.Errorf("DocumentRoot = %q, want html", cfg.DocumentRoot)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
registry:
  backend: redis
  redis:
    address: redis.internal:6379
    pool_size: 4
backends:
  - rendezvous
document_root: web
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Registry.Backend != "redis" {
		t.Errorf("Registry.Backend = %q, want redis", cfg.Registry.Backend)
	}
	if cfg.Registry.Redis.Address != "redis.internal:6379" {
		t.Errorf("Redis.Address = %q", cfg.Registry.Redis.Address)
	}
	if len(cfg.Backends) != 1 || cfg.Backends[0] != "rendezvous" {
		t.Errorf("Backends = %v, want [rendezvous]", cfg.Backends)
	}
	if cfg.DocumentRoot != "web" {
		t.Errorf("DocumentRoot = %q, want web", cfg.DocumentRoot)
	}
	// untouched defaults survive the merge
	if cfg.Signal.PingInterval != 30*time.Second {
		t.Errorf("Signal.PingInterval = %v, want 30s", cfg.Signal.PingInterval)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PEERCAM_DOCUMENT_ROOT", "/srv/www")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DocumentRoot != "/srv/www" {
		t.Errorf("DocumentRoot = %q, want /srv/www", cfg.DocumentRoot)
	}
}

func TestLoad_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("registry:\n  backend: postgres\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown registry backend")
	}
}
