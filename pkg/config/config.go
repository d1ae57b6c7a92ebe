package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds the file-backed settings that have no command-line flag:
// ICE servers, the session registry, tracing, and tuning knobs for the
// signaling surfaces. The command line stays the authority for everything
// in Settings.
type Config struct {
	WebRTC struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
	} `yaml:"webrtc"`

	Signal struct {
		PingInterval        time.Duration `yaml:"ping_interval"`
		PongTimeout         time.Duration `yaml:"pong_timeout"`
		MaxMessageSizeBytes int64         `yaml:"max_message_size_bytes"`
		UpgradesPerMinute   int           `yaml:"upgrades_per_minute"`
	} `yaml:"signal"`

	Registry struct {
		Backend    string        `yaml:"backend"`
		SessionTTL time.Duration `yaml:"session_ttl"`
		Redis      struct {
			Address  string `yaml:"address"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size"`
		} `yaml:"redis"`
	} `yaml:"registry"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled        bool    `yaml:"enabled"`
		JaegerEndpoint string  `yaml:"jaeger_endpoint"`
		SampleRate     float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	// Backends listed here are enabled in addition to the one the
	// subcommand selects.
	Backends []string `yaml:"backends"`

	Capture struct {
		VideoDevice string `yaml:"video_device"`
	} `yaml:"capture"`

	Serial struct {
		Device string `yaml:"device"`
	} `yaml:"serial"`

	DocumentRoot string `yaml:"document_root"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Signal
	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.PongTimeout <= 0 {
		return fmt.Errorf("signal.pong_timeout must be > 0")
	}
	if c.Signal.MaxMessageSizeBytes < 0 {
		return fmt.Errorf("signal.max_message_size_bytes must be >= 0")
	}
	if c.Signal.UpgradesPerMinute < 0 {
		return fmt.Errorf("signal.upgrades_per_minute must be >= 0")
	}

	// Registry
	switch c.Registry.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("registry.backend must be memory or redis")
	}
	if c.Registry.SessionTTL <= 0 {
		return fmt.Errorf("registry.session_ttl must be > 0")
	}
	if c.Registry.Backend == "redis" {
		if c.Registry.Redis.Address == "" {
			return fmt.Errorf("registry.redis.address must not be empty when registry.backend=redis")
		}
		if c.Registry.Redis.PoolSize <= 0 {
			return fmt.Errorf("registry.redis.pool_size must be > 0 when registry.backend=redis")
		}
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerEndpoint == "" {
			return fmt.Errorf("tracing.jaeger_endpoint must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be in [0, 1]")
		}
	}

	// Backends
	for _, b := range c.Backends {
		switch BackendKind(b) {
		case BackendDirectPeer, BackendRelay, BackendRendezvous:
		default:
			return fmt.Errorf("backends entry %q is not a known backend", b)
		}
	}

	if c.DocumentRoot == "" {
		return fmt.Errorf("document_root must not be empty")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Signal.PingInterval = 30 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.MaxMessageSizeBytes = 64 * 1024
	cfg.Signal.UpgradesPerMinute = 60

	cfg.Registry.Backend = "memory"
	cfg.Registry.SessionTTL = 24 * time.Hour
	cfg.Registry.Redis.Address = "localhost:6379"
	cfg.Registry.Redis.DB = 0
	cfg.Registry.Redis.PoolSize = 10

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerEndpoint = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 0.1

	cfg.Capture.VideoDevice = "rtp://127.0.0.1:5004"

	cfg.DocumentRoot = "html"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	// Apply environment variable overrides
	if backend := os.Getenv("PEERCAM_REGISTRY_BACKEND"); backend != "" {
		c.Registry.Backend = backend
	}
	if addr := os.Getenv("PEERCAM_REDIS_ADDRESS"); addr != "" {
		c.Registry.Redis.Address = addr
	}
	if device := os.Getenv("PEERCAM_VIDEO_DEVICE"); device != "" {
		c.Capture.VideoDevice = device
	}
	if root := os.Getenv("PEERCAM_DOCUMENT_ROOT"); root != "" {
		c.DocumentRoot = root
	}
}
