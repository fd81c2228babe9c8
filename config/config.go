package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidPolicy is returned when agent.policy is neither "level" nor "edge".
var ErrInvalidPolicy = errors.New("agent.policy must be \"level\" or \"edge\"")

// Reporting policies understood by the sensor agent.
const (
	PolicyLevel = "level"
	PolicyEdge  = "edge"
)

// Config represents the overall application configuration.
type Config struct {
	ServiceName string           `yaml:"service_name"`
	LogLevel    string           `yaml:"log_level"`
	Server      ServerConfig     `yaml:"server"`
	Occupancy   OccupancyConfig  `yaml:"occupancy"`
	Agent       AgentConfig      `yaml:"agent"`
	Push        PushConfig       `yaml:"push"`
	WorkerPool  WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port              int     `yaml:"port"`
	RateLimitPerSec   float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst    int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds   int     `yaml:"cache_ttl_seconds"`
	ShutdownTimeout   int     `yaml:"shutdown_timeout_seconds"`
	ReadHeaderTimeout int     `yaml:"read_header_timeout_seconds"`
}

// OccupancyConfig holds the decay rule parameters.
type OccupancyConfig struct {
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
}

// AgentConfig holds the sensor agent configuration.
type AgentConfig struct {
	ServerURL             string        `yaml:"server_url"`
	IntervalSeconds       float64       `yaml:"interval_seconds"`
	Interval              time.Duration `yaml:"-"`
	RequestTimeoutSeconds float64       `yaml:"request_timeout_seconds"`
	RequestTimeout        time.Duration `yaml:"-"`
	Policy                string        `yaml:"policy"`
	Sensor                DeviceConfig  `yaml:"sensor"`
	Indicator             DeviceConfig  `yaml:"indicator"`
}

// DeviceConfig selects a device implementation for the agent.
type DeviceConfig struct {
	Kind string `yaml:"kind"` // "file" | "sim" | "log"
	Path string `yaml:"path"`
	// Period is the number of reads between value flips for the "sim" sensor.
	Period int `yaml:"period"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey            string        `yaml:"vapid_public_key"`
	PrivateKey           string        `yaml:"vapid_private_key"`
	Subject              string        `yaml:"subject"`
	TTL                  int           `yaml:"ttl"`
	SubscriptionTTLHours int           `yaml:"subscription_ttl_hours"`
	SubscriptionTTL      time.Duration `yaml:"-"`
	WatchIntervalSeconds int           `yaml:"watch_interval_seconds"`
	WatchInterval        time.Duration `yaml:"-"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// DefaultPath is where both binaries look for a configuration file when
// none is named explicitly.
const DefaultPath = "./config/config.yaml"

// Load reads the configuration from the given path, applies environment
// overrides and fills in defaults. The file must exist.
func Load(path string) (*Config, error) {
	return load(path, false)
}

// LoadOptional is Load for the implicit DefaultPath: a missing file falls
// back to defaults and the environment. Paths named by a flag or CONFIG_PATH
// go through Load so a typo is reported instead of silently ignored.
func LoadOptional(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, optional bool) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	applyEnv(&cfg)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with only defaults applied.
func Default() *Config {
	var cfg Config
	_ = cfg.normalize()
	return &cfg
}

func (cfg *Config) normalize() error {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "occupancy-backend"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 5
	}
	if cfg.Server.ReadHeaderTimeout <= 0 {
		cfg.Server.ReadHeaderTimeout = 5
	}

	if cfg.Occupancy.TimeoutSeconds <= 0 {
		cfg.Occupancy.TimeoutSeconds = 300
	}
	cfg.Occupancy.Timeout = time.Duration(cfg.Occupancy.TimeoutSeconds) * time.Second

	if cfg.Agent.ServerURL == "" {
		cfg.Agent.ServerURL = "http://localhost:3000/motion"
	}
	if cfg.Agent.IntervalSeconds <= 0 {
		cfg.Agent.IntervalSeconds = 1
	}
	cfg.Agent.Interval = seconds(cfg.Agent.IntervalSeconds)
	if cfg.Agent.RequestTimeoutSeconds <= 0 {
		cfg.Agent.RequestTimeoutSeconds = 5
	}
	cfg.Agent.RequestTimeout = seconds(cfg.Agent.RequestTimeoutSeconds)

	cfg.Agent.Policy = strings.ToLower(strings.TrimSpace(cfg.Agent.Policy))
	switch cfg.Agent.Policy {
	case "":
		cfg.Agent.Policy = PolicyLevel
	case PolicyLevel, PolicyEdge:
	default:
		return fmt.Errorf("%w, got %q", ErrInvalidPolicy, cfg.Agent.Policy)
	}

	if cfg.Agent.Sensor.Kind == "" {
		cfg.Agent.Sensor.Kind = "sim"
	}
	if cfg.Agent.Sensor.Period <= 0 {
		cfg.Agent.Sensor.Period = 2
	}
	if cfg.Agent.Indicator.Kind == "" {
		cfg.Agent.Indicator.Kind = "log"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.Push.SubscriptionTTLHours <= 0 {
		cfg.Push.SubscriptionTTLHours = 24 * 30
	}
	cfg.Push.SubscriptionTTL = time.Duration(cfg.Push.SubscriptionTTLHours) * time.Hour
	if cfg.Push.WatchIntervalSeconds <= 0 {
		cfg.Push.WatchIntervalSeconds = 5
	}
	cfg.Push.WatchInterval = time.Duration(cfg.Push.WatchIntervalSeconds) * time.Second

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}
	return nil
}

// applyEnv overrides file values with OCCUPANCY_* environment variables.
func applyEnv(cfg *Config) {
	cfg.LogLevel = getenvDefault("OCCUPANCY_LOG_LEVEL", cfg.LogLevel)
	cfg.Server.Port = getenvInt("OCCUPANCY_PORT", cfg.Server.Port)
	cfg.Occupancy.TimeoutSeconds = getenvInt("OCCUPANCY_TIMEOUT_SECONDS", cfg.Occupancy.TimeoutSeconds)
	cfg.Agent.ServerURL = getenvDefault("OCCUPANCY_SERVER_URL", cfg.Agent.ServerURL)
	cfg.Agent.IntervalSeconds = getenvFloat("OCCUPANCY_AGENT_INTERVAL_SECONDS", cfg.Agent.IntervalSeconds)
	cfg.Agent.Policy = getenvDefault("OCCUPANCY_AGENT_POLICY", cfg.Agent.Policy)
	cfg.Push.PublicKey = getenvDefault("OCCUPANCY_VAPID_PUBLIC_KEY", cfg.Push.PublicKey)
	cfg.Push.PrivateKey = getenvDefault("OCCUPANCY_VAPID_PRIVATE_KEY", cfg.Push.PrivateKey)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}
