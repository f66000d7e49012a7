// Package config provides configuration loading and management for flagsync.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/flagsync/internal/telemetry"
)

const (
	// StorageTypeMemory keeps splits and segments in process memory
	StorageTypeMemory = "memory"

	// StorageTypeRedis keeps splits and segments in Redis
	StorageTypeRedis = "redis"
)

const (
	// EnvPrefix is the prefix of environment variables read by flagsync
	EnvPrefix = "FLAGSYNC"

	// SDKKeyEnvVar is consulted when no sdkKeyFile is configured
	SDKKeyEnvVar = EnvPrefix + "_SDK_KEY"

	// RedisPasswordEnvVar is consulted when no redis passwordFile is configured
	RedisPasswordEnvVar = EnvPrefix + "_REDIS_PASSWORD"
)

// Default endpoint and timing values
const (
	DefaultSDKURL       = "https://sdk.split.io/api"
	DefaultAuthURL      = "https://auth.split.io/api"
	DefaultStreamingURL = "https://streaming.split.io/sse"

	DefaultFeaturesRefreshRate  = time.Minute
	DefaultSegmentsRefreshRate  = time.Minute
	DefaultHTTPTimeout          = 30 * time.Second
	DefaultAuthRetryBackoffBase = time.Second
	DefaultReconnectBackoffBase = time.Second
	DefaultConnectTimeout       = 10 * time.Second
	DefaultReadTimeout          = 70 * time.Second
	DefaultSegmentConcurrency   = 10

	// minRefreshRate keeps polling from hammering the SDK endpoint
	minRefreshRate = 5 * time.Second
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks; this calls filepath.Clean internally
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// StreamingEnabled selects streaming mode at startup. Defaults to true.
	StreamingEnabled *bool `yaml:"streamingEnabled,omitempty"`

	// SDKKeyFile is the path to a file containing the SDK key
	SDKKeyFile string `yaml:"sdkKeyFile,omitempty"`

	Endpoints EndpointsConfig `yaml:"endpoints,omitempty"`

	// FeaturesRefreshRate is the split polling interval (e.g. "60s")
	FeaturesRefreshRate string `yaml:"featuresRefreshRate,omitempty"`

	// SegmentsRefreshRate is the segment polling interval
	SegmentsRefreshRate string `yaml:"segmentsRefreshRate,omitempty"`

	// SegmentConcurrency bounds parallel segment fetches
	SegmentConcurrency int `yaml:"segmentConcurrency,omitempty"`

	// HTTPTimeout bounds auth and fetch requests
	HTTPTimeout string `yaml:"httpTimeout,omitempty"`

	Push PushConfig `yaml:"push,omitempty"`

	Storage StorageConfig `yaml:"storage,omitempty"`

	// StatusFile is where the last sync status snapshot is written.
	// Empty disables snapshot persistence.
	StatusFile string `yaml:"statusFile,omitempty"`

	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// EndpointsConfig holds the base URLs of the remote services
type EndpointsConfig struct {
	SDK       string `yaml:"sdk,omitempty"`
	Auth      string `yaml:"auth,omitempty"`
	Streaming string `yaml:"streaming,omitempty"`
}

// PushConfig tunes the push subsystem
type PushConfig struct {
	AuthRetryBackoffBase string `yaml:"authRetryBackoffBase,omitempty"`
	ReconnectBackoffBase string `yaml:"reconnectBackoffBase,omitempty"`
	ConnectTimeout       string `yaml:"connectTimeout,omitempty"`

	// ReadTimeout is how long the stream may stay silent before it is
	// considered dead. Keepalives arrive every 60s.
	ReadTimeout string `yaml:"readTimeout,omitempty"`

	// QueueSize is the capacity of each update worker queue
	QueueSize int `yaml:"queueSize,omitempty"`
}

// StorageConfig selects the local split store
type StorageConfig struct {
	// Type is memory or redis. Defaults to memory.
	Type  string       `yaml:"type,omitempty"`
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Address string `yaml:"address"`

	// PasswordFile is the path to a file containing the Redis password
	PasswordFile string `yaml:"passwordFile,omitempty"`

	DB     int    `yaml:"db,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// IsStreamingEnabled reports whether streaming mode is requested
func (c *Config) IsStreamingEnabled() bool {
	if c.StreamingEnabled == nil {
		return true
	}
	return *c.StreamingEnabled
}

// GetSDKKey returns the SDK key using the following priority:
// 1. Read from SDKKeyFile if specified
// 2. Read from the FLAGSYNC_SDK_KEY environment variable
func (c *Config) GetSDKKey() (string, error) {
	if c.SDKKeyFile != "" {
		key, err := readSecretFile(c.SDKKeyFile)
		if err != nil {
			return "", fmt.Errorf("failed to read SDK key from file %s: %w", c.SDKKeyFile, err)
		}
		if key == "" {
			return "", fmt.Errorf("SDK key file %s is empty", c.SDKKeyFile)
		}
		return key, nil
	}

	if key := os.Getenv(SDKKeyEnvVar); key != "" {
		return key, nil
	}

	return "", fmt.Errorf("no SDK key configured: set sdkKeyFile or %s environment variable", SDKKeyEnvVar)
}

// GetSDKURL returns the SDK endpoint used for split and segment fetches
func (c *Config) GetSDKURL() string {
	return valueOr(c.Endpoints.SDK, DefaultSDKURL)
}

// GetAuthURL returns the endpoint issuing streaming tokens
func (c *Config) GetAuthURL() string {
	return valueOr(c.Endpoints.Auth, DefaultAuthURL)
}

// GetStreamingURL returns the SSE endpoint
func (c *Config) GetStreamingURL() string {
	return valueOr(c.Endpoints.Streaming, DefaultStreamingURL)
}

// GetFeaturesRefreshRate returns the split polling interval
func (c *Config) GetFeaturesRefreshRate() time.Duration {
	return durationOr(c.FeaturesRefreshRate, DefaultFeaturesRefreshRate)
}

// GetSegmentsRefreshRate returns the segment polling interval
func (c *Config) GetSegmentsRefreshRate() time.Duration {
	return durationOr(c.SegmentsRefreshRate, DefaultSegmentsRefreshRate)
}

// GetSegmentConcurrency returns the bound on parallel segment fetches
func (c *Config) GetSegmentConcurrency() int {
	if c.SegmentConcurrency <= 0 {
		return DefaultSegmentConcurrency
	}
	return c.SegmentConcurrency
}

// GetHTTPTimeout returns the timeout for non-streaming requests
func (c *Config) GetHTTPTimeout() time.Duration {
	return durationOr(c.HTTPTimeout, DefaultHTTPTimeout)
}

// GetAuthRetryBackoffBase returns the first delay between token requests
func (p *PushConfig) GetAuthRetryBackoffBase() time.Duration {
	return durationOr(p.AuthRetryBackoffBase, DefaultAuthRetryBackoffBase)
}

// GetReconnectBackoffBase returns the first delay between stream reconnects
func (p *PushConfig) GetReconnectBackoffBase() time.Duration {
	return durationOr(p.ReconnectBackoffBase, DefaultReconnectBackoffBase)
}

// GetConnectTimeout returns how long opening the stream may take
func (p *PushConfig) GetConnectTimeout() time.Duration {
	return durationOr(p.ConnectTimeout, DefaultConnectTimeout)
}

// GetReadTimeout returns how long the stream may stay silent
func (p *PushConfig) GetReadTimeout() time.Duration {
	return durationOr(p.ReadTimeout, DefaultReadTimeout)
}

// GetType returns the storage type, defaulting to memory
func (s *StorageConfig) GetType() string {
	if s.Type == "" {
		return StorageTypeMemory
	}
	return s.Type
}

// GetPassword returns the Redis password from PasswordFile, then from the
// FLAGSYNC_REDIS_PASSWORD environment variable. An empty password is valid.
func (r *RedisConfig) GetPassword() (string, error) {
	if r.PasswordFile != "" {
		password, err := readSecretFile(r.PasswordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read redis password from file %s: %w", r.PasswordFile, err)
		}
		return password, nil
	}
	return os.Getenv(RedisPasswordEnvVar), nil
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	for name, raw := range map[string]string{
		"endpoints.sdk":       c.Endpoints.SDK,
		"endpoints.auth":      c.Endpoints.Auth,
		"endpoints.streaming": c.Endpoints.Streaming,
	} {
		if raw == "" {
			continue
		}
		if err := validateURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	errs = append(errs,
		validateRefreshRate("featuresRefreshRate", c.FeaturesRefreshRate),
		validateRefreshRate("segmentsRefreshRate", c.SegmentsRefreshRate),
		validateDuration("httpTimeout", c.HTTPTimeout),
		validateDuration("push.authRetryBackoffBase", c.Push.AuthRetryBackoffBase),
		validateDuration("push.reconnectBackoffBase", c.Push.ReconnectBackoffBase),
		validateDuration("push.connectTimeout", c.Push.ConnectTimeout),
		validateDuration("push.readTimeout", c.Push.ReadTimeout),
	)

	if c.SegmentConcurrency < 0 {
		errs = append(errs, fmt.Errorf("segmentConcurrency must not be negative"))
	}
	if c.Push.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("push.queueSize must not be negative"))
	}

	errs = append(errs, c.Storage.validate())

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func (s *StorageConfig) validate() error {
	switch s.GetType() {
	case StorageTypeMemory:
		return nil
	case StorageTypeRedis:
		if s.Redis == nil || s.Redis.Address == "" {
			return fmt.Errorf("storage.redis.address is required when storage.type is %s", StorageTypeRedis)
		}
		if s.Redis.DB < 0 {
			return fmt.Errorf("storage.redis.db must not be negative")
		}
		return nil
	default:
		return fmt.Errorf("storage.type must be %s or %s, got %s", StorageTypeMemory, StorageTypeRedis, s.Type)
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

func validateDuration(name, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30s', '1m'): %w", name, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", name)
	}
	return nil
}

func validateRefreshRate(name, raw string) error {
	if err := validateDuration(name, raw); err != nil || raw == "" {
		return err
	}
	if d, _ := time.ParseDuration(raw); d < minRefreshRate {
		return fmt.Errorf("%s must be at least %s", name, minRefreshRate)
	}
	return nil
}

// readSecretFile returns the trimmed content of a secret file
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// durationOr parses raw, falling back on empty or invalid input. validate
// rejects invalid input before getters are used.
func durationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
