package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	StrategyRoundRobin       = "round-robin"
	StrategyLeastConnections = "least-connections"
)

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	Environment     string `mapstructure:"environment"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

type HealthCheckConfig struct {
	Interval string `mapstructure:"interval"`
	Timeout  string `mapstructure:"timeout"`
	Path     string `mapstructure:"path"`
}

type ProxyConfig struct {
	Timeout string `mapstructure:"timeout"`
}

type StrategyConfig struct {
	Type string `mapstructure:"type"`
}

type BackendConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	// Address of the admin listener serving /metrics. Empty disables it.
	Address string `mapstructure:"address"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Proxy       ProxyConfig       `mapstructure:"proxy"`
	Strategy    StrategyConfig    `mapstructure:"strategy"`
	Backends    []BackendConfig   `mapstructure:"backends"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// Load reads the configuration. With an empty path, config.yaml is looked up
// in ./config and the working directory and may be absent. Environment
// variables override file values, e.g. SERVER_ADDRESS or PROXY_TIMEOUT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("health_check.interval", "5s")
	v.SetDefault("health_check.timeout", "3s")
	v.SetDefault("health_check.path", "/health")
	v.SetDefault("proxy.timeout", "10s")
	v.SetDefault("strategy.type", StrategyRoundRobin)
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("metrics.address", ":9100")
	v.SetDefault("backends", []map[string]any{
		{"name": "Server-1", "url": "http://localhost:3001"},
		{"name": "Server-2", "url": "http://localhost:3002"},
		{"name": "Server-3", "url": "http://localhost:3003"},
	})
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(ValidateHostPort),
					),
					validation.Field(&sc.ShutdownTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(validateHealthCheck),
		),
		validation.Field(&c.Proxy,
			validation.Required,
			validation.By(func(value interface{}) error {
				pc, ok := value.(ProxyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ProxyConfig")
				}
				return validation.ValidateStruct(&pc,
					validation.Field(&pc.Timeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Backends,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateBackendConfig)),
			validation.By(validateUniqueNames),
		),
		validation.Field(&c.Strategy,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(StrategyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a StrategyConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Type,
						validation.Required,
						validation.In(StrategyRoundRobin, StrategyLeastConnections),
					),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.Address, validation.By(ValidateHostPort)),
				)
			}),
		),
	)
}

// ShutdownTimeoutDuration returns the parsed drain deadline. Durations are
// only meaningful after Validate succeeded.
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return mustDuration(s.ShutdownTimeout)
}

func (h HealthCheckConfig) IntervalDuration() time.Duration {
	return mustDuration(h.Interval)
}

func (h HealthCheckConfig) TimeoutDuration() time.Duration {
	return mustDuration(h.Timeout)
}

func (p ProxyConfig) TimeoutDuration() time.Duration {
	return mustDuration(p.Timeout)
}

// BackendNames returns the configured backend names in order.
func (c *Config) BackendNames() []string {
	names := make([]string, 0, len(c.Backends))
	for _, b := range c.Backends {
		names = append(names, b.Name)
	}
	return names
}

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func validateHealthCheck(value interface{}) error {
	hc, ok := value.(HealthCheckConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
	}

	err := validation.ValidateStruct(&hc,
		validation.Field(&hc.Interval,
			validation.Required,
			validation.By(validateDuration),
		),
		validation.Field(&hc.Timeout,
			validation.Required,
			validation.By(validateDuration),
		),
		validation.Field(&hc.Path,
			validation.Required,
			validation.By(func(value interface{}) error {
				if p, _ := value.(string); !strings.HasPrefix(p, "/") {
					return validation.NewError("validation_invalid_path", "must start with /")
				}
				return nil
			}),
		),
	)
	if err != nil {
		return err
	}

	if hc.TimeoutDuration() >= hc.IntervalDuration() {
		return validation.NewError("validation_timeout_exceeds_interval", "timeout must be shorter than interval")
	}

	return nil
}

// ValidateHostPort accepts host:port or :port listen addresses.
func ValidateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if addr == "" {
		return nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if err := is.Port.Validate(port); err != nil {
		return validation.NewError("validation_invalid_port", "invalid port")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d <= 0 {
		return validation.NewError("validation_non_positive_duration", "must be greater than zero")
	}

	return nil
}

func validateBackendConfig(value interface{}) error {
	backend, ok := value.(BackendConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BackendConfig")
	}

	if strings.TrimSpace(backend.Name) == "" {
		return validation.NewError("validation_empty_name", "backend name cannot be empty")
	}

	if backend.URL == "" {
		return validation.NewError("validation_empty_url", "backend URL cannot be empty")
	}

	parsedURL, err := url.Parse(backend.URL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

func validateUniqueNames(value interface{}) error {
	backends, ok := value.([]BackendConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a list of BackendConfig")
	}

	seen := make(map[string]struct{}, len(backends))
	for _, b := range backends {
		if _, dup := seen[b.Name]; dup {
			return validation.NewError("validation_duplicate_name", "backend names must be unique: "+b.Name)
		}
		seen[b.Name] = struct{}{}
	}

	return nil
}
