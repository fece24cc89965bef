package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/me/examvm/internal/gateway"
	"github.com/me/examvm/internal/ratelimit"
	"github.com/me/examvm/internal/scheduler"
)

// EnvPrefix is the prefix for environment overrides (EXAMVM_DB_PATH, ...).
const EnvPrefix = "EXAMVM"

// Config holds configuration for the examvm process.
type Config struct {
	DBPath    string `mapstructure:"db_path"`    // SQLite database path (":memory:" for testing)
	Addr      string `mapstructure:"addr"`       // Status API listen address; empty disables it
	LogLevel  string `mapstructure:"log_level"`  // debug, info, warn, error
	LogFormat string `mapstructure:"log_format"` // text, json
	LogSource bool   `mapstructure:"log_source"` // add source locations to log records

	RateLimit         int           `mapstructure:"rate_limit"`         // gateway calls per window
	RateWindow        time.Duration `mapstructure:"rate_window"`        // rolling window length
	ProvisioningDelay time.Duration `mapstructure:"provisioning_delay"` // time to bring up one VM
	QueueSize         int           `mapstructure:"queue_size"`         // gateway pending queue capacity

	PollInterval  time.Duration `mapstructure:"poll_interval"`  // service tick period
	BatchInterval time.Duration `mapstructure:"batch_interval"` // pause between sub-batches
}

// Default returns the production defaults, taken from the gateway and
// scheduler packages.
func Default() Config {
	gw := gateway.DefaultConfig()
	sched := scheduler.DefaultConfig()
	return Config{
		DBPath:            "examvm.db",
		Addr:              ":8080",
		LogLevel:          "info",
		LogFormat:         "text",
		RateLimit:         sched.BatchSize,
		RateWindow:        ratelimit.DefaultWindow,
		ProvisioningDelay: gw.Delay,
		QueueSize:         gw.QueueSize,
		PollInterval:      sched.PollInterval,
		BatchInterval:     sched.BatchInterval,
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit must be positive, got %d", c.RateLimit))
	}
	if c.RateWindow <= 0 {
		errs = append(errs, fmt.Errorf("rate_window must be positive, got %s", c.RateWindow))
	}
	if c.ProvisioningDelay < 0 {
		errs = append(errs, fmt.Errorf("provisioning_delay must not be negative, got %s", c.ProvisioningDelay))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("queue_size must be positive, got %d", c.QueueSize))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.BatchInterval < 0 {
		errs = append(errs, fmt.Errorf("batch_interval must not be negative, got %s", c.BatchInterval))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// NewViper returns a viper instance carrying the defaults and reading
// EXAMVM_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("addr", d.Addr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("log_source", d.LogSource)
	v.SetDefault("rate_limit", d.RateLimit)
	v.SetDefault("rate_window", d.RateWindow)
	v.SetDefault("provisioning_delay", d.ProvisioningDelay)
	v.SetDefault("queue_size", d.QueueSize)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("batch_interval", d.BatchInterval)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file into v, then decodes and validates
// the merged result. Precedence: flags bound to v, env, file, defaults.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
