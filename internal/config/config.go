// Package config provides configuration management for replcheck.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/dreamware/replcheck/internal/cluster"
	"github.com/dreamware/replcheck/internal/probe"
	"github.com/dreamware/replcheck/internal/report"
	"github.com/dreamware/replcheck/internal/verify"
)

// EnvPrefix prefixes every environment override, e.g. REPLCHECK_CLIENT_TIMEOUT.
const EnvPrefix = "REPLCHECK"

// Config holds all configuration for a harness run.
type Config struct {
	Nodes         []cluster.Node    `mapstructure:"nodes"`
	Probe         ProbeConfig       `mapstructure:"probe"`
	Client        ClientConfig      `mapstructure:"client"`
	Propagation   PropagationConfig `mapstructure:"propagation"`
	Concurrency   int               `mapstructure:"concurrency"`
	Persistence   PersistenceConfig `mapstructure:"persistence"`
	Fixtures      string            `mapstructure:"fixtures"`
	NamespaceKeys bool              `mapstructure:"namespace_keys"`
	Report        ReportConfig      `mapstructure:"report"`
	Metrics       MetricsConfig     `mapstructure:"metrics"`
	Logging       LoggingConfig     `mapstructure:"logging"`
}

// ProbeConfig holds the reachability probe settings.
type ProbeConfig struct {
	Key     string        `mapstructure:"key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ClientConfig holds the store boundary settings.
type ClientConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyHeader string        `mapstructure:"key_header"`
	PutPath   string        `mapstructure:"put_path"`
	GetPath   string        `mapstructure:"get_path"`
	PutMethod string        `mapstructure:"put_method"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
}

// PropagationConfig bounds how long replicated reads are retried.
type PropagationConfig struct {
	Budget         time.Duration `mapstructure:"budget"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
}

// PersistenceConfig selects the node the single-node checks target.
type PersistenceConfig struct {
	Node string `mapstructure:"node"` // empty: first reachable node
}

// ReportConfig holds report rendering settings.
type ReportConfig struct {
	Format       string `mapstructure:"format"`
	PreviewBytes int    `mapstructure:"preview_bytes"`
}

// MetricsConfig holds the optional Pushgateway export.
type MetricsConfig struct {
	Pushgateway string `mapstructure:"pushgateway"`
	Job         string `mapstructure:"job"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// readFile merges an explicit config file, or replcheck.yaml from the working
// directory or /etc/replcheck when path is empty. Only the implicit lookup may
// come up empty.
func readFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("replcheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/replcheck/")
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err == nil || errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("failed to read config file %s: %w", v.ConfigFileUsed(), err)
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Three local nodes
	v.SetDefault("nodes", []map[string]string{
		{"name": "Node 1", "addr": "http://localhost:8080"},
		{"name": "Node 2", "addr": "http://localhost:8081"},
		{"name": "Node 3", "addr": "http://localhost:8082"},
	})

	// Probe defaults
	v.SetDefault("probe.key", probe.DefaultKey)
	v.SetDefault("probe.timeout", "2s")

	// Client defaults
	v.SetDefault("client.timeout", "5s")
	v.SetDefault("client.key_header", "Key")
	v.SetDefault("client.put_path", "/put")
	v.SetDefault("client.get_path", "/get")
	v.SetDefault("client.put_method", http.MethodPost)
	v.SetDefault("client.rate_limit", 0.0)
	v.SetDefault("client.burst", 1)

	// Propagation defaults
	v.SetDefault("propagation.budget", "100ms")
	v.SetDefault("propagation.initial_backoff", "10ms")
	v.SetDefault("propagation.max_backoff", "50ms")
	v.SetDefault("propagation.multiplier", 2.0)

	v.SetDefault("concurrency", 8)
	v.SetDefault("persistence.node", "")
	v.SetDefault("fixtures", "")
	v.SetDefault("namespace_keys", false)

	// Report defaults
	v.SetDefault("report.format", string(report.FormatText))
	v.SetDefault("report.preview_bytes", 50)

	// Metrics defaults
	v.SetDefault("metrics.pushgateway", "")
	v.SetDefault("metrics.job", "replcheck")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := cluster.ValidateNodes(c.Nodes); err != nil {
		return err
	}

	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}

	if c.Client.Timeout <= 0 {
		return fmt.Errorf("client timeout must be positive")
	}
	if c.Client.KeyHeader == "" {
		return fmt.Errorf("client key header is required")
	}
	switch strings.ToUpper(c.Client.PutMethod) {
	case http.MethodPost, http.MethodPut:
	default:
		return fmt.Errorf("invalid client put method: %q", c.Client.PutMethod)
	}
	if c.Client.RateLimit < 0 {
		return fmt.Errorf("client rate limit must not be negative")
	}

	if c.Propagation.Budget < 0 {
		return fmt.Errorf("propagation budget must not be negative")
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}

	if c.Persistence.Node != "" {
		found := false
		for _, n := range c.Nodes {
			if n.Name == c.Persistence.Node {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("persistence node %q is not a configured node", c.Persistence.Node)
		}
	}

	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		return err
	}
	if c.Report.PreviewBytes < 0 {
		return fmt.Errorf("report preview bytes must not be negative")
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}

	return nil
}

// ClusterClient converts the client section for cluster.NewClient.
func (c *Config) ClusterClient() cluster.ClientConfig {
	return cluster.ClientConfig{
		Timeout:   c.Client.Timeout,
		KeyHeader: c.Client.KeyHeader,
		PutPath:   c.Client.PutPath,
		GetPath:   c.Client.GetPath,
		PutMethod: strings.ToUpper(c.Client.PutMethod),
		RateLimit: c.Client.RateLimit,
		Burst:     c.Client.Burst,
	}
}

// ProbeOptions converts the probe section for probe.New.
func (c *Config) ProbeOptions() probe.Config {
	return probe.Config{Key: c.Probe.Key, Timeout: c.Probe.Timeout}
}

// VerifyOptions converts the check tuning for the verify package.
func (c *Config) VerifyOptions() verify.Options {
	return verify.Options{
		Concurrency:  c.Concurrency,
		PreviewBytes: c.Report.PreviewBytes,
		Poll: verify.PollConfig{
			Budget:         c.Propagation.Budget,
			InitialBackoff: c.Propagation.InitialBackoff,
			MaxBackoff:     c.Propagation.MaxBackoff,
			Multiplier:     c.Propagation.Multiplier,
		},
	}
}
