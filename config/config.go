package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/jaclearn/runbox/lang"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Languages LanguagesConfig `mapstructure:"languages"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// SandboxConfig holds execution engine configuration
type SandboxConfig struct {
	// GracePeriodMs is how long a timed-out or cancelled process group is
	// given after SIGTERM before it is force-killed.
	GracePeriodMs int `mapstructure:"grace_period_ms"`

	// TranslateFallback, when enabled, lets the server translate a request
	// into the other surface syntax before execution if the declared
	// language has no configured runtime.
	TranslateFallback bool `mapstructure:"translate_fallback"`

	// WorkdirPattern is the os.MkdirTemp pattern for per-execution
	// working directories.
	WorkdirPattern string `mapstructure:"workdir_pattern"`
}

// GracePeriod returns the kill grace period as a duration.
func (s SandboxConfig) GracePeriod() time.Duration {
	return time.Duration(s.GracePeriodMs) * time.Millisecond
}

// LimitsConfig holds the system-wide default resource limits.
// Per-request overrides may only tighten these values, never loosen them.
type LimitsConfig struct {
	MaxExecutionTimeMs int   `mapstructure:"max_execution_time_ms"`
	MaxMemoryBytes     int64 `mapstructure:"max_memory_bytes"`
	MaxOutputSizeBytes int64 `mapstructure:"max_output_size_bytes"`
	MaxCodeSizeBytes   int64 `mapstructure:"max_code_size_bytes"`
}

// MaxExecutionTime returns the default execution timeout as a duration.
func (l LimitsConfig) MaxExecutionTime() time.Duration {
	return time.Duration(l.MaxExecutionTimeMs) * time.Millisecond
}

// PolicyConfig holds the administrator-configured security policy.
type PolicyConfig struct {
	BlockedImports         []string `mapstructure:"blocked_imports"`
	BlockedFunctions       []string `mapstructure:"blocked_functions"`
	AllowedLanguages       []string `mapstructure:"allowed_languages"`
	SandboxingEnabled      bool     `mapstructure:"sandboxing_enabled"`
	NetworkAccessEnabled   bool     `mapstructure:"network_access_enabled"`
	MaxExecutionsPerMinute int      `mapstructure:"max_executions_per_minute"`
	MaxExecutionsPerHour   int      `mapstructure:"max_executions_per_hour"`

	// SnapshotPath, when set, loads the policy from a YAML snapshot file
	// maintained by the administration layer instead of the fields above.
	SnapshotPath string `mapstructure:"snapshot_path"`

	// RateBackend selects the rate counter implementation: "memory" or "redis".
	RateBackend string `mapstructure:"rate_backend"`
	RedisAddr   string `mapstructure:"redis_addr"`
}

// LanguagesConfig holds per-language runtime configuration
type LanguagesConfig struct {
	Jac    RuntimeConfig `mapstructure:"jac"`
	Python RuntimeConfig `mapstructure:"python"`
}

// RuntimeConfig describes how to run one surface language.
// RunCmd is a shell-style template; the {src} placeholder is replaced by
// the absolute path of the written source file.
type RuntimeConfig struct {
	RunCmd string `mapstructure:"run_cmd"`
}

// Runtime returns the runtime configuration for the given language.
func (l LanguagesConfig) Runtime(id lang.ID) RuntimeConfig {
	if id == lang.JAC {
		return l.Jac
	}
	return l.Python
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.transport", "stdio")
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	viper.SetDefault("sandbox.grace_period_ms", 100)
	viper.SetDefault("sandbox.translate_fallback", false)
	viper.SetDefault("sandbox.workdir_pattern", "runbox-exec-*")

	viper.SetDefault("limits.max_execution_time_ms", 10000)
	viper.SetDefault("limits.max_memory_bytes", 256*1024*1024)
	viper.SetDefault("limits.max_output_size_bytes", 64*1024)
	viper.SetDefault("limits.max_code_size_bytes", 64*1024)

	viper.SetDefault("policy.blocked_imports", []string{"os", "sys", "subprocess", "socket"})
	viper.SetDefault("policy.blocked_functions", []string{"eval", "exec", "open", "__import__"})
	viper.SetDefault("policy.allowed_languages", []string{"jac", "py"})
	viper.SetDefault("policy.sandboxing_enabled", true)
	viper.SetDefault("policy.network_access_enabled", false)
	viper.SetDefault("policy.max_executions_per_minute", 10)
	viper.SetDefault("policy.max_executions_per_hour", 100)
	viper.SetDefault("policy.rate_backend", "memory")

	viper.SetDefault("languages.jac.run_cmd", "jac run {src}")
	viper.SetDefault("languages.python.run_cmd", "python3 {src}")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Limits.MaxExecutionTimeMs <= 0 {
		return fmt.Errorf("limits.max_execution_time_ms must be positive, got: %d", c.Limits.MaxExecutionTimeMs)
	}
	if c.Limits.MaxMemoryBytes <= 0 {
		return fmt.Errorf("limits.max_memory_bytes must be positive, got: %d", c.Limits.MaxMemoryBytes)
	}
	if c.Limits.MaxOutputSizeBytes <= 0 {
		return fmt.Errorf("limits.max_output_size_bytes must be positive, got: %d", c.Limits.MaxOutputSizeBytes)
	}
	if c.Limits.MaxCodeSizeBytes <= 0 {
		return fmt.Errorf("limits.max_code_size_bytes must be positive, got: %d", c.Limits.MaxCodeSizeBytes)
	}

	if c.Sandbox.GracePeriodMs <= 0 {
		return fmt.Errorf("sandbox.grace_period_ms must be positive, got: %d", c.Sandbox.GracePeriodMs)
	}

	for _, name := range c.Policy.AllowedLanguages {
		if _, err := lang.Parse(name); err != nil {
			return fmt.Errorf("invalid policy.allowed_languages entry: %w", err)
		}
	}

	switch c.Policy.RateBackend {
	case "memory":
	case "redis":
		if c.Policy.RedisAddr == "" {
			return fmt.Errorf("policy.redis_addr is required when policy.rate_backend is 'redis'")
		}
	default:
		return fmt.Errorf("unsupported policy.rate_backend: %s, must be 'memory' or 'redis'", c.Policy.RateBackend)
	}

	return nil
}
