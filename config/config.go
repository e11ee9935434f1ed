package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the advisory service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Prompts   PromptsConfig   `mapstructure:"prompts"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.JWTSecret) == "" {
		return fmt.Errorf("server.jwt_secret is required")
	}
	return nil
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type       string              `mapstructure:"type"` // anthropic, openai
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Models     map[string]LLMModel `mapstructure:"models"`
	MaxRetries int                 `mapstructure:"max_retries"`
	Backoff    time.Duration       `mapstructure:"backoff"`
	Timeout    time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name            string  `mapstructure:"name"`
	APIName         string  `mapstructure:"api_name"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	CostPer1K       float64 `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64 `mapstructure:"cost_per_1k_output"`
	Encoding        string  `mapstructure:"encoding"` // tiktoken encoding for estimates
}

// LLMRoutingConfig defines which model to use for different tasks
type LLMRoutingConfig struct {
	Report   string `mapstructure:"report"`   // full advisory reports
	Followup string `mapstructure:"followup"` // follow-up answers
	Fallback string `mapstructure:"fallback"` // fallback model
}

func (l LLMConfig) Validate() error {
	if len(l.Providers) == 0 {
		return fmt.Errorf("llm.providers must declare at least one provider")
	}
	for name, p := range l.Providers {
		if p.Type == "" {
			return fmt.Errorf("llm.providers.%s.type is required", name)
		}
		if len(p.Models) == 0 {
			return fmt.Errorf("llm.providers.%s.models must declare at least one model", name)
		}
		for mname, m := range p.Models {
			if m.CostPer1K < 0 || m.CostPer1KOutput < 0 {
				return fmt.Errorf("llm.providers.%s.models.%s: cost rates cannot be negative", name, mname)
			}
		}
	}
	if l.Routing.Report == "" && l.Routing.Fallback == "" {
		return fmt.Errorf("llm.routing.report or llm.routing.fallback is required")
	}
	return nil
}

// CatalogConfig locates the static tools catalog
type CatalogConfig struct {
	Path       string `mapstructure:"path"`
	MaxEntries int    `mapstructure:"max_entries"` // cap on entries serialized into the prompt
}

func (c CatalogConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("catalog.path is required")
	}
	return nil
}

// LimitsConfig bounds request sizes and client request rates
type LimitsConfig struct {
	MaxQueryLen     int           `mapstructure:"max_query_len"`
	MaxFieldLen     int           `mapstructure:"max_field_len"`
	ClientCeiling   int           `mapstructure:"client_ceiling"`
	ClientWindow    time.Duration `mapstructure:"client_window"`
	GlobalPerHour   int           `mapstructure:"global_per_hour"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
}

func (l LimitsConfig) Validate() error {
	if l.MaxQueryLen <= 0 {
		return fmt.Errorf("limits.max_query_len must be > 0")
	}
	if l.MaxFieldLen <= 0 {
		return fmt.Errorf("limits.max_field_len must be > 0")
	}
	if l.ClientCeiling <= 0 {
		return fmt.Errorf("limits.client_ceiling must be > 0")
	}
	if l.ClientWindow <= 0 {
		return fmt.Errorf("limits.client_window must be > 0")
	}
	return nil
}

// BudgetConfig caps monthly spend
type BudgetConfig struct {
	MonthlyCapUSD float64 `mapstructure:"monthly_cap_usd"`
}

func (b BudgetConfig) Validate() error {
	if b.MonthlyCapUSD <= 0 {
		return fmt.Errorf("budget.monthly_cap_usd must be > 0")
	}
	return nil
}

// LedgerConfig selects the durable store for the usage ledger
type LedgerConfig struct {
	Backend string      `mapstructure:"backend"` // file or redis
	File    FileConfig  `mapstructure:"file"`
	Redis   RedisConfig `mapstructure:"redis"`
}

func (l LedgerConfig) Validate() error {
	switch l.Backend {
	case "file":
		if strings.TrimSpace(l.File.Path) == "" {
			return fmt.Errorf("ledger.file.path required when backend is file")
		}
	case "redis":
		return l.Redis.Validate()
	default:
		return fmt.Errorf("ledger.backend must be file or redis")
	}
	return nil
}

// FileConfig contains file storage settings
type FileConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Key      string        `mapstructure:"key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("ledger.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("ledger.redis.port required")
	}
	return nil
}

// AnalyticsConfig controls the sqlite query log
type AnalyticsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func (a AnalyticsConfig) Validate() error {
	if a.Enabled && strings.TrimSpace(a.Path) == "" {
		return fmt.Errorf("analytics.path required when analytics is enabled")
	}
	return nil
}

// PromptsConfig points at optional template overrides; empty values fall
// back to the built-in templates.
type PromptsConfig struct {
	ReportTemplateFile   string `mapstructure:"report_template_file"`
	FollowupTemplateFile string `mapstructure:"followup_template_file"`
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from file, falling back to the usual search paths.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.default_timeout", "90s")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("catalog.path", "catalog/ai_tools.json")
	v.SetDefault("catalog.max_entries", 100)
	v.SetDefault("limits.max_query_len", 2000)
	v.SetDefault("limits.max_field_len", 500)
	v.SetDefault("limits.client_ceiling", 10)
	v.SetDefault("limits.client_window", "24h")
	v.SetDefault("limits.global_per_hour", 120)
	v.SetDefault("limits.provider_timeout", "90s")
	v.SetDefault("budget.monthly_cap_usd", 50.0)
	v.SetDefault("ledger.backend", "file")
	v.SetDefault("ledger.file.path", "data/usage_ledger.json")
	v.SetDefault("ledger.redis.key", "bulwise:usage_ledger")
	v.SetDefault("analytics.enabled", true)
	v.SetDefault("analytics.path", "data/bulwise_analytics.db")
	v.SetDefault("telemetry.enabled", true)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, ".."))
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("BULWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks every section that carries invariants.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	if err := c.Limits.Validate(); err != nil {
		return err
	}
	if err := c.Budget.Validate(); err != nil {
		return err
	}
	if err := c.Ledger.Validate(); err != nil {
		return err
	}
	return c.Analytics.Validate()
}
