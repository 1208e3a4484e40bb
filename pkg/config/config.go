// Package config loads settings from the environment and an optional config file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Import    ImportConfig    `mapstructure:"import"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimit      float64  `mapstructure:"rate_limit"` // requests per second per procedure
	RateBurst      int      `mapstructure:"rate_burst"`
}

// DatabaseConfig is optional; without a host, profiles are kept in memory.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type AssistantConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Rate       float64       `mapstructure:"rate"`
	Burst      int           `mapstructure:"burst"`
	Narrate    bool          `mapstructure:"narrate"`
}

type ImportConfig struct {
	Delimiter       string `mapstructure:"delimiter"`
	Encoding        string `mapstructure:"encoding"`
	ThousandsPolicy string `mapstructure:"thousands_policy"`
	MaxBytes        int64  `mapstructure:"max_bytes"`
	CacheSize       int    `mapstructure:"cache_size"`
	Workers         int    `mapstructure:"workers"`
	SaleColumn      string `mapstructure:"sale_column"`
	CostColumn      string `mapstructure:"cost_column"`
	QuantityColumn  string `mapstructure:"quantity_column"`
	SellerColumn    string `mapstructure:"seller_column"`
	BrandColumn     string `mapstructure:"brand_column"`
	CategoryColumn  string `mapstructure:"category_column"`
	ClientColumn    string `mapstructure:"client_column"`
	DateColumn      string `mapstructure:"date_column"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN builds a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.port", 6060)

	v.SetDefault("assistant.api_key", "")
	v.SetDefault("assistant.model", "gemini-2.0-flash")
	v.SetDefault("assistant.timeout", 15*time.Second)
	v.SetDefault("assistant.max_retries", 1)
	v.SetDefault("assistant.retry_delay", 500*time.Millisecond)
	v.SetDefault("assistant.rate", 2.0)
	v.SetDefault("assistant.burst", 4)
	v.SetDefault("assistant.narrate", false)

	v.SetDefault("import.delimiter", ";")
	v.SetDefault("import.encoding", "latin1")
	v.SetDefault("import.thousands_policy", "three_digit_group")
	v.SetDefault("import.max_bytes", 32<<20)
	v.SetDefault("import.cache_size", 16)
	v.SetDefault("import.workers", 0)
	v.SetDefault("import.sale_column", "Total")
	v.SetDefault("import.cost_column", "Costo")
	v.SetDefault("import.quantity_column", "Cantidad")
	v.SetDefault("import.seller_column", "Vendedor")
	v.SetDefault("import.brand_column", "Marca")
	v.SetDefault("import.category_column", "Rubro")
	v.SetDefault("import.client_column", "Razón Social")
	v.SetDefault("import.date_column", "Fecha Emisión")
}

// Load reads config.yaml (if present) and environment variables such as
// SERVER_PORT or ASSISTANT_API_KEY. GEMINI_API_KEY is accepted as an alias.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("assistant.api_key", "ASSISTANT_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if len([]rune(c.Import.Delimiter)) != 1 {
		return fmt.Errorf("import delimiter must be a single character, got %q", c.Import.Delimiter)
	}
	if c.Import.MaxBytes <= 0 {
		return fmt.Errorf("import max bytes must be positive")
	}
	if c.Assistant.MaxRetries < 0 || c.Assistant.MaxRetries > 1 {
		return fmt.Errorf("assistant max retries must be 0 or 1, got %d", c.Assistant.MaxRetries)
	}
	return nil
}
