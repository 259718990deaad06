package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Payment       PaymentConfig       `mapstructure:"payment"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type PaymentConfig struct {
	DefaultCurrency string        `mapstructure:"default_currency"`
	GatewayTimeout  time.Duration `mapstructure:"gateway_timeout"`
	// CurrencyPrecision overrides the ISO 4217 minor-unit scale per currency code.
	CurrencyPrecision map[string]int32 `mapstructure:"currency_precision"`
	Gateways          []GatewayConfig  `mapstructure:"gateways"`
}

type GatewayConfig struct {
	Name                string            `mapstructure:"name" validate:"required"`
	Type                string            `mapstructure:"type" validate:"required,oneof=http dummy"`
	APIURL              string            `mapstructure:"api_url"`
	APIKey              string            `mapstructure:"api_key"`
	AutoCapture         bool              `mapstructure:"auto_capture"`
	StoreCustomer       bool              `mapstructure:"store_customer"`
	Require3DSecure     bool              `mapstructure:"require_3d_secure"`
	SupportedCurrencies []string          `mapstructure:"supported_currencies"`
	ConnectionParams    map[string]string `mapstructure:"connection_params"`
}

const (
	GatewayTypeHTTP  = "http"
	GatewayTypeDummy = "dummy"
)

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// LoadConfigFromEnv builds the configuration from plain environment variables,
// used for container deployments where no config.yml is mounted.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("HTTP_BASE_URL", ""),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Payment: PaymentConfig{
			DefaultCurrency: getEnv("PAYMENT_DEFAULT_CURRENCY", "USD"),
			GatewayTimeout:  getEnvAsDuration("PAYMENT_GATEWAY_TIMEOUT", 10*time.Second),
		},
	}

	if apiURL := getEnv("PAYMENT_GATEWAY_URL", ""); apiURL != "" {
		cfg.Payment.Gateways = append(cfg.Payment.Gateways, GatewayConfig{
			Name:                getEnv("PAYMENT_GATEWAY_NAME", "default"),
			Type:                GatewayTypeHTTP,
			APIURL:              apiURL,
			APIKey:              getEnv("PAYMENT_GATEWAY_API_KEY", ""),
			AutoCapture:         getEnv("PAYMENT_GATEWAY_AUTO_CAPTURE", "false") == "true",
			SupportedCurrencies: splitList(getEnv("PAYMENT_GATEWAY_CURRENCIES", "")),
		})
	}

	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Payment.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payment config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.BaseURL != "" {
		if _, err := url.Parse(c.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url %s: %w", c.BaseURL, err)
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *PaymentConfig) Validate() error {
	if len(c.DefaultCurrency) != 3 {
		return errors.New("default_currency must be a 3-letter ISO code")
	}
	if c.GatewayTimeout < 0 {
		return errors.New("gateway_timeout must not be negative")
	}

	seen := make(map[string]struct{}, len(c.Gateways))
	for _, g := range c.Gateways {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("gateway %q: %w", g.Name, err)
		}
		if _, dup := seen[g.Name]; dup {
			return fmt.Errorf("gateway %q is configured twice", g.Name)
		}
		seen[g.Name] = struct{}{}
	}

	for code, scale := range c.CurrencyPrecision {
		if scale < 0 || scale > 8 {
			return fmt.Errorf("currency_precision for %s must be between 0 and 8", code)
		}
	}
	return nil
}

func (c *GatewayConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if strings.EqualFold(c.Name, "MANUAL") {
		return errors.New("MANUAL is reserved for staff-entered payments")
	}
	switch c.Type {
	case GatewayTypeHTTP:
		if c.APIURL == "" {
			return errors.New("api_url is required for http gateways")
		}
		if _, err := url.ParseRequestURI(c.APIURL); err != nil {
			return fmt.Errorf("invalid api_url: %w", err)
		}
	case GatewayTypeDummy:
	default:
		return fmt.Errorf("unknown gateway type %q", c.Type)
	}
	return nil
}
