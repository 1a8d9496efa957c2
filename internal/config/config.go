package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/garyjia/invoicing/internal/domain/sequence"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Invoice   InvoiceConfig   `mapstructure:"invoice"`
	Mollie    MollieConfig    `mapstructure:"mollie"`
	Warehouse WarehouseConfig `mapstructure:"warehouse"`
	Lark      LarkConfig      `mapstructure:"lark"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxUploadSize bounds a statement upload in bytes
	MaxUploadSize int64 `mapstructure:"max_upload_size"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// InvoiceConfig holds invoicing rules
type InvoiceConfig struct {
	PaymentPeriodDays int    `mapstructure:"payment_period_days"`
	DefaultPrefix     string `mapstructure:"default_prefix"`
}

// PaymentPeriod returns the payment period as a duration
func (c InvoiceConfig) PaymentPeriod() time.Duration {
	return time.Duration(c.PaymentPeriodDays) * 24 * time.Hour
}

// MollieConfig holds payment gateway configuration
type MollieConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// PublicBaseURL is where the gateway reaches our webhook
	PublicBaseURL string `mapstructure:"public_base_url"`
	// RedirectURL is where customers land after checkout
	RedirectURL string `mapstructure:"redirect_url"`
	Currency    string `mapstructure:"currency"`
}

// WarehouseConfig holds stock API configuration
type WarehouseConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	AppID          string `mapstructure:"app_id"`
	AppSecret      string `mapstructure:"app_secret"`
	OperatorChatID string `mapstructure:"operator_chat_id"`
}

// AuthConfig holds API token configuration
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Issuer    string        `mapstructure:"issuer"`
}

// WorkerConfig holds background job configuration
type WorkerConfig struct {
	GatewaySweepSchedule string        `mapstructure:"gateway_sweep_schedule"`
	GatewayStaleAfter    time.Duration `mapstructure:"gateway_stale_after"`
}

// StorageConfig holds file storage configuration
type StorageConfig struct {
	StatementDir string `mapstructure:"statement_dir"`
}

// Load loads configuration from file and environment variables. A .env file
// in the working directory is read first when present.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.max_upload_size", 10<<20)

	v.SetDefault("database.path", "data/invoicing.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("invoice.payment_period_days", 14)

	v.SetDefault("mollie.base_url", "https://api.mollie.com/v2")
	v.SetDefault("mollie.timeout", 10*time.Second)
	v.SetDefault("mollie.currency", "EUR")

	v.SetDefault("warehouse.timeout", 5*time.Second)

	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.issuer", "invoicing")

	v.SetDefault("worker.gateway_sweep_schedule", "*/10 * * * *")
	v.SetDefault("worker.gateway_stale_after", 30*time.Minute)

	v.SetDefault("storage.statement_dir", "data/statements")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("database.path", "DATABASE_PATH")
	_ = v.BindEnv("mollie.api_key", "MOLLIE_API_KEY")
	_ = v.BindEnv("mollie.public_base_url", "PUBLIC_BASE_URL")
	_ = v.BindEnv("warehouse.api_key", "WAREHOUSE_API_KEY")
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.operator_chat_id", "LARK_OPERATOR_CHAT_ID")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
}

// Validate validates the configuration. Every failure wraps
// entity.ErrConfiguration.
func (c *Config) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", entity.ErrConfiguration, fmt.Sprintf(format, args...))
	}

	if c.Database.Path == "" {
		return fail("database.path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fail("auth.jwt_secret is required")
	}
	if c.Invoice.PaymentPeriodDays < 0 {
		return fail("invoice.payment_period_days must not be negative")
	}
	if err := sequence.ValidatePrefix(c.Invoice.DefaultPrefix); err != nil {
		return fail("invoice.default_prefix: %v", err)
	}

	if c.Mollie.Enabled {
		if c.Mollie.APIKey == "" {
			return fmt.Errorf("%w: mollie.api_key", entity.ErrGatewayNotConfigured)
		}
		if c.Mollie.PublicBaseURL == "" {
			return fail("mollie.public_base_url is required when mollie is enabled")
		}
		if c.Mollie.RedirectURL == "" {
			return fail("mollie.redirect_url is required when mollie is enabled")
		}
	}

	if c.Warehouse.Enabled && c.Warehouse.BaseURL == "" {
		return fail("warehouse.base_url is required when warehouse is enabled")
	}

	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "") {
		return fail("lark.app_id and lark.app_secret are required when lark is enabled")
	}

	return nil
}
