// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Fallback   FallbackConfig   `mapstructure:"fallback"`
	Email      EmailConfig      `mapstructure:"email"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	Reminders  RemindersConfig  `mapstructure:"reminders"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname"`
	SSLMode        string `mapstructure:"sslmode"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ProviderConfig configures the primary SMS/WhatsApp API.
// Timeouts are in seconds.
type ProviderConfig struct {
	BaseURL        string               `mapstructure:"base_url"`
	PublicKey      string               `mapstructure:"public_key"`
	SecretKey      string               `mapstructure:"secret_key"`
	SenderID       string               `mapstructure:"sender_id"`
	SendTimeout    int                  `mapstructure:"send_timeout"`
	StatusTimeout  int                  `mapstructure:"status_timeout"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// Configured reports whether both API keys are present.
func (p *ProviderConfig) Configured() bool {
	return p.PublicKey != "" && p.SecretKey != ""
}

// FallbackConfig configures the carrier gateway used when the primary API
// has no credentials.
type FallbackConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
}

func (f *FallbackConfig) Configured() bool {
	return f.AccountSID != "" && f.AuthToken != "" && f.FromNumber != ""
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"`
	Timeout          int     `mapstructure:"timeout"`
	FailureRatio     float64 `mapstructure:"failure_ratio"`
	ConsecutiveFails uint32  `mapstructure:"consecutive_fails"`
}

type EmailConfig struct {
	PostmarkServerToken  string `mapstructure:"postmark_server_token"`
	PostmarkAccountToken string `mapstructure:"postmark_account_token"`
	PostmarkBaseURL      string `mapstructure:"postmark_base_url"`
	SenderEmail          string `mapstructure:"sender_email"`
	ReplyTo              string `mapstructure:"reply_to"`
	DefaultSubject       string `mapstructure:"default_subject"`
	DevOutputDir         string `mapstructure:"dev_output_dir"`
}

type DispatchConfig struct {
	Workers        int `mapstructure:"workers"`
	PersistTimeout int `mapstructure:"persist_timeout"`
}

type ReconcilerConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
	Limit           int `mapstructure:"limit"`
	WindowHours     int `mapstructure:"window_hours"`
	Workers         int `mapstructure:"workers"`
	LockTTL         int `mapstructure:"lock_ttl"`
}

type RemindersConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	TemplateName  string `mapstructure:"template_name"`
	IntervalHours int    `mapstructure:"interval_hours"`
}

type MiddlewareConfig struct {
	RateLimit      int      `mapstructure:"rate_limit"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	RequestTimeout int      `mapstructure:"request_timeout"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
}

// LoadConfig reads configPath and applies environment overrides, where
// nested keys map to upper-case names joined by "_" (provider.public_key
// becomes PROVIDER_PUBLIC_KEY).
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("database.migrations_path", "./migrations")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("provider.base_url", "https://pushr.pywe.org/api/client")
	v.SetDefault("provider.public_key", "")
	v.SetDefault("provider.secret_key", "")
	v.SetDefault("provider.sender_id", "TheGathering")
	v.SetDefault("provider.send_timeout", 30)
	v.SetDefault("provider.status_timeout", 5)
	v.SetDefault("provider.circuit_breaker.max_requests", 3)
	v.SetDefault("provider.circuit_breaker.interval", 60)
	v.SetDefault("provider.circuit_breaker.timeout", 60)
	v.SetDefault("provider.circuit_breaker.failure_ratio", 0.6)
	v.SetDefault("provider.circuit_breaker.consecutive_fails", 5)
	v.SetDefault("fallback.base_url", "https://api.twilio.com/2010-04-01")
	v.SetDefault("fallback.account_sid", "")
	v.SetDefault("fallback.auth_token", "")
	v.SetDefault("fallback.from_number", "")
	v.SetDefault("email.postmark_server_token", "")
	v.SetDefault("email.postmark_account_token", "")
	v.SetDefault("email.postmark_base_url", "")
	v.SetDefault("email.sender_email", "")
	v.SetDefault("email.reply_to", "")
	v.SetDefault("email.default_subject", "Message from The Gathering")
	v.SetDefault("email.dev_output_dir", "")
	v.SetDefault("dispatch.workers", 4)
	v.SetDefault("dispatch.persist_timeout", 5)
	v.SetDefault("reconciler.interval_minutes", 10)
	v.SetDefault("reconciler.limit", 50)
	v.SetDefault("reconciler.window_hours", 24)
	v.SetDefault("reconciler.workers", 4)
	v.SetDefault("reconciler.lock_ttl", 300)
	v.SetDefault("reminders.enabled", false)
	v.SetDefault("reminders.template_name", "Event Reminder")
	v.SetDefault("reminders.interval_hours", 24)
	v.SetDefault("middleware.rate_limit", 100)
	v.SetDefault("middleware.rate_limit_burst", 1000)
	v.SetDefault("middleware.request_timeout", 120)
	v.SetDefault("middleware.cors_origins", []string{})
}

// Validate rejects values that would make workers or schedulers misbehave.
func (c *Config) Validate() error {
	switch {
	case c.Dispatch.Workers <= 0:
		return fmt.Errorf("invalid config: dispatch.workers must be > 0")
	case c.Reconciler.Workers <= 0:
		return fmt.Errorf("invalid config: reconciler.workers must be > 0")
	case c.Reconciler.Limit <= 0:
		return fmt.Errorf("invalid config: reconciler.limit must be > 0")
	case c.Reconciler.WindowHours <= 0:
		return fmt.Errorf("invalid config: reconciler.window_hours must be > 0")
	case c.Reconciler.IntervalMinutes <= 0:
		return fmt.Errorf("invalid config: reconciler.interval_minutes must be > 0")
	case c.Provider.SendTimeout <= 0 || c.Provider.StatusTimeout <= 0:
		return fmt.Errorf("invalid config: provider timeouts must be > 0")
	case c.Reminders.Enabled && c.Reminders.IntervalHours <= 0:
		return fmt.Errorf("invalid config: reminders.interval_hours must be > 0")
	}
	return nil
}

// GetDSN returns PostgreSQL connection string.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// GetURL returns the DSN in URL form, as golang-migrate expects.
func (d *DatabaseConfig) GetURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

func (p *ProviderConfig) SendTimeoutDuration() time.Duration {
	return time.Duration(p.SendTimeout) * time.Second
}

func (p *ProviderConfig) StatusTimeoutDuration() time.Duration {
	return time.Duration(p.StatusTimeout) * time.Second
}
