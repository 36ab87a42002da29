package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Booking  BookingConfig  `mapstructure:"booking"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Email    EmailConfig    `mapstructure:"email"`
	JWT      JWTConfig      `mapstructure:"jwt"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// GatewayConfig configures the payment gateway client.
type GatewayConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	KeyID     string        `mapstructure:"key_id"`
	KeySecret string        `mapstructure:"key_secret"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type BookingConfig struct {
	// ReservationTTL is how long a reserved slot may sit unpaid.
	ReservationTTL time.Duration `mapstructure:"reservation_ttl"`
	// SweepInterval paces the stale-reservation sweep in the worker.
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	ConsultationFee int64         `mapstructure:"consultation_fee"`
	Currency        string        `mapstructure:"currency"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxRetries    int           `mapstructure:"max_retries"`
	Retention     time.Duration `mapstructure:"retention"`
}

type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("booking.reservation_ttl", 15*time.Minute)
	viper.SetDefault("booking.sweep_interval", time.Minute)
	viper.SetDefault("booking.currency", "INR")
	viper.SetDefault("outbox.batch_size", 100)
	viper.SetDefault("outbox.poll_interval", 5*time.Second)
	viper.SetDefault("outbox.retry_attempts", 3)
	viper.SetDefault("outbox.retry_delay", time.Second)
	viper.SetDefault("outbox.max_retries", 5)
	viper.SetDefault("outbox.retention", 7*24*time.Hour)
	viper.SetDefault("jwt.expiry_hours", 24)
}
