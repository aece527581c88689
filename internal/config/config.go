// Package config reads storefront settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

type Config struct {
	HTTPPort           string        `env:"HTTP_PORT" envDefault:"8080"`
	BackendURL         string        `env:"BACKEND_URL" envDefault:"http://localhost:8000"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxRequestBodySize int64         `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	Redis RedisConfig `envPrefix:"REDIS_"`
	Kafka KafkaConfig

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	CookieSecure       bool     `env:"COOKIE_SECURE" envDefault:"false"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
	OTELEndpoint   string `env:"OTEL_ENDPOINT"`

	StoreName string         `env:"STORE_NAME" envDefault:"Flames Department Store"`
	Customer  CustomerConfig `envPrefix:"CUSTOMER_"`
}

// RedisConfig selects the Redis cart mirror. An empty Addr keeps mirrors in
// memory.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`

	KeyPrefix       string        `env:"KEY_PREFIX" envDefault:"cart:"`
	MirrorTTL       time.Duration `env:"MIRROR_TTL" envDefault:"24h"`
	MirrorTTLJitter time.Duration `env:"MIRROR_TTL_JITTER" envDefault:"4h"`
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// KafkaConfig enables the order events consumer when Brokers is set.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"ORDER_EVENTS_TOPIC" envDefault:"checkout-outbox"`
	GroupID string   `env:"ORDER_EVENTS_GROUP" envDefault:"storefront-mirror"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// CustomerConfig is the shipping profile sent with every checkout.
type CustomerConfig struct {
	Name         string `env:"NAME" envDefault:"Guest User"`
	Email        string `env:"EMAIL" envDefault:"guest@example.com"`
	AddressLine1 string `env:"ADDRESS_LINE1" envDefault:"123 Main St"`
	City         string `env:"CITY" envDefault:"Springfield"`
	State        string `env:"STATE" envDefault:"CA"`
	PostalCode   string `env:"POSTAL_CODE" envDefault:"90001"`
	Country      string `env:"COUNTRY" envDefault:"US"`
}

func (c CustomerConfig) Profile() domain.Customer {
	return domain.Customer{
		Name:         c.Name,
		Email:        c.Email,
		AddressLine1: c.AddressLine1,
		City:         c.City,
		State:        c.State,
		PostalCode:   c.PostalCode,
		Country:      c.Country,
	}
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL, got %q", c.BackendURL)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Redis.MirrorTTL <= 0 {
		return errors.New("REDIS_MIRROR_TTL must be positive")
	}
	if c.Redis.MirrorTTLJitter < 0 {
		return errors.New("REDIS_MIRROR_TTL_JITTER must not be negative")
	}
	return nil
}
