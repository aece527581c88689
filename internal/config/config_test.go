package config

import (
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "cart:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 24*time.Hour, cfg.Redis.MirrorTTL)
	assert.Equal(t, 4*time.Hour, cfg.Redis.MirrorTTLJitter)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "checkout-outbox", cfg.Kafka.Topic)
	assert.Equal(t, "storefront-mirror", cfg.Kafka.GroupID)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "Flames Department Store", cfg.StoreName)
	assert.Equal(t, domain.GuestCustomer(), cfg.Customer.Profile())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("BACKEND_URL", "https://api.example.com")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_MIRROR_TTL", "90m")
	t.Setenv("REDIS_MIRROR_TTL_JITTER", "0s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CUSTOMER_NAME", "Ada Lovelace")
	t.Setenv("CUSTOMER_COUNTRY", "GB")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "https://api.example.com", cfg.BackendURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 90*time.Minute, cfg.Redis.MirrorTTL)
	assert.Zero(t, cfg.Redis.MirrorTTLJitter)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())

	profile := cfg.Customer.Profile()
	assert.Equal(t, "Ada Lovelace", profile.Name)
	assert.Equal(t, "GB", profile.Country)
	assert.Equal(t, "guest@example.com", profile.Email)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"relative backend url", "BACKEND_URL", "localhost:8000/api"},
		{"zero timeout", "REQUEST_TIMEOUT", "0s"},
		{"unparseable timeout", "REQUEST_TIMEOUT", "soon"},
		{"unparseable redis db", "REDIS_DB", "two"},
		{"zero mirror ttl", "REDIS_MIRROR_TTL", "0s"},
		{"negative mirror jitter", "REDIS_MIRROR_TTL_JITTER", "-1h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
