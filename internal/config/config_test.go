package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseURL_ByMode(t *testing.T) {
	got, err := BaseURL(ModeDevelopment, "http://dev.local/api/", "https://shop.example/api")
	require.NoError(t, err)
	assert.Equal(t, "http://dev.local/api", got)

	got, err = BaseURL(ModeProduction, "http://dev.local/api", "https://shop.example/api/")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/api", got)

	got, err = BaseURL("", "", "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000/api", got)
}

func TestBaseURL_Errors(t *testing.T) {
	_, err := BaseURL(ModeProduction, "http://dev.local", "")
	require.Error(t, err)

	_, err = BaseURL("staging", "http://dev.local", "https://shop.example")
	require.Error(t, err)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("SHOPFRONT_MODE", ModeProduction)
	t.Setenv("API_URL_PROD", "https://shop.example/api")
	t.Setenv("LOCAL_STORE", "memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("REMOTE_TIMEOUT_MS", "2500")
	t.Setenv("REMOTE_RPS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/api", cfg.APIBaseURL)
	assert.Equal(t, "memory", cfg.LocalStore)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2500*time.Millisecond, cfg.RemoteTimeout)
	assert.Zero(t, cfg.RemoteRPS)
	assert.Equal(t, "storefront_events", cfg.KafkaTopic)
}
