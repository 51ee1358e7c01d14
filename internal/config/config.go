package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

type Config struct {
	Mode       string
	APIBaseURL string
	ListenAddr string
	LogLevel   string

	// LocalStore selects the durable key/value backend: "memory",
	// "sqlite:<path>", "postgres://..." or "redis://...".
	LocalStore string

	KafkaBrokers []string
	KafkaTopic   string

	RemoteTimeout time.Duration
	RemoteRPS     float64

	CSRFProtect bool
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	cfg := &Config{
		Mode:       EnvDefault("SHOPFRONT_MODE", ModeDevelopment),
		ListenAddr: EnvDefault("LISTEN_ADDR", "127.0.0.1:3000"),
		LogLevel:   EnvDefault("LOG_LEVEL", "info"),
		LocalStore: EnvDefault("LOCAL_STORE", "sqlite:shopfront.db"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvDefault("KAFKA_TOPIC", "storefront_events"),

		RemoteTimeout: time.Duration(EnvIntDefault("REMOTE_TIMEOUT_MS", 10000)) * time.Millisecond,
		RemoteRPS:     EnvFloatDefault("REMOTE_RPS", 0),

		CSRFProtect: !strings.EqualFold(EnvDefault("CSRF_PROTECT", "true"), "false"),
	}

	base, err := BaseURL(cfg.Mode, os.Getenv("API_URL_DEV"), os.Getenv("API_URL_PROD"))
	if err != nil {
		return nil, err
	}
	cfg.APIBaseURL = base

	return cfg, nil
}

// BaseURL picks the backend address for the build mode.
func BaseURL(mode, devURL, prodURL string) (string, error) {
	switch strings.ToLower(mode) {
	case ModeProduction:
		if prodURL == "" {
			return "", fmt.Errorf("API_URL_PROD is required in %s mode", ModeProduction)
		}
		return strings.TrimRight(prodURL, "/"), nil
	case ModeDevelopment, "":
		if devURL == "" {
			devURL = "http://localhost:5000/api"
		}
		return strings.TrimRight(devURL, "/"), nil
	default:
		return "", fmt.Errorf("unknown SHOPFRONT_MODE %q", mode)
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}
