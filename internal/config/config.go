package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// SessionStoreRedis is the default, durable session store shared across instances
	SessionStoreRedis = "redis"
	// SessionStoreMemory is a single-instance, non-persistent store. It must be
	// requested explicitly; sessions are lost on restart and never shared.
	SessionStoreMemory = "memory"

	// DefaultSessionTTL matches the 14-day session lifetime of the board
	DefaultSessionTTL = 14 * 24 * time.Hour
)

// Config holds application configuration
type Config struct {
	ServerPort  string
	BaseURL     string
	FrontendURL string

	DatabaseURL string
	RedisURL    string

	SessionStore string
	SessionTTL   time.Duration

	OIDCIssuerURL    string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	RabbitMQURL string

	// ProxyOIDCTarget, when set, starts a reverse proxy on ProxyOIDCListen so a
	// provider running in a sibling container is reachable at the same address
	// the browser uses. Development only.
	ProxyOIDCTarget string
	ProxyOIDCListen string

	LoginRateLimit  string
	EnableHSTS      bool
	ServerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
}

// fileConfig mirrors the optional YAML config file. Values set in the
// environment take precedence over the file.
type fileConfig struct {
	ServerPort   string `yaml:"server_port"`
	BaseURL      string `yaml:"base_url"`
	FrontendURL  string `yaml:"frontend_url"`
	DatabaseURL  string `yaml:"database_url"`
	RedisURL     string `yaml:"redis_url"`
	SessionStore string `yaml:"session_store"`
	SessionTTL   string `yaml:"session_ttl"`
	OIDC         struct {
		IssuerURL    string `yaml:"issuer_url"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RedirectURL  string `yaml:"redirect_url"`
	} `yaml:"oidc"`
	RabbitMQURL     string `yaml:"rabbitmq_url"`
	LoginRateLimit  string `yaml:"login_rate_limit"`
	ProxyOIDCTarget string `yaml:"proxy_oidc_target"`
	ProxyOIDCListen string `yaml:"proxy_oidc_listen"`
}

// Load loads configuration from environment variables, with an optional YAML
// file (CONFIG_FILE) supplying values the environment leaves unset
func Load() (*Config, error) {
	var file fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		ServerPort:       getEnv("SERVER_PORT", orDefault(file.ServerPort, "8095")),
		BaseURL:          getEnv("BASE_URL", orDefault(file.BaseURL, "http://localhost:8095")),
		FrontendURL:      getEnv("FRONTEND_URL", orDefault(file.FrontendURL, "http://localhost:3000")),
		DatabaseURL:      getEnv("DATABASE_URL", file.DatabaseURL),
		RedisURL:         getEnv("REDIS_URL", orDefault(file.RedisURL, "redis://localhost:6379/0")),
		SessionStore:     getEnv("SESSION_STORE", orDefault(file.SessionStore, SessionStoreRedis)),
		SessionTTL:       getEnvDuration("SESSION_TTL", fileDuration(file.SessionTTL, DefaultSessionTTL)),
		OIDCIssuerURL:    getEnv("OIDC_ISSUER_URL", file.OIDC.IssuerURL),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", file.OIDC.ClientID),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", file.OIDC.ClientSecret),
		OIDCRedirectURL:  getEnv("OIDC_REDIRECT_URL", file.OIDC.RedirectURL),
		RabbitMQURL:      getEnv("RABBITMQ_URL", file.RabbitMQURL),
		ProxyOIDCTarget:  getEnv("PROXY_OIDC_TARGET", file.ProxyOIDCTarget),
		ProxyOIDCListen:  getEnv("PROXY_OIDC_LISTEN", orDefault(file.ProxyOIDCListen, ":8081")),
		LoginRateLimit:   getEnv("LOGIN_RATE_LIMIT", orDefault(file.LoginRateLimit, "10-M")),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.OIDCIssuerURL == "" || cfg.OIDCClientID == "" || cfg.OIDCRedirectURL == "" {
		return nil, fmt.Errorf("OIDC_ISSUER_URL, OIDC_CLIENT_ID and OIDC_REDIRECT_URL are required")
	}

	switch cfg.SessionStore {
	case SessionStoreRedis, SessionStoreMemory:
	default:
		return nil, fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreRedis, SessionStoreMemory, cfg.SessionStore)
	}

	if cfg.SessionStore == SessionStoreRedis && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when SESSION_STORE is %q", SessionStoreRedis)
	}

	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare integers are treated as days, matching the original deployment
		if days, err := strconv.Atoi(value); err == nil {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	return defaultValue
}

func orDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func fileDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}
