package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Identity provider modes
const (
	IdentityModeLocal   = "local"   // users, roles and permissions from the database
	IdentityModeHTTPAPI = "httpapi" // delegate credential checks to an external service
)

// Metrics cache backends
const (
	MetricsCacheTypeMemory     = "memory"
	MetricsCacheTypeRedis      = "redis"
	MetricsCacheTypeRedisAside = "redis-aside"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port            string
	BaseURL         string // public issuer URL, no trailing slash expected
	LoginUIURL      string // external login UI the authorize endpoint redirects to
	Debug           bool
	ShutdownTimeout time.Duration

	// Database
	DatabaseDriver string
	DatabaseDSN    string

	// Tokens
	JWTSecret              string
	AccessTokenExpiration  time.Duration // default, overridable per client
	RefreshTokenExpiration time.Duration // default, overridable per client
	AuthCodeExpiration     time.Duration
	ClockSkewLeeway        time.Duration
	PKCEAllowPlain         bool

	// Identity provider
	IdentityMode          string
	IdentityAPIURL        string
	IdentityAPIAuthMode   string
	IdentityAPIAuthSecret string
	IdentityAPIAuthHeader string
	IdentityAPITimeout    time.Duration
	IdentityAPISkipVerify bool
	IdentityAPIMaxRetries int
	IdentityAPIRetryDelay time.Duration
	IdentityAPIMaxDelay   time.Duration

	// Admin API
	AdminAPIToken string

	// Metrics
	MetricsEnabled             bool
	MetricsToken               string
	MetricsGaugeUpdateEnabled  bool
	MetricsGaugeUpdateInterval time.Duration
	MetricsCacheType           string
	MetricsCacheTTL            time.Duration
	MetricsCacheClientTTL      time.Duration
	MetricsCacheSizePerConn    int
	CacheInitTimeout           time.Duration

	// Redis (rate limiting and distributed caches)
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisConnTimeout time.Duration

	// Rate limiting
	EnableRateLimit          bool
	RateLimitStore           string
	LoginRateLimit           int
	TokenRateLimit           int
	RateLimitCleanupInterval time.Duration

	// Audit logging
	AuditEnabled bool

	// Housekeeping
	CleanupInterval  time.Duration
	CleanupRetention time.Duration
}

// Load reads configuration from the environment. A .env file is honored when
// present so local development does not need exported variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		BaseURL:         getEnv("BASE_URL", "http://localhost:8080"),
		LoginUIURL:      getEnv("LOGIN_UI_URL", "http://localhost:3000/login"),
		Debug:           getEnvBool("DEBUG", false),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:    getEnv("DATABASE_DSN", "authcore.db"),

		JWTSecret:              getEnv("JWT_SECRET", ""),
		AccessTokenExpiration:  getEnvDuration("ACCESS_TOKEN_EXPIRATION", 1*time.Hour),
		RefreshTokenExpiration: getEnvDuration("REFRESH_TOKEN_EXPIRATION", 30*24*time.Hour),
		AuthCodeExpiration:     getEnvDuration("AUTH_CODE_EXPIRATION", 10*time.Minute),
		ClockSkewLeeway:        getEnvDuration("CLOCK_SKEW_LEEWAY", 30*time.Second),
		PKCEAllowPlain:         getEnvBool("PKCE_ALLOW_PLAIN", false),

		IdentityMode:          getEnv("IDENTITY_MODE", IdentityModeLocal),
		IdentityAPIURL:        getEnv("IDENTITY_API_URL", ""),
		IdentityAPIAuthMode:   getEnv("IDENTITY_API_AUTH_MODE", "simple"),
		IdentityAPIAuthSecret: getEnv("IDENTITY_API_AUTH_SECRET", ""),
		IdentityAPIAuthHeader: getEnv("IDENTITY_API_AUTH_HEADER", "X-API-Secret"),
		IdentityAPITimeout:    getEnvDuration("IDENTITY_API_TIMEOUT", 10*time.Second),
		IdentityAPISkipVerify: getEnvBool("IDENTITY_API_INSECURE_SKIP_VERIFY", false),
		IdentityAPIMaxRetries: getEnvInt("IDENTITY_API_MAX_RETRIES", 3),
		IdentityAPIRetryDelay: getEnvDuration("IDENTITY_API_RETRY_DELAY", 1*time.Second),
		IdentityAPIMaxDelay:   getEnvDuration("IDENTITY_API_MAX_RETRY_DELAY", 10*time.Second),

		AdminAPIToken: getEnv("ADMIN_API_TOKEN", ""),

		MetricsEnabled:             getEnvBool("METRICS_ENABLED", true),
		MetricsToken:               getEnv("METRICS_TOKEN", ""),
		MetricsGaugeUpdateEnabled:  getEnvBool("METRICS_GAUGE_UPDATE_ENABLED", true),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", 30*time.Second),
		MetricsCacheType:           getEnv("METRICS_CACHE_TYPE", MetricsCacheTypeMemory),
		MetricsCacheTTL:            getEnvDuration("METRICS_CACHE_TTL", 25*time.Second),
		MetricsCacheClientTTL:      getEnvDuration("METRICS_CACHE_CLIENT_TTL", 10*time.Second),
		MetricsCacheSizePerConn:    getEnvInt("METRICS_CACHE_SIZE_PER_CONN", 16),
		CacheInitTimeout:           getEnvDuration("CACHE_INIT_TIMEOUT", 5*time.Second),

		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisConnTimeout: getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", "memory"),
		LoginRateLimit:           getEnvInt("LOGIN_RATE_LIMIT", 10),
		TokenRateLimit:           getEnvInt("TOKEN_RATE_LIMIT", 60),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),

		AuditEnabled: getEnvBool("AUDIT_ENABLED", true),

		CleanupInterval:  getEnvDuration("CLEANUP_INTERVAL", 1*time.Hour),
		CleanupRetention: getEnvDuration("CLEANUP_RETENTION", 30*24*time.Hour),
	}
}

// Validate checks the configuration for fatal misconfiguration before any
// subsystem is started.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.JWTSecret))
	}
	if c.BaseURL == "" {
		return fmt.Errorf("BASE_URL is required")
	}

	switch c.IdentityMode {
	case IdentityModeLocal:
	case IdentityModeHTTPAPI:
		if c.IdentityAPIURL == "" {
			return fmt.Errorf("IDENTITY_API_URL is required when IDENTITY_MODE=httpapi")
		}
		switch c.IdentityAPIAuthMode {
		case "none", "simple", "hmac":
		default:
			return fmt.Errorf("invalid IDENTITY_API_AUTH_MODE: %s (must be none, simple or hmac)", c.IdentityAPIAuthMode)
		}
	default:
		return fmt.Errorf("invalid IDENTITY_MODE: %s (must be local or httpapi)", c.IdentityMode)
	}

	switch c.MetricsCacheType {
	case MetricsCacheTypeMemory, MetricsCacheTypeRedis, MetricsCacheTypeRedisAside:
	default:
		return fmt.Errorf("invalid METRICS_CACHE_TYPE: %s", c.MetricsCacheType)
	}

	switch c.RateLimitStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid RATE_LIMIT_STORE: %s (must be memory or redis)", c.RateLimitStore)
	}

	if c.AuthCodeExpiration <= 0 {
		return fmt.Errorf("AUTH_CODE_EXPIRATION must be positive")
	}
	if c.AccessTokenExpiration <= 0 || c.RefreshTokenExpiration <= 0 {
		return fmt.Errorf("token expirations must be positive")
	}

	return nil
}

// Issuer returns the issuer identifier used in JWT claims and discovery
// metadata. Trailing slashes are stripped so comparisons stay byte-exact.
func (c *Config) Issuer() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		log.Printf("Warning: invalid integer for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return result
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid duration for %s: %q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
