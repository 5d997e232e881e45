// Package config reads process configuration from the environment once at
// startup so main stays lean and the rest of the code receives plain values.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Endpoint identifies one downstream collaborator.
type Endpoint struct {
	Host string
	Port int
}

// Config captures everything the service reads from the environment.
type Config struct {
	Addr string

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// Bcrypt hash of the bootstrap admin key. Empty disables the
	// X-Bootstrap-Key escape hatch for skill registration.
	BootstrapAdminKeyHash string

	RedisURL string

	Context   Endpoint
	Storage   Endpoint
	Policy    Endpoint
	Inference Endpoint

	GlobalRateLimit int
	UserRateLimit   int
	RateWindow      time.Duration

	PolicyTimeout     time.Duration
	PolicyCacheTTL    time.Duration
	PolicyCacheDenies bool

	DispatchTimeout  time.Duration
	DispatchAttempts int
	DispatchBackoff  time.Duration

	AuditTimeout     time.Duration
	AuditPostgresDSN string
	AuditKafkaBroker string
	AuditKafkaTopic  string

	MaxPayloadBytes int

	AllowedHosts []string
	CORSOrigins  []string
}

// FromEnv builds a Config from environment variables, applying defaults
// suitable for local development.
func FromEnv() Config {
	return Config{
		Addr: getString("CONDUCTOR_ADDR", ":8080"),

		JWTSigningKey: getString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     getString("JWT_ISSUER", "conductor"),
		JWTAudience:   getString("JWT_AUDIENCE", "conductor-clients"),

		BootstrapAdminKeyHash: os.Getenv("BOOTSTRAP_ADMIN_KEY_HASH"),

		RedisURL: os.Getenv("REDIS_URL"),

		Context:   getEndpoint("CONTEXT", 7010),
		Storage:   getEndpoint("STORAGE", 7020),
		Policy:    getEndpoint("POLICY", 7030),
		Inference: getEndpoint("INFERENCE", 7040),

		GlobalRateLimit: getInt("GLOBAL_RATE_LIMIT", 100),
		UserRateLimit:   getInt("USER_RATE_LIMIT", 30),
		RateWindow:      getDuration("RATE_WINDOW", time.Minute),

		PolicyTimeout:     getDuration("POLICY_TIMEOUT", 2*time.Second),
		PolicyCacheTTL:    getDuration("POLICY_CACHE_TTL", 30*time.Second),
		PolicyCacheDenies: getBool("POLICY_CACHE_DENIES", false),

		DispatchTimeout:  getDuration("DISPATCH_TIMEOUT", 5*time.Second),
		DispatchAttempts: getInt("DISPATCH_ATTEMPTS", 3),
		DispatchBackoff:  getDuration("DISPATCH_BACKOFF", 200*time.Millisecond),

		AuditTimeout:     getDuration("AUDIT_TIMEOUT", 500*time.Millisecond),
		AuditPostgresDSN: os.Getenv("AUDIT_POSTGRES_DSN"),
		AuditKafkaBroker: os.Getenv("AUDIT_KAFKA_BROKER"),
		AuditKafkaTopic:  getString("AUDIT_KAFKA_TOPIC", "conductor.audit"),

		MaxPayloadBytes: getInt("MAX_PAYLOAD_BYTES", 64*1024),

		AllowedHosts: getList("ALLOWED_HOSTS"),
		CORSOrigins:  getList("CORS_ORIGINS"),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEndpoint(prefix string, defaultPort int) Endpoint {
	return Endpoint{
		Host: getString(prefix+"_HOST", "127.0.0.1"),
		Port: getInt(prefix+"_PORT", defaultPort),
	}
}
