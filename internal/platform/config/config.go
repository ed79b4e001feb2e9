// Package config builds runtime configuration from environment variables so
// main stays lean. Optional backends (Redis, Postgres, Kafka, webhook) are
// signalled by empty values; the wiring layer degrades accordingly.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr string

	Auth      AuthConfig
	Stream    StreamConfig
	RateLimit RateLimitConfig

	RedisURL     string
	DatabaseURL  string
	KafkaBrokers []string
	KafkaTopic   string
	AuditWebhook string
}

// AuthConfig configures the JWKS client and claim validation.
// When Audience is set, audience and issuer claims become mandatory.
type AuthConfig struct {
	JWKSURL  string
	Audience string
	Issuer   string
	CacheTTL time.Duration
}

// StreamConfig bounds concurrent streams and session lifetime.
type StreamConfig struct {
	InactivityTTL     time.Duration
	MaxStreamsPerUser int
	SlotTTL           time.Duration
}

// RateLimitConfig bounds request rates per client identity.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// FromEnv builds a Config from environment variables with development defaults.
func FromEnv() Config {
	addr := os.Getenv("TALENTSTREAM_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	topic := os.Getenv("KAFKA_AUDIT_TOPIC")
	if topic == "" {
		topic = "audit-events"
	}

	return Config{
		Addr: addr,
		Auth: AuthConfig{
			JWKSURL:  os.Getenv("JWKS_URL"),
			Audience: os.Getenv("AUTH_AUDIENCE"),
			Issuer:   os.Getenv("AUTH_ISSUER"),
			CacheTTL: envDuration("JWKS_CACHE_TTL", 300*time.Second),
		},
		Stream: StreamConfig{
			InactivityTTL:     envDuration("SSE_INACTIVITY_TTL", 60*time.Second),
			MaxStreamsPerUser: envInt("MAX_STREAMS_PER_USER", 5),
			SlotTTL:           envDuration("STREAM_SLOT_TTL", 3600*time.Second),
		},
		RateLimit: RateLimitConfig{
			Limit:  envInt("RATE_LIMIT", 100),
			Window: envDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		},
		RedisURL:     os.Getenv("REDIS_URL"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		KafkaBrokers: brokers,
		KafkaTopic:   topic,
		AuditWebhook: os.Getenv("AUDIT_WEBHOOK"),
	}
}

func envInt(name string, fallback int) int {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

// envDuration reads a duration expressed in whole seconds, matching how these
// knobs have always been configured in deployment.
func envDuration(name string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return fallback
}
