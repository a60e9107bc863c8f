package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	// Outbound WhatsApp provider.
	WhatsAppEnabled       bool
	WhatsAppPhoneNumberID string
	WhatsAppAccessToken   string
	WhatsAppAPIVersion    string
	WhatsAppBaseURL       string
	WebhookVerifyToken    string

	// Auto-reply generation.
	OpenAIAPIKey string
	OpenAIModel  string

	// Circuit breaker for the reply generator.
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration

	// Per-phone reply rate limiting.
	ReplyRateLimit  int
	ReplyRateWindow time.Duration

	// Dashboard tuning.
	LatencyThresholdsMs map[string]float64
	PoolDegradedRatio   float64
	PoolDownRatio       float64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := getEnv("DATABASE_URL", "")
	redisURL := getEnv("REDIS_URL", "")

	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: dbURL,
		RedisURL:    redisURL,

		WhatsAppEnabled:       getEnvBool("WHATSAPP_ENABLED", false),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppAPIVersion:    getEnv("WHATSAPP_API_VERSION", "v19.0"),
		WhatsAppBaseURL:       getEnv("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
		WebhookVerifyToken:    getEnv("WEBHOOK_VERIFY_TOKEN", ""),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", ""),

		BreakerFailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerCooldown:         time.Duration(getEnvInt("BREAKER_COOLDOWN_SECONDS", 60)) * time.Second,

		ReplyRateLimit:  getEnvInt("REPLY_RATE_LIMIT", 10),
		ReplyRateWindow: time.Duration(getEnvInt("REPLY_RATE_WINDOW_SECONDS", 60)) * time.Second,

		LatencyThresholdsMs: parseThresholds(getEnv("LATENCY_THRESHOLDS_MS", "")),
		PoolDegradedRatio:   getEnvFloat("POOL_DEGRADED_RATIO", 0.75),
		PoolDownRatio:       getEnvFloat("POOL_DOWN_RATIO", 0.90),
	}, nil
}

// parseThresholds reads "key=ms,key=ms" pairs, e.g.
// "ai:auto_reply=2500,whatsapp=1200". Malformed pairs are dropped.
func parseThresholds(raw string) map[string]float64 {
	if raw == "" {
		return nil
	}
	out := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		ms, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || ms <= 0 {
			continue
		}
		out[strings.TrimSpace(key)] = ms
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
