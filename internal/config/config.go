package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Generator backends.
const (
	BackendGemini = "gemini"
	BackendAgent  = "agent"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port      int
	LogLevel  string
	ClientURL []string // CORS allowed origins

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration

	// Sessions
	SessionTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Firestore / Firebase
	UseFirestore              bool
	FirebaseProjectID         string
	FirebaseCredentialsFile   string
	FirebaseCredentialsBase64 string

	// Generation
	GeneratorBackend      string
	GeminiAPIKey          string
	GeminiModel           string
	AgentAPIURL           string
	GenerateRatePerMinute int
	RedisURL              string
	GenerationLockTTL     time.Duration

	// Export
	ExportWebhookURL  string
	ChromePath        string
	PDFTimeout        time.Duration
	PDFMaxConcurrency int

	// Billing
	UpgradeCredits int

	// Dev auth
	DevAuth      bool // DEV_AUTH=true verifies HS256 tokens instead of Firebase ID tokens
	JWTSecret    string
	JWTAccessTTL time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:      getEnvInt("PORT", 8080),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		ClientURL: getEnvList("CLIENT_URL", []string{"http://localhost:3000"}),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 60*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),

		SessionTTL: getEnvDuration("SESSION_TTL", 2*time.Hour),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		UseFirestore:              getEnvBool("USE_FIRESTORE", true),
		FirebaseProjectID:         getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsFile:   getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		FirebaseCredentialsBase64: getEnv("FIREBASE_CREDENTIALS_BASE64", ""),

		GeneratorBackend:      strings.ToLower(getEnv("GENERATOR_BACKEND", BackendGemini)),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),
		AgentAPIURL:           getEnv("AGENT_API_URL", "http://localhost:8090"),
		GenerateRatePerMinute: getEnvInt("GENERATE_RATE_PER_MINUTE", 10),
		RedisURL:              getEnv("REDIS_URL", ""),
		GenerationLockTTL:     getEnvDuration("GENERATION_LOCK_TTL", 2*time.Minute),

		ExportWebhookURL:  getEnv("EXPORT_WEBHOOK_URL", ""),
		ChromePath:        getEnv("CHROME_PATH", ""),
		PDFTimeout:        getEnvDuration("PDF_TIMEOUT", 30*time.Second),
		PDFMaxConcurrency: getEnvInt("PDF_MAX_CONCURRENCY", 2),

		UpgradeCredits: getEnvInt("UPGRADE_CREDITS", 10),

		DevAuth:      getEnvBool("DEV_AUTH", false),
		JWTSecret:    getEnv("JWT_SECRET", "docflow-default-dev-secret-change-me"),
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
