// internal/config/config.go
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DatabaseURL    string
	AllowedOrigins []string

	AgentPlatformURL    string
	AgentPlatformAPIKey string

	LLMURL    string
	LLMAPIKey string
	LLMModel  string

	EnrichmentURL     string
	EnrichmentAPIKey  string
	EnrichmentDelay   time.Duration
	EnrichmentTimeout time.Duration

	ApprovalWebhookURL   string
	LaunchWebhookURL     string
	SubmissionWebhookURL string
	ReviewBaseURL        string

	AMQPURL     string
	NotifyQueue string
}

// Load reads .env (if present) and then the process environment.
func Load(logger *slog.Logger) Config {
	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file found, relying on OS environment variables")
	}

	return Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    databaseURL(),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		AgentPlatformURL:    getEnv("AGENT_PLATFORM_URL", "https://app.octavehq.com/api/v2"),
		AgentPlatformAPIKey: os.Getenv("AGENT_PLATFORM_API_KEY"),

		LLMURL:    getEnv("LLM_API_URL", "https://api.openai.com/v1/chat/completions"),
		LLMAPIKey: os.Getenv("LLM_API_KEY"),
		LLMModel:  getEnv("LLM_MODEL", "gpt-4o-mini"),

		EnrichmentURL:     getEnv("ENRICHMENT_API_URL", "https://api.leadmagic.io/v1"),
		EnrichmentAPIKey:  os.Getenv("ENRICHMENT_API_KEY"),
		EnrichmentDelay:   time.Duration(getInt("ENRICHMENT_DELAY_MS", 200)) * time.Millisecond,
		EnrichmentTimeout: time.Duration(getInt("ENRICHMENT_TIMEOUT_SEC", 30)) * time.Second,

		ApprovalWebhookURL:   os.Getenv("WEBHOOK_APPROVAL_URL"),
		LaunchWebhookURL:     os.Getenv("WEBHOOK_LAUNCH_URL"),
		SubmissionWebhookURL: os.Getenv("WEBHOOK_SUBMISSION_URL"),
		ReviewBaseURL:        getEnv("REVIEW_BASE_URL", "http://localhost:3000"),

		AMQPURL:     os.Getenv("AMQP_URL"),
		NotifyQueue: getEnv("NOTIFY_QUEUE", "notifications"),
	}
}

// databaseURL prefers DATABASE_URL and falls back to the DB_* pieces.
func databaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		getEnv("DB_USER", "postgres"),
		os.Getenv("DB_PASSWORD"),
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_NAME", "campaign_portal"),
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
