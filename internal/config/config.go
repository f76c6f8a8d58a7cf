package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	PushAPIURL string

	TwilioBaseURL             string
	TwilioAccountSID          string
	TwilioAuthToken           string
	TwilioMessagingServiceSID string
	TwilioFromNumber          string

	BatchSize         int
	WorkerConcurrency int
	PushMaxAttempts   int

	DrainCron    string
	ReminderCron string
}

// Load reads configuration from the environment, with a .env file as a
// development convenience.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		PushAPIURL: getEnv("PUSH_API_URL", "https://exp.host/--/api/v2/push/send"),

		TwilioBaseURL:             getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		TwilioAccountSID:          getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:           getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioMessagingServiceSID: getEnv("TWILIO_MESSAGING_SERVICE_SID", ""),
		TwilioFromNumber:          getEnv("TWILIO_FROM_NUMBER", ""),

		BatchSize:         getEnvInt("BATCH_SIZE", 50),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 8),
		PushMaxAttempts:   getEnvInt("PUSH_MAX_ATTEMPTS", 10),

		DrainCron:    getEnv("DRAIN_CRON", "* * * * *"),
		ReminderCron: getEnv("REMINDER_CRON", "*/5 * * * *"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		return nil, fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required")
	}
	if cfg.TwilioMessagingServiceSID == "" && cfg.TwilioFromNumber == "" {
		return nil, fmt.Errorf("one of TWILIO_MESSAGING_SERVICE_SID or TWILIO_FROM_NUMBER is required")
	}

	return cfg, nil
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
