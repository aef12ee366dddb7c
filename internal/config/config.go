package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	// UserCacheKey seals access tokens in cached users. Without it users
	// holding tokens are read from Postgres every time.
	UserCacheKey string

	// WhatsApp Cloud API
	WhatsAppToken            string
	WhatsAppPhoneNumberID    string
	WhatsAppVerifyToken      string
	WhatsAppAppSecret        string
	WhatsAppGraphBaseURL     string
	WhatsAppReminderTemplate string

	// Google Calendar OAuth client
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCalendarID   string

	// Text understanding
	GeminiAPIKey   string
	GeminiModel    string
	BedrockModelID string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	KafkaBrokers []string
	KafkaTopic   string

	OTELEnabled     bool
	OTELEndpoint    string
	OTELSampleRatio float64
	OTELServiceName string

	// Professional notifications
	SendGridAPIKey string
	SendGridFrom   string
	SESFromEmail   string
	NotifyFromName string

	CORSAllowedOrigins []string

	DefaultTimezone     string
	ExternalCallTimeout time.Duration
	HistoryLimit        int
	ReminderLead        time.Duration
	ReminderInterval    time.Duration
	OutboxInterval      time.Duration
	RateLimitPerMinute  int
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		UserCacheKey:  getEnv("USER_CACHE_KEY", ""),

		WhatsAppToken:            getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppPhoneNumberID:    getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppVerifyToken:      getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:        getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppGraphBaseURL:     getEnv("WHATSAPP_GRAPH_BASE_URL", "https://graph.facebook.com/v18.0"),
		WhatsAppReminderTemplate: getEnv("WHATSAPP_REMINDER_TEMPLATE", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleCalendarID:   getEnv("GOOGLE_CALENDAR_ID", "primary"),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		KafkaBrokers: getEnvAsList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "agenda.appointments"),

		OTELEnabled:     getEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELSampleRatio: getEnvAsFloat("OTEL_SAMPLING_RATIO", 1),
		OTELServiceName: getEnv("OTEL_SERVICE_NAME", "web-app-agenda"),

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		SendGridFrom:   getEnv("SENDGRID_FROM_EMAIL", ""),
		SESFromEmail:   getEnv("SES_FROM_EMAIL", ""),
		NotifyFromName: getEnv("NOTIFY_FROM_NAME", "Agenda WhatsApp"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		DefaultTimezone:     getEnv("DEFAULT_TIMEZONE", "America/Sao_Paulo"),
		ExternalCallTimeout: getEnvAsDuration("EXTERNAL_CALL_TIMEOUT", 10*time.Second),
		HistoryLimit:        getEnvAsInt("HISTORY_LIMIT", 20),
		ReminderLead:        getEnvAsDuration("REMINDER_LEAD", 3*time.Hour),
		ReminderInterval:    getEnvAsDuration("REMINDER_INTERVAL", 5*time.Minute),
		OutboxInterval:      getEnvAsDuration("OUTBOX_INTERVAL", 2*time.Second),
		RateLimitPerMinute:  getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
