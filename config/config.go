package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Record and conversation store backends.
const (
	RecordStoreNotion = "notion"
	RecordStoreSQL    = "sql"

	ConversationStoreMemory = "memory"
	ConversationStoreRedis  = "redis"
)

// Config holds all configuration fields for the application.
type Config struct {
	Port      string
	AppEnv    string
	LogLevel  string
	LogFormat string
	ShopsFile string

	RecordStore      string
	NotionToken      string
	NotionDatabaseID string
	NotionBaseURL    string
	DatabaseDriver   string
	DatabaseURL      string

	ConversationStore string
	ConversationTTL   time.Duration
	RedisURL          string

	LineAPIBaseURL string

	ResendAPIToken string
	ResendBaseURL  string
	EmailFrom      string

	ClickSendUsername string
	ClickSendAPIKey   string
	ClickSendBaseURL  string
	FaxFontPath       string

	RabbitMQURL   string
	RabbitMQQueue string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	PrintShopQR bool
}

// IsProduction reports whether outbound fax delivery is live.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Err(err).Msg("No .env file found or error loading it, relying on environment variables")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	cfg := &Config{
		Port:      getenv("PORT", "8080"),
		AppEnv:    getenv("APP_ENV", "development"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "console"),
		ShopsFile: getenv("SHOPS_FILE", "shops.yaml"),

		RecordStore:      strings.ToLower(getenv("RECORD_STORE", RecordStoreNotion)),
		NotionToken:      getenv("NOTION_TOKEN", ""),
		NotionDatabaseID: getenv("NOTION_DATABASE_ID", ""),
		NotionBaseURL:    getenv("NOTION_BASE_URL", "https://api.notion.com"),
		DatabaseDriver:   getenv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:      getenv("DATABASE_URL", "orders.db"),

		ConversationStore: strings.ToLower(getenv("CONVERSATION_STORE", ConversationStoreMemory)),
		RedisURL:          getenv("REDIS_URL", ""),

		LineAPIBaseURL: getenv("LINE_API_BASE_URL", "https://api.line.me"),

		ResendAPIToken: getenv("RESEND_API_TOKEN", ""),
		ResendBaseURL:  getenv("RESEND_BASE_URL", "https://api.resend.com"),
		EmailFrom:      getenv("EMAIL_FROM", "orders@example.com"),

		ClickSendUsername: getenv("CLICKSEND_USERNAME", ""),
		ClickSendAPIKey:   getenv("CLICKSEND_API_KEY", ""),
		ClickSendBaseURL:  getenv("CLICKSEND_BASE_URL", "https://rest.clicksend.com"),
		FaxFontPath:       getenv("FAX_FONT_PATH", ""),

		RabbitMQURL:   getenv("RABBITMQ_URL", ""),
		RabbitMQQueue: getenv("RABBITMQ_QUEUE", "line_orders"),

		S3Bucket:    getenv("S3_BUCKET", ""),
		S3Region:    getenv("S3_REGION", "ap-northeast-1"),
		S3Endpoint:  getenv("S3_ENDPOINT", ""),
		S3AccessKey: getenv("S3_ACCESS_KEY", ""),
		S3SecretKey: getenv("S3_SECRET_KEY", ""),

		PrintShopQR: strings.EqualFold(getenv("PRINT_SHOP_QR", "false"), "true"),
	}

	ttl, err := time.ParseDuration(getenv("CONVERSATION_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("CONVERSATION_TTL: %w", err)
	}
	cfg.ConversationTTL = ttl

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("appEnv", cfg.AppEnv).
		Str("recordStore", cfg.RecordStore).
		Str("conversationStore", cfg.ConversationStore).
		Msg("Configuration loaded")
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.RecordStore {
	case RecordStoreNotion:
		if c.NotionToken == "" || c.NotionDatabaseID == "" {
			return fmt.Errorf("RECORD_STORE=notion requires NOTION_TOKEN and NOTION_DATABASE_ID")
		}
	case RecordStoreSQL:
		if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres" {
			return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
		}
	default:
		return fmt.Errorf("unsupported RECORD_STORE %q", c.RecordStore)
	}

	switch c.ConversationStore {
	case ConversationStoreMemory:
	case ConversationStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("CONVERSATION_STORE=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unsupported CONVERSATION_STORE %q", c.ConversationStore)
	}

	// An empty font path renders faxes in the built-in Helvetica.
	if c.FaxFontPath != "" {
		if _, err := os.Stat(c.FaxFontPath); err != nil {
			return fmt.Errorf("FAX_FONT_PATH: %w", err)
		}
	}

	if c.ConversationTTL <= 0 {
		return fmt.Errorf("CONVERSATION_TTL must be positive")
	}
	return nil
}
