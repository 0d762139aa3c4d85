// config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	AppEnv         string
	DBDriver       string
	DatabaseURL    string
	AllowedOrigins string

	JWTSecret          string
	JWTExpirationHours int

	ArchiveDir    string
	AdPricingFile string

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	GradingQueueName string

	SendGridAPIKey string
	MailFrom       string
	RollbarToken   string

	// R2 (S3-compatible) object storage; empty account ID means the local archive dir
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string
	CDNBaseURL        string
}

// Load reads .env (if any) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	return &Config{
		Port:           getEnv("PORT", "5200"),
		AppEnv:         getEnv("APP_ENV", "development"),
		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AllowedOrigins: normalizeOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 72),

		ArchiveDir:    getEnv("ARCHIVE_DIR", "archive"),
		AdPricingFile: getEnv("AD_PRICING_FILE", "ad_pricing.json"),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvAsInt("REDIS_DB", 0),
		GradingQueueName: getEnv("GRADING_QUEUE_NAME", "grading_queue"),

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		MailFrom:       getEnv("MAIL_FROM", "no-reply@exam-platform.local"),
		RollbarToken:   getEnv("ROLLBAR_TOKEN", ""),

		R2AccountID:       getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2AccessKeySecret: getEnv("R2_ACCESS_KEY_SECRET", ""),
		R2Bucket:          getEnv("R2_BUCKET_NAME", ""),
		CDNBaseURL:        getEnv("CDN_BASE_URL", ""),
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() []string {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.DBDriver == "postgres" && c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	return missing
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// normalizeOrigins trims each comma-separated origin for fiber's CORS config.
func normalizeOrigins(raw string) string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}
