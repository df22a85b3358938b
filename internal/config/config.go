package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (notification fan-out, verification codes)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// JWT issued by the account service
	JWTSecret string

	// Server
	Port        string
	CORSOrigins string
	AppEnv      string
	SentryDSN   string

	// Messaging
	PlatformDomains  string
	LinkAllowHosts   string
	MessageMaxLength int

	// Verification codes
	VerificationCodeTTL        time.Duration
	VerificationResendCooldown time.Duration
	VerificationMaxAttempts    int

	// Logging
	LogDBLevel       slog.Level
	LogRetentionDays int
}

func Load() *Config {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "matrimony_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       parseInt(getEnv("REDIS_DB", "0"), 0),

		JWTSecret: getEnv("JWT_SECRET", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		AppEnv:      getEnv("APP_ENV", "development"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),

		PlatformDomains:  getEnv("PLATFORM_DOMAINS", "shaadibandhan.com"),
		LinkAllowHosts:   getEnv("LINK_ALLOW_HOSTS", "localhost,127.0.0.1"),
		MessageMaxLength: parseInt(getEnv("MESSAGE_MAX_LENGTH", "2000"), 2000),

		VerificationCodeTTL:        parseDuration(getEnv("VERIFICATION_CODE_TTL", "10m"), 10*time.Minute),
		VerificationResendCooldown: parseDuration(getEnv("VERIFICATION_RESEND_COOLDOWN", "60s"), time.Minute),
		VerificationMaxAttempts:    parseInt(getEnv("VERIFICATION_MAX_ATTEMPTS", "5"), 5),

		LogDBLevel:       parseLevel(getEnv("LOG_DB_LEVEL", "WARN")),
		LogRetentionDays: parseInt(getEnv("LOG_RETENTION_DAYS", "30"), 30),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// LinkAllowList is every host whose links survive the content filter:
// the platform's own domains followed by the extra allowed hosts.
func (c *Config) LinkAllowList() []string {
	var hosts []string
	for _, raw := range []string{c.PlatformDomains, c.LinkAllowHosts} {
		for _, h := range strings.Split(raw, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hosts = append(hosts, h)
			}
		}
	}
	return hosts
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn
	}
	return l
}
