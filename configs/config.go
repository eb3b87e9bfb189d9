package configs

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	DatabaseURL     string
	RedisURL        string
	JWTSecret       string
	JWTTTL          time.Duration
	CacheTTL        time.Duration
	EnableWebSocket bool
	Security        SecurityConfig
}

// SecurityConfig carries the thresholds consumed by the security
// subsystem. Defaults match production values; override per deployment
// through the environment.
type SecurityConfig struct {
	MaxRequestsPerMinute int
	MaxRequestsPerHour   int
	DDoSThreshold        int
	SuspiciousThreshold  int
	AutoBlockMinutes     int
	SlowRequestMs        int
	VerySlowRequestMs    int
}

var AppConfig *Config

func LoadConfig() error {

	godotenv.Load()

	AppConfig = &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		DatabaseURL:     getEnv("DATABASE_URL", "root:password@tcp(localhost:3306)/jobpay?charset=utf8mb4&parseTime=True&loc=Local"),
		RedisURL:        getEnv("REDIS_URL", "localhost:6379"),
		JWTSecret:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTTTL:          parseDuration(getEnv("JWT_TTL", "24h")),
		CacheTTL:        parseDuration(getEnv("CACHE_TTL", "1h")),
		EnableWebSocket: parseBool(getEnv("ENABLE_WEBSOCKET", "true")),
		Security:        loadSecurityConfig(),
	}

	return nil
}

func loadSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxRequestsPerMinute: parseIntDefault(getEnv("SECURITY_MAX_REQUESTS_PER_MINUTE", "500"), 500),
		MaxRequestsPerHour:   parseIntDefault(getEnv("SECURITY_MAX_REQUESTS_PER_HOUR", "5000"), 5000),
		DDoSThreshold:        parseIntDefault(getEnv("SECURITY_DDOS_THRESHOLD", "1000"), 1000),
		SuspiciousThreshold:  parseIntDefault(getEnv("SECURITY_SUSPICIOUS_THRESHOLD", "5"), 5),
		AutoBlockMinutes:     parseIntDefault(getEnv("SECURITY_AUTO_BLOCK_MINUTES", "60"), 60),
		SlowRequestMs:        parseIntDefault(getEnv("SECURITY_SLOW_REQUEST_MS", "1000"), 1000),
		VerySlowRequestMs:    parseIntDefault(getEnv("SECURITY_VERY_SLOW_REQUEST_MS", "5000"), 5000),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntDefault(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil || i <= 0 {
		return def
	}
	return i
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Hour
	}
	return d
}

func init() {
	if err := LoadConfig(); err != nil {
		log.Fatal("Failed to load config:", err)
	}
}
