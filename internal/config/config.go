package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// Correlation
	QueueMapFile    string
	ReportMaxWindow time.Duration

	// Auth
	SkipAuth   bool
	OIDCIssuer string
	JWKSURL    string

	// Publishing (optional, enabled when MQTTBroker is set)
	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string

	// WebSocket
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		QueueMapFile:   getEnv("QUEUE_MAP_FILE", ""),
		SkipAuth:       getEnv("SKIP_AUTH", "false") == "true",
		OIDCIssuer:     getEnv("OIDC_ISSUER", ""),
		JWKSURL:        getEnv("JWKS_URL", ""),
		MQTTBroker:     getEnv("MQTT_BROKER", ""),
		MQTTClientID:   getEnv("MQTT_CLIENT_ID", "xferlink"),
		MQTTTopic:      getEnv("MQTT_TOPIC", "xferlink/reports"),
	}

	maxWindowHours, err := strconv.Atoi(getEnv("REPORT_MAX_WINDOW_HOURS", "48"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_MAX_WINDOW_HOURS: %w", err)
	}
	if maxWindowHours <= 0 {
		return nil, fmt.Errorf("REPORT_MAX_WINDOW_HOURS must be positive, got %d", maxWindowHours)
	}
	config.ReportMaxWindow = time.Duration(maxWindowHours) * time.Hour

	// Parse WebSocket timeouts
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	if !config.SkipAuth && config.JWKSURL == "" && config.OIDCIssuer == "" {
		return nil, fmt.Errorf("auth enabled but neither JWKS_URL nor OIDC_ISSUER is set")
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
