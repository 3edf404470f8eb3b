// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port               string
	Env                string
	DatabaseDriver     string
	DatabaseURL        string
	MigrationsDir      string
	AutoMigrate        bool
	LogLevel           string
	HTTPClientTimeout  time.Duration
	KMSKeyName         string
	GoogleCloudProject string
	AttachmentBucket   string
	OtelEnabled        bool
	OtelEndpoint       string
	OtelServiceName    string
	OtelSamplingRate   float64
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("APP_ENV", "development"),
		DatabaseDriver:     getEnv("DATABASE_DRIVER", "mysql"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "./migrations"),
		AutoMigrate:        getEnvBool("DB_AUTO_MIGRATE", true),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		HTTPClientTimeout:  getEnvDuration("HTTP_CLIENT_TIMEOUT", 30*time.Second),
		KMSKeyName:         os.Getenv("KMS_KEY_NAME"),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),
		AttachmentBucket:   os.Getenv("ATTACHMENT_BUCKET"),
		OtelEnabled:        getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:       getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelServiceName:    getEnv("OTEL_SERVICE_NAME", "chatbot-api"),
		OtelSamplingRate:   getEnvFloat("OTEL_SAMPLING_RATE", 1.0),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvFloat(key string, defaultVal float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return d
}
