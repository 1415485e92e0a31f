package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	// LeaveCutoff — за сколько до начала матча ещё можно выйти без
	// запроса замены.
	LeaveCutoff time.Duration
	// DefaultPhoneRegion — регион для разбора телефонов без кода страны.
	DefaultPhoneRegion string

	// Cloudflare R2 (хранилище аватарок). Опционально: пустые значения
	// выключают загрузку.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	cutoffStr := os.Getenv("LEAVE_CUTOFF_HOURS")
	if cutoffStr == "" {
		cutoffStr = "8"
	}
	cutoffHours, err := strconv.Atoi(cutoffStr)
	if err != nil || cutoffHours < 0 {
		return nil, fmt.Errorf("invalid LEAVE_CUTOFF_HOURS environment variable: %q", cutoffStr)
	}

	phoneRegion := os.Getenv("DEFAULT_PHONE_REGION")
	if phoneRegion == "" {
		phoneRegion = "RO"
	}

	cfg := &Config{
		DatabaseURL:        dbURL,
		JWTSecretKey:       jwtKey,
		ServerPort:         port,
		LeaveCutoff:        time.Duration(cutoffHours) * time.Hour,
		DefaultPhoneRegion: phoneRegion,
		R2AccountID:        os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:      os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:  os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:       os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:    os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}
