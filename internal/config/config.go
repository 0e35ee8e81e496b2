// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL    string
	DBMaxOpenConns int

	// Server
	ServerPort string
	BaseURL    string
	LogLevel   string

	// Attendance
	SessionValidity time.Duration
	SchoolTimezone  string
	Location        *time.Location

	// CORS
	CORSAllowedOrigin string

	// Rate Limit (req/min per client)
	RateLimitGeneral int
	RateLimitMark    int

	// OAuth（未設定の場合フェデレーテッドサインインは無効）
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// QR
	QRImageSize int

	// Accounts
	BcryptCost int
}

// GoogleOAuthEnabled はGoogle OAuthの設定が揃っているかどうかを返す。
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、またはタイムゾーンが解決できない場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.SessionValidity = getEnvDuration("SESSION_VALIDITY", 30*time.Second)
	cfg.SchoolTimezone = getEnvString("SCHOOL_TIMEZONE", "Asia/Kolkata")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitMark = getEnvInt("RATE_LIMIT_MARK", 20)
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = getEnvString("GOOGLE_REDIRECT_URL", cfg.BaseURL+"/auth/google/callback")
	cfg.QRImageSize = getEnvInt("QR_IMAGE_SIZE", 256)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)

	if cfg.SessionValidity <= 0 {
		return nil, fmt.Errorf("SESSION_VALIDITY must be positive: %s", cfg.SessionValidity)
	}

	loc, err := time.LoadLocation(cfg.SchoolTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHOOL_TIMEZONE %q: %w", cfg.SchoolTimezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
