package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// バックエンドの種類。
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend
	Backend        string        `env:"BACKEND" envDefault:"supabase"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"10s"`

	// Supabase
	SupabaseURL       string `env:"SUPABASE_URL"`
	SupabaseAnonKey   string `env:"SUPABASE_ANON_KEY"`
	SupabaseJWTSecret string `env:"SUPABASE_JWT_SECRET"`

	// Database（セルフホスト構成）
	DatabaseURL string `env:"DATABASE_URL"`

	// Session
	SessionMaxAge int `env:"SESSION_MAX_AGE" envDefault:"86400"`

	// Rate Limit（ログイン試行/分/IP）
	RateLimitLogin int `env:"RATE_LIMIT_LOGIN" envDefault:"10"`

	// Logging
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	TUILogFile string `env:"TUI_LOG_FILE"`

	// Session cleanup worker
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`

	// Seed（セルフホスト構成の初期データ）
	SeedEmail    string `env:"SEED_EMAIL" envDefault:"demo@example.com"`
	SeedPassword string `env:"SEED_PASSWORD"`

	// Tracing
	OTelEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"demodash"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// バックエンドごとの必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))

	var missing []string
	switch cfg.Backend {
	case BackendSupabase:
		if cfg.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if cfg.SupabaseAnonKey == "" {
			missing = append(missing, "SUPABASE_ANON_KEY")
		}
	case BackendPostgres, BackendSQLite:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported BACKEND %q (want %s, %s or %s)",
			cfg.Backend, BackendSupabase, BackendPostgres, BackendSQLite)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.SessionMaxAge <= 0 {
		return nil, fmt.Errorf("SESSION_MAX_AGE must be positive, got %d", cfg.SessionMaxAge)
	}

	if cfg.CleanupInterval <= 0 {
		return nil, fmt.Errorf("CLEANUP_INTERVAL must be positive, got %s", cfg.CleanupInterval)
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}

// SelfHosted はセルフホスト構成（DB直結）かどうかを返す。
func (c *Config) SelfHosted() bool {
	return c.Backend == BackendPostgres || c.Backend == BackendSQLite
}
