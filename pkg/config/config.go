package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// MinLookbackDays is the calendar-day history a trend snapshot needs before its
// date: 200 daily bars for sma200 and 50 weekly bars for the upper band.
// 53주 + 여유분 (공휴일 포함)
const MinLookbackDays = 371

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Storage
	DataDir      string
	UniverseFile string

	// Price provider
	Provider    ProviderConfig
	Marketstack MarketstackConfig
	Stooq       StooqConfig

	// Cache lifecycle
	Cache CacheConfig

	// Health history
	Health HealthConfig

	// Redis (latest-bar memo)
	Redis RedisConfig

	// Database (optional health-history mirror)
	Database DatabaseConfig

	// Scheduler
	RefreshSchedule string

	// Logging
	LogLevel  string
	LogFormat string
}

// ProviderConfig holds provider selection and outbound request limits
type ProviderConfig struct {
	Name             string // marketstack, stooq
	HTTPTimeout      time.Duration
	RatePerSecond    float64
	LatestBatchSize  int
	LatestBatchDelay time.Duration
}

// MarketstackConfig holds Marketstack API configuration
type MarketstackConfig struct {
	APIKey  string
	BaseURL string
}

// StooqConfig holds Stooq configuration
type StooqConfig struct {
	BaseURL string
}

// CacheConfig controls the per-symbol bar cache
type CacheConfig struct {
	WindowDays      int // 캐시 보관 기간 (달력일)
	BufferDays      int // 확장 시도 전 허용 오차
	MaxExtendPerRun int // 실행당 backward extension 심볼 수 제한
	ForceExtend     bool
	LatestCacheTTL  time.Duration
}

// HealthConfig controls health-history computation
type HealthConfig struct {
	HistoryWindowDays int
	RetentionDays     int // <=0 이면 무제한
	MinKnownPct       float64
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether the Postgres mirror is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// CacheDir returns the directory holding per-symbol bar caches
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache", c.Provider.Name)
}

// HistoryDir returns the directory holding health-history artifacts
func (c *Config) HistoryDir() string {
	return filepath.Join(c.DataDir, "health-history")
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Storage
		DataDir:      getEnv("DATA_DIR", "./data"),
		UniverseFile: getEnv("UNIVERSE_FILE", "config/universes.yaml"),

		Provider: ProviderConfig{
			Name:             getEnv("PRICE_PROVIDER", "marketstack"),
			HTTPTimeout:      getEnvAsDuration("HTTP_TIMEOUT", "30s"),
			RatePerSecond:    getEnvAsFloat("PROVIDER_RATE_PER_SEC", 5),
			LatestBatchSize:  getEnvAsInt("LATEST_BATCH_SIZE", 50),
			LatestBatchDelay: getEnvAsDuration("LATEST_BATCH_DELAY", "1s"),
		},

		Marketstack: MarketstackConfig{
			APIKey:  getEnv("MARKETSTACK_API_KEY", ""),
			BaseURL: getEnv("MARKETSTACK_BASE_URL", "https://api.marketstack.com/v1"),
		},

		Stooq: StooqConfig{
			BaseURL: getEnv("STOOQ_BASE_URL", "https://stooq.com"),
		},

		Cache: CacheConfig{
			WindowDays:      getEnvAsInt("CACHE_WINDOW_DAYS", 560),
			BufferDays:      getEnvAsInt("CACHE_BUFFER_DAYS", 7),
			MaxExtendPerRun: getEnvAsInt("MAX_EXTEND_SYMBOLS_PER_RUN", 10),
			ForceExtend:     getEnvAsBool("FORCE_EXTEND", false),
			LatestCacheTTL:  getEnvAsDuration("LATEST_CACHE_TTL", "1h"),
		},

		Health: HealthConfig{
			HistoryWindowDays: getEnvAsInt("HISTORY_WINDOW_DAYS", 180),
			RetentionDays:     getEnvAsInt("HEALTH_HISTORY_RETENTION_DAYS", 365),
			MinKnownPct:       getEnvAsFloat("MIN_KNOWN_PCT", 0.9),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 5),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "0 30 22 * * MON-FRI"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration values are usable
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Provider.Name != "marketstack" && c.Provider.Name != "stooq" {
		return fmt.Errorf("PRICE_PROVIDER must be one of: marketstack, stooq")
	}

	if c.Cache.WindowDays <= 0 {
		return fmt.Errorf("CACHE_WINDOW_DAYS must be > 0")
	}

	// history 창의 가장 오래된 날짜도 lookback 을 가져야 함
	if need := c.Health.HistoryWindowDays + MinLookbackDays; c.Cache.WindowDays < need {
		return fmt.Errorf("CACHE_WINDOW_DAYS must be >= HISTORY_WINDOW_DAYS + %d (%d)", MinLookbackDays, need)
	}

	if c.Health.MinKnownPct <= 0 || c.Health.MinKnownPct > 1 {
		return fmt.Errorf("MIN_KNOWN_PCT must be in (0, 1]")
	}

	if c.Provider.LatestBatchSize <= 0 {
		return fmt.Errorf("LATEST_BATCH_SIZE must be > 0")
	}

	return nil
}

// RequireProvider checks provider credentials
// fetch 하는 커맨드에서만 호출 (serve 등은 키 불필요)
func (c *Config) RequireProvider() error {
	if c.Provider.Name == "marketstack" && c.Marketstack.APIKey == "" {
		return fmt.Errorf("MARKETSTACK_API_KEY is required when PRICE_PROVIDER=marketstack")
	}
	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
