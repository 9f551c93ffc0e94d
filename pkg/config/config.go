package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Asset storage drivers.
const (
	AssetsDriverLocal  = "local"
	AssetsDriverOSS    = "oss"
	AssetsDriverMemory = "memory"
)

type Config struct {
	Env        string
	Port       int
	APIPrefix  string
	CenterName string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Dashboard DashboardConfig
	Assets    AssetsConfig
	Mail      MailConfig
	Reports   ReportsConfig
	Bootstrap BootstrapConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// DashboardConfig governs statistics caching and the monthly series origin.
type DashboardConfig struct {
	CacheTTL    time.Duration
	SeriesStart time.Time
}

// AssetsConfig selects and tunes the object store used for enrollment documents.
type AssetsConfig struct {
	Driver        string
	LocalDir      string
	PublicBaseURL string
	MaxBytes      int64
	MaxWidth      int
	MaxHeight     int
	WebPQuality   float32
	Normalize     bool

	OSSEndpoint     string
	OSSAccessKey    string
	OSSSecretKey    string
	OSSBucket       string
	OSSKeyPrefix    string
	OSSPublicBase   string
	OSSRequestLimit time.Duration
}

// MailConfig configures the transactional email client.
type MailConfig struct {
	Enabled     bool
	APIKey      string
	FromAddress string
	FromName    string
	AdminEmail  string
	Workers     int
	Retries     int
}

// ReportsConfig configures generated report storage.
type ReportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupCron     string
	MaxRows         int
}

// BootstrapConfig holds the first administrator created by cmd/create-admin.
type BootstrapConfig struct {
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.CenterName = v.GetString("CENTER_NAME")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		MaxAge:         parseDuration(v.GetString("CORS_MAX_AGE"), 10*time.Minute),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL:    parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
		SeriesStart: parseDate(v.GetString("DASHBOARD_SERIES_START"), time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)),
	}

	maxAssetBytes := v.GetInt64("ASSETS_MAX_BYTES")
	if maxAssetBytes <= 0 {
		maxAssetBytes = 8 * 1024 * 1024
	}
	cfg.Assets = AssetsConfig{
		Driver:          strings.ToLower(v.GetString("ASSETS_DRIVER")),
		LocalDir:        v.GetString("ASSETS_LOCAL_DIR"),
		PublicBaseURL:   v.GetString("ASSETS_PUBLIC_BASE_URL"),
		MaxBytes:        maxAssetBytes,
		MaxWidth:        v.GetInt("ASSETS_MAX_WIDTH"),
		MaxHeight:       v.GetInt("ASSETS_MAX_HEIGHT"),
		WebPQuality:     float32(v.GetFloat64("ASSETS_WEBP_QUALITY")),
		Normalize:       v.GetBool("ASSETS_NORMALIZE"),
		OSSEndpoint:     v.GetString("ALI_OSS_ENDPOINT"),
		OSSAccessKey:    v.GetString("ALI_OSS_ACCESS_KEY"),
		OSSSecretKey:    v.GetString("ALI_OSS_SECRET_KEY"),
		OSSBucket:       v.GetString("ALI_OSS_BUCKET"),
		OSSKeyPrefix:    v.GetString("ALI_OSS_KEY_PREFIX"),
		OSSPublicBase:   v.GetString("ALI_OSS_PUBLIC_BASE_URL"),
		OSSRequestLimit: parseDuration(v.GetString("ALI_OSS_TIMEOUT"), 30*time.Second),
	}

	cfg.Mail = MailConfig{
		Enabled:     v.GetBool("MAIL_ENABLED"),
		APIKey:      v.GetString("SENDGRID_API_KEY"),
		FromAddress: v.GetString("MAIL_FROM_ADDRESS"),
		FromName:    v.GetString("MAIL_FROM_NAME"),
		AdminEmail:  v.GetString("MAIL_ADMIN_ADDRESS"),
		Workers:     v.GetInt("MAIL_WORKERS"),
		Retries:     v.GetInt("MAIL_RETRIES"),
	}

	cfg.Reports = ReportsConfig{
		StorageDir:      v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupCron:     v.GetString("REPORTS_CLEANUP_CRON"),
		MaxRows:         v.GetInt("REPORTS_MAX_ROWS"),
	}

	cfg.Bootstrap = BootstrapConfig{
		AdminName:     v.GetString("BOOTSTRAP_ADMIN_NAME"),
		AdminEmail:    v.GetString("BOOTSTRAP_ADMIN_EMAIL"),
		AdminPassword: v.GetString("BOOTSTRAP_ADMIN_PASSWORD"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("CENTER_NAME", "Centro Tecnológico")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ctp_enrollments")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("DASHBOARD_SERIES_START", "2024-01-01")

	v.SetDefault("ASSETS_DRIVER", AssetsDriverLocal)
	v.SetDefault("ASSETS_LOCAL_DIR", "./uploads")
	v.SetDefault("ASSETS_PUBLIC_BASE_URL", "http://localhost:8080/assets")
	v.SetDefault("ASSETS_MAX_BYTES", 8*1024*1024)
	v.SetDefault("ASSETS_MAX_WIDTH", 1600)
	v.SetDefault("ASSETS_MAX_HEIGHT", 1600)
	v.SetDefault("ASSETS_WEBP_QUALITY", 80)
	v.SetDefault("ASSETS_NORMALIZE", true)
	v.SetDefault("ALI_OSS_KEY_PREFIX", "enrollments")
	v.SetDefault("ALI_OSS_TIMEOUT", "30s")

	v.SetDefault("MAIL_ENABLED", false)
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@example.com")
	v.SetDefault("MAIL_FROM_NAME", "Centro Tecnológico")
	v.SetDefault("MAIL_ADMIN_ADDRESS", "")
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("MAIL_RETRIES", 0)

	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_CRON", "@hourly")
	v.SetDefault("REPORTS_MAX_ROWS", 5000)

	v.SetDefault("BOOTSTRAP_ADMIN_NAME", "admin")
	v.SetDefault("BOOTSTRAP_ADMIN_EMAIL", "")
	v.SetDefault("BOOTSTRAP_ADMIN_PASSWORD", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func parseDate(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}

	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return fallback
	}

	return t.UTC()
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
