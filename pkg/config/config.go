package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Renderer names accepted by REPORTS_RENDERER.
const (
	RendererChrome = "chrome"
	RendererBasic  = "basic"
	RendererNone   = "none"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Reports       ReportsConfig
	Evidence      EvidenceConfig
	Notifications NotificationsConfig
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
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ReportsConfig governs composite report rendering and caching.
type ReportsConfig struct {
	CacheEnabled  bool
	Renderer      string
	ChromePath    string
	CacheTTL      time.Duration
	RenderTimeout time.Duration
	ShareSecret   string
	ShareTTL      time.Duration
}

// EvidenceConfig tunes the evidence link access probe.
type EvidenceConfig struct {
	CheckTimeout time.Duration
}

// NotificationsConfig controls assignment due-date checks.
type NotificationsConfig struct {
	DueSoonWindow time.Duration
	Workers       int
	MaxRetries    int
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Reports = ReportsConfig{
		CacheEnabled:  v.GetBool("ENABLE_REPORT_CACHE"),
		Renderer:      normalizeRenderer(v.GetString("REPORTS_RENDERER")),
		ChromePath:    v.GetString("REPORTS_CHROME_PATH"),
		CacheTTL:      parseDuration(v.GetString("REPORTS_CACHE_TTL"), 12*time.Hour),
		RenderTimeout: parseDuration(v.GetString("REPORTS_RENDER_TIMEOUT"), 30*time.Second),
		ShareSecret:   v.GetString("REPORTS_SHARE_SECRET"),
		ShareTTL:      parseDuration(v.GetString("REPORTS_SHARE_TTL"), 72*time.Hour),
	}

	cfg.Evidence = EvidenceConfig{
		CheckTimeout: parseDuration(v.GetString("EVIDENCE_CHECK_TIMEOUT"), 5*time.Second),
	}

	cfg.Notifications = NotificationsConfig{
		DueSoonWindow: parseDuration(v.GetString("NOTIFY_DUE_SOON_WINDOW"), 72*time.Hour),
		Workers:       v.GetInt("NOTIFY_WORKERS"),
		MaxRetries:    v.GetInt("NOTIFY_MAX_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "survey_review")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_REPORT_CACHE", true)
	v.SetDefault("REPORTS_RENDERER", RendererChrome)
	v.SetDefault("REPORTS_CHROME_PATH", "")
	v.SetDefault("REPORTS_CACHE_TTL", "12h")
	v.SetDefault("REPORTS_RENDER_TIMEOUT", "30s")
	v.SetDefault("REPORTS_SHARE_SECRET", "dev_report_share_secret")
	v.SetDefault("REPORTS_SHARE_TTL", "72h")

	v.SetDefault("EVIDENCE_CHECK_TIMEOUT", "5s")

	v.SetDefault("NOTIFY_DUE_SOON_WINDOW", "72h")
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)
}

func normalizeRenderer(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case RendererBasic:
		return RendererBasic
	case RendererNone, "off", "disabled":
		return RendererNone
	default:
		return RendererChrome
	}
}

// viper reports a missing explicit config file as a path error rather than
// ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
