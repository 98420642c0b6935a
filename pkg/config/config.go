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

// Wizard store backends.
const (
	WizardStoreMemory = "memory"
	WizardStoreRedis  = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Backend   BackendConfig
	Wizard    WizardConfig
	CommitLog CommitLogConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BackendConfig points at the swim-school REST backend.
type BackendConfig struct {
	BaseURL        string
	Timeout        time.Duration
	InstructorRole string
}

// WizardConfig selects where wizard state lives and for how long.
type WizardConfig struct {
	Store string
	TTL   time.Duration
}

// CommitLogConfig toggles the Postgres commit trail and its writer pool.
type CommitLogConfig struct {
	Enabled    bool
	Workers    int
	Retries    int
	RetryDelay time.Duration
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

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Backend = BackendConfig{
		BaseURL:        strings.TrimRight(v.GetString("BACKEND_BASE_URL"), "/"),
		Timeout:        parseDuration(v.GetString("BACKEND_TIMEOUT"), 15*time.Second),
		InstructorRole: v.GetString("BACKEND_INSTRUCTOR_ROLE"),
	}

	store := strings.ToLower(strings.TrimSpace(v.GetString("WIZARD_STORE")))
	if store != WizardStoreRedis {
		store = WizardStoreMemory
	}
	cfg.Wizard = WizardConfig{
		Store: store,
		TTL:   parseDuration(v.GetString("WIZARD_TTL"), 2*time.Hour),
	}

	workers := v.GetInt("COMMIT_LOG_WORKERS")
	if workers <= 0 {
		workers = 1
	}
	cfg.CommitLog = CommitLogConfig{
		Enabled:    v.GetBool("ENABLE_COMMIT_LOG"),
		Workers:    workers,
		Retries:    v.GetInt("COMMIT_LOG_RETRIES"),
		RetryDelay: parseDuration(v.GetString("COMMIT_LOG_RETRY_DELAY"), 2*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "swim_scheduler")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BACKEND_BASE_URL", "http://localhost:3000/api")
	v.SetDefault("BACKEND_TIMEOUT", "15s")
	v.SetDefault("BACKEND_INSTRUCTOR_ROLE", "instructor")

	v.SetDefault("WIZARD_STORE", WizardStoreMemory)
	v.SetDefault("WIZARD_TTL", "2h")

	v.SetDefault("ENABLE_COMMIT_LOG", false)
	v.SetDefault("COMMIT_LOG_WORKERS", 1)
	v.SetDefault("COMMIT_LOG_RETRIES", 3)
	v.SetDefault("COMMIT_LOG_RETRY_DELAY", "2s")
}

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
