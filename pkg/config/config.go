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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Schedule ScheduleConfig
	Solver   SolverConfig
	Analysis AnalysisConfig
	Exports  ExportsConfig
	Cleanup  CleanupConfig
	Swagger  SwaggerConfig
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

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ScheduleConfig fixes the timetable grid shared by every school on the platform.
type ScheduleConfig struct {
	Days          int
	PeriodsPerDay int
}

// SolverConfig tunes the generation worker pool and search budgets.
type SolverConfig struct {
	MaxWorkers    int
	QueueSize     int
	TimeBudget    time.Duration
	SolutionLimit int
	NodeBudget    int
	ProgressTTL   time.Duration
}

// AnalysisConfig governs cache behaviour for candidate quality analysis.
type AnalysisConfig struct {
	CacheTTL time.Duration
}

// ExportsConfig configures asynchronous candidate export generation.
type ExportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// CleanupConfig schedules removal of stale generation artifacts.
type CleanupConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// SwaggerConfig toggles the interactive API docs.
type SwaggerConfig struct {
	Enabled bool
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
		if !errors.As(err, &notFound) {
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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Schedule = ScheduleConfig{
		Days:          v.GetInt("SCHEDULE_DAYS"),
		PeriodsPerDay: v.GetInt("SCHEDULE_PERIODS_PER_DAY"),
	}

	cfg.Solver = SolverConfig{
		MaxWorkers:    v.GetInt("SOLVER_MAX_WORKERS"),
		QueueSize:     v.GetInt("SOLVER_QUEUE_SIZE"),
		TimeBudget:    parseDuration(v.GetString("SOLVER_TIME_BUDGET"), 300*time.Second),
		SolutionLimit: v.GetInt("SOLVER_SOLUTION_LIMIT"),
		NodeBudget:    v.GetInt("SOLVER_NODE_BUDGET"),
		ProgressTTL:   parseDuration(v.GetString("SOLVER_PROGRESS_TTL"), 24*time.Hour),
	}

	cfg.Analysis = AnalysisConfig{
		CacheTTL: parseDuration(v.GetString("ANALYSIS_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

	cfg.Cleanup = CleanupConfig{
		Interval: parseDuration(v.GetString("CLEANUP_INTERVAL"), time.Hour),
		MaxAge:   parseDuration(v.GetString("CLEANUP_MAX_AGE"), 720*time.Hour),
	}

	cfg.Swagger = SwaggerConfig{Enabled: v.GetBool("ENABLE_SWAGGER")}

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
	v.SetDefault("DB_NAME", "eduschedule")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULE_DAYS", 5)
	v.SetDefault("SCHEDULE_PERIODS_PER_DAY", 8)

	v.SetDefault("SOLVER_MAX_WORKERS", 3)
	v.SetDefault("SOLVER_QUEUE_SIZE", 16)
	v.SetDefault("SOLVER_TIME_BUDGET", "300s")
	v.SetDefault("SOLVER_SOLUTION_LIMIT", 5)
	v.SetDefault("SOLVER_NODE_BUDGET", 0)
	v.SetDefault("SOLVER_PROGRESS_TTL", "24h")

	v.SetDefault("ANALYSIS_CACHE_TTL", "10m")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)

	v.SetDefault("CLEANUP_INTERVAL", "1h")
	v.SetDefault("CLEANUP_MAX_AGE", "720h")

	v.SetDefault("ENABLE_SWAGGER", false)
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
