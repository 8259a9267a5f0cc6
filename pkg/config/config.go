package config

import (
	"errors"
	"io/fs"
	"strconv"
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
	CORS     CORSConfig
	Log      LogConfig
	Grading  GradingConfig
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

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GradingConfig carries the school-specific aggregation policy and the
// caching/precompute knobs around it.
type GradingConfig struct {
	CompulsoryCap     int
	ElectiveCap       int
	PointsRounding    string
	RankBy            string
	TrendLabelFormat  string
	CurriculumLevels  []int
	CurriculumTerms   []int
	CacheEnabled      bool
	CacheTTL          time.Duration
	PrecomputeWorkers int
	PrecomputeRetries int
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
		Enabled:  v.GetBool("ENABLE_REDIS"),
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

	cfg.Grading = GradingConfig{
		CompulsoryCap:     v.GetInt("GRADING_COMPULSORY_CAP"),
		ElectiveCap:       v.GetInt("GRADING_ELECTIVE_CAP"),
		PointsRounding:    v.GetString("GRADING_POINTS_ROUNDING"),
		RankBy:            v.GetString("GRADING_RANK_BY"),
		TrendLabelFormat:  v.GetString("GRADING_TREND_LABEL_FORMAT"),
		CurriculumLevels:  splitInts(v.GetString("GRADING_CURRICULUM_LEVELS")),
		CurriculumTerms:   splitInts(v.GetString("GRADING_CURRICULUM_TERMS")),
		CacheEnabled:      v.GetBool("GRADING_CACHE_ENABLED"),
		CacheTTL:          parseDuration(v.GetString("GRADING_CACHE_TTL"), 15*time.Minute),
		PrecomputeWorkers: v.GetInt("GRADING_PRECOMPUTE_WORKERS"),
		PrecomputeRetries: v.GetInt("GRADING_PRECOMPUTE_RETRIES"),
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
	v.SetDefault("DB_NAME", "school_grading")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GRADING_COMPULSORY_CAP", 5)
	v.SetDefault("GRADING_ELECTIVE_CAP", 2)
	v.SetDefault("GRADING_POINTS_ROUNDING", "round")
	v.SetDefault("GRADING_RANK_BY", "mean_points")
	v.SetDefault("GRADING_TREND_LABEL_FORMAT", "Form {level} T{term}")
	v.SetDefault("GRADING_CURRICULUM_LEVELS", "1,2,3,4")
	v.SetDefault("GRADING_CURRICULUM_TERMS", "1,2,3")
	v.SetDefault("GRADING_CACHE_ENABLED", true)
	v.SetDefault("GRADING_CACHE_TTL", "15m")
	v.SetDefault("GRADING_PRECOMPUTE_WORKERS", 2)
	v.SetDefault("GRADING_PRECOMPUTE_RETRIES", 3)
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

// splitInts parses a comma separated list, skipping entries that are not integers.
func splitInts(raw string) []int {
	parts := splitAndTrim(raw)
	result := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		result = append(result, n)
	}
	return result
}
