package config

import (
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Cache    CacheConfig
	Export   ExportConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// EngineConfig tunes the simulation and forecasting engine.
type EngineConfig struct {
	ForecastCadenceDays  int
	ForecastHorizonDays  int
	TransformerURL       string
	TransformerTimeoutMS int
	RetryAttempts        int
	RetryBackoffMS       int
	MaxParallelRuns      int
}

type CacheConfig struct {
	Enabled                  bool
	RedisURL                 string
	RedisHost                string
	RedisPort                string
	RedisPassword            string
	RedisDB                  int
	ClassificationTTLSeconds int
}

// ExportConfig points run artifact export at an S3-compatible bucket.
type ExportConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "stocksense")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("ENGINE_FORECAST_CADENCE_DAYS", 7)
		viper.SetDefault("ENGINE_FORECAST_HORIZON_DAYS", 30)
		viper.SetDefault("ENGINE_TRANSFORMER_URL", "")
		viper.SetDefault("ENGINE_TRANSFORMER_TIMEOUT_MS", 30000)
		viper.SetDefault("ENGINE_RETRY_ATTEMPTS", 3)
		viper.SetDefault("ENGINE_RETRY_BACKOFF_MS", 2000)
		viper.SetDefault("ENGINE_MAX_PARALLEL_RUNS", 4)
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_CLASSIFICATION_TTL_SECONDS", 3600)
		viper.SetDefault("EXPORT_ENABLED", false)
		viper.SetDefault("EXPORT_ENDPOINT", "")
		viper.SetDefault("EXPORT_ACCESS_KEY", "")
		viper.SetDefault("EXPORT_SECRET_KEY", "")
		viper.SetDefault("EXPORT_BUCKET", "stocksense-runs")
		viper.SetDefault("EXPORT_USE_SSL", true)

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			Engine: EngineConfig{
				ForecastCadenceDays:  viper.GetInt("ENGINE_FORECAST_CADENCE_DAYS"),
				ForecastHorizonDays:  viper.GetInt("ENGINE_FORECAST_HORIZON_DAYS"),
				TransformerURL:       viper.GetString("ENGINE_TRANSFORMER_URL"),
				TransformerTimeoutMS: viper.GetInt("ENGINE_TRANSFORMER_TIMEOUT_MS"),
				RetryAttempts:        viper.GetInt("ENGINE_RETRY_ATTEMPTS"),
				RetryBackoffMS:       viper.GetInt("ENGINE_RETRY_BACKOFF_MS"),
				MaxParallelRuns:      viper.GetInt("ENGINE_MAX_PARALLEL_RUNS"),
			},
			Cache: CacheConfig{
				Enabled:                  viper.GetBool("CACHE_ENABLED"),
				RedisURL:                 viper.GetString("REDIS_URL"),
				RedisHost:                viper.GetString("REDIS_HOST"),
				RedisPort:                viper.GetString("REDIS_PORT"),
				RedisPassword:            viper.GetString("REDIS_PASSWORD"),
				RedisDB:                  viper.GetInt("REDIS_DB"),
				ClassificationTTLSeconds: viper.GetInt("CACHE_CLASSIFICATION_TTL_SECONDS"),
			},
			Export: ExportConfig{
				Enabled:   viper.GetBool("EXPORT_ENABLED"),
				Endpoint:  viper.GetString("EXPORT_ENDPOINT"),
				AccessKey: viper.GetString("EXPORT_ACCESS_KEY"),
				SecretKey: viper.GetString("EXPORT_SECRET_KEY"),
				Bucket:    viper.GetString("EXPORT_BUCKET"),
				UseSSL:    viper.GetBool("EXPORT_USE_SSL"),
			},
		}
	})

	return instance
}
