package config

import (
	"time"

	"moments/internal/utils"
)

// Config is the process configuration, read from the environment (and .env).
type Config struct {
	Port        string
	DatabaseURL string
	LogLevel    string
	BodyLimitMB int

	SessionSecret string
	SessionTTL    time.Duration

	Storage StorageConfig
}

// StorageConfig selects where uploaded images go.
type StorageConfig struct {
	Backend  string // "local" | "minio" | "memory"
	MediaDir string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSecure    bool
}

// Load reads the configuration. A missing .env file is not an error.
func Load() *Config {
	_ = utils.LoadEnv()

	connString := utils.GetEnv("DATABASE_URL", "")
	if connString == "" {
		// Fallback to individual vars
		connString = "postgres://" + utils.GetEnv("POSTGRES_USER", "postgres") + ":" +
			utils.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
			utils.GetEnv("POSTGRES_HOST", "localhost") + ":" +
			utils.GetEnv("POSTGRES_PORT", "5432") + "/" +
			utils.GetEnv("POSTGRES_DB", "moments") + "?sslmode=disable"
	}

	return &Config{
		Port:          utils.GetEnv("PORT", "3001"),
		DatabaseURL:   connString,
		LogLevel:      utils.GetEnv("LOG_LEVEL", "info"),
		BodyLimitMB:   utils.GetEnvInt("BODY_LIMIT_MB", 32),
		SessionSecret: utils.GetEnv("SESSION_SECRET", "secret"),
		SessionTTL:    time.Duration(utils.GetEnvInt("SESSION_TTL_HOURS", 72)) * time.Hour,
		Storage: StorageConfig{
			Backend:        utils.GetEnv("STORAGE_BACKEND", "local"),
			MediaDir:       utils.GetEnv("MEDIA_DIR", "uploads"),
			MinioEndpoint:  utils.GetEnv("MINIO_ENDPOINT", "localhost:9000"),
			MinioAccessKey: utils.GetEnv("MINIO_ACCESS_KEY", ""),
			MinioSecretKey: utils.GetEnv("MINIO_SECRET_KEY", ""),
			MinioBucket:    utils.GetEnv("MINIO_BUCKET", "moments"),
			MinioSecure:    utils.GetEnvBool("MINIO_SECURE", false),
		},
	}
}
