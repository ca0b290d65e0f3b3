package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/models"
)

// Backend identifies a concrete storage implementation.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendMongo    Backend = "mongo"
	BackendPostgres Backend = "postgres"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// ConnectionURL builds the pgx connection string.
func (p PostgresConfig) ConnectionURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.Username, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type MongoConfig struct {
	URI string
	DB  string
}

type StorageConfig struct {
	Backend    Backend
	SQLitePath string
	Mongo      MongoConfig
	Postgres   PostgresConfig
}

type Config struct {
	ServerPort    string
	MetricsPort   string
	Storage       StorageConfig
	POIsPath      string
	TTLDays       int
	PruneInterval time.Duration
}

// Load reads the configuration from the environment. LOCAL=true (the
// default) forces the SQLite backend; otherwise STORAGE_BACKEND selects the
// implementation. Missing connection info for the selected backend is a
// fatal configuration error, not a runtime fallback.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:  getEnvOrDefault("SERVER_PORT", "8000"),
		MetricsPort: getEnvOrDefault("METRICS_PORT", "9092"),
		Storage: StorageConfig{
			SQLitePath: getEnvOrDefault("SQLITE_PATH", "storage/perez.db"),
			Mongo: MongoConfig{
				URI: os.Getenv("MONGODB_URI"),
				DB:  getEnvOrDefault("MONGO_DB", "perez"),
			},
			Postgres: PostgresConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
				DB:       getEnvOrDefault("POSTGRES_DB", "perez"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: os.Getenv("POSTGRES_PASSWORD"),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: 30,
				MinConns: 5,
			},
		},
		POIsPath:      getEnvOrDefault("POIS_PATH", "references/pois.json"),
		TTLDays:       getEnvIntOrDefault("DB_TTL_DAYS", 3),
		PruneInterval: getEnvDurationOrDefault("PRUNE_INTERVAL", 6*time.Hour),
	}

	if truthy(getEnvOrDefault("LOCAL", "true")) {
		cfg.Storage.Backend = BackendSQLite
	} else {
		switch Backend(getEnvOrDefault("STORAGE_BACKEND", string(BackendSQLite))) {
		case BackendSQLite:
			cfg.Storage.Backend = BackendSQLite
		case BackendMongo:
			cfg.Storage.Backend = BackendMongo
		case BackendPostgres:
			cfg.Storage.Backend = BackendPostgres
		default:
			return nil, fmt.Errorf("%w: unknown STORAGE_BACKEND %q",
				models.ErrConfiguration, os.Getenv("STORAGE_BACKEND"))
		}
	}

	if cfg.Storage.Backend == BackendMongo && cfg.Storage.Mongo.URI == "" {
		return nil, fmt.Errorf("%w: MONGODB_URI is required for the mongo backend",
			models.ErrConfiguration)
	}
	if cfg.Storage.Backend == BackendPostgres && cfg.Storage.Postgres.Password == "" {
		return nil, fmt.Errorf("%w: POSTGRES_PASSWORD is required for the postgres backend",
			models.ErrConfiguration)
	}
	if cfg.TTLDays <= 0 {
		cfg.TTLDays = 3
	}

	return cfg, nil
}

func truthy(val string) bool {
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
