package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

const (
	defaultHTTPAddr        = ":8080"
	defaultStorageDriver   = StorageMemory
	defaultSQLitePath      = "catalog.db"
	defaultMigrationsPath  = "migrations/catalog"
	defaultShutdownTimeout = 10 * time.Second
	defaultLogLevel        = "info"
	defaultServiceName     = "product-catalog"
	defaultDeleteTokenTTL  = time.Hour

	defaultDBMaxOpenConns    = 25
	defaultDBMaxIdleConns    = 5
	defaultDBConnMaxLifetime = 5 * time.Minute
	defaultDBPingTimeout     = 5 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
)

type Catalog struct {
	HTTPAddr          string
	StorageDriver     string
	DatabaseURL       string
	SQLitePath        string
	MigrationsPath    string
	RabbitMQURL       string
	DeleteTokenSecret string
	DeleteTokenTTL    time.Duration
	LogLevel          string
	ServiceName       string
	OTLPEndpoint      string
	ShutdownTimeout   time.Duration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBPingTimeout     time.Duration
	ReadHeaderTimeout time.Duration
}

func LoadCatalog() (Catalog, error) {
	cfg := Catalog{
		HTTPAddr:          getEnv("HTTP_ADDR", defaultHTTPAddr),
		StorageDriver:     getEnv("STORAGE_DRIVER", defaultStorageDriver),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		SQLitePath:        getEnv("SQLITE_PATH", defaultSQLitePath),
		MigrationsPath:    getEnv("MIGRATIONS_PATH", defaultMigrationsPath),
		RabbitMQURL:       getEnv("RABBITMQ_URL", ""),
		DeleteTokenSecret: getEnv("DELETE_TOKEN_SECRET", ""),
		LogLevel:          getEnv("LOG_LEVEL", defaultLogLevel),
		ServiceName:       getEnv("OTEL_SERVICE_NAME", defaultServiceName),
		OTLPEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ShutdownTimeout:   defaultShutdownTimeout,
		DBMaxOpenConns:    defaultDBMaxOpenConns,
		DBMaxIdleConns:    defaultDBMaxIdleConns,
		DBConnMaxLifetime: defaultDBConnMaxLifetime,
		DBPingTimeout:     defaultDBPingTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	ttl, err := getEnvDuration("DELETE_TOKEN_TTL", defaultDeleteTokenTTL)
	if err != nil {
		return Catalog{}, err
	}
	if ttl < time.Second || ttl%time.Second != 0 {
		return Catalog{}, fmt.Errorf("DELETE_TOKEN_TTL must be a whole number of seconds")
	}
	cfg.DeleteTokenTTL = ttl

	if cfg.DeleteTokenSecret == "" {
		return Catalog{}, fmt.Errorf("DELETE_TOKEN_SECRET is required")
	}

	switch cfg.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return Catalog{}, fmt.Errorf("DATABASE_URL is required")
		}
	case StorageSQLite:
		if cfg.SQLitePath == "" {
			return Catalog{}, fmt.Errorf("SQLITE_PATH is required")
		}
	default:
		return Catalog{}, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

// getEnvDuration accepts Go duration strings ("90m") or whole seconds ("3600").
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if seconds, convErr := strconv.Atoi(value); convErr == nil {
		d, err = time.Duration(seconds)*time.Second, nil
	}
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration", key)
	}
	return d, nil
}
