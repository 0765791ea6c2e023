package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"product-catalog/internal/catalog"
	"product-catalog/internal/catalog/csrf"
	cataloghttp "product-catalog/internal/catalog/http"
	"product-catalog/internal/catalog/messaging"
	"product-catalog/internal/catalog/repository"
	"product-catalog/internal/catalog/service"
	"product-catalog/internal/config"
	"product-catalog/internal/logger"
	"product-catalog/internal/telemetry"

	_ "product-catalog/docs"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	migrateSourcePrefix = "file://"
	postgresDriverName  = "postgres"
	serverOperation     = "catalog"
)

type store interface {
	service.Repository
	cataloghttp.HealthChecker
}

// @title        Product Catalog API
// @version      1.0
// @description  Product catalog with validated writes and token-guarded deletes.
// @host         localhost:8080
// @BasePath     /
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadCatalog()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.ServiceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		log.Error("init tracing", "error", err)
		os.Exit(1)
	}

	repo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("open storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var publisher service.Publisher = messaging.NewLogPublisher(log)
	if cfg.RabbitMQURL != "" {
		rabbitConn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			log.Error("connect rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitConn.Close()

		rabbit, err := messaging.NewRabbitPublisher(rabbitConn, catalog.EventsQueue)
		if err != nil {
			log.Error("init publisher", "error", err)
			os.Exit(1)
		}
		defer rabbit.Close()
		publisher = rabbit
	}

	tokens, err := csrf.New([]byte(cfg.DeleteTokenSecret), cfg.DeleteTokenTTL)
	if err != nil {
		log.Error("init delete tokens", "error", err)
		os.Exit(1)
	}

	metrics := service.NewMetrics()
	prometheus.MustRegister(metrics.Collectors()...)

	svc := service.New(repo, publisher, tokens, log, metrics)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cataloghttp.RequestIDMiddleware())
	router.Use(cataloghttp.AccessLogMiddleware(log))
	cataloghttp.RegisterRoutes(router, cataloghttp.NewHandler(svc), cataloghttp.NewAdminHandler(svc), repo)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, serverOperation),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("catalog service started", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "error", err)
	}
	log.Info("catalog service stopped")
}

func openStore(ctx context.Context, cfg config.Catalog, log *slog.Logger) (store, func(), error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		if err := runMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return nil, nil, err
		}

		db, err := sql.Open(postgresDriverName, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
		db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

		pingCtx, cancel := context.WithTimeout(ctx, cfg.DBPingTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repository.NewPostgres(db), func() { db.Close() }, nil

	case config.StorageSQLite:
		db, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return repository.NewSQLite(db), closeDB, nil

	default:
		log.Warn("using in-memory storage, products are lost on restart")
		return repository.NewMemory(), func() {}, nil
	}
}

func runMigrations(databaseURL, migrationsPath string) error {
	m, err := migrate.New(migrateSourcePrefix+migrationsPath, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
