package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"product-catalog/internal/auditlog"
	"product-catalog/internal/catalog"
	"product-catalog/internal/config"
	"product-catalog/internal/logger"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
)

const serviceName = "catalog-auditlog"

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAuditLog()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("load config", "error", err)
		os.Exit(1)
	}

	os.Exit(run(cfg, logger.New(os.Stdout, serviceName, cfg.LogLevel)))
}

func run(cfg config.AuditLog, log *slog.Logger) int {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Error("connect rabbitmq", "error", err)
		return 1
	}
	defer conn.Close()

	consumer, err := auditlog.NewConsumer(conn, catalog.EventsQueue, log)
	if err != nil {
		log.Error("init consumer", "error", err)
		return 1
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("audit log consumer started", "queue", catalog.EventsQueue)
		errCh <- consumer.Listen(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("consumer failed", "error", err)
			return 1
		}
		log.Info("audit log consumer stopped")
		return 0
	}

	deadline := time.NewTimer(cfg.ShutdownTimeout)
	defer deadline.Stop()
	select {
	case err := <-errCh:
		if err != nil {
			log.Error("consumer stop failed", "error", err)
			return 1
		}
	case <-deadline.C:
		log.Warn("consumer shutdown timeout reached")
	}

	log.Info("audit log consumer stopped")
	return 0
}
