package config

import (
	"fmt"
	"time"
)

type AuditLog struct {
	RabbitMQURL     string
	LogLevel        string
	ShutdownTimeout time.Duration
}

func LoadAuditLog() (AuditLog, error) {
	cfg := AuditLog{
		RabbitMQURL:     getEnv("RABBITMQ_URL", ""),
		LogLevel:        getEnv("LOG_LEVEL", defaultLogLevel),
		ShutdownTimeout: defaultShutdownTimeout,
	}

	if cfg.RabbitMQURL == "" {
		return AuditLog{}, fmt.Errorf("RABBITMQ_URL is required")
	}

	return cfg, nil
}
