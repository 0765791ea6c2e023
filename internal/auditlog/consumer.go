// Package auditlog consumes catalog lifecycle events and records them as audit log entries.
package auditlog

import (
	"context"
	"fmt"
	"log/slog"

	"product-catalog/internal/catalog/messaging"

	amqp "github.com/rabbitmq/amqp091-go"
)

const consumerTag = "catalog-auditlog"

type Consumer struct {
	channel *amqp.Channel
	queue   string
	logger  *slog.Logger
}

func NewConsumer(conn *amqp.Connection, queue string, logger *slog.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %q: %w", queue, err)
	}

	return &Consumer{
		channel: ch,
		queue:   queue,
		logger:  logger,
	}, nil
}

func (c *Consumer) Listen(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		consumerTag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume queue %q: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			if err := Record(c.logger, msg.Body); err != nil {
				c.logger.Error("handle message failed", "error", err)
				// malformed payloads are dropped, not requeued
				_ = msg.Nack(false, false)
				continue
			}

			_ = msg.Ack(false)
		}
	}
}

// Record decodes one event body and writes the audit entry.
func Record(logger *slog.Logger, body []byte) error {
	event, err := messaging.Decode(body)
	if err != nil {
		return err
	}

	logger.Info("audit",
		"event_type", event.EventType,
		"product_id", event.ProductID,
		"name", event.Name,
		"timestamp", event.Timestamp,
	)
	return nil
}

func (c *Consumer) Close() error {
	return c.channel.Close()
}
