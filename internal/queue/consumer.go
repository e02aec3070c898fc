package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/mangrove-ai/mangrove/pkg/logger"
)

// Handler processes one ingest job. A returned error sends the message
// to the retry queue, or to the dead-letter queue once MaxRetries is
// reached.
type Handler func(ctx context.Context, msg IngestMessage) error

// Consumer pulls ingest jobs one at a time and runs them through a
// Handler. Prefetch is 1: a worker never holds more than one
// unacknowledged document.
type Consumer struct {
	ch      *amqp091.Channel
	handler Handler
}

// NewConsumer creates a Consumer on an open channel.
func NewConsumer(ch *amqp091.Channel, handler Handler) *Consumer {
	return &Consumer{ch: ch, handler: handler}
}

// Run consumes until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(1, 0, false); err != nil {
		return err
	}
	deliveries, err := c.ch.Consume(IngestQueue, "ingest_consumer", false, false, false, false, nil)
	if err != nil {
		return err
	}

	logger.Info("[Queue] Listening for ingest jobs")
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue] Stopping consumer")
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				logger.Info("[Queue] Delivery channel closed")
				return nil
			}
			c.handle(ctx, delivery)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery amqp091.Delivery) {
	start := time.Now()

	var msg IngestMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		// Unparseable messages can never succeed; dead-letter directly.
		logger.Error("[Queue] Malformed message", "err", err)
		c.deadLetter(delivery)
		return
	}

	logger.Info("[Queue] Processing ingest job", "tenant", msg.Tenant, "document", msg.DocumentID)
	if err := c.handler(ctx, msg); err != nil {
		logger.Error("[Queue] Ingest job failed",
			"tenant", msg.Tenant, "document", msg.DocumentID, "err", err)
		c.retryOrDeadLetter(delivery)
		return
	}

	if err := delivery.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
		return
	}
	logger.Info("[Queue] Ingest job done",
		"tenant", msg.Tenant,
		"document", msg.DocumentID,
		"duration", time.Since(start))
}

func (c *Consumer) retryOrDeadLetter(delivery amqp091.Delivery) {
	retries := retriesFrom(delivery.Headers)
	if retries >= MaxRetries {
		logger.Warn("[Queue] Retry ceiling reached, dead-lettering", "retries", retries)
		c.deadLetter(delivery)
		return
	}

	headers := delivery.Headers
	if headers == nil {
		headers = amqp091.Table{}
	}
	headers[retriesHeader] = int32(retries + 1)

	err := c.ch.Publish("", RetryQueue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         delivery.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		logger.Error("[Queue] Failed to publish to retry queue", "err", err)
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

func (c *Consumer) deadLetter(delivery amqp091.Delivery) {
	err := c.ch.Publish("", DeadQueue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         delivery.Body,
		Headers:      delivery.Headers,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		logger.Error("[Queue] Failed to publish to DLQ", "err", err)
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

// retriesFrom reads the retry counter header; absent or mistyped
// headers count as zero.
func retriesFrom(headers amqp091.Table) int {
	val, ok := headers[retriesHeader]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
