// Package queue moves documents from the API to the ingestion workers
// over RabbitMQ. One durable work queue carries ingest jobs; failures
// bounce through a TTL retry queue and land in a dead-letter queue
// after too many attempts.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/mangrove-ai/mangrove/pkg/logger"
)

const (
	IngestQueue = "ingest_queue"
	RetryQueue  = IngestQueue + "_retry"
	DeadQueue   = IngestQueue + "_dlq"

	// RetryDelay is how long a failed message waits before redelivery.
	RetryDelay = 10 * time.Second
	// MaxRetries is the attempt ceiling before a message is dead-lettered.
	MaxRetries = 10

	retriesHeader = "x-retries"
)

// IngestMessage is one document handoff to a worker.
type IngestMessage struct {
	Tenant     string `json:"tenant"`
	DocumentID string `json:"document_id"`
}

// Dial connects to RabbitMQ.
func Dial(url string) (*amqp091.Connection, error) {
	return amqp091.Dial(url)
}

// Declare creates the work, retry, and dead-letter queues. Idempotent;
// both server and worker call it so either can start first.
func Declare(ch *amqp091.Channel) error {
	if _, err := ch.QueueDeclare(IngestQueue, true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(DeadQueue, true, false, false, false, nil); err != nil {
		return err
	}
	_, err := ch.QueueDeclare(RetryQueue, true, false, false, false, amqp091.Table{
		"x-message-ttl":             int32(RetryDelay / time.Millisecond),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": IngestQueue,
	})
	return err
}

// Publish enqueues one ingest job.
func Publish(ctx context.Context, ch *amqp091.Channel, msg IngestMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", IngestQueue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return err
	}
	logger.Debug("[Queue] Published ingest job", "tenant", msg.Tenant, "document", msg.DocumentID)
	return nil
}
