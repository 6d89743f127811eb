package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	amqp "github.com/rabbitmq/amqp091-go"
)

// task is one object-created record to process
type task struct {
	StorageKey string
	batch      *deliveryBatch
}

// setupConsumer sets QoS and returns the delivery channel
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	if err := w.source.Qos(w.prefetchCount); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	w.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", w.prefetchCount),
	)

	deliveries, err := w.source.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.String("queue", w.queueName),
	)

	return deliveries, nil
}

// ObjectCreatedKeys returns the decoded object keys of the object-created records in an S3 event
func ObjectCreatedKeys(event events.S3Event) []string {
	keys := make([]string, 0, len(event.Records))
	for _, rec := range event.Records {
		if !strings.Contains(rec.EventName, "ObjectCreated") {
			continue
		}
		key := rec.S3.Object.URLDecodedKey
		if key == "" {
			key = rec.S3.Object.Key
		}
		if key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// startMessageDispatcher fans notification records out to the pool.
// It reports whether it stopped because the delivery channel closed.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return false

		case <-w.stopChan:
			w.logger.Info("Message dispatcher stopped - worker stopping")
			return false

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return true
			}

			var event events.S3Event
			if err := json.Unmarshal(delivery.Body, &event); err != nil {
				w.logger.Error("Failed to parse notification JSON",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				// malformed messages go to the dead letter queue, if any
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			keys := ObjectCreatedKeys(event)
			if len(keys) == 0 {
				w.logger.Debug("Notification has no object-created records",
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
				if ackErr := delivery.Ack(false); ackErr != nil {
					w.logger.Error("Failed to ACK message",
						slog.String("error", ackErr.Error()),
					)
				}
				continue
			}

			batch := newDeliveryBatch(delivery, len(keys))
			for _, key := range keys {
				select {
				case w.tasksChan <- &task{StorageKey: key, batch: batch}:
					w.logger.Debug("Task dispatched to worker pool",
						slog.String("storage_key", key),
						slog.Uint64("delivery_tag", delivery.DeliveryTag),
					)
				case <-ctx.Done():
					w.abandonBatch(batch)
					return false
				case <-w.stopChan:
					w.abandonBatch(batch)
					return false
				}
			}
		}
	}
}

// abandonBatch requeues a delivery whose records were only partly handed to the pool
func (w *Worker) abandonBatch(batch *deliveryBatch) {
	w.logger.Info("Message dispatcher stopped while dispatching task",
		slog.Uint64("delivery_tag", batch.delivery.DeliveryTag),
	)
	if nackErr := batch.abandon(); nackErr != nil {
		w.logger.Error("Failed to NACK message on shutdown",
			slog.String("error", nackErr.Error()),
		)
	}
}
