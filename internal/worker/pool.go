package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
)

// deliveryBatch acknowledges a delivery once every record it carried has been processed
type deliveryBatch struct {
	delivery amqp.Delivery

	mu      sync.Mutex
	pending int
	failed  bool
	requeue bool
	settled bool
}

func newDeliveryBatch(delivery amqp.Delivery, size int) *deliveryBatch {
	return &deliveryBatch{delivery: delivery, pending: size}
}

// done records one outcome and reports whether the caller must now settle the delivery
func (b *deliveryBatch) done(err error, requeue bool) (settle bool, failed bool, retry bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.settled {
		return false, false, false
	}
	if err != nil {
		b.failed = true
		b.requeue = b.requeue || requeue
	}
	b.pending--
	if b.pending > 0 {
		return false, false, false
	}
	b.settled = true
	return true, b.failed, b.requeue
}

// abandon requeues a delivery whose records were not all dispatched.
// Records already in flight finish without settling it again.
func (b *deliveryBatch) abandon() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.settled {
		return nil
	}
	b.settled = true
	return b.delivery.Nack(false, true)
}

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		// a stopping worker takes no new tasks even when some are queued
		select {
		case <-w.stopChan:
			w.logger.Debug("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return
		default:
		}

		select {
		case <-w.stopChan:
			w.logger.Debug("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Debug("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case t := <-w.tasksChan:
			w.logger.Info("Worker received task",
				slog.String("worker_name", workerName),
				slog.String("storage_key", t.StorageKey),
				slog.Uint64("delivery_tag", t.batch.delivery.DeliveryTag),
			)

			err := w.processor.Process(ctx, t.StorageKey)
			requeue := false
			if err != nil {
				requeue = shouldRequeue(err)
				w.logger.Error("Task processing failed",
					slog.String("worker_name", workerName),
					slog.String("storage_key", t.StorageKey),
					slog.String("error", err.Error()),
					slog.Bool("requeue", requeue),
				)
			}

			w.settle(workerName, t.batch, err, requeue)
		}
	}
}

// requeueUnstarted NACKs, with requeue, the deliveries of tasks still waiting in the pool queue
func (w *Worker) requeueUnstarted() {
	for {
		select {
		case t := <-w.tasksChan:
			if err := t.batch.abandon(); err != nil {
				w.logger.Error("Failed to NACK unstarted task",
					slog.String("storage_key", t.StorageKey),
					slog.String("error", err.Error()),
				)
				continue
			}
			w.logger.Info("Requeued unstarted task",
				slog.String("storage_key", t.StorageKey),
				slog.Uint64("delivery_tag", t.batch.delivery.DeliveryTag),
			)
		default:
			return
		}
	}
}

// settle ACKs or NACKs the delivery once its last record is done
func (w *Worker) settle(workerName string, batch *deliveryBatch, err error, requeue bool) {
	settle, failed, retry := batch.done(err, requeue)
	if !settle {
		return
	}

	tag := batch.delivery.DeliveryTag
	if failed {
		if nackErr := batch.delivery.Nack(false, retry); nackErr != nil {
			w.logger.Error("Failed to NACK message",
				slog.String("worker_name", workerName),
				slog.Uint64("delivery_tag", tag),
				slog.String("error", nackErr.Error()),
			)
			return
		}
		w.logger.Info("Message NACKed",
			slog.String("worker_name", workerName),
			slog.Uint64("delivery_tag", tag),
			slog.Bool("requeue", retry),
		)
		return
	}

	if ackErr := batch.delivery.Ack(false); ackErr != nil {
		w.logger.Error("Failed to ACK message",
			slog.String("worker_name", workerName),
			slog.Uint64("delivery_tag", tag),
			slog.String("error", ackErr.Error()),
		)
	}
}

// shouldRequeue requeues only transient failures; a redelivered event for a job that
// already left PENDING would be a no-op anyway.
func shouldRequeue(err error) bool {
	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
