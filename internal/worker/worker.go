package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliverySource is the broker side of the worker
type DeliverySource interface {
	Qos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// TaskProcessor handles one uploaded object
type TaskProcessor interface {
	Process(ctx context.Context, storageKey string) error
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Source        DeliverySource
	Processor     TaskProcessor
	WorkerID      string
	QueueName     string
	Concurrency   int
	PrefetchCount int
}

// Worker consumes object-created notifications and runs them through a pool of goroutines
type Worker struct {
	logger        *slog.Logger
	source        DeliverySource
	processor     TaskProcessor
	workerID      string
	queueName     string
	concurrency   int
	prefetchCount int

	tasksChan chan *task
	wg        sync.WaitGroup
	stopChan  chan struct{}
	stopOnce  sync.Once

	// taskCtx outlives the Start context so in-flight tasks can drain; Stop cancels it on timeout
	taskCtx     context.Context
	cancelTasks context.CancelFunc
	dispatching sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}

	taskCtx, cancelTasks := context.WithCancel(context.Background())

	return &Worker{
		logger:        cfg.Logger,
		source:        cfg.Source,
		processor:     cfg.Processor,
		workerID:      cfg.WorkerID,
		queueName:     cfg.QueueName,
		concurrency:   concurrency,
		prefetchCount: prefetch,
		tasksChan:     make(chan *task, concurrency),
		stopChan:      make(chan struct{}),
		taskCtx:       taskCtx,
		cancelTasks:   cancelTasks,
	}
}

// Start subscribes to the queue and blocks until ctx is canceled, Stop is called or the delivery channel closes.
// Canceling ctx only stops taking new deliveries; tasks already handed to the pool keep running.
func (w *Worker) Start(ctx context.Context) error {
	w.dispatching.Add(1)
	defer w.dispatching.Done()

	select {
	case <-w.stopChan:
		return nil
	default:
	}

	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to setup consumer: %w", err)
	}

	w.spawnWorkerPool(w.taskCtx)

	if closed := w.startMessageDispatcher(ctx, deliveries); closed {
		return fmt.Errorf("delivery channel closed")
	}
	return nil
}

// Stop stops the dispatcher and waits for in-flight tasks to finish. If ctx expires first the
// tasks are canceled and ctx.Err() is returned. Dispatched tasks that never started are requeued.
func (w *Worker) Stop(ctx context.Context) error {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })

	done := make(chan struct{})
	go func() {
		w.dispatching.Wait()
		w.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("Worker shutdown timeout exceeded, canceling in-flight tasks")
		w.cancelTasks()
		<-done
		err = ctx.Err()
	}
	w.cancelTasks()

	w.requeueUnstarted()

	w.logger.Info("Worker stopped")
	return err
}
