package async

import (
	"context"
	"sync"
	"time"

	"log/slog"
)

// WorkerQueue fans jobs out to a fixed pool of workers. Each job runs
// under its own timeout so one stuck document cannot pin a worker forever.
type WorkerQueue struct {
	name    string
	handler Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu      sync.Mutex
	sending sync.WaitGroup
	closed  bool
}

type Option func(*WorkerQueue)

func WithWorkers(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithJobTimeout(d time.Duration) Option {
	return func(q *WorkerQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewWorkerQueue(name string, handler Handler, logger *slog.Logger, opts ...Option) *WorkerQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &WorkerQueue{
		name:    name,
		handler: handler,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *WorkerQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "queue", q.name, "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.handler(ctx, job.ID)
					cancel()

					if err != nil {
						q.logger.Error("job failed", "queue", q.name, "worker_id", workerID, "job_id", job.ID, "error", err)
					} else {
						q.logger.Info("job done", "queue", q.name, "worker_id", workerID, "job_id", job.ID)
					}
				}

				q.logger.Info("worker stopped", "queue", q.name, "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *WorkerQueue) Enqueue(ctx context.Context, job Job) error {
	// the blocking send happens outside the mutex so a full queue cannot
	// deadlock against Shutdown; q.sending keeps the channel open until
	// every in-flight send has landed
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("cannot enqueue: queue is shutting down", "queue", q.name, "job_id", job.ID)
		return nil
	}
	q.sending.Add(1)
	q.mu.Unlock()
	defer q.sending.Done()

	select {
	case q.ch <- job:
		q.logger.Info("job queued", "queue", q.name, "job_id", job.ID)
		return nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "queue", q.name, "job_id", job.ID)
	select {
	case q.ch <- job:
		q.logger.Info("job queued", "queue", q.name, "job_id", job.ID)
		return nil
	case <-ctx.Done():
		q.logger.Warn("enqueue abandoned", "queue", q.name, "job_id", job.ID, "error", ctx.Err())
		return ctx.Err()
	}
}

func (q *WorkerQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	// workers keep draining while stragglers finish their sends
	q.sending.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context", "queue", q.name)
	case <-done:
		q.logger.Info("queue drained, shutdown complete", "queue", q.name)
	}
}
