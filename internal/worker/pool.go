package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/idan157001/TestShuffleFinal/internal/types"
)

var ErrPoolClosed = errors.New("worker pool is shutting down")

// Handler processes one extraction task. Returned errors are logged; the
// handler itself records the outcome on the job.
type Handler func(ctx context.Context, task types.ExtractionTask) error

// Pool runs extraction tasks on a fixed number of goroutines fed by a
// bounded channel.
type Pool struct {
	logger  *zap.Logger
	workers int

	ch   chan types.ExtractionTask
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.ch = make(chan types.ExtractionTask, n)
		}
	}
}

func NewPool(logger *zap.Logger, opts ...Option) *Pool {
	p := &Pool{
		logger:  logger,
		workers: 4,
		ch:      make(chan types.ExtractionTask, 64),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start(handler Handler) {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Debug("worker started", zap.Int("worker_id", workerID))

				for task := range p.ch {
					if err := handler(context.Background(), task); err != nil {
						p.logger.Error("extraction failed",
							zap.Int("worker_id", workerID),
							zap.String("job_id", task.JobID),
							zap.Error(err),
						)
					} else {
						p.logger.Info("extraction finished",
							zap.Int("worker_id", workerID),
							zap.String("job_id", task.JobID),
						)
					}
				}

				p.logger.Debug("worker stopped", zap.Int("worker_id", workerID))
			}(i + 1)
		}
	})
}

// Schedule enqueues a task. It blocks while the queue is full until ctx is
// done.
func (p *Pool) Schedule(ctx context.Context, task types.ExtractionTask) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("cannot schedule: pool is shutting down", zap.String("job_id", task.JobID))
		return ErrPoolClosed
	}

	select {
	case p.ch <- task:
		p.logger.Debug("task queued", zap.String("job_id", task.JobID))
		return nil
	default:
	}

	p.logger.Warn("queue full, applying backpressure", zap.String("job_id", task.JobID))
	select {
	case p.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish or for
// ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.logger.Warn("shutdown interrupted by context")
		return ctx.Err()
	case <-done:
		p.logger.Info("queue drained, shutdown complete")
		return nil
	}
}
