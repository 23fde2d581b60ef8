// Package tasks provides a small in-process background task runner.
//
// The ingestion hot path must return as soon as a batch is durably
// persisted; reminder evaluation and live-position publishing are submitted
// here instead of being run inline. Tasks are best-effort: failures are
// logged and never retried, and a full queue drops the task rather than
// blocking the caller.
package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one unit of detached work. The context carries the per-task
// execution bound; implementations should respect it on their I/O.
type Task func(ctx context.Context) error

// Submitter is the interface services depend on to hand work off the
// request path.
type Submitter interface {
	// Submit enqueues fn for background execution. It never blocks; when
	// the queue is full the task is dropped and counted.
	Submit(name string, fn Task)
}

// Runner executes submitted tasks on a fixed pool of workers.
type Runner struct {
	log     *slog.Logger
	queue   chan job
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

type job struct {
	name string
	fn   Task
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout bounds each task's execution. Zero means no bound beyond the
// I/O timeouts of whatever the task calls.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// NewRunner starts workers goroutines consuming a queue of size queueSize.
// Call Close to drain and stop them.
func NewRunner(log *slog.Logger, workers, queueSize int, opts ...Option) *Runner {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	r := &Runner{
		log:   log,
		queue: make(chan job, queueSize),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.work()
	}
	return r
}

// Submit enqueues fn. When the runner is closed or the queue is full the
// task is dropped with a log line; submission never blocks the caller.
func (r *Runner) Submit(name string, fn Task) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		r.log.Warn("task dropped, runner closed", "task", name)
		return
	}

	select {
	case r.queue <- job{name: name, fn: fn}:
	default:
		r.log.Warn("task dropped, queue full", "task", name)
	}
}

// Close stops accepting tasks, waits for queued tasks to finish, and
// returns. Safe to call more than once.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Runner) work() {
	defer r.wg.Done()
	for j := range r.queue {
		r.run(j)
	}
}

// run executes one task, recovering panics so a bad task cannot take a
// worker down.
func (r *Runner) run(j job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("task panicked", "task", j.name, "panic", rec)
		}
	}()

	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := j.fn(ctx); err != nil {
		r.log.Error("task failed", "task", j.name, "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return
	}
	r.log.Debug("task done", "task", j.name,
		"duration_ms", time.Since(start).Milliseconds())
}
