package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of background work.
type Task struct {
	ID       string
	Kind     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes one task. Returning an error schedules a retry.
type Handler func(context.Context, Task) error

// Options tunes the worker pool.
type Options struct {
	Workers    int
	Buffer     int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue is an in-memory task dispatcher. Tasks that fail are retried with
// doubling delays up to MaxRetries, then dropped with an error log. Nothing
// is persisted; a restart loses queued tasks, which is acceptable for the
// derived artifacts this queue produces.
type Queue struct {
	name    string
	handler Handler
	opts    Options

	tasks   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewQueue builds a queue that feeds tasks to handler.
func NewQueue(name string, handler Handler, opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Buffer <= 0 {
		opts.Buffer = opts.Workers * 8
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		opts:    opts,
		tasks:   make(chan Task, opts.Buffer),
	}
}

// Start launches the workers. Calling Start twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.work(q.ctx)
	}
	q.running = true
	q.opts.Logger.Info("task queue started",
		zap.String("queue", q.name),
		zap.Int("workers", q.opts.Workers))
}

// Stop cancels the workers and blocks until they and any pending retry
// timers exit. Buffered tasks that have not been picked up are discarded.
// The queue can be started again afterwards.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.running = false
	q.mu.Unlock()
	q.wg.Wait()
	q.opts.Logger.Info("task queue stopped", zap.String("queue", q.name))
}

// Enqueue submits a task, blocking while the buffer is full.
func (q *Queue) Enqueue(task Task) error {
	q.mu.Lock()
	ctx := q.ctx
	running := q.running
	q.mu.Unlock()

	if !running {
		return fmt.Errorf("queue %s is not running", q.name)
	}
	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s shut down: %w", q.name, ctx.Err())
	case q.tasks <- task:
		return nil
	}
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-q.tasks:
			if err := q.handler(ctx, task); err != nil {
				q.retry(task, err)
			}
		}
	}
}

func (q *Queue) retry(task Task, cause error) {
	task.Attempt++
	if task.Attempt > q.opts.MaxRetries {
		q.opts.Logger.Error("task dropped after retries",
			zap.String("queue", q.name),
			zap.String("task_id", task.ID),
			zap.String("kind", task.Kind),
			zap.Error(cause))
		return
	}
	delay := q.opts.RetryDelay << (task.Attempt - 1)
	q.opts.Logger.Warn("task failed, retrying",
		zap.String("queue", q.name),
		zap.String("task_id", task.ID),
		zap.Int("attempt", task.Attempt),
		zap.Duration("delay", delay),
		zap.Error(cause))

	q.mu.Lock()
	ctx := q.ctx
	q.mu.Unlock()
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			if err := q.Enqueue(task); err != nil {
				q.opts.Logger.Error("failed to requeue task",
					zap.String("queue", q.name),
					zap.String("task_id", task.ID),
					zap.Error(err))
			}
		}
	}()
}
