// Package runner provides bounded-concurrency task execution with ordered
// queuing, watchdog-guarded completions, and reset support. It is the
// scheduling primitive underneath the fetch pipeline: submitters enqueue
// work, the runner keeps at most N units in flight, and every unit signals
// completion through a single-shot callback.
package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/telemetry-armada/pkg/common/logger"
	"github.com/ahrav/telemetry-armada/pkg/common/timeutil"
)

// Task starts one unit of work. The runner invokes it once a concurrency
// slot is free and passes the completion callback the work must trigger when
// it finishes. The callback may be called from any goroutine; calling it
// more than once is a safe no-op.
type Task func(done func())

// Metrics records runner activity for monitoring queue pressure and slot
// usage.
type Metrics interface {
	IncTasksSubmitted(ctx context.Context)
	IncTasksCompleted(ctx context.Context)
	IncWatchdogExpirations(ctx context.Context)
	IncTasksDropped(ctx context.Context, count int)
	ObserveQueueWait(ctx context.Context, d time.Duration)
}

const (
	defaultConcurrency     = 3
	defaultWatchdogTimeout = 300 * time.Second
)

// Option configures a TaskRunner.
type Option func(*TaskRunner)

// WithConcurrency sets how many tasks may run simultaneously. Values below
// one are clamped to one.
func WithConcurrency(n int) Option {
	return func(r *TaskRunner) {
		if n < 1 {
			n = 1
		}
		r.concurrency = n
	}
}

// WithWatchdogTimeout sets how long a dispatched task may stay in flight
// before its slot is forcibly reclaimed.
func WithWatchdogTimeout(d time.Duration) Option {
	return func(r *TaskRunner) { r.watchdogTimeout = d }
}

// WithTimeProvider overrides the clock used for queue-wait accounting.
func WithTimeProvider(tp timeutil.Provider) Option {
	return func(r *TaskRunner) { r.timeProvider = tp }
}

type queuedTask struct {
	fn         Task
	enqueuedAt time.Time
}

// TaskRunner executes submitted tasks with a fixed concurrency ceiling.
// Tasks dispatch in submission order (optionally from the front of the
// queue) and each occupies one slot until its completion callback fires or
// the watchdog reclaims it. A panic during synchronous task execution is
// re-raised to the submitter after the slot is scheduled for release, so one
// faulty task cannot leak capacity.
type TaskRunner struct {
	name string

	mu       sync.Mutex
	queue    []queuedTask
	inFlight int
	// epoch invalidates completions of tasks dispatched before the last
	// Reset. Their late callbacks must not touch the in-flight counter.
	epoch uint64

	concurrency     int
	watchdogTimeout time.Duration

	timeProvider timeutil.Provider

	logger  *logger.Logger
	metrics Metrics
	tracer  trace.Tracer
}

// NewTaskRunner constructs a runner with the default concurrency of three
// slots and a five minute watchdog unless options say otherwise.
func NewTaskRunner(
	name string,
	logger *logger.Logger,
	metrics Metrics,
	tracer trace.Tracer,
	opts ...Option,
) *TaskRunner {
	r := &TaskRunner{
		name:            name,
		concurrency:     defaultConcurrency,
		watchdogTimeout: defaultWatchdogTimeout,
		timeProvider:    timeutil.Default(),
		logger:          logger.With("component", "task_runner", "runner_name", name),
		metrics:         metrics,
		tracer:          tracer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit enqueues a task and dispatches queued work while concurrency slots
// are free. With atFront set the task is placed ahead of already queued
// tasks; it never preempts tasks that are in flight. Submit itself does not
// block on task completion, but tasks whose synchronous part is slow run on
// the caller's goroutine.
func (r *TaskRunner) Submit(ctx context.Context, task Task, atFront bool) {
	ctx, span := r.tracer.Start(ctx, "task_runner.submit",
		trace.WithAttributes(
			attribute.String("runner_name", r.name),
			attribute.Bool("at_front", atFront),
		))
	defer span.End()

	entry := queuedTask{fn: task, enqueuedAt: r.timeProvider.Now()}

	r.mu.Lock()
	if atFront {
		r.queue = append([]queuedTask{entry}, r.queue...)
	} else {
		r.queue = append(r.queue, entry)
	}
	queued := len(r.queue)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.IncTasksSubmitted(ctx)
	}
	span.SetAttributes(attribute.Int("queue_depth", queued))

	r.dispatch(ctx)
}

// Reset drops all queued tasks and forgets in-flight ones. Already
// dispatched tasks keep running; their completions are ignored so they
// cannot corrupt slot accounting. New submissions dispatch immediately.
func (r *TaskRunner) Reset(ctx context.Context) {
	ctx, span := r.tracer.Start(ctx, "task_runner.reset",
		trace.WithAttributes(attribute.String("runner_name", r.name)))
	defer span.End()

	r.mu.Lock()
	dropped := len(r.queue)
	abandoned := r.inFlight
	r.queue = nil
	r.inFlight = 0
	r.epoch++
	r.mu.Unlock()

	if r.metrics != nil && dropped > 0 {
		r.metrics.IncTasksDropped(ctx, dropped)
	}
	span.SetAttributes(
		attribute.Int("dropped_tasks", dropped),
		attribute.Int("abandoned_tasks", abandoned),
	)
	r.logger.Debug(ctx, "runner reset", "dropped_tasks", dropped, "abandoned_tasks", abandoned)
}

// State reports the current queue depth and number of in-flight tasks.
func (r *TaskRunner) State() (queued, inFlight int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue), r.inFlight
}

// dispatch pops queued tasks into free slots until the ceiling is reached or
// the queue empties. The runner lock is never held while task code runs.
func (r *TaskRunner) dispatch(ctx context.Context) {
	for {
		r.mu.Lock()
		if r.inFlight >= r.concurrency || len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		entry := r.queue[0]
		r.queue = r.queue[1:]
		r.inFlight++
		epoch := r.epoch
		r.mu.Unlock()

		if r.metrics != nil {
			r.metrics.ObserveQueueWait(ctx, r.timeProvider.Now().Sub(entry.enqueuedAt))
		}

		r.run(ctx, entry.fn, epoch)
	}
}

// run executes one task inside a slot. The completion handle guards the slot
// with a one-time trigger: whichever of the task callback, the watchdog, or
// the panic path fires first wins, every later trigger is a no-op.
func (r *TaskRunner) run(ctx context.Context, task Task, epoch uint64) {
	c := &completion{runner: r, epoch: epoch}
	c.watchdog = time.AfterFunc(r.watchdogTimeout, func() {
		if !c.fire() {
			return
		}
		if r.metrics != nil {
			r.metrics.IncWatchdogExpirations(context.Background())
		}
		r.logger.Warn(context.Background(), "watchdog forced task completion",
			"timeout", r.watchdogTimeout.String())
		r.release(context.Background(), epoch)
	})

	defer func() {
		if rec := recover(); rec != nil {
			// Release the slot on the next scheduling turn, then re-raise
			// to the submitter.
			go c.complete(context.Background())
			panic(rec)
		}
	}()

	task(func() { c.complete(ctx) })
}

// release frees one slot and pulls the next queued task. Completions from
// before the last reset are discarded.
func (r *TaskRunner) release(ctx context.Context, epoch uint64) {
	r.mu.Lock()
	if epoch != r.epoch {
		r.mu.Unlock()
		return
	}
	r.inFlight--
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.IncTasksCompleted(ctx)
	}
	r.dispatch(ctx)
}

// completion is the single-shot done handle handed to a task.
type completion struct {
	runner   *TaskRunner
	epoch    uint64
	fired    atomic.Bool
	watchdog *time.Timer
}

// fire claims the one-time trigger. Only the first caller wins.
func (c *completion) fire() bool { return c.fired.CompareAndSwap(false, true) }

func (c *completion) complete(ctx context.Context) {
	if !c.fire() {
		return
	}
	c.watchdog.Stop()
	c.runner.release(ctx, c.epoch)
}
