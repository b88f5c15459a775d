package webhook

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tansive/atlas/internal/common/logtrace"
)

// Job is one verified delivery waiting for reconciliation.
type Job struct {
	Paths []string
}

// Worker drains a bounded queue of jobs on a single goroutine.
type Worker struct {
	scanner Scanner
	queue   chan Job
	done    chan struct{}
	logger  zerolog.Logger

	mu      sync.Mutex // protects closed
	closed  bool
	started sync.Once
}

func NewWorker(scanner Scanner, size int) *Worker {
	if size <= 0 {
		size = 1
	}
	return &Worker{
		scanner: scanner,
		queue:   make(chan Job, size),
		done:    make(chan struct{}),
		logger:  logtrace.Component("webhook-worker"),
	}
}

// Start launches the worker goroutine. It stops when ctx is cancelled or
// after Stop has drained the queue.
func (w *Worker) Start(ctx context.Context) {
	w.started.Do(func() {
		go w.run(ctx)
	})
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-w.queue:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Interface("panic", r).Msg("panic while processing webhook job")
		}
	}()
	res, err := w.scanner.TargetedScan(ctx, job.Paths)
	if err != nil {
		w.logger.Error().Err(err).Strs("paths", job.Paths).Msg("targeted scan failed")
		return
	}
	logPathErrors(w.logger, res)
	w.logger.Info().Strs("paths", job.Paths).Stringer("result", res).Msg("webhook job complete")
}

// Enqueue adds a job without blocking.
func (w *Worker) Enqueue(job Job) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWorkerStopped
	}
	select {
	case w.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued jobs.
func (w *Worker) Pending() int {
	return len(w.queue)
}

// Capacity returns the queue size.
func (w *Worker) Capacity() int {
	return cap(w.queue)
}

// Stop refuses new jobs and waits for queued ones to finish. It returns
// immediately if the worker was never started.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	started := true
	w.started.Do(func() { started = false })
	if started {
		<-w.done
	}
}
