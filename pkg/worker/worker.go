package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
)

var (
	ErrPreExecute = errors.New("pre-execute job error")
	ErrExecute    = errors.New("execute job error")
	ErrQueueFull  = errors.New("job queue is full")
	ErrStopped    = errors.New("worker is stopped")
)

// Job holds all information regarding the Job
type Job interface {
	// ID return uint64 unique identifier of the job
	ID() uint64

	// Context to tracks down all Job information that important.
	Context() context.Context

	// PreExecute called before Execute, when error Execute never be called.
	// PostExecute always called after PreExecute or Execute is done.
	PreExecute() error

	// Execute is the real logic of the Job.
	Execute() error

	// PostExecute called after Execute is done.
	// When Execute return error, it will pass to PostExecute, otherwise it returns nil.
	PostExecute(err error)
}

type Service interface {
	AddJob(job Job) error
	TryAddJob(job Job) error
	WaitJob(job Job)
}

type Option func(*Worker)

func WithLogger(l Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

type Worker struct {
	jobs    chan Job
	running sync.WaitGroup
	pending int64
	logger  Logger

	mu      sync.RWMutex
	stopped bool
}

var _ Service = (*Worker)(nil)

func NewWorker(num, maxJob int, opts ...Option) *Worker {
	if num < 1 {
		num = 1
	}

	if maxJob < 1 {
		maxJob = 1
	}

	w := &Worker{
		jobs:   make(chan Job, maxJob),
		logger: new(ylogger),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.running.Add(num)
	for i := 0; i < num; i++ {
		go w.worker(i + 1)
	}

	return w
}

func (w *Worker) worker(id int) {
	defer w.running.Done()

	for job := range w.jobs {
		t0 := time.Now()
		w.execute(job)
		remaining := atomic.AddInt64(&w.pending, -1)

		w.logger.Info(
			job.Context(),
			fmt.Sprintf("worker %d, job id %d, ongoing queue %d, duration %s",
				id, job.ID(), remaining, time.Since(t0).String(),
			),
		)
	}
}

func (w *Worker) execute(job Job) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = multierr.Append(fmt.Errorf("panic: %v", r), ErrExecute)
		}

		job.PostExecute(err)
	}()

	if err = job.PreExecute(); err != nil {
		err = multierr.Append(err, ErrPreExecute)
		return
	}

	if err = job.Execute(); err != nil {
		err = multierr.Append(err, ErrExecute)
	}
}

// AddJob enqueues job, blocking while the queue is full.
func (w *Worker) AddJob(job Job) error {
	if job == nil {
		return nil
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return ErrStopped
	}

	atomic.AddInt64(&w.pending, 1)
	w.jobs <- job
	return nil
}

// TryAddJob enqueues job or returns ErrQueueFull without blocking.
func (w *Worker) TryAddJob(job Job) error {
	if job == nil {
		return nil
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return ErrStopped
	}

	atomic.AddInt64(&w.pending, 1)
	select {
	case w.jobs <- job:
		return nil
	default:
		atomic.AddInt64(&w.pending, -1)
		return ErrQueueFull
	}
}

// WaitJob runs job in the caller goroutine.
func (w *Worker) WaitJob(job Job) {
	if job == nil {
		return
	}

	w.execute(job)
}

// Pending returns the number of jobs queued or running.
func (w *Worker) Pending() int64 {
	return atomic.LoadInt64(&w.pending)
}

// Done ensures all registered Job is done before stop the worker.
// Calling it more than once is a no-op.
func (w *Worker) Done() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}

	w.stopped = true
	close(w.jobs)
	w.mu.Unlock()

	w.running.Wait()
}
