package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/dtroode/heirkeeper-server/internal/logger"
)

// ErrAlreadyRunning is returned by Start on a scheduler that was started before.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Job is a unit of background work run at a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs every job in its own goroutine. A job run is never overlapped by the next tick of
// the same job; ticks that fire during a long run are dropped.
type Scheduler struct {
	jobs    []Job
	logger  *logger.Logger
	running atomic.Bool
	runs    atomic.Int64
	fails   atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(logger *logger.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		logger: logger,
	}
}

// Start launches the jobs. Each job runs once right away and then on every tick until ctx is done or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			return fmt.Errorf("job %s: interval must be positive", job.Name)
		}
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}

	s.logger.Info("Scheduler: started", "jobs", len(s.jobs))
	return nil
}

// Stop cancels all jobs and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	s.wg.Wait()
	s.running.Store(false)
	s.logger.Info("Scheduler: stopped", "runs", s.runs.Load(), "failures", s.fails.Load())
}

// Running reports whether Start has been called and Stop has not completed.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Runs returns the number of job runs so far, failed ones included.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

// Failures returns the number of job runs that returned an error or panicked.
func (s *Scheduler) Failures() int64 {
	return s.fails.Load()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.runOnce(ctx, job)
	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	s.runs.Inc()
	log := s.logger.With("job", job.Name)

	err := safeRun(ctx, job)
	if err != nil {
		s.fails.Inc()
		if errors.Is(err, context.Canceled) {
			log.Info("Scheduler: job interrupted")
			return
		}
		log.Error("Scheduler: job failed", "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return
	}

	log.Debug("Scheduler: job finished", "duration_ms", time.Since(start).Milliseconds())
}

func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, p)
		}
	}()
	return job.Run(ctx)
}
