package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonho/pulserank/pkg/logger"
)

// Scheduler drives periodic jobs over robfig/cron and keeps per-job
// run history for the admin surface.
type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger

	mu      sync.RWMutex
	jobs    map[string]Job
	history map[string]*runLog

	maxRetries int
	retryDelay time.Duration
	jobTimeout time.Duration
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithRetries overrides the per-run retry policy.
func WithRetries(max int, delay time.Duration) Option {
	return func(s *Scheduler) {
		s.maxRetries = max
		s.retryDelay = delay
	}
}

// WithJobTimeout bounds a single job execution.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.jobTimeout = d }
}

// New creates a scheduler. Cron expressions include a seconds field so
// sub-minute refresh sweeps can be expressed directly.
func New(log *logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		logger:     log,
		jobs:       make(map[string]Job),
		history:    make(map[string]*runLog),
		maxRetries: 2,
		retryDelay: 10 * time.Second,
		jobTimeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register schedules a job. Registering the same name twice is an error.
func (s *Scheduler) Register(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduler: job %q already registered", name)
	}

	if _, err := s.cron.AddFunc(job.Schedule(), func() { s.execute(job) }); err != nil {
		return fmt.Errorf("scheduler: schedule job %q: %w", name, err)
	}

	s.jobs[name] = job
	s.history[name] = &runLog{}

	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
	}).Info("Job registered")
	return nil
}

// Start begins dispatching jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Scheduler starting")
	s.cron.Start()
}

// Stop halts dispatch and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// Trigger runs one job immediately, outside its schedule.
func (s *Scheduler) Trigger(name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("scheduler: job %q not found", name)
	}

	go s.execute(job)
	return nil
}

// execute runs a job with bounded retries and records the outcome.
func (s *Scheduler) execute(job Job) {
	name := job.Name()
	started := time.Now()

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		lastErr = job.Run(ctx)
		cancel()

		if lastErr == nil {
			break
		}
		s.logger.WithFields(map[string]interface{}{
			"job":     name,
			"attempt": attempt + 1,
			"error":   lastErr.Error(),
		}).Warn("Job run failed")

		if attempt < s.maxRetries {
			time.Sleep(s.retryDelay)
		}
	}

	record := RunRecord{
		Job:      name,
		Started:  started,
		Duration: time.Since(started),
		Success:  lastErr == nil,
	}
	if lastErr != nil {
		record.Error = lastErr.Error()
	}

	s.mu.Lock()
	if log, ok := s.history[name]; ok {
		log.add(record)
	}
	s.mu.Unlock()

	if lastErr == nil {
		s.logger.WithFields(map[string]interface{}{
			"job":      name,
			"duration": record.Duration.String(),
		}).Info("Job completed")
	} else {
		s.logger.WithFields(map[string]interface{}{
			"job":   name,
			"error": lastErr.Error(),
		}).Error("Job failed after retries")
	}
}

// Stats reports the per-job run summary for the admin endpoint.
func (s *Scheduler) Stats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats, len(s.jobs))
	for name, job := range s.jobs {
		log := s.history[name]
		success, failure := log.counts()

		js := JobStats{
			Job:      name,
			Schedule: job.Schedule(),
			Runs:     success + failure,
			Failures: failure,
		}
		if last, ok := log.last(); ok {
			js.LastRun = &last.Started
			js.LastOK = last.Success
		}
		stats[name] = js
	}
	return stats
}
