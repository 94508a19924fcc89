package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"signal-trackers/pkg/logger"
)

// Job is a named unit of scheduled work.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// SchedulerService drives the registered jobs on their cron cadences with
// single-instance and misfire-grace semantics.
type SchedulerService interface {
	Register(job Job) error
	Start(ctx context.Context)
	Stop()
}

type schedulerService struct {
	cron         *cron.Cron
	logger       *logger.Logger
	misfireGrace time.Duration
	workers      chan struct{}
	baseCtx      context.Context
	mu           sync.Mutex
	started      bool
}

// NewSchedulerService creates a scheduler with a fixed-size worker pool.
func NewSchedulerService(workerPoolSize int, misfireGrace time.Duration, log *logger.Logger) SchedulerService {
	if workerPoolSize <= 0 {
		workerPoolSize = 3
	}
	if misfireGrace <= 0 {
		misfireGrace = 5 * time.Minute
	}
	return &schedulerService{
		cron:         cron.New(),
		logger:       log,
		misfireGrace: misfireGrace,
		workers:      make(chan struct{}, workerPoolSize),
	}
}

// Register adds a job. Triggers that fire while a prior run of the same job
// is still executing are skipped; triggers that cannot obtain a worker
// within the grace window are dropped. At most one backlogged trigger runs
// after a stall, since skipped fires leave no queue behind.
func (s *schedulerService) Register(job Job) error {
	_, err := s.cron.AddFunc(job.Spec, s.wrap(job))
	return err
}

// wrap builds the trigger handler enforcing single-instance, worker-pool,
// and grace-window semantics around the job body.
func (s *schedulerService) wrap(job Job) func() {
	var running int32

	return func() {
		fireTime := time.Now()

		if !atomic.CompareAndSwapInt32(&running, 0, 1) {
			s.logger.Warn("Skipping job trigger, previous run still executing",
				logger.StringField("job", job.Name))
			return
		}
		defer atomic.StoreInt32(&running, 0)

		select {
		case s.workers <- struct{}{}:
		case <-time.After(s.misfireGrace):
			s.logger.Warn("Dropping job trigger, no worker within grace window",
				logger.StringField("job", job.Name))
			return
		}
		defer func() { <-s.workers }()

		if delay := time.Since(fireTime); delay > s.misfireGrace {
			s.logger.Warn("Dropping stale job trigger",
				logger.StringField("job", job.Name), logger.Field("delay", delay))
			return
		}

		s.runIsolated(job)
	}
}

// runIsolated executes the job, converting panics and errors into logs so
// nothing propagates to the scheduler goroutine.
func (s *schedulerService) runIsolated(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Job panicked",
				logger.StringField("job", job.Name),
				logger.ErrorField(fmt.Errorf("%v", r)))
		}
	}()

	started := time.Now()
	s.logger.Info("Job starting", logger.StringField("job", job.Name))
	if err := job.Run(s.jobContext()); err != nil {
		s.logger.Error("Job failed",
			logger.StringField("job", job.Name), logger.ErrorField(err))
		return
	}
	s.logger.Info("Job finished",
		logger.StringField("job", job.Name), logger.Field("duration", time.Since(started)))
}

func (s *schedulerService) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx != nil {
		return s.baseCtx
	}
	return context.Background()
}

func (s *schedulerService) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.baseCtx = ctx
	s.started = true
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Scheduler started", logger.IntField("jobs", len(s.cron.Entries())))
}

// Stop halts new triggers and waits for in-flight jobs to finish.
func (s *schedulerService) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("Scheduler stopped")
}
