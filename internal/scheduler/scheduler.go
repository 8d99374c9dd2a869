package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "minkal/internal/log"
)

// Jobs is what the scheduler drives. *state.State implements it.
type Jobs interface {
	Tick() float64
	CheckRollover(ctx context.Context) (bool, error)
	Refresh(ctx context.Context) error
}

// Config holds the cron specs. Empty specs disable the job.
type Config struct {
	Tick     string
	Rollover string
	Refresh  string
	Location *time.Location

	// JobTimeout bounds a single refresh or rollover run.
	JobTimeout time.Duration
}

// Scheduler runs the clock tick, the day-rollover check and the periodic
// refetch on cron schedules. Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	jobs    Jobs
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// New registers the jobs without starting them.
func New(cfg Config, jobs Jobs) (*Scheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, jobs: jobs, timeout: timeout, ctx: ctx, cancel: cancel}

	for _, job := range []struct {
		name string
		spec string
		fn   func()
	}{
		{"tick", cfg.Tick, s.runTick},
		{"rollover", cfg.Rollover, s.runRollover},
		{"refresh", cfg.Refresh, s.runRefresh},
	} {
		if job.spec == "" {
			continue
		}
		if _, err := c.AddFunc(job.spec, job.fn); err != nil {
			cancel()
			return nil, fmt.Errorf("scheduler: %s schedule %q: %w", job.name, job.spec, err)
		}
		appLog.Info("scheduled job", "job", job.name, "spec", job.spec)
	}
	return s, nil
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling, cancels running jobs and waits for them until ctx
// is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runTick() {
	y := s.jobs.Tick()
	appLog.Debug("clock tick", "current_time_y", y)
}

func (s *Scheduler) runRollover() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	if _, err := s.jobs.CheckRollover(ctx); err != nil {
		appLog.Error("rollover check failed", err)
	}
}

func (s *Scheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	if err := s.jobs.Refresh(ctx); err != nil {
		appLog.Error("scheduled refresh failed", err)
	}
}

// cronLogger routes cron's own messages into the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
