package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs the daily digest on a cron schedule (UTC).
type Scheduler struct {
	cron       *cron.Cron
	ctx        context.Context
	cancel     context.CancelFunc
	schedule   string
	log        logrus.FieldLogger
	reportFunc func(ctx context.Context) error
}

// New creates a scheduler for the given cron schedule.
func New(schedule string, log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		ctx:      ctx,
		cancel:   cancel,
		schedule: schedule,
		log:      log,
	}
}

// SetReportFunction sets the job run on every tick.
func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

// Start registers the job and starts the cron loop. An empty schedule or a
// missing job leaves the scheduler idle.
func (s *Scheduler) Start() error {
	if s.reportFunc == nil || s.schedule == "" {
		s.log.Warn("digest job or schedule not set, scheduler will not generate reports")
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.log.WithField("schedule", s.schedule).Info("triggered daily digest")
		if err := s.reportFunc(s.ctx); err != nil {
			s.log.WithError(err).Error("daily digest failed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.WithField("schedule", s.schedule).Info("scheduler started")
	return nil
}

// Stop waits for a running job, then cancels its context.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info("scheduler stopped")
}

// IsRunning reports whether a job is registered.
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
