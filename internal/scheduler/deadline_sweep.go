package scheduler

import (
	"context"
	"fmt"
	"time"

	"workorders_backend/platform/logger"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// DeadlineSweep queues a confirmation-deadline sweep on a cron schedule.
type DeadlineSweep struct {
	cron      *cron.Cron
	scheduler SweepScheduler
	log       *logger.Logger
}

func NewDeadlineSweep(spec string, scheduler SweepScheduler, log *logger.Logger) (*DeadlineSweep, error) {
	if _, err := cronParser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid deadline sweep schedule %q: %w", spec, err)
	}

	s := &DeadlineSweep{
		cron:      cron.New(cron.WithParser(cronParser), cron.WithLocation(time.UTC)),
		scheduler: scheduler,
		log:       log,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.enqueue(context.Background()) }); err != nil {
		return nil, err
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done.
func (s *DeadlineSweep) Run(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}

	s.cron.Start()
	s.log.Info("deadline sweep scheduled", "entries", len(s.cron.Entries()))

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
}

func (s *DeadlineSweep) enqueue(ctx context.Context) {
	if err := s.scheduler.EnqueueDeadlineSweep(ctx, time.Now()); err != nil {
		s.log.Warn("failed to enqueue deadline sweep", "error", err)
	}
}
