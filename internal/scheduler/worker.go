package scheduler

import (
	"context"
	"fmt"

	"workorders_backend/internal/events"
	"workorders_backend/platform/config"
	"workorders_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// OverdueNotifier announces orders whose confirmation deadline has passed.
type OverdueNotifier interface {
	NotifyOverdue(ctx context.Context) (int, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	overdue OverdueNotifier
	bus     events.Bus
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, overdue OverdueNotifier, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(overdue, bus, log)
	w.server = server
	return w, nil
}

func newWorker(overdue OverdueNotifier, bus events.Bus, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{
		mux:     mux,
		overdue: overdue,
		bus:     bus,
		log:     log,
	}

	mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)
	mux.HandleFunc(TaskOrderDeadlineSweep, w.handleOrderDeadlineSweep)
	return w
}

func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	return w.bus.PublishSync(ctx, events.NotificationOutboxDue{
		BaseEvent: events.NewBaseEvent(),
		OutboxID:  outboxID,
	})
}

func (w *Worker) handleOrderDeadlineSweep(ctx context.Context, _ *asynq.Task) error {
	if w.overdue == nil {
		return nil
	}

	n, err := w.overdue.NotifyOverdue(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info("confirmation deadline sweep announced overdue orders", "count", n)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
