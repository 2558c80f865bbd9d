package scheduler

import (
	"context"
	"fmt"
	"time"

	"workorders_backend/internal/notification/outbox"
	"workorders_backend/platform/config"
	"workorders_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const (
	outboxPollInterval = 2 * time.Second
	outboxClaimBatch   = 50
)

// taskEnqueuer is the part of asynq.Client the dispatcher uses.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// NotificationOutboxDispatcher moves due outbox records onto the asynq queue.
type NotificationOutboxDispatcher struct {
	client taskEnqueuer
	queue  string
	repo   outbox.Store
	log    *logger.Logger
}

func NewNotificationOutboxDispatcher(cfg config.SchedulerConfig, repo outbox.Store, log *logger.Logger) (*NotificationOutboxDispatcher, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &NotificationOutboxDispatcher{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
		repo:   repo,
		log:    log,
	}, nil
}

func (d *NotificationOutboxDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *NotificationOutboxDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(outboxPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		d.dispatch(ctx)
	}
}

// dispatch claims one batch and enqueues it. Records that cannot be enqueued
// go back to pending with the error recorded.
func (d *NotificationOutboxDispatcher) dispatch(ctx context.Context) int {
	records, err := d.repo.ClaimPending(ctx, outboxClaimBatch)
	if err != nil {
		if ctx.Err() == nil {
			d.log.DatabaseError("outbox.claim_pending", err)
		}
		return 0
	}

	enqueued := 0
	for _, rec := range records {
		task, err := NewNotificationOutboxDueTask(NotificationOutboxDuePayload{
			OutboxID: rec.ID.String(),
		})
		if err != nil {
			msg := err.Error()
			_ = d.repo.MarkPending(ctx, rec.ID, &msg)
			continue
		}

		_, err = d.client.EnqueueContext(ctx, task, asynq.ProcessAt(rec.RunAt), asynq.Queue(d.queue))
		if err != nil {
			msg := err.Error()
			_ = d.repo.MarkPending(ctx, rec.ID, &msg)
			continue
		}
		enqueued++
	}
	return enqueued
}
