package service

import (
	"context"

	"workorders_backend/internal/events"
	"workorders_backend/internal/orders/domain"
)

const overdueBatchSize = 100

// NotifyOverdue publishes OrderConfirmationOverdue for every order whose
// confirmation deadline has passed while it is still waiting on workers.
// Each order is announced once. It returns how many orders were announced.
func (s *Service) NotifyOverdue(ctx context.Context) (int, error) {
	now := s.now()
	orders, err := s.store.ListOverdue(ctx, now, overdueBatchSize)
	if err != nil {
		return 0, err
	}

	announced := 0
	for i := range orders {
		order := &orders[i]
		if err := s.store.MarkOverdueNotified(ctx, order.ID, now); err != nil {
			s.log.SideEffectFailed("overdue_mark", order.ID, err)
			continue
		}

		var pending []domain.WorkerAssignment
		for _, w := range order.Workers() {
			if w.Status == domain.WorkerPending {
				pending = append(pending, w)
			}
		}

		deadline := now
		if order.ConfirmationDeadline != nil {
			deadline = *order.ConfirmationDeadline
		}
		s.bus.Publish(ctx, events.OrderConfirmationOverdue{
			BaseEvent:      events.NewBaseEvent(),
			OrderRef:       orderRef(order),
			Deadline:       deadline,
			PendingWorkers: assignedWorkers(pending),
		})
		announced++
	}
	return announced, nil
}
