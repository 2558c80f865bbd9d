package service

import (
	"context"

	"workorders_backend/internal/orders/domain"
	"workorders_backend/platform/apperr"
)

// maxWriteAttempts bounds how often a read-modify-write is replayed after
// losing a revision race.
const maxWriteAttempts = 3

// mutation edits order in place and reports whether anything must be written.
type mutation func(order *domain.Order) (changed bool, err error)

type mutationResult struct {
	order    *domain.Order
	previous domain.OrderStatus
	changed  bool
}

// mutate loads the order, applies fn and writes the result conditionally on
// the revision it read. A lost race replays the whole sequence against the
// fresh document, so fn must be safe to call more than once.
func (s *Service) mutate(ctx context.Context, op, orderID string, fn mutation) (mutationResult, error) {
	for attempt := 1; ; attempt++ {
		order, err := s.store.GetByID(ctx, orderID)
		if err != nil {
			return mutationResult{}, err
		}

		previous := order.Status
		changed, err := fn(order)
		if err != nil {
			return mutationResult{}, err
		}
		if !changed {
			return mutationResult{order: order, previous: previous}, nil
		}

		order.UpdatedAt = s.now()
		err = s.store.Update(ctx, order, order.Revision)
		if err == nil {
			if previous != order.Status {
				s.log.OrderTransition(op, order.ID, string(previous), string(order.Status))
			}
			return mutationResult{order: order, previous: previous, changed: true}, nil
		}
		if !apperr.Is(err, apperr.KindConflict) || attempt >= maxWriteAttempts {
			return mutationResult{}, err
		}
		s.log.Debug("order revision conflict, retrying", "op", op, "order_id", orderID, "attempt", attempt)
	}
}

// rederive recomputes the aggregate status from workers. A completed order
// keeps its status; only reopen moves it back.
func rederive(order *domain.Order, workers []domain.WorkerAssignment) {
	if order.Status == domain.OrderCompleted {
		return
	}
	order.Status = domain.DeriveStatus(workers)
}
