package service

import (
	"context"
	"strings"

	"workorders_backend/internal/events"
	"workorders_backend/internal/orders/domain"
	"workorders_backend/platform/sanitize"
)

const maxReasonLength = 500

// WorkerInput describes a worker being put on an order.
type WorkerInput struct {
	UserID     string
	Name       string
	IsTeamLead bool
	Notify     *bool
}

// Accept records that workerID accepts the order. Accepting twice is a no-op
// without a write. A worker known only to the legacy assignment fields gets
// a structured entry on the way.
func (s *Service) Accept(ctx context.Context, orderID, workerID, workerName string) (*domain.Order, error) {
	var worker domain.WorkerAssignment
	res, err := s.mutate(ctx, "accept", orderID, func(order *domain.Order) (bool, error) {
		workers, idx, err := locateWorker(order, workerID, workerName)
		if err != nil {
			return false, err
		}
		switch workers[idx].Status {
		case domain.WorkerAccepted, domain.WorkerCompleted:
			return false, nil
		}

		now := s.now()
		workers[idx].Status = domain.WorkerAccepted
		workers[idx].RejectionReason = ""
		workers[idx].RespondedAt = &now
		worker = workers[idx]

		order.SetWorkers(workers)
		rederive(order, workers)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !res.changed {
		return res.order, nil
	}

	s.bus.Publish(ctx, events.OrderAccepted{
		BaseEvent:  events.NewBaseEvent(),
		OrderRef:   orderRef(res.order),
		WorkerID:   worker.UserID,
		WorkerName: worker.Name,
	})
	return res.order, nil
}

// Reject records that workerID declines the order with reason. The reason is
// stored on the worker and mirrored onto the order.
func (s *Service) Reject(ctx context.Context, orderID, workerID, workerName, reason string) (*domain.Order, error) {
	reason = sanitize.Line(reason, maxReasonLength)

	var worker domain.WorkerAssignment
	res, err := s.mutate(ctx, "reject", orderID, func(order *domain.Order) (bool, error) {
		workers, idx, err := locateWorker(order, workerID, workerName)
		if err != nil {
			return false, err
		}
		if workers[idx].Status == domain.WorkerCompleted {
			return false, nil
		}

		now := s.now()
		workers[idx].Status = domain.WorkerRejected
		workers[idx].RejectionReason = reason
		workers[idx].RespondedAt = &now
		worker = workers[idx]

		order.SetWorkers(workers)
		order.RejectionReason = reason
		rederive(order, workers)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !res.changed {
		return res.order, nil
	}

	s.bus.Publish(ctx, events.OrderRejected{
		BaseEvent:  events.NewBaseEvent(),
		OrderRef:   orderRef(res.order),
		WorkerID:   worker.UserID,
		WorkerName: worker.Name,
		Reason:     reason,
	})
	return res.order, nil
}

// Reassign restaffs an order. Rejected workers are dropped, everyone else is
// kept as is, and workers not yet on the order are appended as pending.
func (s *Service) Reassign(ctx context.Context, orderID string, actor domain.Actor, newWorkers []WorkerInput) (*domain.Order, error) {
	var added []domain.WorkerAssignment
	res, err := s.mutate(ctx, "reassign", orderID, func(order *domain.Order) (bool, error) {
		current := order.Workers()
		if err := domain.Authorize(domain.ActionReassign, actor, order, current); err != nil {
			return false, err
		}

		merged := make([]domain.WorkerAssignment, 0, len(current)+len(newWorkers))
		for _, w := range current {
			if w.Status != domain.WorkerRejected {
				merged = append(merged, w)
			}
		}

		added = added[:0]
		for _, in := range newWorkers {
			id := strings.TrimSpace(in.UserID)
			if id == "" || domain.FindWorker(merged, id) >= 0 {
				continue
			}
			w := newAssignment(in)
			merged = append(merged, w)
			added = append(added, w)
		}

		merged = domain.NormalizeTeamLead(merged)
		order.SetWorkers(merged)
		rederive(order, merged)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	// Lead flags on added workers may have been cleared by the merge.
	workers := res.order.Workers()
	for i := range added {
		if idx := domain.FindWorker(workers, added[i].UserID); idx >= 0 {
			added[i].IsTeamLead = workers[idx].IsTeamLead
		}
	}

	s.bus.Publish(ctx, events.WorkersReassigned{
		BaseEvent: events.NewBaseEvent(),
		OrderRef:  orderRef(res.order),
		Added:     assignedWorkers(added),
	})
	return res.order, nil
}

// locateWorker returns the canonical list and the index of workerID in it,
// synthesizing an entry for workers present only in the legacy fields.
func locateWorker(order *domain.Order, workerID, workerName string) ([]domain.WorkerAssignment, int, error) {
	workers := order.Workers()
	if idx := domain.FindWorker(workers, workerID); idx >= 0 {
		return workers, idx, nil
	}

	legacyName, ok := order.Assignment.LegacyName(workerID)
	if !ok {
		return nil, -1, domain.ErrNotAssigned()
	}
	name := strings.TrimSpace(workerName)
	if name == "" {
		name = legacyName
	}
	workers = append(workers, domain.WorkerAssignment{
		UserID: workerID,
		Name:   name,
		Status: domain.WorkerPending,
	})
	return workers, len(workers) - 1, nil
}

func newAssignment(in WorkerInput) domain.WorkerAssignment {
	name := sanitize.Line(in.Name, 0)
	if name == "" {
		name = domain.UnknownWorkerName
	}
	w := domain.WorkerAssignment{
		UserID:     strings.TrimSpace(in.UserID),
		Name:       name,
		Status:     domain.WorkerPending,
		IsTeamLead: in.IsTeamLead,
	}
	if in.Notify != nil {
		v := *in.Notify
		w.Notify = &v
	}
	return w
}
