package service

import (
	"context"

	"workorders_backend/internal/events"
	"workorders_backend/internal/orders/domain"
	"workorders_backend/platform/sanitize"
)

// CompleteOrder marks the order completed. Worker records are left alone.
func (s *Service) CompleteOrder(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	res, err := s.mutate(ctx, "complete", orderID, func(order *domain.Order) (bool, error) {
		if err := domain.Authorize(domain.ActionComplete, actor, order, order.Workers()); err != nil {
			return false, err
		}
		if order.Status == domain.OrderCompleted {
			return false, nil
		}
		now := s.now()
		order.Status = domain.OrderCompleted
		order.CompletedAt = &now
		order.CompletedBy = actor.ID
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !res.changed {
		return res.order, nil
	}

	workers := res.order.Workers()
	s.bus.Publish(ctx, events.OrderCompleted{
		BaseEvent:       events.NewBaseEvent(),
		OrderRef:        orderRef(res.order),
		CompletedBy:     actor.ID,
		CompletedByName: actor.Name,
		ByTeamLead:      domain.IsTeamLead(workers, actor.ID),
		TotalMinutes:    domain.TotalMinutes(workers),
		Workers:         assignedWorkers(workers),
	})
	return res.order, nil
}

// Reopen moves a completed order back to in-progress. Worker statuses and
// recorded times are not touched. Reopening an order that is not completed
// changes nothing.
func (s *Service) Reopen(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	res, err := s.mutate(ctx, "reopen", orderID, func(order *domain.Order) (bool, error) {
		if err := domain.Authorize(domain.ActionReopen, actor, order, order.Workers()); err != nil {
			return false, err
		}
		if order.Status != domain.OrderCompleted {
			return false, nil
		}
		now := s.now()
		order.Status = domain.OrderInProgress
		order.ReopenedAt = &now
		order.ReopenedBy = actor.ID
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !res.changed {
		return res.order, nil
	}

	s.bus.Publish(ctx, events.OrderReopened{
		BaseEvent:  events.NewBaseEvent(),
		OrderRef:   orderRef(res.order),
		ReopenedBy: actor.ID,
		Workers:    assignedWorkers(res.order.Workers()),
	})
	return res.order, nil
}

// RecordWorkerTime stores the time a worker spent on the order and refreshes
// the order total. Positive time is also appended to the ledger.
func (s *Service) RecordWorkerTime(ctx context.Context, orderID, workerID string, minutes int, notes string) (*domain.Order, error) {
	if minutes < 0 {
		return nil, domain.ErrNegativeMinutes()
	}
	notes = sanitize.Text(notes)

	var worker domain.WorkerAssignment
	var total int
	res, err := s.mutate(ctx, "record_time", orderID, func(order *domain.Order) (bool, error) {
		workers := order.Workers()
		idx := domain.FindWorker(workers, workerID)
		if idx < 0 {
			return false, domain.ErrNotAssigned()
		}

		m := minutes
		workers[idx].TimeSpent = &m
		workers[idx].TimeNotes = notes
		worker = workers[idx]

		total = domain.TotalMinutes(workers)
		order.SetWorkers(workers)
		order.TotalTimeSpent = &total
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if minutes > 0 {
		s.appendLedger(ctx, res.order, []domain.TimeLedgerEntry{
			domain.NewOrderLedgerEntry(res.order, worker, s.now()),
		})
	}

	s.bus.Publish(ctx, events.WorkerTimeRecorded{
		BaseEvent:    events.NewBaseEvent(),
		OrderRef:     orderRef(res.order),
		WorkerID:     workerID,
		Minutes:      minutes,
		TotalMinutes: total,
	})
	return res.order, nil
}

// FinalizeAsTeamLead lets the flagged team lead sign off the whole team:
// every worker listed in times gets that time, the notes from notes and the
// completed status, and the order itself becomes completed. Workers missing
// from times keep whatever they had. An order that is already completed is
// returned unchanged; reopen it first to finalize again.
func (s *Service) FinalizeAsTeamLead(ctx context.Context, orderID, teamLeadID string, times map[string]int, notes map[string]string) (*domain.Order, error) {
	for _, m := range times {
		if m < 0 {
			return nil, domain.ErrNegativeMinutes()
		}
	}

	var finalized []domain.WorkerAssignment
	var lead domain.Actor
	res, err := s.mutate(ctx, "finalize", orderID, func(order *domain.Order) (bool, error) {
		workers := order.Workers()
		lead = domain.Actor{ID: teamLeadID, Role: domain.RoleWorker}
		if err := domain.Authorize(domain.ActionFinalizeTeam, lead, order, workers); err != nil {
			return false, err
		}
		if order.Status == domain.OrderCompleted {
			return false, nil
		}
		if tl := domain.TeamLead(workers); tl != nil {
			lead.Name = tl.Name
		}

		finalized = finalized[:0]
		for i := range workers {
			m, ok := times[workers[i].UserID]
			if !ok {
				continue
			}
			workers[i].TimeSpent = &m
			workers[i].TimeNotes = sanitize.Text(notes[workers[i].UserID])
			workers[i].Status = domain.WorkerCompleted
			finalized = append(finalized, workers[i])
		}

		now := s.now()
		total := domain.TotalMinutes(workers)
		order.SetWorkers(workers)
		order.TotalTimeSpent = &total
		order.Status = domain.OrderCompleted
		order.CompletedAt = &now
		order.CompletedBy = teamLeadID
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !res.changed {
		return res.order, nil
	}

	workers := res.order.Workers()
	for id := range times {
		if domain.FindWorker(workers, id) < 0 {
			s.log.Warn("finalize ignored worker not on order", "order_id", orderID, "worker_id", id)
		}
	}

	now := s.now()
	entries := make([]domain.TimeLedgerEntry, 0, len(finalized))
	for _, w := range finalized {
		if w.Minutes() > 0 {
			entries = append(entries, domain.NewOrderLedgerEntry(res.order, w, now))
		}
	}
	s.appendLedger(ctx, res.order, entries)

	s.bus.Publish(ctx, events.OrderCompleted{
		BaseEvent:       events.NewBaseEvent(),
		OrderRef:        orderRef(res.order),
		CompletedBy:     teamLeadID,
		CompletedByName: lead.Name,
		ByTeamLead:      true,
		TotalMinutes:    domain.TotalMinutes(workers),
		Workers:         assignedWorkers(workers),
	})
	return res.order, nil
}

// appendLedger materializes entries without failing the caller; the order
// document stays the source of truth for recorded time.
func (s *Service) appendLedger(ctx context.Context, order *domain.Order, entries []domain.TimeLedgerEntry) {
	if len(entries) == 0 || s.ledger == nil {
		return
	}
	if err := s.ledger.Append(context.WithoutCancel(ctx), entries); err != nil {
		s.log.SideEffectFailed("time_ledger", order.ID, err)
	}
}
