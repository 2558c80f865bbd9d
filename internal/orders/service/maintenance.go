package service

import (
	"context"
	"strings"

	"workorders_backend/internal/orders/domain"
	"workorders_backend/platform/apperr"

	"github.com/google/uuid"
)

// Import stores an order as it arrives, including legacy assignment shapes.
// A structured list is cleaned first: repeated worker ids keep their first
// entry and only the first team-lead flag survives. Missing ids, priorities
// and statuses are filled in. An order without workers imports as pending.
// No events are published.
func (s *Service) Import(ctx context.Context, order *domain.Order) error {
	if order == nil || strings.TrimSpace(order.Title) == "" {
		return apperr.Validation(msgTitleRequired)
	}
	if order.Assignment.Users != nil {
		users, err := cleanImportedWorkers(order.Assignment.Users)
		if err != nil {
			return err
		}
		order.Assignment.Users = users
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Priority == "" {
		order.Priority = domain.PriorityMedium
	}
	if !order.Priority.IsValid() {
		return apperr.Validation(msgInvalidPriority)
	}
	if order.Status == "" {
		order.Status = domain.OrderPending
		if workers := order.Workers(); len(workers) > 0 {
			order.Status = domain.DeriveStatus(workers)
		}
	}
	if !order.Status.IsValid() {
		return apperr.Validation("unknown order status " + string(order.Status))
	}

	now := s.now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	order.Revision = 0
	return s.store.Create(ctx, order)
}

// Rederive recomputes the aggregate status from the canonical assignment list
// and writes it back when it drifted. Assignments are left untouched.
func (s *Service) Rederive(ctx context.Context, orderID string) (*domain.Order, error) {
	res, err := s.mutate(ctx, "rederive", orderID, func(order *domain.Order) (bool, error) {
		before := order.Status
		rederive(order, order.Workers())
		return order.Status != before, nil
	})
	if err != nil {
		return nil, err
	}
	return res.order, nil
}

func cleanImportedWorkers(workers []domain.WorkerAssignment) ([]domain.WorkerAssignment, error) {
	seen := make(map[string]bool, len(workers))
	out := make([]domain.WorkerAssignment, 0, len(workers))
	for _, w := range workers {
		if w.UserID == "" {
			return nil, apperr.Validation("worker id is required")
		}
		if seen[w.UserID] {
			continue
		}
		seen[w.UserID] = true
		if w.Status == "" {
			w.Status = domain.WorkerPending
		}
		if !w.Status.IsValid() {
			return nil, apperr.Validation("unknown worker status " + string(w.Status))
		}
		out = append(out, w)
	}
	return domain.NormalizeTeamLead(out), nil
}
