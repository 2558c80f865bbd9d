package service

import (
	"context"
	"strings"
	"time"

	"workorders_backend/internal/events"
	"workorders_backend/internal/orders/domain"
	"workorders_backend/platform/apperr"
	"workorders_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	msgTitleRequired   = "title is required"
	msgInvalidPriority = "priority must be low, medium or high"
	msgScheduleOrder   = "scheduledEnd must be after scheduledStart"
)

// CreateInput carries the fields of a new order.
type CreateInput struct {
	Title                string
	Description          string
	Category             string
	Priority             domain.Priority
	ClientName           string
	ClientID             *string
	ProjectName          string
	ProjectID            *string
	ScheduledStart       *time.Time
	ScheduledEnd         *time.Time
	ConfirmationDeadline *time.Time
	Workers              []WorkerInput
}

// Create stores a new order managed by actor. Orders with workers start
// assigned, the rest start pending.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Order, error) {
	if err := domain.Authorize(domain.ActionCreate, actor, nil, nil); err != nil {
		return nil, err
	}

	title := sanitize.Line(in.Title, 200)
	if title == "" {
		return nil, apperr.Validation(msgTitleRequired)
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.IsValid() {
		return nil, apperr.Validation(msgInvalidPriority)
	}
	if in.ScheduledStart != nil && in.ScheduledEnd != nil && !in.ScheduledEnd.After(*in.ScheduledStart) {
		return nil, apperr.Validation(msgScheduleOrder)
	}

	workers := make([]domain.WorkerAssignment, 0, len(in.Workers))
	for _, w := range in.Workers {
		id := strings.TrimSpace(w.UserID)
		if id == "" || domain.FindWorker(workers, id) >= 0 {
			continue
		}
		workers = append(workers, newAssignment(w))
	}
	workers = domain.NormalizeTeamLead(workers)

	now := s.now()
	order := &domain.Order{
		ID:                   uuid.NewString(),
		Title:                title,
		Description:          sanitize.Text(in.Description),
		Category:             sanitize.Line(in.Category, 100),
		Priority:             priority,
		ClientName:           sanitize.Line(in.ClientName, 200),
		ClientID:             in.ClientID,
		ProjectName:          sanitize.Line(in.ProjectName, 200),
		ProjectID:            in.ProjectID,
		ScheduledStart:       in.ScheduledStart,
		ScheduledEnd:         in.ScheduledEnd,
		ConfirmationDeadline: in.ConfirmationDeadline,
		Status:               domain.OrderPending,
		ManagerID:            actor.ID,
		ManagerName:          actor.Name,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	order.SetWorkers(workers)
	if len(workers) > 0 {
		order.Status = domain.OrderAssigned
	}

	if err := s.store.Create(ctx, order); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.OrderCreated{
		BaseEvent: events.NewBaseEvent(),
		OrderRef:  orderRef(order),
		Workers:   assignedWorkers(workers),
	})
	return order, nil
}
