// Package service implements the order workflow: the assignment lifecycle
// (accept, reject, reassign) and the completion workflow (time recording,
// team-lead finalization, completion and reopening).
package service

import (
	"context"
	"time"

	"workorders_backend/internal/events"
	"workorders_backend/internal/orders/domain"
	"workorders_backend/platform/logger"
)

// OrderStore persists orders. Update is conditional: it writes only when the
// stored revision equals expectedRevision, bumps order.Revision on success and
// returns an apperr Conflict when another writer got there first.
type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	Update(ctx context.Context, order *domain.Order, expectedRevision int64) error
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Order, error)
	MarkOverdueNotified(ctx context.Context, orderID string, at time.Time) error
	// Subscribe blocks, calling fn for every committed write, until ctx ends.
	Subscribe(ctx context.Context, fn func(domain.OrderChange)) error
}

// TimeLedger is the append-only store of materialized time entries.
type TimeLedger interface {
	Append(ctx context.Context, entries []domain.TimeLedgerEntry) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.TimeLedgerEntry, error)
}

// Service provides the order workflow.
type Service struct {
	store  OrderStore
	ledger TimeLedger
	bus    events.Bus
	log    *logger.Logger
	now    func() time.Time
}

// New creates a new order service.
func New(store OrderStore, ledger TimeLedger, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		ledger: ledger,
		bus:    bus,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get returns one order when actor may see it: an admin, the order's manager
// or a worker on its list.
func (s *Service) Get(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := domain.Authorize(domain.ActionView, actor, order, order.Workers()); err != nil {
		return nil, err
	}
	return order, nil
}

// List returns the orders matching filter.
func (s *Service) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	return s.store.List(ctx, filter.Paged())
}

// ListTimeEntries returns the ledger entries materialized for an order, under
// the same visibility as Get.
func (s *Service) ListTimeEntries(ctx context.Context, actor domain.Actor, orderID string) ([]domain.TimeLedgerEntry, error) {
	if _, err := s.Get(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return s.ledger.ListByOrder(ctx, orderID)
}

// Watch forwards committed order writes to fn until ctx is cancelled.
// Delivery is eventually consistent with the mutating operations.
func (s *Service) Watch(ctx context.Context, fn func(domain.OrderChange)) error {
	return s.store.Subscribe(ctx, fn)
}

func orderRef(order *domain.Order) events.OrderRef {
	return events.OrderRef{
		OrderID:     order.ID,
		Title:       order.Title,
		ManagerID:   order.ManagerID,
		ManagerName: order.ManagerName,
		Status:      string(order.Status),
	}
}

func assignedWorkers(workers []domain.WorkerAssignment) []events.AssignedWorker {
	out := make([]events.AssignedWorker, 0, len(workers))
	for _, w := range workers {
		out = append(out, events.AssignedWorker{
			UserID:     w.UserID,
			Name:       w.Name,
			IsTeamLead: w.IsTeamLead,
			Notify:     w.WantsNotifications(),
		})
	}
	return out
}
