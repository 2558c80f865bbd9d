package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"workorders_backend/internal/orders/domain"
	"workorders_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `id, title, description, category, priority, client_name, client_id,
	project_name, project_id, scheduled_start, scheduled_end, confirmation_deadline,
	status, rejection_reason, total_time_spent, manager_id, manager_name,
	assigned_users, assigned_to, assigned_to_name,
	created_at, updated_at, reopened_at, reopened_by, completed_at, completed_by,
	overdue_notified_at, revision`

// PostgresStore keeps orders in a single table with the assignment data in
// JSONB columns.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new Postgres order store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Create inserts a new order.
func (s *PostgresStore) Create(ctx context.Context, order *domain.Order) error {
	users, assignedTo, assignedToName, err := encodeAssignment(order.Assignment)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`,
		order.ID, order.Title, order.Description, order.Category, string(order.Priority),
		order.ClientName, order.ClientID, order.ProjectName, order.ProjectID,
		order.ScheduledStart, order.ScheduledEnd, order.ConfirmationDeadline,
		string(order.Status), order.RejectionReason, order.TotalTimeSpent,
		order.ManagerID, order.ManagerName,
		users, assignedTo, assignedToName,
		order.CreatedAt, order.UpdatedAt, order.ReopenedAt, order.ReopenedBy,
		order.CompletedAt, order.CompletedBy, order.OverdueNotifiedAt, order.Revision,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// GetByID returns one order or a NotFound error.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound().WithOp(opGet)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// List returns orders matching filter, newest first. A worker filter matches
// the structured list as well as the legacy assignedTo field.
func (s *PostgresStore) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if filter.ManagerID != "" {
		where = append(where, "manager_id = "+arg(filter.ManagerID))
	}
	if filter.WorkerID != "" {
		containment, err := workerContainment(filter.WorkerID)
		if err != nil {
			return nil, err
		}
		where = append(where, fmt.Sprintf(
			"(assigned_users @> %s::jsonb OR (assigned_users IS NULL AND assigned_to ? %s))",
			arg(containment), arg(filter.WorkerID),
		))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT " + arg(clampLimit(filter.Limit)) + " OFFSET " + arg(filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// Update writes the workflow-owned fields of order when the stored revision
// still equals expectedRevision, and advances order.Revision.
func (s *PostgresStore) Update(ctx context.Context, order *domain.Order, expectedRevision int64) error {
	users, assignedTo, assignedToName, err := encodeAssignment(order.Assignment)
	if err != nil {
		return err
	}

	var revision int64
	err = s.pool.QueryRow(ctx, `
		UPDATE orders SET
			status = $3,
			rejection_reason = $4,
			total_time_spent = $5,
			assigned_users = $6,
			assigned_to = $7,
			assigned_to_name = $8,
			updated_at = $9,
			reopened_at = $10,
			reopened_by = $11,
			completed_at = $12,
			completed_by = $13,
			revision = revision + 1
		WHERE id = $1 AND revision = $2
		RETURNING revision`,
		order.ID, expectedRevision,
		string(order.Status), order.RejectionReason, order.TotalTimeSpent,
		users, assignedTo, assignedToName, order.UpdatedAt,
		order.ReopenedAt, order.ReopenedBy, order.CompletedAt, order.CompletedBy,
	).Scan(&revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.missingOrConflict(ctx, order.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	order.Revision = revision
	return nil
}

func (s *PostgresStore) missingOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	if !exists {
		return domain.ErrOrderNotFound().WithOp(opUpdate)
	}
	return apperr.Conflict(msgConcurrentUpdate).WithOp(opUpdate)
}

// ListOverdue returns unanswered orders whose confirmation deadline is before
// now and that have not been announced yet.
func (s *PostgresStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE confirmation_deadline < $1
			AND overdue_notified_at IS NULL
			AND status IN ('pending', 'assigned')
		ORDER BY confirmation_deadline ASC
		LIMIT $2`,
		now, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// MarkOverdueNotified stamps the order once. A second stamp returns Conflict
// so concurrent sweeps announce each order only once.
func (s *PostgresStore) MarkOverdueNotified(ctx context.Context, orderID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET overdue_notified_at = $2 WHERE id = $1 AND overdue_notified_at IS NULL`,
		orderID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark order overdue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict(msgAlreadyNotified).WithOp(opMarkOverdue)
	}
	return nil
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                               domain.Order
		priority, status                string
		users, assignedTo, assignedName []byte
	)
	err := row.Scan(
		&o.ID, &o.Title, &o.Description, &o.Category, &priority, &o.ClientName, &o.ClientID,
		&o.ProjectName, &o.ProjectID, &o.ScheduledStart, &o.ScheduledEnd, &o.ConfirmationDeadline,
		&status, &o.RejectionReason, &o.TotalTimeSpent, &o.ManagerID, &o.ManagerName,
		&users, &assignedTo, &assignedName,
		&o.CreatedAt, &o.UpdatedAt, &o.ReopenedAt, &o.ReopenedBy, &o.CompletedAt, &o.CompletedBy,
		&o.OverdueNotifiedAt, &o.Revision,
	)
	if err != nil {
		return nil, err
	}

	raw, err := decodeAssignment(users, assignedTo, assignedName)
	if err != nil {
		return nil, err
	}
	o.Priority = domain.Priority(priority)
	o.Status = domain.OrderStatus(status)
	o.Assignment = raw
	return &o, nil
}
