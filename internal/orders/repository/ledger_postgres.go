package repository

import (
	"context"
	"fmt"

	"workorders_backend/internal/orders/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger is the append-only time entry table.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a new Postgres time ledger.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// Append inserts entries as one batch. Entries already present are skipped.
func (l *PostgresLedger) Append(ctx context.Context, entries []domain.TimeLedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO order_time_entries
				(id, user_id, user_name, order_id, order_title, duration_seconds, note, source, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING`,
			e.ID, e.UserID, e.UserName, e.OrderID, e.OrderTitle, e.DurationSeconds, e.Note, string(e.Source), e.CreatedAt,
		)
	}

	br := l.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to append time entry: %w", err)
		}
	}
	return nil
}

// ListByOrder returns the entries of an order, oldest first.
func (l *PostgresLedger) ListByOrder(ctx context.Context, orderID string) ([]domain.TimeLedgerEntry, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, user_id, user_name, order_id, order_title, duration_seconds, note, source, created_at
		FROM order_time_entries
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.TimeLedgerEntry, 0)
	for rows.Next() {
		var e domain.TimeLedgerEntry
		var source string
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.OrderID, &e.OrderTitle, &e.DurationSeconds, &e.Note, &source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		e.Source = domain.LedgerSource(source)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate time entries: %w", err)
	}
	return entries, nil
}
