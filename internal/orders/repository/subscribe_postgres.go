package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"workorders_backend/internal/orders/domain"
)

const orderChangesChannel = "order_changes"

// Subscribe listens on the order_changes channel fed by the orders trigger and
// calls fn for every notification until ctx is cancelled. fn runs on the
// listening goroutine and should not block.
func (s *PostgresStore) Subscribe(ctx context.Context, fn func(domain.OrderChange)) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+orderChangesChannel); err != nil {
		return fmt.Errorf("failed to listen for order changes: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), "UNLISTEN "+orderChangesChannel)
	}()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to wait for order change: %w", err)
		}

		change, ok := parseOrderChange(n.Payload)
		if !ok {
			continue
		}
		fn(change)
	}
}

func parseOrderChange(payload string) (domain.OrderChange, bool) {
	var change domain.OrderChange
	if err := json.Unmarshal([]byte(payload), &change); err != nil || change.OrderID == "" {
		return domain.OrderChange{}, false
	}
	return change, true
}
