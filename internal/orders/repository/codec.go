// Package repository provides the order and time ledger stores: a Postgres
// implementation keeping the assignment data in JSONB columns and a MongoDB
// implementation keeping it embedded in the order document.
package repository

import (
	"encoding/json"
	"fmt"

	"workorders_backend/internal/orders/domain"
)

const (
	opCreate      = "orders.repository.create"
	opGet         = "orders.repository.get"
	opUpdate      = "orders.repository.update"
	opMarkOverdue = "orders.repository.mark_overdue"
	opLedger      = "orders.repository.ledger"

	msgConcurrentUpdate = "order was modified concurrently, please retry"
	msgAlreadyNotified  = "order deadline was already announced"

	defaultLimit = 50
)

// encodeAssignment turns the raw assignment into the three JSONB column
// values. Absent fields become SQL NULL so the legacy shape survives a round
// trip unchanged.
func encodeAssignment(raw domain.RawAssignment) (users, assignedTo, assignedToName []byte, err error) {
	if raw.Users != nil {
		if users, err = json.Marshal(raw.Users); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode assigned users: %w", err)
		}
	}
	if !raw.AssignedTo.IsZero() {
		if assignedTo, err = json.Marshal(raw.AssignedTo); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode assignedTo: %w", err)
		}
	}
	if !raw.AssignedToName.IsZero() {
		if assignedToName, err = json.Marshal(raw.AssignedToName); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode assignedToName: %w", err)
		}
	}
	return users, assignedTo, assignedToName, nil
}

// decodeAssignment is the inverse of encodeAssignment. A NULL users column
// stays nil so Classify can fall back to the legacy fields, while an empty
// JSON array stays an explicit empty list.
func decodeAssignment(users, assignedTo, assignedToName []byte) (domain.RawAssignment, error) {
	var raw domain.RawAssignment
	if len(users) > 0 {
		if err := json.Unmarshal(users, &raw.Users); err != nil {
			return raw, fmt.Errorf("failed to decode assigned users: %w", err)
		}
	}
	if len(assignedTo) > 0 {
		if err := json.Unmarshal(assignedTo, &raw.AssignedTo); err != nil {
			return raw, fmt.Errorf("failed to decode assignedTo: %w", err)
		}
	}
	if len(assignedToName) > 0 {
		if err := json.Unmarshal(assignedToName, &raw.AssignedToName); err != nil {
			return raw, fmt.Errorf("failed to decode assignedToName: %w", err)
		}
	}
	return raw, nil
}

func workerContainment(workerID string) ([]byte, error) {
	return json.Marshal([]map[string]string{{"userId": workerID}})
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}
