// Package domain provides the core business rules for work orders: the
// canonical assignment list, aggregate status derivation and role checks.
package domain

// OrderStatus is the aggregate lifecycle status of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderAssigned   OrderStatus = "assigned"
	OrderAccepted   OrderStatus = "accepted"
	OrderInProgress OrderStatus = "in-progress"
	OrderRejected   OrderStatus = "rejected"
	OrderCompleted  OrderStatus = "completed"
)

// WorkerStatus is one worker's response to an order.
type WorkerStatus string

const (
	WorkerPending   WorkerStatus = "pending"
	WorkerAccepted  WorkerStatus = "accepted"
	WorkerRejected  WorkerStatus = "rejected"
	WorkerCompleted WorkerStatus = "completed"
)

var validOrderStatuses = map[OrderStatus]bool{
	OrderPending:    true,
	OrderAssigned:   true,
	OrderAccepted:   true,
	OrderInProgress: true,
	OrderRejected:   true,
	OrderCompleted:  true,
}

// IsValid reports whether s is a known order status.
func (s OrderStatus) IsValid() bool {
	return validOrderStatuses[s]
}

// IsValid reports whether s is a known worker status.
func (s WorkerStatus) IsValid() bool {
	switch s {
	case WorkerPending, WorkerAccepted, WorkerRejected, WorkerCompleted:
		return true
	}
	return false
}

// DeriveStatus computes the aggregate order status from the canonical
// assignment list. The first matching rule wins:
//
//  1. no workers, or every worker rejected: rejected
//  2. every non-rejected worker accepted: in-progress
//  3. at least one worker accepted: accepted
//  4. otherwise: assigned
//
// The result depends only on the multiset of worker statuses. Completed is
// never derived here; only the completion workflow sets it.
func DeriveStatus(workers []WorkerAssignment) OrderStatus {
	if len(workers) == 0 {
		return OrderRejected
	}

	var rejected, accepted int
	for _, w := range workers {
		switch w.Status {
		case WorkerRejected:
			rejected++
		case WorkerAccepted:
			accepted++
		}
	}

	if rejected == len(workers) {
		return OrderRejected
	}
	if accepted == len(workers)-rejected {
		return OrderInProgress
	}
	if accepted > 0 {
		return OrderAccepted
	}
	return OrderAssigned
}
