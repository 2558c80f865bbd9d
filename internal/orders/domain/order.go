package domain

import "time"

// Priority ranks how urgent an order is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Order is the unit of work.
type Order struct {
	ID          string
	Title       string
	Description string
	Category    string
	Priority    Priority

	ClientName  string
	ClientID    *string
	ProjectName string
	ProjectID   *string

	ScheduledStart       *time.Time
	ScheduledEnd         *time.Time
	ConfirmationDeadline *time.Time

	Status          OrderStatus
	RejectionReason string
	TotalTimeSpent  *int

	ManagerID   string
	ManagerName string

	Assignment RawAssignment

	CreatedAt         time.Time
	UpdatedAt         time.Time
	ReopenedAt        *time.Time
	ReopenedBy        string
	CompletedAt       *time.Time
	CompletedBy       string
	OverdueNotifiedAt *time.Time

	// Revision increases on every successful write; updates are conditional on it.
	Revision int64
}

// Workers returns the canonical assignment list for the order.
func (o *Order) Workers() []WorkerAssignment {
	return Normalize(o.Assignment)
}

// SetWorkers stores workers as the order's structured list. Legacy fields
// are left untouched.
func (o *Order) SetWorkers(workers []WorkerAssignment) {
	if workers == nil {
		workers = []WorkerAssignment{}
	}
	o.Assignment.Users = workers
}

// WorkerIDs lists the ids on the canonical list in order.
func (o *Order) WorkerIDs() []string {
	workers := o.Workers()
	ids := make([]string, 0, len(workers))
	for _, w := range workers {
		ids = append(ids, w.UserID)
	}
	return ids
}

// OrderFilter selects orders by field. Empty fields are ignored.
type OrderFilter struct {
	Status    OrderStatus
	WorkerID  string
	ManagerID string
	Limit     int
	Offset    int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Paged returns f with the limit and offset the store will apply.
func (f OrderFilter) Paged() OrderFilter {
	if f.Limit <= 0 || f.Limit > MaxListLimit {
		f.Limit = DefaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// OrderChange is delivered to subscribers after an order is written.
type OrderChange struct {
	OrderID  string `json:"orderId"`
	Revision int64  `json:"revision"`
}
