// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"workorders_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// Event names, shared by publishers and subscribers.
const (
	NameOrderCreated             = "orders.created"
	NameOrderAccepted            = "orders.accepted"
	NameOrderRejected            = "orders.rejected"
	NameWorkersReassigned        = "orders.workers_reassigned"
	NameWorkerTimeRecorded       = "orders.worker_time_recorded"
	NameOrderCompleted           = "orders.completed"
	NameOrderReopened            = "orders.reopened"
	NameOrderConfirmationOverdue = "orders.confirmation_overdue"
	NameNotificationOutboxDue    = "notification.outbox.due"
)

// AssignedWorker is the slice of a worker assignment notifiers need.
type AssignedWorker struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	IsTeamLead bool   `json:"isTeamLead"`
	Notify     bool   `json:"notify"`
}

// OrderRef identifies the order an event is about.
type OrderRef struct {
	OrderID     string `json:"orderId"`
	Title       string `json:"title"`
	ManagerID   string `json:"managerId,omitempty"`
	ManagerName string `json:"managerName,omitempty"`
	Status      string `json:"status"`
}

// =============================================================================
// Order Domain Events
// =============================================================================

// OrderCreated is published when a new order is stored.
type OrderCreated struct {
	BaseEvent
	OrderRef
	Workers []AssignedWorker `json:"workers"`
}

func (e OrderCreated) EventName() string { return NameOrderCreated }

// OrderAccepted is published when a worker accepts an order.
type OrderAccepted struct {
	BaseEvent
	OrderRef
	WorkerID   string `json:"workerId"`
	WorkerName string `json:"workerName"`
}

func (e OrderAccepted) EventName() string { return NameOrderAccepted }

// OrderRejected is published when a worker rejects an order.
type OrderRejected struct {
	BaseEvent
	OrderRef
	WorkerID   string `json:"workerId"`
	WorkerName string `json:"workerName"`
	Reason     string `json:"reason"`
}

func (e OrderRejected) EventName() string { return NameOrderRejected }

// WorkersReassigned is published after an order is restaffed. Added holds
// only the workers that were not on the order before.
type WorkersReassigned struct {
	BaseEvent
	OrderRef
	Added []AssignedWorker `json:"added"`
}

func (e WorkersReassigned) EventName() string { return NameWorkersReassigned }

// WorkerTimeRecorded is published when a worker records their own time.
type WorkerTimeRecorded struct {
	BaseEvent
	OrderRef
	WorkerID     string `json:"workerId"`
	Minutes      int    `json:"minutes"`
	TotalMinutes int    `json:"totalMinutes"`
}

func (e WorkerTimeRecorded) EventName() string { return NameWorkerTimeRecorded }

// OrderCompleted is published when an order reaches completed.
type OrderCompleted struct {
	BaseEvent
	OrderRef
	CompletedBy     string           `json:"completedBy"`
	CompletedByName string           `json:"completedByName,omitempty"`
	ByTeamLead      bool             `json:"byTeamLead"`
	TotalMinutes    int              `json:"totalMinutes"`
	Workers         []AssignedWorker `json:"workers"`
}

func (e OrderCompleted) EventName() string { return NameOrderCompleted }

// OrderReopened is published when a completed order goes back to in-progress.
type OrderReopened struct {
	BaseEvent
	OrderRef
	ReopenedBy string           `json:"reopenedBy"`
	Workers    []AssignedWorker `json:"workers"`
}

func (e OrderReopened) EventName() string { return NameOrderReopened }

// OrderConfirmationOverdue is published once when an order's confirmation
// deadline passes while workers still have not responded.
type OrderConfirmationOverdue struct {
	BaseEvent
	OrderRef
	Deadline       time.Time        `json:"deadline"`
	PendingWorkers []AssignedWorker `json:"pendingWorkers"`
}

func (e OrderConfirmationOverdue) EventName() string { return NameOrderConfirmationOverdue }

// =============================================================================
// Notification Events
// =============================================================================

// NotificationOutboxDue is published by the scheduler when an outbox record
// is ready to be delivered.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID uuid.UUID `json:"outboxId"`
}

func (e NotificationOutboxDue) EventName() string { return NameNotificationOutboxDue }
