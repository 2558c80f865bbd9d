package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerSource tells order-derived time entries apart from manual ones.
type LedgerSource string

const (
	LedgerSourceOrder  LedgerSource = "order"
	LedgerSourceManual LedgerSource = "manual"
)

// TimeLedgerEntry is an append-only record of time worked. Durations are
// stored in seconds even though time is entered in minutes.
type TimeLedgerEntry struct {
	ID              string
	UserID          string
	UserName        string
	OrderID         string
	OrderTitle      string
	DurationSeconds int64
	Note            string
	Source          LedgerSource
	CreatedAt       time.Time
}

// FromOrder reports whether the entry was materialized from an order.
func (e TimeLedgerEntry) FromOrder() bool {
	return e.Source == LedgerSourceOrder
}

// Minutes returns the duration in whole minutes.
func (e TimeLedgerEntry) Minutes() int {
	return int(e.DurationSeconds / 60)
}

// NewOrderLedgerEntry materializes the recorded time of w on order.
func NewOrderLedgerEntry(order *Order, w WorkerAssignment, now time.Time) TimeLedgerEntry {
	return TimeLedgerEntry{
		ID:              uuid.NewString(),
		UserID:          w.UserID,
		UserName:        w.Name,
		OrderID:         order.ID,
		OrderTitle:      order.Title,
		DurationSeconds: int64(w.Minutes()) * 60,
		Note:            w.TimeNotes,
		Source:          LedgerSourceOrder,
		CreatedAt:       now,
	}
}
