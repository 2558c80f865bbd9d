package domain

import "workorders_backend/platform/apperr"

const (
	msgOrderNotFound   = "order not found"
	msgNotAssigned     = "you are not assigned to this order"
	msgNegativeMinutes = "recorded time cannot be negative"
)

// ErrOrderNotFound is returned when the referenced order does not exist.
func ErrOrderNotFound() *apperr.Error {
	return apperr.NotFound(msgOrderNotFound)
}

// ErrNotAssigned is returned when the actor is not a worker on the order.
func ErrNotAssigned() *apperr.Error {
	return apperr.NotAssigned(msgNotAssigned)
}

// ErrNegativeMinutes rejects negative time input.
func ErrNegativeMinutes() *apperr.Error {
	return apperr.Validation(msgNegativeMinutes)
}
