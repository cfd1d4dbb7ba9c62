package store

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint (client id, MRN, NPI, appointment/medication/order id).
	ErrDuplicate = errors.New("duplicate record")

	// ErrSlotTaken is returned when a provider already has a scheduled
	// appointment at the requested date and time.
	ErrSlotTaken = errors.New("time slot already booked")
)
