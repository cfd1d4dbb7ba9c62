package records

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks lookups of an MRN or NPI that does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidArgument marks missing or malformed handler arguments.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict marks writes rejected because of existing data.
	ErrConflict = errors.New("conflict")
)

// Error is a handler failure whose message is shown to callers verbatim.
// Kind is one of the package sentinels.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

// ErrSlotTaken is returned when the provider already has a scheduled
// appointment at the requested date and time.
var ErrSlotTaken = &Error{Kind: ErrConflict, Msg: "Time slot already booked"}

func patientNotFound(mrn string) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf("Patient with MRN %s not found", mrn)}
}

func providerNotFound(npi string) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf("Provider with NPI %s not found", npi)}
}

func invalid(format string, args ...interface{}) error {
	return &Error{Kind: ErrInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

// IsUserError reports whether err should be shown to the caller as-is
// rather than as an internal failure.
func IsUserError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
