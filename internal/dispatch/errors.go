package dispatch

import (
	"errors"
	"fmt"

	"github.com/ehrgate/ehrgate/internal/model"
	"github.com/ehrgate/ehrgate/internal/records"
	"github.com/ehrgate/ehrgate/internal/service"
)

var (
	ErrUnknownOperation = errors.New("unknown operation")
	ErrMissingToken     = errors.New("Access token required")
	ErrUnauthorized     = errors.New("Invalid token")
	ErrForbidden        = errors.New("Insufficient scope")
)

func unknownOperation(name string) error {
	return fmt.Errorf("%w: %s", ErrUnknownOperation, name)
}

func unauthorized(reason string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, reason)
}

func forbidden(scope string) error {
	return fmt.Errorf("%w: %s required", ErrForbidden, scope)
}

func invalidArg(format string, args ...interface{}) error {
	return &records.Error{Kind: records.ErrInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

// Message returns the caller-facing text for err. Internal failures are
// reduced to a generic message; callers log the original.
func Message(err error) string {
	var rerr *records.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rerr):
		return rerr.Msg
	case errors.Is(err, ErrUnknownOperation),
		errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrForbidden):
		return err.Error()
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrDuplicateClient),
		errors.Is(err, service.ErrInvalidRegistration):
		return service.Reason(err)
	case errors.Is(err, service.ErrStorageUnavailable):
		return "Storage unavailable"
	default:
		return "Internal error"
	}
}

// IsInternal reports whether err is a server-side failure rather than a
// problem with the request.
func IsInternal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, service.ErrStorageUnavailable) {
		return true
	}
	return Message(err) == "Internal error"
}

// NewErrorDocument builds the error body every transport returns for a
// failed call to tool.
func NewErrorDocument(tool string, err error) model.OperationError {
	return model.NewOperationError(tool, Message(err))
}
