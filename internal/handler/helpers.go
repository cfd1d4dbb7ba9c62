package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ehrgate/ehrgate/internal/dispatch"
	"github.com/ehrgate/ehrgate/internal/model"
	"github.com/ehrgate/ehrgate/internal/records"
	"github.com/ehrgate/ehrgate/internal/service"
)

// writeJSON serializes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// readJSON decodes the request body into v and closes it.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFor maps an operation failure to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrUnknownOperation),
		errors.Is(err, records.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrMissingToken),
		errors.Is(err, dispatch.ErrUnauthorized),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, dispatch.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, records.ErrConflict),
		errors.Is(err, service.ErrDuplicateClient):
		return http.StatusConflict
	case errors.Is(err, records.ErrInvalidArgument),
		errors.Is(err, service.ErrInvalidRegistration):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
