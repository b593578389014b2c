package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/diagnosis/service-sphere/internal/domain"
	"github.com/diagnosis/service-sphere/internal/http/response"
	"github.com/diagnosis/service-sphere/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "Invalid booking id")
		return 0, false
	}
	return id, true
}

// writeServiceError maps domain errors to status codes. Anything it does
// not recognise is logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		response.ValidationFailed(w, verr.Errors)
	case errors.Is(err, domain.ErrDuplicateEmail):
		response.WriteError(w, http.StatusBadRequest, "Email already registered", response.CodeEmailExists)
	case errors.Is(err, domain.ErrInvalidCredentials):
		response.Unauthorized(w, "Invalid email or password")
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrUnauthenticated):
		response.WriteError(w, http.StatusUnauthorized, "Invalid token", response.CodeInvalidToken)
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(w, "Unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, "Booking not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		response.WriteError(w, http.StatusConflict, "Invalid status transition", response.CodeInvalidTransition)
	default:
		logger.ErrorContext(r.Context(), "Request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		response.InternalError(w)
	}
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	response.NotFound(w, "Route not found")
}
