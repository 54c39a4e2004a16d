package handler

import (
	"errors"
	"net/http"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/repository"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// statusFor maps a service error to an HTTP status and a user-facing message.
func statusFor(err error) (int, string) {
	var perr *repository.PersistenceError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "event or member not found"
	case errors.Is(err, repository.ErrAlreadyRegistered):
		return http.StatusConflict, "you are already registered for this event"
	case errors.Is(err, repository.ErrEventFull):
		return http.StatusConflict, "event quota is full"
	case errors.Is(err, repository.ErrAlreadyFinalized):
		return http.StatusConflict, "event attendance has already been finalized"
	case errors.Is(err, repository.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, repository.ErrRegistrationClosed):
		return http.StatusUnprocessableEntity, "registration for this event is closed"
	case errors.Is(err, repository.ErrDeadlineExceeded):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, repository.ErrNotRegistered), errors.Is(err, repository.ErrInvalidScan):
		return http.StatusUnprocessableEntity, "not a valid participant for this event"
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, repository.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &perr):
		return http.StatusInternalServerError, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		loggerFrom(r).Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	writeError(w, status, msg)
}
