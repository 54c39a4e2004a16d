package handler

import (
	"net/http"
	"strings"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/auth"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/model"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/repository"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/service"
	"github.com/go-chi/chi/v5"
)

// AttendanceHandler exposes the registration and attendance operations.
type AttendanceHandler struct {
	svc *service.AttendanceService
}

// NewAttendanceHandler constructs an AttendanceHandler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{svc: svc}
}

func callerID(r *http.Request) (string, bool) {
	m, ok := auth.MemberFrom(r.Context())
	if !ok {
		return "", false
	}
	return m.ID, true
}

// Register handles POST /events/{id}/register for the calling member.
func (h *AttendanceHandler) Register(w http.ResponseWriter, r *http.Request) {
	memberID, ok := callerID(r)
	if !ok {
		respondError(w, r, repository.ErrForbidden)
		return
	}

	res, err := h.svc.Register(r.Context(), chi.URLParam(r, "id"), memberID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// RequestCancellation handles POST /events/{id}/cancellation
func (h *AttendanceHandler) RequestCancellation(w http.ResponseWriter, r *http.Request) {
	memberID, ok := callerID(r)
	if !ok {
		respondError(w, r, repository.ErrForbidden)
		return
	}
	var req model.CancellationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.RequestCancellation(r.Context(), chi.URLParam(r, "id"), memberID, req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// WithdrawWaitlist handles DELETE /events/{id}/waitlist
func (h *AttendanceHandler) WithdrawWaitlist(w http.ResponseWriter, r *http.Request) {
	memberID, ok := callerID(r)
	if !ok {
		respondError(w, r, repository.ErrForbidden)
		return
	}

	reg, err := h.svc.WithdrawWaitlist(r.Context(), chi.URLParam(r, "id"), memberID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// DecideCancellation handles POST /events/{id}/registrations/{memberID}/cancellation-decision
func (h *AttendanceHandler) DecideCancellation(w http.ResponseWriter, r *http.Request) {
	var req model.DecisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.DecideCancellation(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "memberID"), req.Approve)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// DecideWaitlist handles POST /events/{id}/registrations/{memberID}/waitlist-decision
func (h *AttendanceHandler) DecideWaitlist(w http.ResponseWriter, r *http.Request) {
	var req model.DecisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.DecideWaitlist(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "memberID"), req.Approve)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// CheckIn handles POST /events/{id}/check-in (staff).
func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req model.CheckInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.CheckIn(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.MemberID))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SelfCheckIn handles POST /events/{id}/self-check-in with the scanned QR text.
func (h *AttendanceHandler) SelfCheckIn(w http.ResponseWriter, r *http.Request) {
	memberID, ok := callerID(r)
	if !ok {
		respondError(w, r, repository.ErrForbidden)
		return
	}
	var req model.ScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.SelfCheckIn(r.Context(), chi.URLParam(r, "id"), memberID, req.Scanned)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Finalize handles POST /events/{id}/finalize
func (h *AttendanceHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Finalize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
