package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/auth"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/checkin"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/model"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/repository"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	t      *testing.T
	store  *repository.MemoryStore
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := repository.NewMemoryStore()
	logger := zap.NewNop()
	events := service.NewEventService(store, logger)
	attendance := service.NewAttendanceService(store, nil, service.DefaultPolicy(), logger)

	ctx := context.Background()
	for _, m := range []model.Member{
		{ID: "admin", Role: model.RoleAdmin, ProfileCompleteness: 100},
		{ID: "coord", Role: model.RoleRegionalCoordinator, ProfileCompleteness: 100},
		{ID: "root", Role: model.RoleSuperAdmin, ProfileCompleteness: 100},
		{ID: "alice", Role: model.RoleMember, ProfileCompleteness: 95},
		{ID: "bob", Role: model.RoleMember, ProfileCompleteness: 100},
		{ID: "drafty", Role: model.RoleMember, ProfileCompleteness: 40},
	} {
		m := m
		require.NoError(t, store.UpsertMember(ctx, &m))
	}

	router := NewRouter(Deps{
		Events:     NewEventHandler(events),
		Attendance: NewAttendanceHandler(attendance),
		Members:    store,
		Guard:      auth.Guard{MinProfileCompleteness: 90},
		Logger:     logger,
	})
	return &testServer{t: t, store: store, router: router}
}

func (s *testServer) do(method, path, member string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if member != "" {
		req.Header.Set(MemberHeader, member)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createEvent(quota int, start time.Time) model.Event {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/events", "admin", model.CreateEventRequest{
		Name:      "Alumni Night",
		Quota:     quota,
		Scope:     model.ScopeOnline,
		DateStart: start,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var e model.Event
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIdentify(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/events", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/events", "mallory", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/events", "alice", nil).Code)

	me := decode[model.Member](t, s.do(http.MethodGet, "/members/me", "alice", nil))
	assert.Equal(t, "alice", me.ID)
}

func TestCapabilityGuard(t *testing.T) {
	s := newTestServer(t)
	start := time.Now().Add(10 * 24 * time.Hour)

	rec := s.do(http.MethodPost, "/events", "alice", model.CreateEventRequest{Name: "x", DateStart: start})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	e := s.createEvent(10, start)

	rec = s.do(http.MethodPost, "/events/"+e.ID+"/register", "drafty", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, decode[model.ErrorResponse](t, rec).Error, "profile")

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/events/"+e.ID+"/finalize", "coord", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/events/"+e.ID+"/registrations", "coord", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/events/"+e.ID+"/registrations", "alice", nil).Code)

	rec = s.do(http.MethodPut, "/members/carol", "admin", model.UpsertMemberRequest{ProfileCompleteness: 90})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodPut, "/members/carol", "root", model.UpsertMemberRequest{ProfileCompleteness: 90})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterFlow(t *testing.T) {
	s := newTestServer(t)
	e := s.createEvent(1, time.Now().Add(10*24*time.Hour))
	path := "/events/" + e.ID + "/register"

	rec := s.do(http.MethodPost, path, "alice", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[model.RegisterResult](t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, model.StatusRegistered, res.Status)

	rec = s.do(http.MethodPost, path, "alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, path, "bob", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.StatusWaitingList, decode[model.RegisterResult](t, rec).Status)

	rec = s.do(http.MethodPost, "/events/"+e.ID+"/registrations/bob/waitlist-decision", "admin", model.DecisionRequest{Approve: true})
	assert.Equal(t, http.StatusConflict, rec.Code, "quota is re-checked on promotion")

	rec = s.do(http.MethodDelete, "/events/"+e.ID+"/waitlist", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusCancelled, decode[model.Registration](t, rec).Status)

	detail := decode[model.EventDetail](t, s.do(http.MethodGet, "/events/"+e.ID, "alice", nil))
	assert.Equal(t, 1, detail.Counts[model.StatusRegistered])
	assert.Equal(t, 1, detail.Counts[model.StatusCancelled])

	rec = s.do(http.MethodPost, "/events/no-such-event/register", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegister_ClosedEvent(t *testing.T) {
	s := newTestServer(t)
	e := s.createEvent(0, time.Now().Add(10*24*time.Hour))

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/events/"+e.ID+"/close", "admin", nil).Code)
	rec := s.do(http.MethodPost, "/events/"+e.ID+"/register", "alice", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "registration for this event is closed", decode[model.ErrorResponse](t, rec).Error)
}

func TestCancellationFlow(t *testing.T) {
	s := newTestServer(t)
	e := s.createEvent(10, time.Now().Add(10*24*time.Hour))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/events/"+e.ID+"/register", "alice", nil).Code)

	rec := s.do(http.MethodPost, "/events/"+e.ID+"/cancellation", "alice", model.CancellationRequest{Reason: "work trip"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.CancellationPending, decode[model.Registration](t, rec).CancellationStatus)

	rec = s.do(http.MethodPost, "/events/"+e.ID+"/registrations/alice/cancellation-decision", "alice", model.DecisionRequest{Approve: true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/events/"+e.ID+"/registrations/alice/cancellation-decision", "admin", model.DecisionRequest{Approve: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusPermitted, decode[model.Registration](t, rec).Status)
}

func TestCancellation_TooLate(t *testing.T) {
	s := newTestServer(t)
	e := s.createEvent(10, time.Now().Add(24*time.Hour))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/events/"+e.ID+"/register", "alice", nil).Code)

	rec := s.do(http.MethodPost, "/events/"+e.ID+"/cancellation", "alice", model.CancellationRequest{Reason: "sick"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCheckInFlow(t *testing.T) {
	s := newTestServer(t)
	e := s.createEvent(10, time.Now().Add(10*24*time.Hour))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/events/"+e.ID+"/register", "alice", nil).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/events/"+e.ID+"/register", "bob", nil).Code)

	rec := s.do(http.MethodPost, "/events/"+e.ID+"/check-in", "coord", model.CheckInRequest{MemberID: "drafty"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "not a valid participant for this event", decode[model.ErrorResponse](t, rec).Error)

	rec = s.do(http.MethodPost, "/events/"+e.ID+"/check-in", "coord", model.CheckInRequest{MemberID: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[model.CheckInResult](t, rec).AlreadyCheckedIn)

	rec = s.do(http.MethodPost, "/events/"+e.ID+"/check-in", "coord", model.CheckInRequest{MemberID: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.CheckInResult](t, rec).AlreadyCheckedIn)

	rec = s.do(http.MethodPost, "/events/"+e.ID+"/self-check-in", "bob", model.ScanRequest{Scanned: "garbage"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodPost, "/events/"+e.ID+"/self-check-in", "bob", model.ScanRequest{Scanned: checkin.Payload(e.ID)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusAttended, decode[model.CheckInResult](t, rec).Registration.Status)

	rec = s.do(http.MethodPost, "/events/"+e.ID+"/finalize", "admin", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "event has not started yet")
}

func TestCheckInQR(t *testing.T) {
	s := newTestServer(t)
	e := s.createEvent(10, time.Now().Add(24*time.Hour))

	rec := s.do(http.MethodGet, "/events/"+e.ID+"/checkin-qr.png", "coord", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/events/"+e.ID+"/checkin-qr.png", "alice", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/events/missing/checkin-qr.png", "coord", nil).Code)
}

func TestInvalidBody(t *testing.T) {
	s := newTestServer(t)
	e := s.createEvent(10, time.Now().Add(10*24*time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/events/"+e.ID+"/check-in", bytes.NewBufferString(`{"member":"x"}`))
	req.Header.Set(MemberHeader, "admin")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{repository.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("member x: %w", repository.ErrNotFound), http.StatusNotFound},
		{repository.ErrAlreadyRegistered, http.StatusConflict},
		{repository.ErrEventFull, http.StatusConflict},
		{repository.ErrAlreadyFinalized, http.StatusConflict},
		{repository.ErrInvalidTransition, http.StatusConflict},
		{repository.ErrRegistrationClosed, http.StatusUnprocessableEntity},
		{repository.ErrDeadlineExceeded, http.StatusUnprocessableEntity},
		{repository.ErrNotRegistered, http.StatusUnprocessableEntity},
		{repository.ErrInvalidScan, http.StatusUnprocessableEntity},
		{repository.ErrForbidden, http.StatusForbidden},
		{repository.ErrInvalidInput, http.StatusBadRequest},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got, _ := statusFor(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}

	perr := fmt.Errorf("register for event: %w",
		&repository.PersistenceError{Op: "insert registration", Err: errors.New("connection refused")})
	status, msg := statusFor(perr)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, msg, "connection refused")
}
