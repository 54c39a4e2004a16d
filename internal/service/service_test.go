package service

import (
	"context"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/model"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEventService_CreateEvent(t *testing.T) {
	start := time.Date(2026, 9, 12, 9, 0, 0, 0, time.UTC)
	valid := model.CreateEventRequest{
		Name:                 "  Homecoming  ",
		Quota:                120,
		Scope:                model.ScopeRegional,
		DateStart:            start,
		RegistrationDeadline: start.Add(-72 * time.Hour),
	}

	t.Run("valid", func(t *testing.T) {
		svc := NewEventService(repository.NewMemoryStore(), zap.NewNop())
		e, err := svc.CreateEvent(context.Background(), valid)
		require.NoError(t, err)
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, "Homecoming", e.Name)
		assert.Equal(t, model.EventOpen, e.Status)
		assert.Nil(t, e.FinalizedAt)
	})

	t.Run("deadline defaults to start", func(t *testing.T) {
		svc := NewEventService(repository.NewMemoryStore(), zap.NewNop())
		req := valid
		req.RegistrationDeadline = time.Time{}
		req.Scope = ""
		e, err := svc.CreateEvent(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, e.RegistrationDeadline.Equal(start))
		assert.Equal(t, model.ScopeNational, e.Scope)
	})

	invalid := []struct {
		name   string
		mutate func(*model.CreateEventRequest)
	}{
		{"blank name", func(r *model.CreateEventRequest) { r.Name = " " }},
		{"negative quota", func(r *model.CreateEventRequest) { r.Quota = -1 }},
		{"huge quota", func(r *model.CreateEventRequest) { r.Quota = 100_001 }},
		{"unknown scope", func(r *model.CreateEventRequest) { r.Scope = "galactic" }},
		{"missing start", func(r *model.CreateEventRequest) { r.DateStart = time.Time{} }},
		{"deadline after start", func(r *model.CreateEventRequest) { r.RegistrationDeadline = start.Add(time.Hour) }},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewEventService(repository.NewMemoryStore(), zap.NewNop())
			req := valid
			tt.mutate(&req)
			_, err := svc.CreateEvent(context.Background(), req)
			assert.ErrorIs(t, err, repository.ErrInvalidInput)
		})
	}
}

func TestEventService_GetEventCounts(t *testing.T) {
	store := repository.NewMemoryStore()
	events := NewEventService(store, zap.NewNop())
	ctx := context.Background()

	now := time.Now().UTC()
	e, err := events.CreateEvent(ctx, model.CreateEventRequest{
		Name:      "Alumni Talk",
		Quota:     1,
		DateStart: now.Add(10 * 24 * time.Hour),
	})
	require.NoError(t, err)

	attendance := NewAttendanceService(store, nil, DefaultPolicy(), zap.NewNop())
	for _, id := range []string{"m-1", "m-2"} {
		_, err := events.UpsertMember(ctx, id, model.UpsertMemberRequest{ProfileCompleteness: 100})
		require.NoError(t, err)
		_, err = attendance.Register(ctx, e.ID, id)
		require.NoError(t, err)
	}

	detail, err := events.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Counts[model.StatusRegistered])
	assert.Equal(t, 1, detail.Counts[model.StatusWaitingList])

	_, err = events.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEventService_SetEventOpen(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewEventService(store, zap.NewNop())
	ctx := context.Background()

	e, err := svc.CreateEvent(ctx, model.CreateEventRequest{Name: "Gala", DateStart: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	require.NoError(t, svc.SetEventOpen(ctx, e.ID, false))
	got, err := store.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventClosed, got.Status)

	assert.ErrorIs(t, svc.SetEventOpen(ctx, "missing", true), repository.ErrNotFound)
}

func TestEventService_UpsertMember(t *testing.T) {
	svc := NewEventService(repository.NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	m, err := svc.UpsertMember(ctx, "m-1", model.UpsertMemberRequest{Name: "Ana", ProfileCompleteness: 92})
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, m.Role)
	assert.Equal(t, 92, m.ProfileCompleteness)

	_, err = svc.UpsertMember(ctx, "m-1", model.UpsertMemberRequest{Role: "owner"})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	_, err = svc.UpsertMember(ctx, "", model.UpsertMemberRequest{})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	_, err = svc.UpsertMember(ctx, "m-2", model.UpsertMemberRequest{ProfileCompleteness: 101})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}
