package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/database"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/model"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/repository"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// dsnEnv names a disposable PostgreSQL database for the tests below.
const dsnEnv = "ALUMNI_TEST_DATABASE_URL"

func postgresStore(t *testing.T) *repository.PostgresStore {
	t.Helper()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool))
	return repository.NewPostgresStore(pool)
}

func seedEvent(t *testing.T, store *repository.PostgresStore, quota int) *model.Event {
	t.Helper()
	now := time.Now().UTC()
	e := &model.Event{
		ID:                   uuid.New().String(),
		Name:                 "Chapter meetup",
		Quota:                quota,
		Scope:                model.ScopeRegional,
		Status:               model.EventOpen,
		DateStart:            now.Add(7 * 24 * time.Hour),
		RegistrationDeadline: now.Add(5 * 24 * time.Hour),
		CreatedAt:            now,
	}
	require.NoError(t, store.CreateEvent(context.Background(), e))
	return e
}

func seedMember(t *testing.T, store *repository.PostgresStore) string {
	t.Helper()
	id := uuid.New().String()
	require.NoError(t, store.UpsertMember(context.Background(), &model.Member{
		ID:                  id,
		Role:                model.RoleMember,
		ProfileCompleteness: 100,
		UpdatedAt:           time.Now().UTC(),
	}))
	return id
}

func TestPostgresStore_QuotaUnderConcurrency(t *testing.T) {
	store := postgresStore(t)
	const quota, registrants = 5, 40
	event := seedEvent(t, store, quota)

	ids := make([]string, registrants)
	for i := range ids {
		ids[i] = seedMember(t, store)
	}

	svc := service.NewAttendanceService(store, nil, service.DefaultPolicy(), zap.NewNop())
	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := svc.Register(context.Background(), event.ID, id)
			return err
		})
	}
	require.NoError(t, g.Wait())

	counts, err := store.CountByStatus(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, quota, counts[model.StatusRegistered])
	assert.Equal(t, registrants-quota, counts[model.StatusWaitingList])
}

func TestPostgresStore_CheckInTimeKept(t *testing.T) {
	store := postgresStore(t)
	ctx := context.Background()
	event := seedEvent(t, store, 0)
	memberID := seedMember(t, store)

	checkedIn := time.Now().UTC().Truncate(time.Microsecond)
	reg := &model.Registration{
		ID:                 uuid.New().String(),
		EventID:            event.ID,
		MemberID:           memberID,
		Status:             model.StatusAttended,
		CancellationStatus: model.CancellationNone,
		CheckInTime:        &checkedIn,
		RegisteredAt:       checkedIn,
		UpdatedAt:          checkedIn,
	}
	require.NoError(t, store.WithEventLock(ctx, event.ID, func(ctx context.Context, tx repository.EventTx) error {
		return tx.InsertRegistration(ctx, reg)
	}))

	cleared := *reg
	cleared.CheckInTime = nil
	require.NoError(t, store.WithEventLock(ctx, event.ID, func(ctx context.Context, tx repository.EventTx) error {
		return tx.UpdateRegistration(ctx, &cleared)
	}))

	regs, err := store.ListRegistrations(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	require.NotNil(t, regs[0].CheckInTime)
	assert.WithinDuration(t, checkedIn, *regs[0].CheckInTime, time.Millisecond)
}

func TestPostgresStore_LockRollbackAndFinalizeGuard(t *testing.T) {
	store := postgresStore(t)
	ctx := context.Background()
	event := seedEvent(t, store, 0)
	memberID := seedMember(t, store)

	boom := errors.New("boom")
	err := store.WithEventLock(ctx, event.ID, func(ctx context.Context, tx repository.EventTx) error {
		now := time.Now().UTC()
		if err := tx.InsertRegistration(ctx, &model.Registration{
			ID: uuid.New().String(), EventID: event.ID, MemberID: memberID,
			Status: model.StatusRegistered, CancellationStatus: model.CancellationNone,
			RegisteredAt: now, UpdatedAt: now,
		}); err != nil {
			return err
		}
		if _, err := tx.IncrementAbsences(ctx, []string{memberID}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	regs, err := store.ListRegistrations(ctx, event.ID)
	require.NoError(t, err)
	assert.Empty(t, regs)
	m, err := store.GetMember(ctx, memberID)
	require.NoError(t, err)
	assert.Zero(t, m.ConsecutiveAbsences)

	markFinalized := func(ctx context.Context, tx repository.EventTx) error {
		return tx.MarkFinalized(ctx, time.Now().UTC())
	}
	require.NoError(t, store.WithEventLock(ctx, event.ID, markFinalized))
	err = store.WithEventLock(ctx, event.ID, markFinalized)
	assert.ErrorIs(t, err, repository.ErrAlreadyFinalized)

	err = store.WithEventLock(ctx, uuid.New().String(), markFinalized)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
