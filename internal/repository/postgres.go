package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `id, name, description, quota, scope, status, date_start,
	registration_deadline, finalized_at, created_at`

const registrationColumns = `id, event_id, member_id, status, cancellation_status,
	cancellation_reason, check_in_time, registered_at, updated_at`

// PostgresStore implements Store on top of a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Pool exposes the underlying pool for schema migration.
func (s *PostgresStore) Pool() *pgxpool.Pool { return s.db }

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Quota, &e.Scope, &e.Status,
		&e.DateStart, &e.RegistrationDeadline, &e.FinalizedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var r model.Registration
	err := row.Scan(&r.ID, &r.EventID, &r.MemberID, &r.Status, &r.CancellationStatus,
		&r.CancellationReason, &r.CheckInTime, &r.RegisteredAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRegistrations(rows pgx.Rows) ([]model.Registration, error) {
	defer rows.Close()
	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// CreateEvent inserts a new event.
func (s *PostgresStore) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO events (id, name, description, quota, scope, status, date_start,
			registration_deadline, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Name, e.Description, e.Quota, string(e.Scope), string(e.Status),
		e.DateStart, e.RegistrationDeadline, e.CreatedAt,
	)
	if err != nil {
		return persistErr("insert event", err)
	}
	return nil
}

// ListEvents returns all events, soonest first.
func (s *PostgresStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY date_start ASC`)
	if err != nil {
		return nil, persistErr("list events", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, persistErr("scan event", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list events", err)
	}
	return events, nil
}

// GetEvent returns a single event or ErrNotFound.
func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(s.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, persistErr("get event", err)
	}
	return e, nil
}

// SetEventStatus opens or closes an event for registration.
func (s *PostgresStore) SetEventStatus(ctx context.Context, id string, status model.EventStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE events SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return persistErr("set event status", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRegistrations returns all registrations for an event in FIFO order.
func (s *PostgresStore) ListRegistrations(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE event_id = $1 ORDER BY registered_at ASC`, eventID)
	if err != nil {
		return nil, persistErr("list registrations", err)
	}
	regs, err := collectRegistrations(rows)
	if err != nil {
		return nil, persistErr("list registrations", err)
	}
	return regs, nil
}

// CountByStatus returns the number of registrations per status for an event.
func (s *PostgresStore) CountByStatus(ctx context.Context, eventID string) (map[model.RegistrationStatus]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT status, COUNT(*) FROM registrations WHERE event_id = $1 GROUP BY status`, eventID)
	if err != nil {
		return nil, persistErr("count registrations", err)
	}
	defer rows.Close()

	counts := make(map[model.RegistrationStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, persistErr("scan count", err)
		}
		counts[model.RegistrationStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("count registrations", err)
	}
	return counts, nil
}

// GetMember returns a member or ErrNotFound.
func (s *PostgresStore) GetMember(ctx context.Context, id string) (*model.Member, error) {
	return getMember(ctx, s.db, id)
}

// UpsertMember inserts or refreshes the identity-owned fields of a member.
// consecutive_absences is never touched here.
func (s *PostgresStore) UpsertMember(ctx context.Context, m *model.Member) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO members (id, name, role, profile_completeness, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name,
		     role = EXCLUDED.role,
		     profile_completeness = EXCLUDED.profile_completeness,
		     updated_at = EXCLUDED.updated_at`,
		m.ID, m.Name, string(m.Role), m.ProfileCompleteness, m.UpdatedAt,
	)
	if err != nil {
		return persistErr("upsert member", err)
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getMember(ctx context.Context, q querier, id string) (*model.Member, error) {
	var m model.Member
	err := q.QueryRow(ctx,
		`SELECT id, name, role, profile_completeness, consecutive_absences, updated_at
		 FROM members WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.Role, &m.ProfileCompleteness, &m.ConsecutiveAbsences, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, persistErr("get member", err)
	}
	return &m, nil
}

// WithEventLock runs fn inside a transaction holding a row lock on the event.
//
// Naive read-then-write is broken under concurrency:
//
//	caller A: SELECT COUNT(*) ... status = 'Registered'  → 9 (quota 10)
//	caller B: SELECT COUNT(*) ... status = 'Registered'  → 9
//	caller A: INSERT registration (Registered)
//	caller B: INSERT registration (Registered)
//	Result: 11 Registered for a 10-seat event.
//
// SELECT … FOR UPDATE on the event row blocks every other transaction that
// tries to take the same lock until we COMMIT or ROLLBACK, so the count and
// the insert happen as one step. Check-in and finalization take the same lock,
// which keeps a last-second check-in from being swept up as Absent.
func (s *PostgresStore) WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, tx EventTx) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return persistErr("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	event, err := scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return persistErr("lock event row", err)
	}

	if err = fn(ctx, &pgEventTx{tx: tx, event: event}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return persistErr("commit transaction", err)
	}
	return nil
}

type pgEventTx struct {
	tx    pgx.Tx
	event *model.Event
}

func (t *pgEventTx) Event() *model.Event { return t.event }

func (t *pgEventTx) Member(ctx context.Context, id string) (*model.Member, error) {
	return getMember(ctx, t.tx, id)
}

func (t *pgEventTx) Registration(ctx context.Context, memberID string) (*model.Registration, error) {
	reg, err := scanRegistration(t.tx.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE event_id = $1 AND member_id = $2`, t.event.ID, memberID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, persistErr("get registration", err)
	}
	return reg, nil
}

func (t *pgEventTx) Registrations(ctx context.Context) ([]model.Registration, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE event_id = $1 ORDER BY registered_at ASC`, t.event.ID)
	if err != nil {
		return nil, persistErr("list registrations", err)
	}
	regs, err := collectRegistrations(rows)
	if err != nil {
		return nil, persistErr("list registrations", err)
	}
	return regs, nil
}

func (t *pgEventTx) CountStatus(ctx context.Context, status model.RegistrationStatus) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = $2`,
		t.event.ID, string(status),
	).Scan(&n)
	if err != nil {
		return 0, persistErr("count registrations", err)
	}
	return n, nil
}

func (t *pgEventTx) InsertRegistration(ctx context.Context, r *model.Registration) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.EventID, r.MemberID, string(r.Status), string(r.CancellationStatus),
		r.CancellationReason, r.CheckInTime, r.RegisteredAt, r.UpdatedAt,
	)
	if err != nil {
		return persistErr("insert registration", err)
	}
	return nil
}

// UpdateRegistration writes the mutable fields. check_in_time is only ever
// set, never cleared, hence the COALESCE.
func (t *pgEventTx) UpdateRegistration(ctx context.Context, r *model.Registration) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE registrations
		 SET status = $2,
		     cancellation_status = $3,
		     cancellation_reason = $4,
		     check_in_time = COALESCE(check_in_time, $5),
		     registered_at = $6,
		     updated_at = $7
		 WHERE id = $1`,
		r.ID, string(r.Status), string(r.CancellationStatus), r.CancellationReason,
		r.CheckInTime, r.RegisteredAt, r.UpdatedAt,
	)
	if err != nil {
		return persistErr("update registration", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgEventTx) IncrementAbsences(ctx context.Context, memberIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(memberIDs))
	if len(memberIDs) == 0 {
		return counts, nil
	}
	rows, err := t.tx.Query(ctx,
		`UPDATE members
		 SET consecutive_absences = consecutive_absences + 1, updated_at = now()
		 WHERE id = ANY($1)
		 RETURNING id, consecutive_absences`, memberIDs)
	if err != nil {
		return nil, persistErr("increment absences", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, persistErr("scan absences", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("increment absences", err)
	}
	return counts, nil
}

func (t *pgEventTx) ResetAbsences(ctx context.Context, memberIDs []string) error {
	if len(memberIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx,
		`UPDATE members SET consecutive_absences = 0, updated_at = now()
		 WHERE id = ANY($1) AND consecutive_absences <> 0`, memberIDs)
	if err != nil {
		return persistErr("reset absences", err)
	}
	return nil
}

func (t *pgEventTx) MarkFinalized(ctx context.Context, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE events SET finalized_at = $2 WHERE id = $1 AND finalized_at IS NULL`,
		t.event.ID, at)
	if err != nil {
		return persistErr("mark finalized", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", t.event.ID, ErrAlreadyFinalized)
	}
	t.event.FinalizedAt = &at
	return nil
}
