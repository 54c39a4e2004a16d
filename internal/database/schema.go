package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently by Migrate. The unique constraint on
// (event_id, member_id) backs the one-registration-per-member invariant.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id                    TEXT PRIMARY KEY,
		name                  TEXT NOT NULL DEFAULT '',
		role                  TEXT NOT NULL DEFAULT 'member'
			CHECK (role IN ('member', 'admin', 'superadmin', 'regional_coordinator')),
		profile_completeness  INTEGER NOT NULL DEFAULT 0
			CHECK (profile_completeness BETWEEN 0 AND 100),
		consecutive_absences  INTEGER NOT NULL DEFAULT 0 CHECK (consecutive_absences >= 0),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id                     TEXT PRIMARY KEY,
		name                   TEXT NOT NULL,
		description            TEXT NOT NULL DEFAULT '',
		quota                  INTEGER NOT NULL DEFAULT 0 CHECK (quota >= 0),
		scope                  TEXT NOT NULL DEFAULT 'national'
			CHECK (scope IN ('national', 'regional', 'online')),
		status                 TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed')),
		date_start             TIMESTAMPTZ NOT NULL,
		registration_deadline  TIMESTAMPTZ NOT NULL,
		finalized_at           TIMESTAMPTZ,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS registrations (
		id                   TEXT PRIMARY KEY,
		event_id             TEXT NOT NULL REFERENCES events(id) ON DELETE RESTRICT,
		member_id            TEXT NOT NULL REFERENCES members(id) ON DELETE RESTRICT,
		status               TEXT NOT NULL CHECK (status IN
			('Registered', 'Waiting List', 'Attended', 'Absent', 'Permitted', 'Cancelled', 'Rejected')),
		cancellation_status  TEXT NOT NULL DEFAULT 'none' CHECK (cancellation_status IN ('none', 'pending')),
		cancellation_reason  TEXT NOT NULL DEFAULT '',
		check_in_time        TIMESTAMPTZ,
		registered_at        TIMESTAMPTZ NOT NULL,
		updated_at           TIMESTAMPTZ NOT NULL,
		UNIQUE (event_id, member_id)
	)`,
	`CREATE INDEX IF NOT EXISTS registrations_event_status_idx
		ON registrations (event_id, status, registered_at)`,
}

// Migrate creates the tables the attendance store needs.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
