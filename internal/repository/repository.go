// Package repository defines the persistence contracts of the attendance core
// and implements them for PostgreSQL (pgx, no ORM) and for memory.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/model"
)

// ErrNotFound is returned when a requested event, member or registration does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyRegistered is returned when a member holds a live registration for the event.
var ErrAlreadyRegistered = errors.New("member already registered for this event")

// ErrRegistrationClosed is returned when the event is closed or its deadline has passed.
var ErrRegistrationClosed = errors.New("registration for this event is closed")

// ErrDeadlineExceeded is returned when a cancellation is requested after the cutoff.
var ErrDeadlineExceeded = errors.New("cancellation deadline has passed")

// ErrNotRegistered is returned when the member is not a valid participant of the event.
var ErrNotRegistered = errors.New("not a valid participant for this event")

// ErrAlreadyFinalized is returned when attendance for the event was already finalized.
var ErrAlreadyFinalized = errors.New("event attendance already finalized")

// ErrInvalidTransition is returned when a registration is not in a state that allows the operation.
var ErrInvalidTransition = errors.New("operation not allowed in the registration's current state")

// ErrEventFull is returned when a waiting-list promotion would exceed the quota.
var ErrEventFull = errors.New("event quota is full")

// ErrInvalidScan is returned when a scanned code does not belong to the event.
var ErrInvalidScan = errors.New("scanned code does not match this event")

// ErrForbidden is returned when the caller lacks the capability for an operation.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidInput is returned for malformed requests.
var ErrInvalidInput = errors.New("invalid input")

// PersistenceError wraps a failure of the underlying store. It is surfaced
// to callers as-is and never retried by the core.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// EventStore handles event administration and read models.
type EventStore interface {
	CreateEvent(ctx context.Context, event *model.Event) error
	ListEvents(ctx context.Context) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	SetEventStatus(ctx context.Context, id string, status model.EventStatus) error
	ListRegistrations(ctx context.Context, eventID string) ([]model.Registration, error)
	CountByStatus(ctx context.Context, eventID string) (map[model.RegistrationStatus]int, error)
}

// MemberStore reads and provisions members.
type MemberStore interface {
	GetMember(ctx context.Context, id string) (*model.Member, error)
	UpsertMember(ctx context.Context, member *model.Member) error
}

// Store is everything the service layer needs.
type Store interface {
	EventStore
	MemberStore

	// WithEventLock runs fn inside a single transaction that holds an
	// exclusive lock on the event. Every read-modify-write of the event's
	// registrations goes through here, so two callers racing on the same
	// event are serialized. If fn returns an error nothing is committed.
	// Returns ErrNotFound if the event does not exist.
	WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, tx EventTx) error) error
}

// EventTx is the view of one locked event inside WithEventLock.
type EventTx interface {
	// Event returns the locked event as read at lock time.
	Event() *model.Event
	Member(ctx context.Context, id string) (*model.Member, error)
	// Registration returns the member's registration for the locked event or ErrNotFound.
	Registration(ctx context.Context, memberID string) (*model.Registration, error)
	// Registrations returns all registrations of the locked event, oldest first.
	Registrations(ctx context.Context) ([]model.Registration, error)
	CountStatus(ctx context.Context, status model.RegistrationStatus) (int, error)
	InsertRegistration(ctx context.Context, reg *model.Registration) error
	UpdateRegistration(ctx context.Context, reg *model.Registration) error
	// IncrementAbsences adds one to each member's consecutive_absences and
	// returns the new values keyed by member id.
	IncrementAbsences(ctx context.Context, memberIDs []string) (map[string]int, error)
	ResetAbsences(ctx context.Context, memberIDs []string) error
	MarkFinalized(ctx context.Context, at time.Time) error
}
