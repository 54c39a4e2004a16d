// Package model defines the core domain types for the alumni event attendance system.
package model

import "time"

// Role is a member's platform role.
type Role string

const (
	RoleMember              Role = "member"
	RoleAdmin               Role = "admin"
	RoleSuperAdmin          Role = "superadmin"
	RoleRegionalCoordinator Role = "regional_coordinator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleSuperAdmin, RoleRegionalCoordinator:
		return true
	}
	return false
}

// Member is an alumni user as seen by the attendance core.
// Identity and profile data are owned by the identity service; the core only
// reads Role and ProfileCompleteness and writes ConsecutiveAbsences.
type Member struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Role                Role      `json:"role"`
	ProfileCompleteness int       `json:"profile_completeness"`
	ConsecutiveAbsences int       `json:"consecutive_absences"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// EventStatus controls whether an event accepts registrations.
type EventStatus string

const (
	EventOpen   EventStatus = "open"
	EventClosed EventStatus = "closed"
)

// EventScope is used for visibility filtering by the UI layer.
type EventScope string

const (
	ScopeNational EventScope = "national"
	ScopeRegional EventScope = "regional"
	ScopeOnline   EventScope = "online"
)

// Valid reports whether s is a known scope.
func (s EventScope) Valid() bool {
	switch s {
	case ScopeNational, ScopeRegional, ScopeOnline:
		return true
	}
	return false
}

// Event is a scheduled activity members can register for.
type Event struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	Description          string      `json:"description"`
	Quota                int         `json:"quota"`
	Scope                EventScope  `json:"scope"`
	Status               EventStatus `json:"status"`
	DateStart            time.Time   `json:"date_start"`
	RegistrationDeadline time.Time   `json:"registration_deadline"`
	FinalizedAt          *time.Time  `json:"finalized_at,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
}

// Unlimited reports whether the event has no quota.
func (e *Event) Unlimited() bool {
	return e.Quota == 0
}

// AcceptsRegistrations reports whether a registration submitted at now may be
// considered at all.
func (e *Event) AcceptsRegistrations(now time.Time) bool {
	return e.Status == EventOpen && e.FinalizedAt == nil && !now.After(e.RegistrationDeadline)
}

// Finalized reports whether the attendance sweep has already run.
func (e *Event) Finalized() bool {
	return e.FinalizedAt != nil
}

// RegistrationStatus is the lifecycle label of a Registration.
type RegistrationStatus string

const (
	StatusRegistered  RegistrationStatus = "Registered"
	StatusWaitingList RegistrationStatus = "Waiting List"
	StatusAttended    RegistrationStatus = "Attended"
	StatusAbsent      RegistrationStatus = "Absent"
	StatusPermitted   RegistrationStatus = "Permitted"
	StatusCancelled   RegistrationStatus = "Cancelled"
	StatusRejected    RegistrationStatus = "Rejected"
)

// Terminal reports whether s ends the member's relationship with the event.
// A terminal registration may be replaced by a fresh registration.
func (s RegistrationStatus) Terminal() bool {
	switch s {
	case StatusPermitted, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// CancellationStatus tracks a pending cancellation request.
type CancellationStatus string

const (
	CancellationNone    CancellationStatus = "none"
	CancellationPending CancellationStatus = "pending"
)

// Registration links a member to an event and records its attendance lifecycle.
// CheckInTime is the source of truth for attendance; Status is a label kept
// consistent with it.
type Registration struct {
	ID                 string             `json:"id"`
	EventID            string             `json:"event_id"`
	MemberID           string             `json:"member_id"`
	Status             RegistrationStatus `json:"status"`
	CancellationStatus CancellationStatus `json:"cancellation_status"`
	CancellationReason string             `json:"cancellation_reason,omitempty"`
	CheckInTime        *time.Time         `json:"check_in_time,omitempty"`
	RegisteredAt       time.Time          `json:"registered_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// CheckedIn reports whether the member has attended.
func (r *Registration) CheckedIn() bool {
	return r.CheckInTime != nil
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name                 string     `json:"name"`
	Description          string     `json:"description"`
	Quota                int        `json:"quota"`
	Scope                EventScope `json:"scope"`
	DateStart            time.Time  `json:"date_start"`
	RegistrationDeadline time.Time  `json:"registration_deadline"`
}

// UpsertMemberRequest is the provisioning payload pushed by the identity service.
type UpsertMemberRequest struct {
	Name                string `json:"name"`
	Role                Role   `json:"role"`
	ProfileCompleteness int    `json:"profile_completeness"`
}

// CancellationRequest is the payload a member sends to ask for a cancellation.
type CancellationRequest struct {
	Reason string `json:"reason"`
}

// DecisionRequest carries an admin approve/reject decision.
type DecisionRequest struct {
	Approve bool `json:"approve"`
}

// CheckInRequest is used by staff to check a member in.
type CheckInRequest struct {
	MemberID string `json:"member_id"`
}

// ScanRequest is the payload of a member's self-service QR scan.
type ScanRequest struct {
	Scanned string `json:"scanned"`
}

// RegisterResult is the outcome of a registration attempt.
type RegisterResult struct {
	Success      bool               `json:"success"`
	Status       RegistrationStatus `json:"status"`
	Message      string             `json:"message"`
	Registration *Registration      `json:"registration,omitempty"`
}

// CheckInResult is the outcome of a check-in. Re-scans report
// AlreadyCheckedIn and leave the registration untouched.
type CheckInResult struct {
	Registration     *Registration `json:"registration"`
	AlreadyCheckedIn bool          `json:"already_checked_in"`
	Message          string        `json:"message"`
}

// FinalizeSummary is the outcome of the post-event attendance sweep.
type FinalizeSummary struct {
	EventID     string    `json:"event_id"`
	Absent      int       `json:"absent"`
	Attended    int       `json:"attended"`
	Sanctioned  int       `json:"sanctioned"`
	Message     string    `json:"message"`
	FinalizedAt time.Time `json:"finalized_at"`
}

// EventDetail is an event together with its registration counts per status.
type EventDetail struct {
	Event
	Counts map[RegistrationStatus]int `json:"counts"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
