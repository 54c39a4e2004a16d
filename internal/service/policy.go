package service

import (
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/model"
)

// Policy holds the tunable attendance rules.
type Policy struct {
	SanctionThreshold     int
	CancellationCutoff    time.Duration
	WaitlistOverrideQuota bool
}

// DefaultPolicy is two strikes and an H-2 cancellation cutoff.
func DefaultPolicy() Policy {
	return Policy{
		SanctionThreshold:  2,
		CancellationCutoff: 48 * time.Hour,
	}
}

type admission int

const (
	admitted admission = iota
	waitlistedFull
	waitlistedSanction
)

// Sanctioned reports whether a member with the given streak is under sanction.
func (p Policy) Sanctioned(consecutiveAbsences int) bool {
	return consecutiveAbsences >= p.SanctionThreshold
}

// admit decides the status of a new registration. The sanction check comes
// first: a sanctioned member is waitlisted even when seats are free.
func (p Policy) admit(consecutiveAbsences, quota, registered int) admission {
	if p.Sanctioned(consecutiveAbsences) {
		return waitlistedSanction
	}
	if quota == 0 || registered < quota {
		return admitted
	}
	return waitlistedFull
}

func (a admission) status() model.RegistrationStatus {
	if a == admitted {
		return model.StatusRegistered
	}
	return model.StatusWaitingList
}

func (a admission) message(consecutiveAbsences int) string {
	switch a {
	case waitlistedSanction:
		return fmt.Sprintf("You have been placed on the waiting list: your account is under sanction after %d consecutive absences.", consecutiveAbsences)
	case waitlistedFull:
		return "You have been placed on the waiting list: the event is full."
	default:
		return "Registration successful."
	}
}

// CancellationDeadline is the last instant a cancellation may be requested.
func (p Policy) CancellationDeadline(start time.Time) time.Time {
	return start.Add(-p.CancellationCutoff)
}

// CanRequestCancellation reports whether a request at now is within the cutoff.
func (p Policy) CanRequestCancellation(start, now time.Time) bool {
	return !now.After(p.CancellationDeadline(start))
}
