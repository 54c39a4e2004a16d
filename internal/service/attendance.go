package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/checkin"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/model"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/notify"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AttendanceService runs the registration and attendance state machine.
// Every operation executes inside repository.Store.WithEventLock, so all
// writers of one event's registrations are serialized.
type AttendanceService struct {
	store     repository.Store
	publisher notify.Publisher
	policy    Policy
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(store repository.Store, publisher notify.Publisher, policy Policy, logger *zap.Logger) *AttendanceService {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &AttendanceService{
		store:     store,
		publisher: publisher,
		policy:    policy,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var domainErrors = []error{
	repository.ErrNotFound,
	repository.ErrAlreadyRegistered,
	repository.ErrRegistrationClosed,
	repository.ErrDeadlineExceeded,
	repository.ErrNotRegistered,
	repository.ErrAlreadyFinalized,
	repository.ErrInvalidTransition,
	repository.ErrEventFull,
	repository.ErrInvalidScan,
	repository.ErrInvalidInput,
}

// surface returns domain errors untouched so handlers can pick the right
// status, and wraps everything else with the operation name.
func (s *AttendanceService) surface(op, eventID, memberID string, err error) error {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	s.logger.Error(op+" failed",
		zap.String("event_id", eventID),
		zap.String("member_id", memberID),
		zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

// publish is best effort: the transition is already committed.
func (s *AttendanceService) publish(ctx context.Context, msg notify.Message) {
	msg.OccurredAt = s.now()
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Warn("publish lifecycle event",
			zap.String("type", msg.Type),
			zap.String("event_id", msg.EventID),
			zap.Error(err))
	}
}

// registrationFor loads the member's registration, mapping absence to ErrNotRegistered.
func registrationFor(ctx context.Context, tx repository.EventTx, memberID string) (*model.Registration, error) {
	reg, err := tx.Registration(ctx, memberID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, repository.ErrNotRegistered
	}
	return reg, err
}

func requireIDs(eventID, memberID string) error {
	if strings.TrimSpace(eventID) == "" {
		return invalid("event id is required")
	}
	if strings.TrimSpace(memberID) == "" {
		return invalid("member id is required")
	}
	return nil
}

// Register admits a member to an event as Registered or Waiting List.
//
// The quota count and the insert run under the event lock: two members
// racing for the last seat cannot both observe it as free.
func (s *AttendanceService) Register(ctx context.Context, eventID, memberID string) (*model.RegisterResult, error) {
	if err := requireIDs(eventID, memberID); err != nil {
		return nil, err
	}

	var result *model.RegisterResult
	err := s.store.WithEventLock(ctx, eventID, func(ctx context.Context, tx repository.EventTx) error {
		now := s.now()
		event := tx.Event()
		if !event.AcceptsRegistrations(now) {
			return repository.ErrRegistrationClosed
		}

		member, err := tx.Member(ctx, memberID)
		if err != nil {
			return fmt.Errorf("member %s: %w", memberID, err)
		}

		existing, err := tx.Registration(ctx, memberID)
		switch {
		case err == nil && existing.Status == model.StatusRejected:
			return fmt.Errorf("waiting list entry was rejected: %w", repository.ErrInvalidTransition)
		case err == nil && !existing.Status.Terminal():
			return repository.ErrAlreadyRegistered
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return err
		}

		registered := 0
		if !s.policy.Sanctioned(member.ConsecutiveAbsences) && !event.Unlimited() {
			if registered, err = tx.CountStatus(ctx, model.StatusRegistered); err != nil {
				return err
			}
		}
		decision := s.policy.admit(member.ConsecutiveAbsences, event.Quota, registered)

		reg := &model.Registration{
			ID:                 uuid.New().String(),
			EventID:            eventID,
			MemberID:           memberID,
			Status:             decision.status(),
			CancellationStatus: model.CancellationNone,
			RegisteredAt:       now,
			UpdatedAt:          now,
		}
		if existing != nil {
			// A Permitted or Cancelled registration is reused so (event, member) stays unique.
			reg.ID = existing.ID
			err = tx.UpdateRegistration(ctx, reg)
		} else {
			err = tx.InsertRegistration(ctx, reg)
		}
		if err != nil {
			return err
		}

		result = &model.RegisterResult{
			Success:      true,
			Status:       reg.Status,
			Message:      decision.message(member.ConsecutiveAbsences),
			Registration: reg,
		}
		return nil
	})
	if err != nil {
		return nil, s.surface("register for event", eventID, memberID, err)
	}

	s.logger.Info("registration decided",
		zap.String("event_id", eventID),
		zap.String("member_id", memberID),
		zap.String("status", string(result.Status)))
	s.publish(ctx, notify.Message{
		Type:     notify.RegistrationCreated,
		EventID:  eventID,
		MemberID: memberID,
		Status:   string(result.Status),
	})
	return result, nil
}

// RequestCancellation marks a Registered registration as pending cancellation.
// It never cancels on its own; an admin decides via DecideCancellation.
func (s *AttendanceService) RequestCancellation(ctx context.Context, eventID, memberID, reason string) (*model.Registration, error) {
	if err := requireIDs(eventID, memberID); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("cancellation reason is required")
	}

	var out *model.Registration
	err := s.store.WithEventLock(ctx, eventID, func(ctx context.Context, tx repository.EventTx) error {
		now := s.now()
		reg, err := registrationFor(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if reg.CancellationStatus == model.CancellationPending {
			return fmt.Errorf("cancellation already pending: %w", repository.ErrInvalidTransition)
		}
		if reg.Status != model.StatusRegistered {
			return fmt.Errorf("cannot cancel a %q registration: %w", reg.Status, repository.ErrInvalidTransition)
		}
		if !s.policy.CanRequestCancellation(tx.Event().DateStart, now) {
			return fmt.Errorf("cancellations close at %s: %w",
				s.policy.CancellationDeadline(tx.Event().DateStart).Format(time.RFC3339),
				repository.ErrDeadlineExceeded)
		}

		reg.CancellationStatus = model.CancellationPending
		reg.CancellationReason = reason
		reg.UpdatedAt = now
		if err := tx.UpdateRegistration(ctx, reg); err != nil {
			return err
		}
		out = reg
		return nil
	})
	if err != nil {
		return nil, s.surface("request cancellation", eventID, memberID, err)
	}

	s.logger.Info("cancellation requested", zap.String("event_id", eventID), zap.String("member_id", memberID))
	s.publish(ctx, notify.Message{
		Type:     notify.CancellationRequested,
		EventID:  eventID,
		MemberID: memberID,
		Status:   string(out.Status),
		Detail:   reason,
	})
	return out, nil
}

// DecideCancellation resolves a pending cancellation. Approval moves the
// registration to Permitted; rejection keeps it Registered.
func (s *AttendanceService) DecideCancellation(ctx context.Context, eventID, memberID string, approve bool) (*model.Registration, error) {
	if err := requireIDs(eventID, memberID); err != nil {
		return nil, err
	}

	var out *model.Registration
	err := s.store.WithEventLock(ctx, eventID, func(ctx context.Context, tx repository.EventTx) error {
		if tx.Event().Finalized() {
			return repository.ErrAlreadyFinalized
		}
		reg, err := registrationFor(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if reg.CancellationStatus != model.CancellationPending {
			return fmt.Errorf("no pending cancellation: %w", repository.ErrInvalidTransition)
		}
		if reg.Status != model.StatusRegistered {
			return fmt.Errorf("cannot decide a cancellation on a %q registration: %w", reg.Status, repository.ErrInvalidTransition)
		}

		reg.CancellationStatus = model.CancellationNone
		if approve {
			reg.Status = model.StatusPermitted
		}
		reg.UpdatedAt = s.now()
		if err := tx.UpdateRegistration(ctx, reg); err != nil {
			return err
		}
		out = reg
		return nil
	})
	if err != nil {
		return nil, s.surface("decide cancellation", eventID, memberID, err)
	}

	s.logger.Info("cancellation decided",
		zap.String("event_id", eventID),
		zap.String("member_id", memberID),
		zap.Bool("approved", approve))
	s.publish(ctx, notify.Message{
		Type:     notify.CancellationDecided,
		EventID:  eventID,
		MemberID: memberID,
		Status:   string(out.Status),
	})
	return out, nil
}

// DecideWaitlist promotes a Waiting List registration to Registered or
// rejects it. Promotion re-checks the quota unless the policy lets admins
// override it.
func (s *AttendanceService) DecideWaitlist(ctx context.Context, eventID, memberID string, approve bool) (*model.Registration, error) {
	if err := requireIDs(eventID, memberID); err != nil {
		return nil, err
	}

	var out *model.Registration
	err := s.store.WithEventLock(ctx, eventID, func(ctx context.Context, tx repository.EventTx) error {
		event := tx.Event()
		if event.Finalized() {
			return repository.ErrAlreadyFinalized
		}
		reg, err := registrationFor(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if reg.Status != model.StatusWaitingList {
			return fmt.Errorf("registration is %q, not on the waiting list: %w", reg.Status, repository.ErrInvalidTransition)
		}

		if !approve {
			reg.Status = model.StatusRejected
		} else {
			if !event.Unlimited() && !s.policy.WaitlistOverrideQuota {
				registered, err := tx.CountStatus(ctx, model.StatusRegistered)
				if err != nil {
					return err
				}
				if registered >= event.Quota {
					return repository.ErrEventFull
				}
			}
			reg.Status = model.StatusRegistered
		}
		reg.UpdatedAt = s.now()
		if err := tx.UpdateRegistration(ctx, reg); err != nil {
			return err
		}
		out = reg
		return nil
	})
	if err != nil {
		return nil, s.surface("decide waitlist", eventID, memberID, err)
	}

	s.logger.Info("waitlist decided",
		zap.String("event_id", eventID),
		zap.String("member_id", memberID),
		zap.String("status", string(out.Status)))
	s.publish(ctx, notify.Message{
		Type:     notify.WaitlistDecided,
		EventID:  eventID,
		MemberID: memberID,
		Status:   string(out.Status),
	})
	return out, nil
}

// WithdrawWaitlist lets a member leave the waiting list without admin approval.
// A waiting-list seat holds no quota, so nothing else changes.
func (s *AttendanceService) WithdrawWaitlist(ctx context.Context, eventID, memberID string) (*model.Registration, error) {
	if err := requireIDs(eventID, memberID); err != nil {
		return nil, err
	}

	var out *model.Registration
	err := s.store.WithEventLock(ctx, eventID, func(ctx context.Context, tx repository.EventTx) error {
		reg, err := registrationFor(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if reg.Status != model.StatusWaitingList {
			return fmt.Errorf("registration is %q, not on the waiting list: %w", reg.Status, repository.ErrInvalidTransition)
		}
		reg.Status = model.StatusCancelled
		reg.UpdatedAt = s.now()
		if err := tx.UpdateRegistration(ctx, reg); err != nil {
			return err
		}
		out = reg
		return nil
	})
	if err != nil {
		return nil, s.surface("withdraw waitlist", eventID, memberID, err)
	}

	s.logger.Info("waitlist withdrawn", zap.String("event_id", eventID), zap.String("member_id", memberID))
	s.publish(ctx, notify.Message{
		Type:     notify.WaitlistWithdrawn,
		EventID:  eventID,
		MemberID: memberID,
		Status:   string(out.Status),
	})
	return out, nil
}

// CheckIn records attendance. Checking in an already checked-in member is a
// no-op that reports AlreadyCheckedIn.
func (s *AttendanceService) CheckIn(ctx context.Context, eventID, memberID string) (*model.CheckInResult, error) {
	if err := requireIDs(eventID, memberID); err != nil {
		return nil, err
	}

	var out *model.CheckInResult
	err := s.store.WithEventLock(ctx, eventID, func(ctx context.Context, tx repository.EventTx) error {
		reg, err := registrationFor(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if reg.CheckedIn() {
			out = &model.CheckInResult{Registration: reg, AlreadyCheckedIn: true, Message: "Already checked in."}
			return nil
		}
		if tx.Event().Finalized() {
			return repository.ErrAlreadyFinalized
		}
		if reg.Status != model.StatusRegistered {
			return fmt.Errorf("registration is %q: %w", reg.Status, repository.ErrNotRegistered)
		}

		now := s.now()
		reg.CheckInTime = &now
		reg.Status = model.StatusAttended
		// showing up supersedes a pending cancellation request
		reg.CancellationStatus = model.CancellationNone
		reg.UpdatedAt = now
		if err := tx.UpdateRegistration(ctx, reg); err != nil {
			return err
		}
		out = &model.CheckInResult{Registration: reg, Message: "Check-in successful."}
		return nil
	})
	if err != nil {
		return nil, s.surface("check in participant", eventID, memberID, err)
	}
	if out.AlreadyCheckedIn {
		s.logger.Debug("repeated check-in ignored", zap.String("event_id", eventID), zap.String("member_id", memberID))
		return out, nil
	}

	s.logger.Info("participant checked in", zap.String("event_id", eventID), zap.String("member_id", memberID))
	s.publish(ctx, notify.Message{
		Type:     notify.AttendanceCheckedIn,
		EventID:  eventID,
		MemberID: memberID,
		Status:   string(out.Registration.Status),
	})
	return out, nil
}

// SelfCheckIn checks the calling member in from a scanned QR code. The scan
// must contain the event id.
func (s *AttendanceService) SelfCheckIn(ctx context.Context, eventID, memberID, scanned string) (*model.CheckInResult, error) {
	if !checkin.Matches(scanned, eventID) {
		return nil, repository.ErrInvalidScan
	}
	return s.CheckIn(ctx, eventID, memberID)
}

// Finalize runs the one-time post-event sweep: Registered members without a
// check-in become Absent and their absence streak grows, members who checked
// in have their streak reset. The event's finalized_at guards re-runs; a
// failed sweep commits nothing and may simply be run again.
func (s *AttendanceService) Finalize(ctx context.Context, eventID string) (*model.FinalizeSummary, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, invalid("event id is required")
	}

	var summary *model.FinalizeSummary
	err := s.store.WithEventLock(ctx, eventID, func(ctx context.Context, tx repository.EventTx) error {
		now := s.now()
		event := tx.Event()
		if event.Finalized() {
			return repository.ErrAlreadyFinalized
		}
		if now.Before(event.DateStart) {
			return fmt.Errorf("event starts at %s: %w", event.DateStart.Format(time.RFC3339), repository.ErrInvalidTransition)
		}

		regs, err := tx.Registrations(ctx)
		if err != nil {
			return err
		}

		var absent, attended []string
		for i := range regs {
			reg := &regs[i]
			switch {
			case reg.CheckedIn():
				attended = append(attended, reg.MemberID)
				if reg.Status == model.StatusRegistered {
					reg.Status = model.StatusAttended
					reg.UpdatedAt = now
					if err := tx.UpdateRegistration(ctx, reg); err != nil {
						return err
					}
				}
			case reg.Status == model.StatusRegistered:
				absent = append(absent, reg.MemberID)
				reg.Status = model.StatusAbsent
				// an undecided request does not excuse the absence
				reg.CancellationStatus = model.CancellationNone
				reg.UpdatedAt = now
				if err := tx.UpdateRegistration(ctx, reg); err != nil {
					return err
				}
			}
		}

		streaks, err := tx.IncrementAbsences(ctx, absent)
		if err != nil {
			return err
		}
		if err := tx.ResetAbsences(ctx, attended); err != nil {
			return err
		}
		if err := tx.MarkFinalized(ctx, now); err != nil {
			return err
		}

		sanctioned := 0
		for _, n := range streaks {
			if s.policy.Sanctioned(n) {
				sanctioned++
			}
		}
		summary = &model.FinalizeSummary{
			EventID:     eventID,
			Absent:      len(absent),
			Attended:    len(attended),
			Sanctioned:  sanctioned,
			FinalizedAt: now,
			Message: fmt.Sprintf("%d participant(s) marked absent and sanctioned, %d attended, %d now under sanction.",
				len(absent), len(attended), sanctioned),
		}
		return nil
	})
	if err != nil {
		return nil, s.surface("finalize event attendance", eventID, "", err)
	}

	s.logger.Info("event attendance finalized",
		zap.String("event_id", eventID),
		zap.Int("absent", summary.Absent),
		zap.Int("attended", summary.Attended),
		zap.Int("sanctioned", summary.Sanctioned))
	s.publish(ctx, notify.Message{
		Type:    notify.EventFinalized,
		EventID: eventID,
		Detail:  summary.Message,
	})
	return summary, nil
}
