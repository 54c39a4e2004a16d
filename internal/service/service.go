// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/model"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxQuota = 100_000

// EventService orchestrates event administration and member provisioning.
type EventService struct {
	store  repository.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(store repository.Store, logger *zap.Logger) *EventService {
	return &EventService{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), repository.ErrInvalidInput)
}

// CreateEvent validates the request and stores a new open event.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, invalid("event name is required")
	}
	if req.Quota < 0 {
		return nil, invalid("quota must be zero (unlimited) or positive")
	}
	if req.Quota > maxQuota {
		return nil, invalid("quota cannot exceed 100,000")
	}
	if req.Scope == "" {
		req.Scope = model.ScopeNational
	}
	if !req.Scope.Valid() {
		return nil, invalid("unknown scope %q", req.Scope)
	}
	if req.DateStart.IsZero() {
		return nil, invalid("date_start is required")
	}
	if req.RegistrationDeadline.IsZero() {
		req.RegistrationDeadline = req.DateStart
	}
	if req.RegistrationDeadline.After(req.DateStart) {
		return nil, invalid("registration_deadline must not be after date_start")
	}

	event := &model.Event{
		ID:                   uuid.New().String(),
		Name:                 req.Name,
		Description:          strings.TrimSpace(req.Description),
		Quota:                req.Quota,
		Scope:                req.Scope,
		Status:               model.EventOpen,
		DateStart:            req.DateStart.UTC(),
		RegistrationDeadline: req.RegistrationDeadline.UTC(),
		CreatedAt:            s.now(),
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info("event created",
		zap.String("event_id", event.ID),
		zap.Int("quota", event.Quota),
		zap.Time("date_start", event.DateStart))
	return event, nil
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.store.ListEvents(ctx)
}

// GetEvent returns a single event with its registration counts.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.EventDetail, error) {
	if id == "" {
		return nil, invalid("event id is required")
	}
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	counts, err := s.store.CountByStatus(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	return &model.EventDetail{Event: *event, Counts: counts}, nil
}

// SetEventOpen opens or closes an event for registration.
func (s *EventService) SetEventOpen(ctx context.Context, id string, open bool) error {
	status := model.EventClosed
	if open {
		status = model.EventOpen
	}
	if err := s.store.SetEventStatus(ctx, id, status); err != nil {
		return err
	}
	s.logger.Info("event status changed", zap.String("event_id", id), zap.String("status", string(status)))
	return nil
}

// ListRegistrations returns all registrations for an event.
func (s *EventService) ListRegistrations(ctx context.Context, eventID string) ([]model.Registration, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.ListRegistrations(ctx, eventID)
}

// UpsertMember provisions a member pushed by the identity service.
func (s *EventService) UpsertMember(ctx context.Context, id string, req model.UpsertMemberRequest) (*model.Member, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("member id is required")
	}
	if req.Role == "" {
		req.Role = model.RoleMember
	}
	if !req.Role.Valid() {
		return nil, invalid("unknown role %q", req.Role)
	}
	if req.ProfileCompleteness < 0 || req.ProfileCompleteness > 100 {
		return nil, invalid("profile_completeness must be within 0..100")
	}

	m := &model.Member{
		ID:                  id,
		Name:                strings.TrimSpace(req.Name),
		Role:                req.Role,
		ProfileCompleteness: req.ProfileCompleteness,
		UpdatedAt:           s.now(),
	}
	if err := s.store.UpsertMember(ctx, m); err != nil {
		return nil, fmt.Errorf("upsert member: %w", err)
	}
	return s.store.GetMember(ctx, id)
}

// GetMember returns a member by id.
func (s *EventService) GetMember(ctx context.Context, id string) (*model.Member, error) {
	return s.store.GetMember(ctx, id)
}
