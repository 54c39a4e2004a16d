package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/model"
)

// MemoryStore is an in-process Store used for local runs and tests.
// A single mutex serializes every operation; WithEventLock stages its writes
// and applies them only when fn succeeds.
type MemoryStore struct {
	mu      sync.Mutex
	events  map[string]model.Event
	members map[string]model.Member
	regs    map[string]map[string]model.Registration // event id -> member id
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:  make(map[string]model.Event),
		members: make(map[string]model.Member),
		regs:    make(map[string]map[string]model.Registration),
	}
}

func sortedRegistrations(byMember map[string]model.Registration) []model.Registration {
	regs := make([]model.Registration, 0, len(byMember))
	for _, r := range byMember {
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].RegisteredAt.Equal(regs[j].RegisteredAt) {
			return regs[i].ID < regs[j].ID
		}
		return regs[i].RegisteredAt.Before(regs[j].RegisteredAt)
	})
	return regs
}

// CreateEvent stores e, replacing any event with the same id.
func (s *MemoryStore) CreateEvent(ctx context.Context, e *model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = *e
	return nil
}

// ListEvents returns all events, soonest first.
func (s *MemoryStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].DateStart.Before(events[j].DateStart)
	})
	return events, nil
}

// GetEvent returns a copy of the event or ErrNotFound.
func (s *MemoryStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

// SetEventStatus opens or closes an event.
func (s *MemoryStore) SetEventStatus(ctx context.Context, id string, status model.EventStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = status
	s.events[id] = e
	return nil
}

// ListRegistrations returns the event's registrations in FIFO order.
func (s *MemoryStore) ListRegistrations(ctx context.Context, eventID string) ([]model.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedRegistrations(s.regs[eventID]), nil
}

// CountByStatus returns the number of registrations per status.
func (s *MemoryStore) CountByStatus(ctx context.Context, eventID string) (map[model.RegistrationStatus]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[model.RegistrationStatus]int)
	for _, r := range s.regs[eventID] {
		counts[r.Status]++
	}
	return counts, nil
}

// GetMember returns a copy of the member or ErrNotFound.
func (s *MemoryStore) GetMember(ctx context.Context, id string) (*model.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

// UpsertMember keeps an existing member's consecutive_absences.
func (s *MemoryStore) UpsertMember(ctx context.Context, m *model.Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := *m
	if cur, ok := s.members[m.ID]; ok {
		next.ConsecutiveAbsences = cur.ConsecutiveAbsences
	}
	s.members[m.ID] = next
	return nil
}

// SetAbsences overwrites a member's absence counter. It exists for seeding
// fixtures; the service never calls it.
func (s *MemoryStore) SetAbsences(id string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.members[id]
	m.ID = id
	m.ConsecutiveAbsences = n
	s.members[id] = m
}

// WithEventLock runs fn under the store mutex. Writes made through tx are
// staged and applied only if fn returns nil.
func (s *MemoryStore) WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, tx EventTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return ErrNotFound
	}

	regs := make(map[string]model.Registration, len(s.regs[eventID]))
	for k, v := range s.regs[eventID] {
		regs[k] = v
	}
	tx := &memEventTx{
		store:   s,
		event:   &e,
		regs:    regs,
		members: make(map[string]model.Member),
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	// commit
	s.events[eventID] = *tx.event
	s.regs[eventID] = tx.regs
	for id, m := range tx.members {
		s.members[id] = m
	}
	return nil
}

type memEventTx struct {
	store   *MemoryStore
	event   *model.Event
	regs    map[string]model.Registration
	members map[string]model.Member // staged writes
}

func (t *memEventTx) Event() *model.Event { return t.event }

func (t *memEventTx) member(id string) (model.Member, bool) {
	if m, ok := t.members[id]; ok {
		return m, true
	}
	m, ok := t.store.members[id]
	return m, ok
}

func (t *memEventTx) Member(ctx context.Context, id string) (*model.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, ok := t.member(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (t *memEventTx) Registration(ctx context.Context, memberID string) (*model.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := t.regs[memberID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (t *memEventTx) Registrations(ctx context.Context) ([]model.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sortedRegistrations(t.regs), nil
}

func (t *memEventTx) CountStatus(ctx context.Context, status model.RegistrationStatus) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	for _, r := range t.regs {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}

func (t *memEventTx) InsertRegistration(ctx context.Context, r *model.Registration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.regs[r.MemberID]; ok {
		return persistErr("insert registration", ErrAlreadyRegistered)
	}
	t.regs[r.MemberID] = *r
	return nil
}

func (t *memEventTx) UpdateRegistration(ctx context.Context, r *model.Registration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cur, ok := t.regs[r.MemberID]
	if !ok || cur.ID != r.ID {
		return ErrNotFound
	}
	next := *r
	if cur.CheckInTime != nil {
		next.CheckInTime = cur.CheckInTime
	}
	t.regs[r.MemberID] = next
	return nil
}

func (t *memEventTx) IncrementAbsences(ctx context.Context, memberIDs []string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(memberIDs))
	for _, id := range memberIDs {
		m, ok := t.member(id)
		if !ok {
			continue
		}
		m.ConsecutiveAbsences++
		m.UpdatedAt = time.Now().UTC()
		t.members[id] = m
		counts[id] = m.ConsecutiveAbsences
	}
	return counts, nil
}

func (t *memEventTx) ResetAbsences(ctx context.Context, memberIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, id := range memberIDs {
		m, ok := t.member(id)
		if !ok || m.ConsecutiveAbsences == 0 {
			continue
		}
		m.ConsecutiveAbsences = 0
		m.UpdatedAt = time.Now().UTC()
		t.members[id] = m
	}
	return nil
}

func (t *memEventTx) MarkFinalized(ctx context.Context, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.event.FinalizedAt != nil {
		return ErrAlreadyFinalized
	}
	t.event.FinalizedAt = &at
	return nil
}
