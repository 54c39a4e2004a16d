// Package auth decides which roles may perform which attendance operations.
// Authentication happens upstream; this package only sees an already
// identified member.
package auth

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/model"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/repository"
)

// Capability names an operation class guarded by role.
type Capability string

const (
	CapRegister          Capability = "register"
	CapParticipate       Capability = "participate"
	CapManageEvents      Capability = "manage_events"
	CapApprove           Capability = "approve"
	CapCheckInStaff      Capability = "check_in_staff"
	CapViewRegistrations Capability = "view_registrations"
	CapManageMembers     Capability = "manage_members"
)

var grants = map[Capability][]model.Role{
	CapRegister:          {model.RoleMember, model.RoleAdmin, model.RoleSuperAdmin, model.RoleRegionalCoordinator},
	CapParticipate:       {model.RoleMember, model.RoleAdmin, model.RoleSuperAdmin, model.RoleRegionalCoordinator},
	CapManageEvents:      {model.RoleAdmin, model.RoleSuperAdmin},
	CapApprove:           {model.RoleAdmin, model.RoleSuperAdmin},
	CapCheckInStaff:      {model.RoleAdmin, model.RoleSuperAdmin, model.RoleRegionalCoordinator},
	CapViewRegistrations: {model.RoleAdmin, model.RoleSuperAdmin, model.RoleRegionalCoordinator},
	CapManageMembers:     {model.RoleSuperAdmin},
}

// Allows reports whether role holds capability c.
func Allows(role model.Role, c Capability) bool {
	for _, r := range grants[c] {
		if r == role {
			return true
		}
	}
	return false
}

// Guard applies the capability table plus the profile completeness gate
// on registration.
type Guard struct {
	MinProfileCompleteness int
}

// Check returns an error wrapping repository.ErrForbidden when m may not use c.
func (g Guard) Check(m *model.Member, c Capability) error {
	if m == nil {
		return fmt.Errorf("no caller identity: %w", repository.ErrForbidden)
	}
	if !Allows(m.Role, c) {
		return fmt.Errorf("role %q lacks %s: %w", m.Role, c, repository.ErrForbidden)
	}
	if c == CapRegister && m.ProfileCompleteness < g.MinProfileCompleteness {
		return fmt.Errorf("profile %d%% complete, %d%% required: %w",
			m.ProfileCompleteness, g.MinProfileCompleteness, repository.ErrForbidden)
	}
	return nil
}

type ctxKey struct{}

// WithMember stores the calling member in ctx.
func WithMember(ctx context.Context, m *model.Member) context.Context {
	return context.WithValue(ctx, ctxKey{}, m)
}

// MemberFrom returns the calling member stored by WithMember.
func MemberFrom(ctx context.Context) (*model.Member, bool) {
	m, ok := ctx.Value(ctxKey{}).(*model.Member)
	return m, ok && m != nil
}
