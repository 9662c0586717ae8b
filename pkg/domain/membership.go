package domain

import (
	"time"

	"github.com/google/uuid"
)

// MembershipStatus represents the state of a profile's membership.
type MembershipStatus string

const (
	MembershipStatusInvited   MembershipStatus = "invited"
	MembershipStatusActive    MembershipStatus = "active"
	MembershipStatusSuspended MembershipStatus = "suspended"
)

// Role is the permission level of a membership.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
	RoleExternal Role = "external"
	RoleReadOnly Role = "read_only"
)

// Membership joins a profile to an organization. There is at most one
// membership per (organization, profile) pair.
type Membership struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	ProfileID      uuid.UUID
	Role           Role
	Status         MembershipStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsActive returns true if the membership is active.
func (m *Membership) IsActive() bool {
	return m.Status == MembershipStatusActive
}

// IsAdmin returns true for an active admin membership.
func (m *Membership) IsAdmin() bool {
	return m.IsActive() && m.Role == RoleAdmin
}
