package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestMembership_IsAdmin(t *testing.T) {
	tests := []struct {
		name   string
		role   Role
		status MembershipStatus
		want   bool
	}{
		{name: "active admin", role: RoleAdmin, status: MembershipStatusActive, want: true},
		{name: "suspended admin", role: RoleAdmin, status: MembershipStatusSuspended, want: false},
		{name: "invited admin", role: RoleAdmin, status: MembershipStatusInvited, want: false},
		{name: "active manager", role: RoleManager, status: MembershipStatusActive, want: false},
		{name: "active read only", role: RoleReadOnly, status: MembershipStatusActive, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Membership{
				ID:             uuid.New(),
				OrganizationID: uuid.New(),
				ProfileID:      uuid.New(),
				Role:           tt.role,
				Status:         tt.status,
			}
			if got := m.IsAdmin(); got != tt.want {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistration_IsConverted(t *testing.T) {
	orgID := uuid.New()

	tests := []struct {
		name   string
		status RegistrationStatus
		orgID  *uuid.UUID
		want   bool
	}{
		{name: "pending", status: RegistrationStatusPreStripe, want: false},
		{name: "converted without org", status: RegistrationStatusConverted, want: false},
		{name: "converted with org", status: RegistrationStatusConverted, orgID: &orgID, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Registration{Status: tt.status, OrganizationID: tt.orgID}
			if got := r.IsConverted(); got != tt.want {
				t.Errorf("IsConverted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubscription_AllowsWrites(t *testing.T) {
	for status, want := range map[SubscriptionStatus]bool{
		SubscriptionStatusTrialing: true,
		SubscriptionStatusActive:   true,
		SubscriptionStatusPastDue:  false,
		SubscriptionStatusCanceled: false,
		SubscriptionStatusReadOnly: false,
	} {
		s := &Subscription{Status: status}
		if got := s.AllowsWrites(); got != want {
			t.Errorf("AllowsWrites() for %q = %v, want %v", status, got, want)
		}
	}
}
