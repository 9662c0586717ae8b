package reconcile

import (
	"github.com/tendant/bizora/pkg/billing"
	"github.com/tendant/bizora/pkg/domain"
)

// Locate says how an event finds the organization it belongs to.
type Locate int

const (
	// LocateNone means the event never touches an organization.
	LocateNone Locate = iota
	// LocateMirror requires an existing subscription mirror row.
	LocateMirror
	// LocateMirrorOrOrganization falls back to the billing reference
	// stored on the organization.
	LocateMirrorOrOrganization
)

// Action is the effect of one event on an organization that has been
// located. The zero Action does nothing.
type Action struct {
	Locate       Locate
	UpsertMirror bool
	SetStatus    domain.OrganizationStatus
	NotifyAdmins bool
}

// Transition maps a subscription-level event and the subscription state it
// carries to its effect. Checkout completion is handled by provisioning and
// is not part of this table.
func Transition(eventType string, sub *billing.Subscription) Action {
	if sub == nil {
		return Action{}
	}

	switch eventType {
	case billing.EventSubscriptionTrialWillEnd:
		return Action{Locate: LocateMirror, UpsertMirror: true, NotifyAdmins: true}

	case billing.EventSubscriptionUpdated:
		a := Action{Locate: LocateMirrorOrOrganization, UpsertMirror: true}
		if billing.MapStatus(sub.Status) == domain.SubscriptionStatusActive {
			a.SetStatus = domain.OrganizationStatusActive
		}
		return a

	case billing.EventSubscriptionDeleted:
		return Action{Locate: LocateMirrorOrOrganization, UpsertMirror: true, SetStatus: domain.OrganizationStatusSuspended}

	case billing.EventInvoicePaymentSucceeded:
		return Action{Locate: LocateMirrorOrOrganization, UpsertMirror: true, SetStatus: domain.OrganizationStatusActive}

	case billing.EventInvoicePaymentFailed:
		// Organization status stays; gating reads the mirror's past_due.
		return Action{Locate: LocateMirrorOrOrganization, UpsertMirror: true}
	}

	return Action{}
}
