// Package reconcile applies payment provider events to local tenant and
// subscription records.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/bizora/pkg/billing"
	"github.com/tendant/bizora/pkg/domain"
	"github.com/tendant/bizora/pkg/registration"
)

// Outcome describes what handling an event did.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeNoOrganization Outcome = "no_organization"
	OutcomeStale          Outcome = "stale"
	OutcomeIgnored        Outcome = "ignored"
)

// ErrCheckoutWithoutEmail is returned for a completed checkout that names
// no payer and no registration email. Nothing is written, so the provider
// redelivers the event.
var ErrCheckoutWithoutEmail = errors.New("checkout has no email for the organization admin")

// Tx is the storage available while applying one event. All calls share
// one transaction.
type Tx interface {
	RecordEvent(ctx context.Context, eventID, eventType string) (bool, error)
	LockRegistration(ctx context.Context, id uuid.UUID) (*domain.Registration, error)
	MarkRegistrationConverted(ctx context.Context, id, orgID uuid.UUID, customerID, subscriptionID string) error
	GetOrganization(ctx context.Context, id uuid.UUID) (*domain.Organization, error)
	GetOrganizationBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Organization, error)
	CreateOrganization(ctx context.Context, org *domain.Organization) error
	UpdateOrganizationStatus(ctx context.Context, orgID uuid.UUID, status domain.OrganizationStatus) error
	UpdateOrganizationPlan(ctx context.Context, orgID uuid.UUID, plan domain.Plan) error
	FindOrCreateProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
	CreateMembership(ctx context.Context, m *domain.Membership) error
	ListAdminEmails(ctx context.Context, orgID uuid.UUID) ([]string, error)
	UpsertSubscription(ctx context.Context, sub *domain.Subscription, eventAt time.Time) (bool, error)
	GetSubscriptionByStripeID(ctx context.Context, subscriptionID string) (*domain.Subscription, error)
	FindOrganizationIDForSubscription(ctx context.Context, subscriptionID string) (uuid.UUID, bool, error)
}

// Store runs fn in a transaction that commits only if fn returns nil.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// SubscriptionFetcher reads the current subscription from the provider.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*billing.Subscription, error)
}

// Notifier tells organization admins that their trial is about to end.
type Notifier interface {
	TrialEnding(ctx context.Context, to []string, organizationName string, trialEnd *time.Time) error
}

// Reconciler applies provider events. Every event is applied at most once:
// its id is recorded in the same transaction as its effects.
type Reconciler struct {
	store    Store
	provider SubscriptionFetcher
	notifier Notifier
	logger   *slog.Logger
}

// New creates a reconciler. notifier may be nil.
func New(store Store, provider SubscriptionFetcher, notifier Notifier, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, provider: provider, notifier: notifier, logger: logger}
}

type trialNotice struct {
	to       []string
	orgName  string
	trialEnd *time.Time
}

// Handle applies ev. A returned error means the core mutation did not
// happen and the provider should redeliver.
func (r *Reconciler) Handle(ctx context.Context, ev *billing.Event) (Outcome, error) {
	logger := r.logger.With("event_id", ev.ID, "event_type", ev.Type)

	sub, err := r.subscriptionFor(ctx, ev)
	if err != nil {
		logger.Error("failed to load subscription for event", "error", err)
		return "", err
	}

	var (
		outcome Outcome
		notice  *trialNotice
	)
	err = r.store.InTx(ctx, func(tx Tx) error {
		notice = nil

		first, err := tx.RecordEvent(ctx, ev.ID, ev.Type)
		if err != nil {
			return err
		}
		if !first {
			outcome = OutcomeDuplicate
			return nil
		}

		if ev.Type == billing.EventCheckoutCompleted {
			outcome, err = r.provision(ctx, tx, ev, sub, logger)
			return err
		}

		outcome, notice, err = r.apply(ctx, tx, ev, sub, logger)
		return err
	})
	if err != nil {
		logger.Error("failed to apply event", "error", err)
		return "", err
	}

	if notice != nil && r.notifier != nil {
		if err := r.notifier.TrialEnding(ctx, notice.to, notice.orgName, notice.trialEnd); err != nil {
			logger.Warn("failed to send trial ending notice", "error", err)
		}
	}

	logger.Info("event reconciled", "outcome", outcome)
	return outcome, nil
}

// subscriptionFor returns the subscription state an event acts on. Checkout
// and invoice events only reference the subscription, so it is fetched
// from the provider.
func (r *Reconciler) subscriptionFor(ctx context.Context, ev *billing.Event) (*billing.Subscription, error) {
	switch {
	case ev.Subscription != nil:
		return ev.Subscription, nil
	case ev.Checkout != nil && ev.Checkout.SubscriptionID != "":
		return r.provider.GetSubscription(ctx, ev.Checkout.SubscriptionID)
	case ev.Invoice != nil && ev.Invoice.SubscriptionID != "":
		return r.provider.GetSubscription(ctx, ev.Invoice.SubscriptionID)
	}
	return nil, nil
}

func (r *Reconciler) apply(ctx context.Context, tx Tx, ev *billing.Event, sub *billing.Subscription, logger *slog.Logger) (Outcome, *trialNotice, error) {
	action := Transition(ev.Type, sub)
	if action.Locate == LocateNone {
		return OutcomeIgnored, nil, nil
	}

	orgID, found, err := r.locate(ctx, tx, action.Locate, sub.ID)
	if err != nil {
		return "", nil, err
	}
	if !found {
		logger.Info("no organization for subscription yet", "subscription_id", sub.ID)
		return OutcomeNoOrganization, nil, nil
	}

	if action.UpsertMirror {
		applied, err := tx.UpsertSubscription(ctx, mirror(orgID, sub, sub.Plan), ev.Created)
		if err != nil {
			return "", nil, fmt.Errorf("failed to upsert subscription mirror: %w", err)
		}
		if !applied {
			logger.Info("skipping stale event", "subscription_id", sub.ID, "org_id", orgID)
			return OutcomeStale, nil, nil
		}
		if err := r.syncPlan(ctx, tx, orgID, sub.Plan, logger); err != nil {
			return "", nil, err
		}
	}

	if action.SetStatus != "" {
		if err := tx.UpdateOrganizationStatus(ctx, orgID, action.SetStatus); err != nil {
			return "", nil, fmt.Errorf("failed to update organization status: %w", err)
		}
	}

	var notice *trialNotice
	if action.NotifyAdmins {
		notice, err = r.trialNotice(ctx, tx, orgID, sub)
		if err != nil {
			logger.Warn("failed to prepare trial ending notice", "org_id", orgID, "error", err)
			notice = nil
		}
	}

	return OutcomeApplied, notice, nil
}

// syncPlan carries a plan change on the subscription over to the
// organization and its seat limit.
func (r *Reconciler) syncPlan(ctx context.Context, tx Tx, orgID uuid.UUID, plan domain.Plan, logger *slog.Logger) error {
	if plan == "" {
		return nil
	}
	org, err := tx.GetOrganization(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to load organization: %w", err)
	}
	if org.Plan == plan {
		return nil
	}
	if err := tx.UpdateOrganizationPlan(ctx, orgID, plan); err != nil {
		return fmt.Errorf("failed to update organization plan: %w", err)
	}
	logger.Info("organization plan changed", "org_id", orgID, "from", org.Plan, "to", plan)
	return nil
}

func (r *Reconciler) locate(ctx context.Context, tx Tx, mode Locate, subscriptionID string) (uuid.UUID, bool, error) {
	if subscriptionID == "" {
		return uuid.Nil, false, nil
	}
	switch mode {
	case LocateMirror:
		m, err := tx.GetSubscriptionByStripeID(ctx, subscriptionID)
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			return uuid.Nil, false, nil
		}
		if err != nil {
			return uuid.Nil, false, err
		}
		return m.OrganizationID, true, nil
	case LocateMirrorOrOrganization:
		return tx.FindOrganizationIDForSubscription(ctx, subscriptionID)
	}
	return uuid.Nil, false, nil
}

func (r *Reconciler) trialNotice(ctx context.Context, tx Tx, orgID uuid.UUID, sub *billing.Subscription) (*trialNotice, error) {
	if r.notifier == nil {
		return nil, nil
	}
	org, err := tx.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	emails, err := tx.ListAdminEmails(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, nil
	}
	return &trialNotice{to: emails, orgName: org.Name, trialEnd: sub.TrialEnd}, nil
}

// provision creates the organization, admin profile and membership for a
// completed checkout. A registration that is already converted, or a
// subscription that already belongs to an organization, is a duplicate.
func (r *Reconciler) provision(ctx context.Context, tx Tx, ev *billing.Event, sub *billing.Subscription, logger *slog.Logger) (Outcome, error) {
	co := ev.Checkout
	if co == nil {
		return OutcomeIgnored, nil
	}

	var reg *domain.Registration
	if co.RegistrationID != "" {
		id, err := uuid.Parse(co.RegistrationID)
		if err != nil {
			logger.Warn("checkout carries malformed registration id", "registration_id", co.RegistrationID)
		} else {
			reg, err = tx.LockRegistration(ctx, id)
			if errors.Is(err, domain.ErrRegistrationNotFound) {
				logger.Warn("registration not found for checkout", "registration_id", id)
				reg = nil
			} else if err != nil {
				return "", fmt.Errorf("failed to lock registration: %w", err)
			}
		}
	}
	if reg != nil && reg.IsConverted() {
		return OutcomeDuplicate, nil
	}

	if co.SubscriptionID != "" {
		existing, err := tx.GetOrganizationBySubscriptionID(ctx, co.SubscriptionID)
		switch {
		case err == nil:
			if reg != nil {
				if err := tx.MarkRegistrationConverted(ctx, reg.ID, existing.ID, co.CustomerID, co.SubscriptionID); err != nil {
					return "", fmt.Errorf("failed to link registration: %w", err)
				}
			}
			return OutcomeDuplicate, nil
		case !errors.Is(err, domain.ErrOrganizationNotFound):
			return "", fmt.Errorf("failed to look up organization by subscription: %w", err)
		}
	}

	prov := registration.DefaultProvisioning()
	email := co.Email
	plan := domain.PlanStart
	if co.Plan != "" {
		plan = domain.ParsePlan(co.Plan)
	}
	if reg != nil {
		if reg.Email != "" {
			email = reg.Email
		}
		if co.Plan == "" {
			plan = domain.ParsePlan(string(reg.Plan))
		}
		app, err := registration.DecodeApplication(reg.Payload)
		if err != nil {
			logger.Warn("stored registration payload is invalid; using defaults",
				"registration_id", reg.ID,
				"error", err,
			)
		} else {
			prov = app.Provisioning()
		}
	}

	if email == "" {
		return "", ErrCheckoutWithoutEmail
	}

	now := time.Now()
	org := &domain.Organization{
		ID:                   uuid.New(),
		Name:                 prov.OrganizationName,
		Plan:                 plan,
		Status:               domain.OrganizationStatusTrialing,
		SeatLimit:            domain.SeatLimitForPlan(plan),
		StripeCustomerID:     optional(co.CustomerID),
		StripeSubscriptionID: optional(co.SubscriptionID),
		Locale:               "nl-NL",
		Currency:             prov.Currency,
		Timezone:             prov.Timezone,
		FiscalYearStartMonth: prov.FiscalYearStartMonth,
		AccountingBasis:      prov.AccountingBasis,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if sub != nil {
		org.TrialEnd = sub.TrialEnd
	}
	if err := tx.CreateOrganization(ctx, org); err != nil {
		return "", fmt.Errorf("failed to create organization: %w", err)
	}

	profile, err := tx.FindOrCreateProfile(ctx, &domain.Profile{
		Email:     email,
		FirstName: prov.FirstName,
		LastName:  prov.LastName,
		Phone:     prov.Phone,
		Locale:    prov.ProfileLocale,
	})
	if err != nil {
		return "", fmt.Errorf("failed to find or create profile: %w", err)
	}
	if err := tx.CreateMembership(ctx, &domain.Membership{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		ProfileID:      profile.ID,
		Role:           domain.RoleAdmin,
		Status:         domain.MembershipStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		return "", fmt.Errorf("failed to create admin membership: %w", err)
	}

	if reg != nil {
		if err := tx.MarkRegistrationConverted(ctx, reg.ID, org.ID, co.CustomerID, co.SubscriptionID); err != nil {
			return "", fmt.Errorf("failed to mark registration converted: %w", err)
		}
	}

	if sub != nil {
		if _, err := tx.UpsertSubscription(ctx, mirror(org.ID, sub, plan), ev.Created); err != nil {
			return "", fmt.Errorf("failed to upsert subscription mirror: %w", err)
		}
	}

	logger.Info("organization provisioned",
		"org_id", org.ID,
		"plan", plan,
		"subscription_id", co.SubscriptionID,
	)
	return OutcomeApplied, nil
}

func mirror(orgID uuid.UUID, sub *billing.Subscription, plan domain.Plan) *domain.Subscription {
	return &domain.Subscription{
		OrganizationID:       orgID,
		StripeCustomerID:     sub.CustomerID,
		StripeSubscriptionID: sub.ID,
		Plan:                 plan,
		Status:               billing.MapStatus(sub.Status),
		CurrentPeriodStart:   sub.CurrentPeriodStart,
		CurrentPeriodEnd:     sub.CurrentPeriodEnd,
		TrialEnd:             sub.TrialEnd,
		CancelAt:             sub.CancelAt,
		CanceledAt:           sub.CanceledAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
