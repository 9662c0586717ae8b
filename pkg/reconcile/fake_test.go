package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/bizora/pkg/billing"
	"github.com/tendant/bizora/pkg/domain"
)

type memState struct {
	events      map[string]bool
	regs        map[uuid.UUID]domain.Registration
	orgs        map[uuid.UUID]domain.Organization
	profiles    map[string]domain.Profile
	memberships []domain.Membership
	subs        map[uuid.UUID]domain.Subscription
	subEventAt  map[uuid.UUID]time.Time
}

func (s *memState) clone() *memState {
	c := &memState{
		events:      make(map[string]bool, len(s.events)),
		regs:        make(map[uuid.UUID]domain.Registration, len(s.regs)),
		orgs:        make(map[uuid.UUID]domain.Organization, len(s.orgs)),
		profiles:    make(map[string]domain.Profile, len(s.profiles)),
		memberships: append([]domain.Membership(nil), s.memberships...),
		subs:        make(map[uuid.UUID]domain.Subscription, len(s.subs)),
		subEventAt:  make(map[uuid.UUID]time.Time, len(s.subEventAt)),
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.regs {
		c.regs[k] = v
	}
	for k, v := range s.orgs {
		c.orgs[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.subs {
		c.subs[k] = v
	}
	for k, v := range s.subEventAt {
		c.subEventAt[k] = v
	}
	return c
}

// memStore serializes transactions and discards a transaction's writes
// when fn fails.
type memStore struct {
	mu      sync.Mutex
	state   *memState
	failOn  string
	commits int
}

func newMemStore() *memStore {
	return &memStore{state: (&memState{}).clone()}
}

func (m *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memTx{s: work, failOn: m.failOn}); err != nil {
		return err
	}
	m.state = work
	m.commits++
	return nil
}

func (m *memStore) addRegistration(reg domain.Registration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.regs[reg.ID] = reg
}

func (m *memStore) orgs() []domain.Organization {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Organization, 0, len(m.state.orgs))
	for _, o := range m.state.orgs {
		out = append(out, o)
	}
	return out
}

func (m *memStore) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

var errInjected = errors.New("injected failure")

type memTx struct {
	s      *memState
	failOn string
}

func (t *memTx) fail(op string) error {
	if t.failOn == op {
		return errInjected
	}
	return nil
}

func (t *memTx) RecordEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	if t.s.events[eventID] {
		return false, nil
	}
	t.s.events[eventID] = true
	return true, nil
}

func (t *memTx) LockRegistration(ctx context.Context, id uuid.UUID) (*domain.Registration, error) {
	reg, ok := t.s.regs[id]
	if !ok {
		return nil, domain.ErrRegistrationNotFound
	}
	return &reg, nil
}

func (t *memTx) MarkRegistrationConverted(ctx context.Context, id, orgID uuid.UUID, customerID, subscriptionID string) error {
	reg, ok := t.s.regs[id]
	if !ok {
		return domain.ErrRegistrationNotFound
	}
	reg.Status = domain.RegistrationStatusConverted
	reg.OrganizationID = &orgID
	reg.StripeCustomerID = &customerID
	reg.StripeSubscriptionID = &subscriptionID
	t.s.regs[id] = reg
	return nil
}

func (t *memTx) GetOrganization(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	org, ok := t.s.orgs[id]
	if !ok {
		return nil, domain.ErrOrganizationNotFound
	}
	return &org, nil
}

func (t *memTx) GetOrganizationBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Organization, error) {
	for _, o := range t.s.orgs {
		if o.StripeSubscriptionID != nil && *o.StripeSubscriptionID == subscriptionID {
			return &o, nil
		}
	}
	return nil, domain.ErrOrganizationNotFound
}

func (t *memTx) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	if err := t.fail("CreateOrganization"); err != nil {
		return err
	}
	if org.StripeSubscriptionID != nil {
		if _, err := t.GetOrganizationBySubscriptionID(ctx, *org.StripeSubscriptionID); err == nil {
			return errors.New("duplicate subscription id")
		}
	}
	t.s.orgs[org.ID] = *org
	return nil
}

func (t *memTx) UpdateOrganizationStatus(ctx context.Context, orgID uuid.UUID, status domain.OrganizationStatus) error {
	org, ok := t.s.orgs[orgID]
	if !ok {
		return domain.ErrOrganizationNotFound
	}
	org.Status = status
	t.s.orgs[orgID] = org
	return nil
}

func (t *memTx) UpdateOrganizationPlan(ctx context.Context, orgID uuid.UUID, plan domain.Plan) error {
	if err := t.fail("UpdateOrganizationPlan"); err != nil {
		return err
	}
	org, ok := t.s.orgs[orgID]
	if !ok {
		return domain.ErrOrganizationNotFound
	}
	org.Plan = plan
	org.SeatLimit = domain.SeatLimitForPlan(plan)
	t.s.orgs[orgID] = org
	return nil
}

func (t *memTx) FindOrCreateProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	email := strings.ToLower(p.Email)
	if existing, ok := t.s.profiles[email]; ok {
		return &existing, nil
	}
	created := *p
	created.ID = uuid.New()
	created.Email = email
	t.s.profiles[email] = created
	return &created, nil
}

func (t *memTx) CreateMembership(ctx context.Context, m *domain.Membership) error {
	if err := t.fail("CreateMembership"); err != nil {
		return err
	}
	for _, existing := range t.s.memberships {
		if existing.OrganizationID == m.OrganizationID && existing.ProfileID == m.ProfileID {
			return domain.ErrMembershipExists
		}
	}
	t.s.memberships = append(t.s.memberships, *m)
	return nil
}

func (t *memTx) ListAdminEmails(ctx context.Context, orgID uuid.UUID) ([]string, error) {
	var emails []string
	for _, m := range t.s.memberships {
		if m.OrganizationID != orgID || !m.IsAdmin() {
			continue
		}
		for _, p := range t.s.profiles {
			if p.ID == m.ProfileID {
				emails = append(emails, p.Email)
			}
		}
	}
	return emails, nil
}

func (t *memTx) UpsertSubscription(ctx context.Context, sub *domain.Subscription, eventAt time.Time) (bool, error) {
	existing, ok := t.s.subs[sub.OrganizationID]
	if ok && t.s.subEventAt[sub.OrganizationID].After(eventAt) {
		return false, nil
	}
	next := *sub
	if next.Plan == "" {
		next.Plan = domain.PlanStart
		if ok {
			next.Plan = existing.Plan
		}
	}
	t.s.subs[sub.OrganizationID] = next
	t.s.subEventAt[sub.OrganizationID] = eventAt
	return true, nil
}

func (t *memTx) GetSubscriptionByStripeID(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	for _, s := range t.s.subs {
		if s.StripeSubscriptionID == subscriptionID {
			return &s, nil
		}
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (t *memTx) FindOrganizationIDForSubscription(ctx context.Context, subscriptionID string) (uuid.UUID, bool, error) {
	if s, err := t.GetSubscriptionByStripeID(ctx, subscriptionID); err == nil {
		return s.OrganizationID, true, nil
	}
	if o, err := t.GetOrganizationBySubscriptionID(ctx, subscriptionID); err == nil {
		return o.ID, true, nil
	}
	return uuid.Nil, false, nil
}

type fakeProvider struct {
	mu    sync.Mutex
	subs  map[string]*billing.Subscription
	err   error
	calls int
}

func (f *fakeProvider) GetSubscription(ctx context.Context, id string) (*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	sub, ok := f.subs[id]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	return sub, nil
}

type sentNotice struct {
	to      []string
	orgName string
}

type fakeNotifier struct {
	err  error
	sent []sentNotice
}

func (f *fakeNotifier) TrialEnding(ctx context.Context, to []string, organizationName string, trialEnd *time.Time) error {
	f.sent = append(f.sent, sentNotice{to: to, orgName: organizationName})
	return f.err
}
