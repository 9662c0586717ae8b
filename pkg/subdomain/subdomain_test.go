package subdomain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/bizora/pkg/domain"
)

// memStore emulates the unique constraint on organizations.subdomain.
type memStore struct {
	mu       sync.Mutex
	owners   map[string]uuid.UUID
	orgs     map[uuid.UUID]*domain.Organization
	lookups  int
	ownerErr error
}

func newMemStore(orgs ...*domain.Organization) *memStore {
	s := &memStore{owners: map[string]uuid.UUID{}, orgs: map[uuid.UUID]*domain.Organization{}}
	for _, o := range orgs {
		s.orgs[o.ID] = o
		if o.Subdomain != nil {
			s.owners[*o.Subdomain] = o.ID
		}
	}
	return s
}

func (s *memStore) SubdomainOwner(ctx context.Context, sub string) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.ownerErr != nil {
		return uuid.Nil, false, s.ownerErr
	}
	id, ok := s.owners[sub]
	return id, ok, nil
}

func (s *memStore) ClaimSubdomain(ctx context.Context, orgID uuid.UUID, sub string) (*domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[orgID]
	if !ok {
		return nil, domain.ErrOrganizationNotFound
	}
	if owner, taken := s.owners[sub]; taken && owner != orgID {
		return nil, domain.ErrSubdomainTaken
	}
	if org.Subdomain != nil && org.SetupComplete {
		return nil, domain.ErrSubdomainLocked
	}
	if org.Subdomain != nil {
		delete(s.owners, *org.Subdomain)
	}
	s.owners[sub] = orgID
	org.Subdomain = &sub
	return org, nil
}

type staticAdmins map[uuid.UUID]uuid.UUID // org -> admin profile

func (a staticAdmins) IsAdmin(ctx context.Context, orgID, profileID uuid.UUID) (bool, error) {
	return a[orgID] == profileID, nil
}

type fakeTagger struct {
	err   error
	calls []string
}

func (f *fakeTagger) SetCustomerSubdomain(ctx context.Context, customerID, sub string) error {
	f.calls = append(f.calls, customerID+"="+sub)
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newOrg() *domain.Organization {
	return &domain.Organization{ID: uuid.New(), Name: "Acme"}
}

func TestValidFormat(t *testing.T) {
	tests := []struct {
		candidate string
		want      bool
	}{
		{"acme", true},
		{"a1b", true},
		{"acme-bv", true},
		{"ab", false},
		{"-acme", false},
		{"acme-", false},
		{"ac_me", false},
		{"Acme", false},
		{"acme.nl", false},
		{strings.Repeat("a", 32), true},
		{strings.Repeat("a", 33), false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidFormat(tt.candidate); got != tt.want {
			t.Errorf("ValidFormat(%q) = %v, want %v", tt.candidate, got, tt.want)
		}
	}
}

func TestCheckAvailability_InvalidFormatSkipsStorage(t *testing.T) {
	store := newMemStore()
	r := NewRegistry(store, staticAdmins{}, nil, testLogger())

	for _, candidate := range []string{"ab", "-x-", "has space", "under_score", strings.Repeat("z", 40), "é-tje"} {
		got, err := r.CheckAvailability(context.Background(), candidate)
		require.NoError(t, err)
		assert.False(t, got.Available, candidate)
		assert.Equal(t, ReasonInvalidFormat, got.Reason, candidate)
	}
	assert.Zero(t, store.lookups)
}

func TestCheckAvailability_ReservedSkipsStorage(t *testing.T) {
	store := newMemStore()
	r := NewRegistry(store, staticAdmins{}, nil, testLogger())

	for word := range reserved {
		if !ValidFormat(word) {
			continue
		}
		got, err := r.CheckAvailability(context.Background(), word)
		require.NoError(t, err)
		assert.False(t, got.Available, word)
		assert.Equal(t, ReasonReserved, got.Reason, word)
	}
	assert.Zero(t, store.lookups)
}

func TestCheckAvailability(t *testing.T) {
	taken := "acme"
	org := newOrg()
	org.Subdomain = &taken
	r := NewRegistry(newMemStore(org), staticAdmins{}, nil, testLogger())

	got, err := r.CheckAvailability(context.Background(), "  ACME ")
	require.NoError(t, err)
	assert.Equal(t, Availability{Candidate: "acme", Reason: ReasonTaken}, got)

	got, err = r.CheckAvailability(context.Background(), "globex")
	require.NoError(t, err)
	assert.True(t, got.Available)
	assert.Empty(t, got.Reason)
}

func TestCheckAvailability_StorageError(t *testing.T) {
	store := newMemStore()
	store.ownerErr = errors.New("connection refused")
	r := NewRegistry(store, staticAdmins{}, nil, testLogger())

	_, err := r.CheckAvailability(context.Background(), "globex")
	require.Error(t, err)
}

func TestClaim(t *testing.T) {
	admin := uuid.New()
	outsider := uuid.New()

	tests := []struct {
		name      string
		profile   uuid.UUID
		candidate string
		wantErr   error
	}{
		{name: "admin claims", profile: admin, candidate: "Acme"},
		{name: "invalid format", profile: admin, candidate: "a", wantErr: domain.ErrInvalidSubdomain},
		{name: "reserved", profile: admin, candidate: "www", wantErr: domain.ErrReservedSubdomain},
		{name: "non admin", profile: outsider, candidate: "acme", wantErr: domain.ErrForbidden},
		{name: "taken by other org", profile: admin, candidate: "globex", wantErr: domain.ErrSubdomainTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org := newOrg()
			globexSub := "globex"
			globex := newOrg()
			globex.Subdomain = &globexSub
			r := NewRegistry(newMemStore(org, globex), staticAdmins{org.ID: admin}, nil, testLogger())

			res, err := r.Claim(context.Background(), org.ID, tt.profile, tt.candidate)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, org.Subdomain)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "acme", res.Subdomain)
			require.NotNil(t, org.Subdomain)
			assert.Equal(t, "acme", *org.Subdomain)
		})
	}
}

func TestClaim_SameOrganizationIsIdempotent(t *testing.T) {
	admin := uuid.New()
	sub := "acme"
	org := newOrg()
	org.Subdomain = &sub
	r := NewRegistry(newMemStore(org), staticAdmins{org.ID: admin}, nil, testLogger())

	res, err := r.Claim(context.Background(), org.ID, admin, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", res.Subdomain)
}

func TestClaim_LockedAfterSetup(t *testing.T) {
	admin := uuid.New()
	sub := "acme"
	org := newOrg()
	org.Subdomain = &sub
	org.SetupComplete = true
	tagger := &fakeTagger{}
	r := NewRegistry(newMemStore(org), staticAdmins{org.ID: admin}, tagger, testLogger())

	_, err := r.Claim(context.Background(), org.ID, admin, "acme-renamed")
	require.ErrorIs(t, err, domain.ErrSubdomainLocked)
	assert.Equal(t, "acme", *org.Subdomain)
	assert.Empty(t, tagger.calls)

	// Re-claiming the current value stays a no-op.
	res, err := r.Claim(context.Background(), org.ID, admin, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", res.Subdomain)

	// Before setup completes the admin may still change their mind.
	org.SetupComplete = false
	res, err = r.Claim(context.Background(), org.ID, admin, "acme-renamed")
	require.NoError(t, err)
	assert.Equal(t, "acme-renamed", res.Subdomain)
}

func TestClaim_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	admin1, admin2 := uuid.New(), uuid.New()
	org1, org2 := newOrg(), newOrg()
	store := newMemStore(org1, org2)
	r := NewRegistry(store, staticAdmins{org1.ID: admin1, org2.ID: admin2}, nil, testLogger())

	for i := 0; i < 50; i++ {
		org1.Subdomain, org2.Subdomain = nil, nil
		store.owners = map[string]uuid.UUID{}

		var wg sync.WaitGroup
		errs := make([]error, 2)
		claims := []struct{ org, profile uuid.UUID }{{org1.ID, admin1}, {org2.ID, admin2}}
		for i, c := range claims {
			wg.Add(1)
			go func(i int, org, profile uuid.UUID) {
				defer wg.Done()
				_, errs[i] = r.Claim(context.Background(), org, profile, "race")
			}(i, c.org, c.profile)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			require.ErrorIs(t, err, domain.ErrSubdomainTaken)
		}
		require.Equal(t, 1, wins)
	}
}

func TestClaim_MetadataSync(t *testing.T) {
	admin := uuid.New()
	customer := "cus_123"

	t.Run("synced", func(t *testing.T) {
		org := newOrg()
		org.StripeCustomerID = &customer
		tagger := &fakeTagger{}
		r := NewRegistry(newMemStore(org), staticAdmins{org.ID: admin}, tagger, testLogger())

		res, err := r.Claim(context.Background(), org.ID, admin, "acme")
		require.NoError(t, err)
		assert.Empty(t, res.Warning)
		assert.Equal(t, []string{"cus_123=acme"}, tagger.calls)
	})

	t.Run("failure is a warning", func(t *testing.T) {
		org := newOrg()
		org.StripeCustomerID = &customer
		tagger := &fakeTagger{err: errors.New("stripe down")}
		r := NewRegistry(newMemStore(org), staticAdmins{org.ID: admin}, tagger, testLogger())

		res, err := r.Claim(context.Background(), org.ID, admin, "acme")
		require.NoError(t, err)
		assert.Equal(t, WarningMetadataSyncFailed, res.Warning)
		assert.Equal(t, "acme", *org.Subdomain)
	})

	t.Run("no customer", func(t *testing.T) {
		org := newOrg()
		tagger := &fakeTagger{}
		r := NewRegistry(newMemStore(org), staticAdmins{org.ID: admin}, tagger, testLogger())

		_, err := r.Claim(context.Background(), org.ID, admin, "acme")
		require.NoError(t, err)
		assert.Empty(t, tagger.calls)
	})
}
