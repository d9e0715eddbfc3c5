package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spec-kit/event-admin/internal/domain"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// directory is an in-memory ActorLoader.
type directory struct {
	mu     sync.Mutex
	actors map[domain.ActorKind]map[string]domain.Identity
	err    error
}

func newDirectory() *directory {
	return &directory{actors: make(map[domain.ActorKind]map[string]domain.Identity)}
}

func (d *directory) put(kind domain.ActorKind, identity domain.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.actors[kind] == nil {
		d.actors[kind] = make(map[string]domain.Identity)
	}
	identity.Kind = kind
	d.actors[kind][identity.ID] = identity
}

func (d *directory) setActive(kind domain.ActorKind, id string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	identity := d.actors[kind][id]
	identity.Active = active
	d.actors[kind][id] = identity
}

func (d *directory) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *directory) LoadActorByID(_ context.Context, kind domain.ActorKind, id string) (*domain.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	identity, ok := d.actors[kind][id]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}

// memRevoker is an in-memory Revoker without expiry.
type memRevoker struct {
	mu       sync.Mutex
	tokens   map[string]time.Duration
	subjects map[string]time.Time
}

func (m *memRevoker) Healthy() bool { return true }

func newMemRevoker() *memRevoker {
	return &memRevoker{tokens: make(map[string]time.Duration), subjects: make(map[string]time.Time)}
}

func (m *memRevoker) Revoke(_ context.Context, token string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tokens[token]; !exists {
		m.tokens[token] = ttl
	}
}

func (m *memRevoker) Claim(_ context.Context, token string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tokens[token]; exists {
		return false
	}
	m.tokens[token] = ttl
	return true
}

func (m *memRevoker) IsRevoked(_ context.Context, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.tokens[token]
	return exists
}

func (m *memRevoker) ttl(token string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ttl, ok := m.tokens[token]
	return ttl, ok
}

func (m *memRevoker) RevokeSubject(_ context.Context, kind domain.ActorKind, subject string, at time.Time, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects[string(kind)+":"+subject] = at
}

func (m *memRevoker) SubjectRevokedAt(_ context.Context, kind domain.ActorKind, subject string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.subjects[string(kind)+":"+subject]
	return at, ok
}

var errDatabaseDown = errors.New("database down")

type fixture struct {
	clock     *fakeClock
	signer    *Signer
	issuer    *Issuer
	dir       *directory
	store     *memRevoker
	staff     *Guard
	ministers *Guard
	guests    *Guard
}

func newFixture() *fixture {
	clock := newFakeClock()
	signer := NewSigner(testSecret, WithClock(clock.Now), WithIssuer("event-admin"))
	dir := newDirectory()
	store := newMemRevoker()

	dir.put(domain.ActorKindStaff, domain.Identity{ID: "s1", Email: "root@example.org", Role: domain.RoleSuperAdmin, Active: true})
	dir.put(domain.ActorKindStaff, domain.Identity{ID: "s2", Email: "admin@example.org", Role: domain.RoleAdmin, Active: true})
	dir.put(domain.ActorKindStaff, domain.Identity{ID: "s3", Email: "viewer@example.org", Role: domain.RoleViewer, Active: true})
	dir.put(domain.ActorKindMinister, domain.Identity{ID: "m7", Email: "m7@example.org", Active: true})
	dir.put(domain.ActorKindGuest, domain.Identity{ID: "g1", Email: "g1@example.org"})

	return &fixture{
		clock:     clock,
		signer:    signer,
		issuer:    NewIssuer(signer, DefaultAccessTTL, DefaultRefreshTTL),
		dir:       dir,
		store:     store,
		staff:     NewGuard(signer, store, NewStaffValidator(dir)),
		ministers: NewGuard(signer, store, NewMinisterValidator(dir)),
		guests:    NewGuard(signer, store, NewGuestValidator(dir)),
	}
}

func (f *fixture) pair(id string, kind domain.ActorKind, role domain.Role) *domain.TokenPair {
	pair, err := f.issuer.IssuePair(id, kind, role)
	if err != nil {
		panic(err)
	}
	return pair
}
