package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/event-admin/internal/domain"
	"github.com/spec-kit/event-admin/internal/events"
	"github.com/spec-kit/event-admin/internal/revocation"
)

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) handle(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func subscribeAll(d events.Dispatcher) *eventLog {
	log := &eventLog{}
	for _, t := range []events.EventType{
		events.EventRefreshRotated,
		events.EventRefreshReplayDetected,
		events.EventLoggedOut,
		events.EventSessionsRevoked,
	} {
		d.Subscribe(t, log.handle)
	}
	return log
}

func newSessions(f *fixture, store Revoker, revokeAll bool) (*Sessions, *eventLog) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	log := subscribeAll(dispatcher)
	return NewSessions(SessionsConfig{
		Signer:            f.signer,
		Issuer:            f.issuer,
		Store:             store,
		Validators:        []*Validator{NewStaffValidator(f.dir), NewMinisterValidator(f.dir), NewGuestValidator(f.dir)},
		Events:            dispatcher,
		RevokeAllOnReplay: revokeAll,
	}), log
}

func newRedisStore(t *testing.T, f *fixture) (*revocation.Store, *miniredis.Miniredis) {
	t.Helper()
	return newRedisStoreWithOptions(t, f, revocation.Options{KeyPrefix: "test:revoked:", MinTTL: time.Hour, ConnectAttempts: 1})
}

func newRedisStoreWithOptions(t *testing.T, f *fixture, opts revocation.Options) (*revocation.Store, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	store := revocation.New(client, opts, revocation.WithClock(f.clock.Now))
	require.NoError(t, store.Connect(context.Background()))
	return store, m
}

func TestRefreshRotatesGuestPair(t *testing.T) {
	f := newFixture()
	store, _ := newRedisStore(t, f)
	sessions, log := newSessions(f, store, false)
	ctx := context.Background()

	original := f.pair("g1", domain.ActorKindGuest, "")

	rotated, identity, err := sessions.Refresh(ctx, original.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "g1", identity.ID)
	assert.NotEqual(t, original.RefreshToken, rotated.RefreshToken)

	assert.True(t, store.IsRevoked(ctx, original.RefreshToken))
	_, err = f.signer.Verify(rotated.AccessToken)
	assert.NoError(t, err)
	_, err = f.guests.Authenticate(ctx, rotated.AccessToken)
	assert.NoError(t, err)

	_, _, err = sessions.Refresh(ctx, original.RefreshToken)
	assert.ErrorIs(t, err, ErrRevokedToken)

	_, _, err = sessions.Refresh(ctx, rotated.RefreshToken)
	assert.NoError(t, err)

	assert.Equal(t, []events.EventType{
		events.EventRefreshRotated,
		events.EventRefreshReplayDetected,
		events.EventRefreshRotated,
	}, log.types())
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	f := newFixture()
	store, _ := newRedisStore(t, f)
	sessions, _ := newSessions(f, store, false)
	pair := f.pair("m7", domain.ActorKindMinister, "")

	var wins, revoked atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := sessions.Refresh(context.Background(), pair.RefreshToken)
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, ErrRevokedToken):
				revoked.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(11), revoked.Load())
}

func TestRefreshClaimTTLFollowsRemainingLifetime(t *testing.T) {
	f := newFixture()
	store, m := newRedisStore(t, f)
	sessions, _ := newSessions(f, store, false)
	pair := f.pair("g1", domain.ActorKindGuest, "")

	f.clock.Advance(24 * time.Hour)
	_, _, err := sessions.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	keys := m.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, 29*24*time.Hour, m.TTL(keys[0]))
}

func TestRefreshRejections(t *testing.T) {
	f := newFixture()
	sessions, _ := newSessions(f, f.store, false)
	ctx := context.Background()

	_, _, err := sessions.Refresh(ctx, "")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, _, err = sessions.Refresh(ctx, f.pair("g1", domain.ActorKindGuest, "").AccessToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	_, _, err = sessions.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrMalformedToken)

	pair := f.pair("m7", domain.ActorKindMinister, "")
	f.dir.setActive(domain.ActorKindMinister, "m7", false)
	_, _, err = sessions.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrActorInactive)
	assert.False(t, f.store.IsRevoked(ctx, pair.RefreshToken), "failed validation must not consume the token")

	expired := f.pair("g1", domain.ActorKindGuest, "")
	f.clock.Advance(DefaultRefreshTTL)
	_, _, err = sessions.Refresh(ctx, expired.RefreshToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRefreshReplayRevokesSubjectWhenEnabled(t *testing.T) {
	f := newFixture()
	sessions, log := newSessions(f, f.store, true)
	ctx := context.Background()

	stolen := f.pair("s3", domain.ActorKindStaff, domain.RoleViewer)
	current, _, err := sessions.Refresh(ctx, stolen.RefreshToken)
	require.NoError(t, err)

	_, _, err = sessions.Refresh(ctx, stolen.RefreshToken)
	assert.ErrorIs(t, err, ErrRevokedToken)

	// Same-second tokens fall under the cutoff too.
	_, err = f.staff.Authenticate(ctx, current.AccessToken)
	assert.ErrorIs(t, err, ErrRevokedToken)
	_, _, err = sessions.Refresh(ctx, current.RefreshToken)
	assert.ErrorIs(t, err, ErrRevokedToken)

	assert.Contains(t, log.types(), events.EventRefreshReplayDetected)
}

func TestRefreshReplayOfForgedTokenIsIgnored(t *testing.T) {
	f := newFixture()
	sessions, log := newSessions(f, f.store, true)
	ctx := context.Background()

	forged, _, err := NewSigner("attacker-controlled-secret-0123456789").
		Sign(Payload{Subject: "s1", Kind: domain.ActorKindStaff, Type: domain.TokenTypeRefresh}, time.Hour)
	require.NoError(t, err)

	sessions.Logout(ctx, "", forged)
	_, _, err = sessions.Refresh(ctx, forged)
	assert.ErrorIs(t, err, ErrRevokedToken)

	_, revoked := f.store.SubjectRevokedAt(ctx, domain.ActorKindStaff, "s1")
	assert.False(t, revoked)
	assert.NotContains(t, log.types(), events.EventRefreshReplayDetected)
}

func TestLogoutRevokesBothTokens(t *testing.T) {
	f := newFixture()
	sessions, log := newSessions(f, f.store, false)
	ctx := context.Background()
	pair := f.pair("g1", domain.ActorKindGuest, "")

	f.clock.Advance(5 * time.Minute)
	sessions.Logout(ctx, pair.AccessToken, pair.RefreshToken)

	ttl, ok := f.store.ttl(pair.AccessToken)
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, ttl)

	ttl, ok = f.store.ttl(pair.RefreshToken)
	require.True(t, ok)
	assert.Equal(t, DefaultRefreshTTL, ttl)

	_, err := f.guests.Authenticate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrRevokedToken)
	_, _, err = sessions.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRevokedToken)

	assert.Contains(t, log.types(), events.EventLoggedOut)
}

func TestLogoutNeverFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Undecodable tokens are revoked with the access lifetime.
	sessions, _ := newSessions(f, f.store, false)
	sessions.Logout(ctx, "garbage", "")
	ttl, ok := f.store.ttl("garbage")
	require.True(t, ok)
	assert.Equal(t, DefaultAccessTTL, ttl)

	sessions.Logout(ctx, "", "")

	// A store that has gone away must not turn logout into an error.
	store, m := newRedisStore(t, f)
	m.SetError("LOADING")
	degraded, _ := newSessions(f, store, false)
	pair := f.pair("g1", domain.ActorKindGuest, "")
	assert.NotPanics(t, func() {
		degraded.Logout(ctx, pair.AccessToken, pair.RefreshToken)
	})
}

func TestRefreshFailsOpenWhenStoreIsDown(t *testing.T) {
	f := newFixture()
	store, m := newRedisStore(t, f)
	sessions, _ := newSessions(f, store, false)
	pair := f.pair("g1", domain.ActorKindGuest, "")

	m.SetError("LOADING")
	_, _, err := sessions.Refresh(context.Background(), pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshFailClosedOutageIsNotReplay(t *testing.T) {
	f := newFixture()
	store, m := newRedisStoreWithOptions(t, f, revocation.Options{
		KeyPrefix: "test:revoked:", MinTTL: time.Hour, ConnectAttempts: 1, FailClosed: true,
	})
	sessions, log := newSessions(f, store, true)
	ctx := context.Background()
	pair := f.pair("g1", domain.ActorKindGuest, "")

	m.SetError("LOADING")
	_, _, err := sessions.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRevokedToken)
	assert.False(t, store.Healthy())
	assert.NotContains(t, log.types(), events.EventRefreshReplayDetected)

	// Once the store is back the cutoff must not exist and the token
	// rotates normally.
	m.SetError("")
	f.clock.Advance(time.Minute)
	_, revoked := store.SubjectRevokedAt(ctx, domain.ActorKindGuest, "g1")
	assert.False(t, revoked)
	_, _, err = sessions.Refresh(ctx, pair.RefreshToken)
	assert.NoError(t, err)
	assert.NotContains(t, log.types(), events.EventSessionsRevoked)
}

func TestLogoutWithForgedSignatureRevokesWithoutEvent(t *testing.T) {
	f := newFixture()
	sessions, log := newSessions(f, f.store, false)
	ctx := context.Background()

	forged, _, err := NewSigner("attacker-controlled-secret-0123456789").
		Sign(Payload{Subject: "s1", Kind: domain.ActorKindStaff, Type: domain.TokenTypeAccess, Role: domain.RoleSuperAdmin}, time.Hour)
	require.NoError(t, err)

	sessions.Logout(ctx, forged, "")

	_, ok := f.store.ttl(forged)
	assert.True(t, ok)
	assert.NotContains(t, log.types(), events.EventLoggedOut)
}

func TestLogoutOfExpiredTokenStillAttributesActor(t *testing.T) {
	f := newFixture()
	sessions, log := newSessions(f, f.store, false)
	pair := f.pair("m7", domain.ActorKindMinister, "")

	f.clock.Advance(DefaultAccessTTL + time.Minute)
	sessions.Logout(context.Background(), pair.AccessToken, "")

	log.mu.Lock()
	defer log.mu.Unlock()
	require.Len(t, log.events, 1)
	assert.Equal(t, events.EventLoggedOut, log.events[0].Type)
	assert.Equal(t, "m7", log.events[0].Actor.ID)
}

func TestRevokeAllCutsOffIssuedTokens(t *testing.T) {
	f := newFixture()
	sessions, log := newSessions(f, f.store, false)
	ctx := context.Background()
	pair := f.pair("s2", domain.ActorKindStaff, domain.RoleAdmin)
	identity := &domain.Identity{ID: "s2", Kind: domain.ActorKindStaff}

	sessions.RevokeAll(ctx, identity, "logout_all")
	_, err := f.staff.Authenticate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrRevokedToken)

	f.clock.Advance(time.Second)
	fresh, err := sessions.Issue(&domain.Identity{ID: "s2", Kind: domain.ActorKindStaff, Role: domain.RoleAdmin})
	require.NoError(t, err)
	_, err = f.staff.Authenticate(ctx, fresh.AccessToken)
	assert.NoError(t, err)

	assert.Equal(t, []events.EventType{events.EventSessionsRevoked}, log.types())
	sessions.RevokeAll(ctx, nil, "noop")
}
