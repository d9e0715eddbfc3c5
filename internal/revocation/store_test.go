package revocation

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
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/event-admin/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
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

type recorder struct {
	mu          sync.Mutex
	transitions []Transition
}

func (r *recorder) listen(t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, 0, len(r.transitions))
	for _, t := range r.transitions {
		out = append(out, t.To)
	}
	return out
}

func testOptions() Options {
	return Options{
		KeyPrefix:       "test:revoked:",
		MinTTL:          time.Hour,
		ConnectAttempts: 3,
		BackoffBase:     time.Second,
		BackoffMax:      2 * time.Second,
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return m, client
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func newConnectedStore(t *testing.T, opts Options, extra ...Option) (*Store, *miniredis.Miniredis, *fakeClock, *recorder) {
	t.Helper()
	m, client := newRedis(t)
	clock := newFakeClock()
	rec := &recorder{}
	options := append([]Option{WithClock(clock.Now), WithSleeper(noSleep), WithListener(rec.listen)}, extra...)
	store := New(client, opts, options...)
	require.NoError(t, store.Connect(context.Background()))
	require.Equal(t, StateConnected, store.State())
	return store, m, clock, rec
}

func TestStore_UnconfiguredIsPermissiveNoop(t *testing.T) {
	ctx := context.Background()
	store := New(nil, testOptions())

	require.Equal(t, StateUnconfigured, store.State())
	require.NoError(t, store.Connect(ctx))

	store.Revoke(ctx, "token-a", time.Minute)
	assert.False(t, store.IsRevoked(ctx, "token-a"))
	assert.True(t, store.Claim(ctx, "token-a", time.Minute))
	assert.True(t, store.Claim(ctx, "token-a", time.Minute))

	removed, err := store.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Equal(t, StateUnconfigured, store.State())
}

func TestStore_UnconfiguredIgnoresFailClosed(t *testing.T) {
	opts := testOptions()
	opts.FailClosed = true
	store := New(nil, opts)

	assert.False(t, store.IsRevoked(context.Background(), "token-a"))
}

func TestStore_ConnectTransitions(t *testing.T) {
	_, _, _, rec := newConnectedStore(t, testOptions())
	assert.Equal(t, []State{StateConnected}, rec.states())
}

func TestStore_ConnectExhaustsBudget(t *testing.T) {
	m, client := newRedis(t)
	m.SetError("ERR unavailable")

	var sleeps []time.Duration
	sleeper := func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	opts := testOptions()
	opts.ConnectAttempts = 4
	rec := &recorder{}
	store := New(client, opts, WithSleeper(sleeper), WithListener(rec.listen))

	err := store.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatePermanentlyDisabled, store.State())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 2 * time.Second}, sleeps)
	assert.Equal(t, []State{StatePermanentlyDisabled}, rec.states())

	// Recovery of the backend does not resurrect a disabled store.
	m.SetError("")
	ctx := context.Background()
	store.Revoke(ctx, "token-a", time.Minute)
	assert.False(t, store.IsRevoked(ctx, "token-a"))
	assert.Equal(t, StatePermanentlyDisabled, store.State())
}

func TestStore_ConnectStopsOnCancelledContext(t *testing.T) {
	m, client := newRedis(t)
	m.SetError("ERR unavailable")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := New(client, testOptions())
	require.Error(t, store.Connect(ctx))
	assert.Equal(t, StatePermanentlyDisabled, store.State())
}

func TestStore_RevokeAppliesTTLFloor(t *testing.T) {
	ctx := context.Background()
	store, m, _, _ := newConnectedStore(t, testOptions())

	store.Revoke(ctx, "short-lived", time.Minute)
	store.Revoke(ctx, "long-lived", 48*time.Hour)

	assert.True(t, store.IsRevoked(ctx, "short-lived"))
	assert.True(t, store.IsRevoked(ctx, "long-lived"))
	assert.False(t, store.IsRevoked(ctx, "never-revoked"))

	assert.Equal(t, time.Hour, m.TTL(store.tokenKey("short-lived")))
	assert.Equal(t, 48*time.Hour, m.TTL(store.tokenKey("long-lived")))
}

func TestStore_RevokeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, m, _, _ := newConnectedStore(t, testOptions())

	store.Revoke(ctx, "token-a", 3*time.Hour)
	store.Revoke(ctx, "token-a", time.Minute)

	assert.True(t, store.IsRevoked(ctx, "token-a"))
	assert.Equal(t, 3*time.Hour, m.TTL(store.tokenKey("token-a")))
	assert.Equal(t, StateConnected, store.State())
}

func TestStore_KeysAreHashed(t *testing.T) {
	ctx := context.Background()
	store, m, _, _ := newConnectedStore(t, testOptions())

	store.Revoke(ctx, "raw.jwt.value", time.Hour)

	for _, key := range m.Keys() {
		assert.NotContains(t, key, "raw.jwt.value")
	}
}

func TestStore_EntryExpiresWithStore(t *testing.T) {
	ctx := context.Background()
	store, m, _, _ := newConnectedStore(t, testOptions())

	store.Revoke(ctx, "token-a", 2*time.Hour)
	m.FastForward(2*time.Hour - time.Second)
	assert.True(t, store.IsRevoked(ctx, "token-a"))

	m.FastForward(2 * time.Second)
	assert.False(t, store.IsRevoked(ctx, "token-a"))
}

func TestStore_ClaimIsSingleWinner(t *testing.T) {
	ctx := context.Background()
	store, _, _, _ := newConnectedStore(t, testOptions())

	const callers = 16
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.Claim(ctx, "refresh-token", time.Hour) {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.True(t, store.IsRevoked(ctx, "refresh-token"))
}

func TestStore_RuntimeErrorFailsOpen(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)

	var degraded []string
	store, m, _, rec := newConnectedStore(t, testOptions(),
		WithLogger(zap.New(core)),
		WithDegradedHook(func(op string) { degraded = append(degraded, op) }))

	store.Revoke(ctx, "token-a", time.Hour)
	m.SetError("ERR boom")

	assert.False(t, store.IsRevoked(ctx, "token-a"))
	assert.Equal(t, StateDisconnected, store.State())
	assert.Equal(t, []State{StateConnected, StateDisconnected}, rec.states())
	assert.Contains(t, degraded, "is_revoked")
	assert.Equal(t, 1, logs.FilterMessage("revocation store operation failed").Len())
}

func TestStore_RuntimeErrorFailsClosedWhenConfigured(t *testing.T) {
	ctx := context.Background()
	opts := testOptions()
	opts.FailClosed = true
	store, m, _, _ := newConnectedStore(t, opts)

	m.SetError("ERR boom")

	assert.True(t, store.IsRevoked(ctx, "never-revoked"))
	assert.False(t, store.Claim(ctx, "refresh", time.Hour))
	assert.False(t, store.Healthy())
}

func TestStore_HealthyTracksConnection(t *testing.T) {
	ctx := context.Background()
	store, m, _, _ := newConnectedStore(t, testOptions())
	assert.True(t, store.Healthy())

	store.Revoke(ctx, "token-a", time.Hour)
	assert.True(t, store.IsRevoked(ctx, "token-a"))
	assert.True(t, store.Healthy())

	m.SetError("ERR boom")
	store.IsRevoked(ctx, "token-a")
	assert.False(t, store.Healthy())
}

func TestStore_RevokeErrorIsSwallowed(t *testing.T) {
	ctx := context.Background()
	store, m, _, _ := newConnectedStore(t, testOptions())

	m.SetError("ERR boom")
	assert.NotPanics(t, func() { store.Revoke(ctx, "token-a", time.Hour) })
	assert.Equal(t, StateDisconnected, store.State())
}

func TestStore_ReconnectProbe(t *testing.T) {
	ctx := context.Background()
	store, m, clock, rec := newConnectedStore(t, testOptions())

	m.SetError("ERR boom")
	store.Revoke(ctx, "token-a", time.Hour)
	require.Equal(t, StateDisconnected, store.State())

	m.SetError("")

	// Within the backoff window the store is not consulted.
	assert.False(t, store.IsRevoked(ctx, "token-b"))
	assert.Equal(t, StateDisconnected, store.State())

	clock.Advance(time.Second)
	store.Revoke(ctx, "token-b", time.Hour)
	assert.Equal(t, StateConnected, store.State())
	assert.True(t, store.IsRevoked(ctx, "token-b"))
	assert.Equal(t, []State{StateConnected, StateDisconnected, StateConnected}, rec.states())
}

func TestStore_ReconnectBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	store, m, clock, rec := newConnectedStore(t, testOptions())

	m.SetError("ERR boom")
	store.IsRevoked(ctx, "token-a")
	require.Equal(t, StateDisconnected, store.State())

	for i := 0; i < testOptions().ConnectAttempts; i++ {
		clock.Advance(time.Minute)
		assert.False(t, store.IsRevoked(ctx, "token-a"))
	}
	assert.Equal(t, StatePermanentlyDisabled, store.State())

	m.SetError("")
	clock.Advance(time.Hour)
	store.Revoke(ctx, "token-c", time.Hour)
	assert.False(t, store.IsRevoked(ctx, "token-c"))
	assert.Equal(t, []State{StateConnected, StateDisconnected, StatePermanentlyDisabled}, rec.states())
}

func TestStore_SubjectCutoff(t *testing.T) {
	ctx := context.Background()
	store, m, _, _ := newConnectedStore(t, testOptions())

	_, found := store.SubjectRevokedAt(ctx, domain.ActorKindGuest, "g1")
	assert.False(t, found)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.RevokeSubject(ctx, domain.ActorKindGuest, "g1", at, 30*24*time.Hour)

	cutoff, found := store.SubjectRevokedAt(ctx, domain.ActorKindGuest, "g1")
	require.True(t, found)
	assert.True(t, cutoff.Equal(at))
	assert.Equal(t, 30*24*time.Hour, m.TTL(store.subjectKey(domain.ActorKindGuest, "g1")))

	_, found = store.SubjectRevokedAt(ctx, domain.ActorKindMinister, "g1")
	assert.False(t, found)
}

func TestStore_CleanupRemovesEntriesWithoutExpiry(t *testing.T) {
	ctx := context.Background()
	store, m, _, _ := newConnectedStore(t, testOptions())

	store.Revoke(ctx, "token-a", time.Hour)
	require.NoError(t, m.Set(store.tokenKey("orphan"), "1"))
	require.NoError(t, m.Set("unrelated:key", "1"))

	removed, err := store.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.True(t, store.IsRevoked(ctx, "token-a"))
	assert.False(t, store.IsRevoked(ctx, "orphan"))
	assert.True(t, m.Exists("unrelated:key"))
}

func TestStore_Backoff(t *testing.T) {
	store := New(nil, Options{BackoffBase: 100 * time.Millisecond, BackoffMax: time.Second})

	assert.Equal(t, 100*time.Millisecond, store.backoff(1))
	assert.Equal(t, 200*time.Millisecond, store.backoff(2))
	assert.Equal(t, 800*time.Millisecond, store.backoff(4))
	assert.Equal(t, time.Second, store.backoff(5))
	assert.Equal(t, time.Second, store.backoff(50))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateConnecting, StateConnected))
	assert.True(t, CanTransition(StateConnected, StateDisconnected))
	assert.True(t, CanTransition(StateDisconnected, StateConnected))
	assert.True(t, CanTransition(StateDisconnected, StatePermanentlyDisabled))
	assert.False(t, CanTransition(StatePermanentlyDisabled, StateConnected))
	assert.False(t, CanTransition(StateUnconfigured, StateConnecting))
}
