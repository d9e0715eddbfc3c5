package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/event-admin/internal/domain"
)

const (
	defaultKeyPrefix       = "auth:revoked:"
	defaultMinTTL          = time.Hour
	defaultConnectAttempts = 5
	defaultBackoffBase     = 200 * time.Millisecond
	defaultBackoffMax      = 2 * time.Second
	cleanupScanCount       = 200
	revokedMarker          = "1"
)

// Client is the subset of the go-redis API the store relies on.
type Client interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Options tunes the store.
type Options struct {
	KeyPrefix       string
	MinTTL          time.Duration
	ConnectAttempts int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	OpTimeout       time.Duration
	// FailClosed reports configured-but-unreachable stores as "revoked".
	// The default (false) keeps the service available when the store is down.
	FailClosed bool
}

func (o Options) withDefaults() Options {
	if o.KeyPrefix == "" {
		o.KeyPrefix = defaultKeyPrefix
	}
	if o.MinTTL <= 0 {
		o.MinTTL = defaultMinTTL
	}
	if o.ConnectAttempts <= 0 {
		o.ConnectAttempts = defaultConnectAttempts
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = defaultBackoffBase
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = defaultBackoffMax
	}
	if o.BackoffMax < o.BackoffBase {
		o.BackoffMax = o.BackoffBase
	}
	return o
}

// Store records revoked tokens in Redis until they would have expired anyway.
// It never returns store errors to callers: reads fail open (or closed, when
// configured) and writes are logged and dropped.
type Store struct {
	client Client
	opts   Options
	logger *zap.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	onFail func(op string)

	mu        sync.Mutex
	state     State
	probes    int
	nextProbe time.Time
	listeners []Listener
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used for degraded-mode reporting.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock injects the time source used for probe rationing.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSleeper replaces the backoff sleep used by Connect.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Store) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithListener registers a transition listener at construction time.
func WithListener(l Listener) Option {
	return func(s *Store) {
		if l != nil {
			s.listeners = append(s.listeners, l)
		}
	}
}

// WithDegradedHook is called every time an operation is answered without the store.
func WithDegradedHook(hook func(op string)) Option {
	return func(s *Store) {
		s.onFail = hook
	}
}

// New builds a store. A nil client yields an unconfigured, permissive store.
func New(client Client, opts Options, options ...Option) *Store {
	s := &Store{
		client: client,
		opts:   opts.withDefaults(),
		logger: zap.NewNop(),
		now:    time.Now,
		sleep:  sleepContext,
		state:  StateConnecting,
	}
	if client == nil {
		s.state = StateUnconfigured
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// OnTransition registers a listener for subsequent state changes.
func (s *Store) OnTransition(l Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// State returns the current availability state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Healthy reports whether the store is connected, so that answers reflect
// stored entries rather than the failure policy.
func (s *Store) Healthy() bool {
	return s.State() == StateConnected
}

// MinTTL returns the floor applied to every revocation entry.
func (s *Store) MinTTL() time.Duration {
	return s.opts.MinTTL
}

// Connect performs the bounded startup connection attempts. Exhausting the
// budget disables the store for the process lifetime; the returned error is
// informational and callers are expected to continue without the store.
func (s *Store) Connect(ctx context.Context) error {
	if s.State() != StateConnecting {
		if s.State() == StateUnconfigured {
			s.logger.Warn("revocation store not configured; token revocation disabled")
		}
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.ConnectAttempts; attempt++ {
		err := s.ping(ctx)
		if err == nil {
			s.transition(StateConnecting, StateConnected, nil)
			s.logger.Info("revocation store connected", zap.Int("attempt", attempt))
			return nil
		}
		lastErr = err
		s.logger.Warn("revocation store connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.opts.ConnectAttempts),
			zap.Error(err))

		if attempt == s.opts.ConnectAttempts {
			break
		}
		if err := s.sleep(ctx, s.backoff(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	s.transition(StateConnecting, StatePermanentlyDisabled, lastErr)
	s.logger.Error("revocation store permanently disabled; continuing without token revocation",
		zap.Error(lastErr))
	return fmt.Errorf("revocation store disabled: %w", lastErr)
}

// Revoke marks token as revoked for max(ttl, MinTTL). Re-revoking is a no-op.
// Store failures are logged and swallowed so logout and rotation never fail.
func (s *Store) Revoke(ctx context.Context, token string, ttl time.Duration) {
	if token == "" {
		return
	}
	if !s.usable(ctx) {
		s.degraded("revoke")
		return
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.SetNX(opCtx, s.tokenKey(token), revokedMarker, s.effectiveTTL(ttl)).Err(); err != nil {
		s.markFailure("revoke", err)
	}
}

// Claim atomically revokes token and reports whether this caller inserted the
// entry. Concurrent claims of the same token yield exactly one true while the
// store is reachable. Without a store the answer follows the failure policy.
func (s *Store) Claim(ctx context.Context, token string, ttl time.Duration) bool {
	if token == "" {
		return false
	}
	if !s.usable(ctx) {
		s.degraded("claim")
		return !s.failClosed()
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	inserted, err := s.client.SetNX(opCtx, s.tokenKey(token), revokedMarker, s.effectiveTTL(ttl)).Result()
	if err != nil {
		s.markFailure("claim", err)
		return !s.failClosed()
	}
	return inserted
}

// IsRevoked reports whether token was revoked.
func (s *Store) IsRevoked(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	if !s.usable(ctx) {
		s.degraded("is_revoked")
		return s.failClosed()
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := s.client.Exists(opCtx, s.tokenKey(token)).Result()
	if err != nil {
		s.markFailure("is_revoked", err)
		// Fail open: an unreachable store must not lock every actor out.
		// REVOCATION_FAIL_CLOSED flips this for deployments that prefer security.
		return s.failClosed()
	}
	return n > 0
}

// RevokeSubject invalidates every token of the subject issued at or before at.
func (s *Store) RevokeSubject(ctx context.Context, kind domain.ActorKind, subject string, at time.Time, ttl time.Duration) {
	if subject == "" {
		return
	}
	if !s.usable(ctx) {
		s.degraded("revoke_subject")
		return
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	value := strconv.FormatInt(at.Unix(), 10)
	if err := s.client.Set(opCtx, s.subjectKey(kind, subject), value, s.effectiveTTL(ttl)).Err(); err != nil {
		s.markFailure("revoke_subject", err)
	}
}

// SubjectRevokedAt returns the subject's revocation cutoff, if any.
func (s *Store) SubjectRevokedAt(ctx context.Context, kind domain.ActorKind, subject string) (time.Time, bool) {
	if subject == "" || !s.usable(ctx) {
		return time.Time{}, false
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	raw, err := s.client.Get(opCtx, s.subjectKey(kind, subject)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false
	}
	if err != nil {
		s.markFailure("subject_revoked_at", err)
		return time.Time{}, false
	}

	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn("ignoring malformed subject cutoff", zap.String("kind", string(kind)), zap.Error(err))
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}

// Cleanup removes entries that lost their expiry and reports how many were
// deleted. Expiry is enforced by the store itself; this is hygiene only.
func (s *Store) Cleanup(ctx context.Context) (int, error) {
	if !s.usable(ctx) {
		return 0, nil
	}

	removed := 0
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.opts.KeyPrefix+"*", cleanupScanCount).Result()
		if err != nil {
			s.markFailure("cleanup", err)
			return removed, err
		}

		for _, key := range keys {
			ttl, err := s.client.TTL(ctx, key).Result()
			if err != nil {
				s.markFailure("cleanup", err)
				return removed, err
			}
			if ttl != noExpiry {
				continue
			}
			n, err := s.client.Del(ctx, key).Result()
			if err != nil {
				s.markFailure("cleanup", err)
				return removed, err
			}
			removed += int(n)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	s.logger.Info("revocation store cleanup finished", zap.Int("removed", removed))
	return removed, nil
}

// go-redis reports a key without expiry as a raw -1 duration.
const noExpiry = time.Duration(-1)

// usable reports whether the store should be consulted, spending at most one
// reconnect probe per backoff interval while disconnected.
func (s *Store) usable(ctx context.Context) bool {
	s.mu.Lock()
	switch s.state {
	case StateConnected:
		s.mu.Unlock()
		return true
	case StateDisconnected:
	default:
		s.mu.Unlock()
		return false
	}

	if s.probes >= s.opts.ConnectAttempts {
		t, ok := s.setStateLocked(StatePermanentlyDisabled, errors.New("reconnect budget exhausted"))
		s.mu.Unlock()
		s.notify(t, ok)
		return false
	}
	if s.now().Before(s.nextProbe) {
		s.mu.Unlock()
		return false
	}
	s.probes++
	s.nextProbe = s.now().Add(s.backoff(s.probes))
	probe := s.probes
	s.mu.Unlock()

	err := s.ping(ctx)

	s.mu.Lock()
	if s.state != StateDisconnected {
		connected := s.state == StateConnected
		s.mu.Unlock()
		return connected
	}
	if err == nil {
		s.probes = 0
		t, ok := s.setStateLocked(StateConnected, nil)
		s.mu.Unlock()
		s.notify(t, ok)
		s.logger.Info("revocation store reconnected", zap.Int("probe", probe))
		return true
	}
	var (
		t  Transition
		ok bool
	)
	if s.probes >= s.opts.ConnectAttempts {
		t, ok = s.setStateLocked(StatePermanentlyDisabled, err)
	}
	s.mu.Unlock()
	s.notify(t, ok)
	s.logger.Warn("revocation store reconnect probe failed",
		zap.Int("probe", probe),
		zap.Int("max_probes", s.opts.ConnectAttempts),
		zap.Error(err))
	return false
}

func (s *Store) markFailure(op string, err error) {
	s.logger.Warn("revocation store operation failed", zap.String("op", op), zap.Error(err))
	s.degraded(op)

	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.probes = 0
	s.nextProbe = s.now().Add(s.opts.BackoffBase)
	t, ok := s.setStateLocked(StateDisconnected, err)
	s.mu.Unlock()
	s.notify(t, ok)
}

func (s *Store) degraded(op string) {
	if s.onFail != nil {
		s.onFail(op)
	}
}

func (s *Store) failClosed() bool {
	if !s.opts.FailClosed {
		return false
	}
	return s.State() != StateUnconfigured
}

func (s *Store) transition(from, to State, err error) {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return
	}
	t, ok := s.setStateLocked(to, err)
	s.mu.Unlock()
	s.notify(t, ok)
}

func (s *Store) setStateLocked(to State, err error) (Transition, bool) {
	if !CanTransition(s.state, to) {
		return Transition{}, false
	}
	t := Transition{From: s.state, To: to, At: s.now(), Err: err}
	s.state = to
	return t, true
}

func (s *Store) notify(t Transition, ok bool) {
	if !ok {
		return
	}
	s.mu.Lock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(t)
	}
}

func (s *Store) ping(ctx context.Context) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.Ping(opCtx).Err()
}

func (s *Store) backoff(attempt int) time.Duration {
	d := s.opts.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.opts.BackoffMax {
			return s.opts.BackoffMax
		}
	}
	return d
}

func (s *Store) effectiveTTL(ttl time.Duration) time.Duration {
	if ttl < s.opts.MinTTL {
		return s.opts.MinTTL
	}
	return ttl
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.OpTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.OpTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Store) tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.opts.KeyPrefix + "token:" + hex.EncodeToString(sum[:])
}

func (s *Store) subjectKey(kind domain.ActorKind, subject string) string {
	return s.opts.KeyPrefix + "subject:" + string(kind) + ":" + subject
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
