package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/event-admin/internal/domain"
	"github.com/spec-kit/event-admin/internal/events"
)

// Revoker is the subset of the revocation store used by session lifecycle
// operations. Like RevocationChecker, it never surfaces store errors.
type Revoker interface {
	RevocationChecker
	Revoke(ctx context.Context, token string, ttl time.Duration)
	Claim(ctx context.Context, token string, ttl time.Duration) bool
	RevokeSubject(ctx context.Context, kind domain.ActorKind, subject string, at time.Time, ttl time.Duration)
	// Healthy reports whether answers come from the store itself rather
	// than from its failure policy.
	Healthy() bool
}

// SessionsConfig wires Sessions.
type SessionsConfig struct {
	Signer     *Signer
	Issuer     *Issuer
	Store      Revoker
	Validators []*Validator
	Events     events.Dispatcher
	Logger     *zap.Logger

	// RevokeAllOnReplay revokes every token of a subject when a rotated
	// refresh token is presented again.
	RevokeAllOnReplay bool
}

// Sessions implements refresh rotation and logout across all actor kinds.
type Sessions struct {
	signer            *Signer
	issuer            *Issuer
	store             Revoker
	validators        map[domain.ActorKind]*Validator
	events            events.Dispatcher
	logger            *zap.Logger
	revokeAllOnReplay bool
}

// NewSessions builds the session service.
func NewSessions(cfg SessionsConfig) *Sessions {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validators := make(map[domain.ActorKind]*Validator, len(cfg.Validators))
	for _, v := range cfg.Validators {
		validators[v.Kind()] = v
	}
	return &Sessions{
		signer:            cfg.Signer,
		issuer:            cfg.Issuer,
		store:             cfg.Store,
		validators:        validators,
		events:            cfg.Events,
		logger:            logger,
		revokeAllOnReplay: cfg.RevokeAllOnReplay,
	}
}

// Issue signs a fresh pair for an already authenticated identity.
func (s *Sessions) Issue(identity *domain.Identity) (*domain.TokenPair, error) {
	if identity == nil {
		return nil, ErrInvalidToken
	}
	return s.issuer.IssuePair(identity.ID, identity.Kind, identity.Role)
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed: only one of any number of concurrent calls with the same token
// gets a new pair, and later calls fail with ErrRevokedToken.
func (s *Sessions) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, *domain.Identity, error) {
	if refreshToken == "" {
		return nil, nil, ErrMissingToken
	}
	if s.store.IsRevoked(ctx, refreshToken) {
		s.rejectConsumed(ctx, refreshToken)
		return nil, nil, ErrRevokedToken
	}

	payload, err := s.signer.Verify(refreshToken)
	if err != nil {
		return nil, nil, err
	}
	validator, ok := s.validators[payload.Kind]
	if !ok {
		return nil, nil, ErrWrongActorKind
	}
	if subjectRevoked(ctx, s.store, payload) {
		return nil, nil, ErrRevokedToken
	}
	identity, err := validator.Validate(ctx, payload, domain.TokenTypeRefresh)
	if err != nil {
		return nil, nil, err
	}

	// Claim is the atomic step; losing it means another rotation already won.
	if !s.store.Claim(ctx, refreshToken, payload.Remaining(s.signer.Now())) {
		s.rejectConsumed(ctx, refreshToken)
		return nil, nil, ErrRevokedToken
	}

	pair, err := s.issuer.IssuePair(identity.ID, identity.Kind, identity.Role)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.EventRefreshRotated, identity.Kind, identity.ID, nil)
	return pair, identity, nil
}

// Logout revokes the given tokens. It never fails: revocation is best effort
// and the client discards its tokens either way. The logged_out event is only
// published for a token carrying a valid signature.
func (s *Sessions) Logout(ctx context.Context, accessToken, refreshToken string) {
	if accessToken != "" {
		ttl := s.issuer.AccessTTL()
		if p, err := Decode(accessToken); err == nil {
			ttl = p.Remaining(s.signer.Now())
		}
		s.store.Revoke(ctx, accessToken, ttl)
	}
	if refreshToken != "" {
		s.store.Revoke(ctx, refreshToken, s.issuer.RefreshTTL())
	}

	var actor events.Actor
	for _, token := range []string{accessToken, refreshToken} {
		if token == "" {
			continue
		}
		if p, err := s.signer.VerifySignature(token); err == nil {
			actor = events.Actor{Kind: p.Kind, ID: p.Subject}
			break
		}
	}
	if actor.ID != "" {
		s.publish(ctx, events.EventLoggedOut, actor.Kind, actor.ID, events.LoggedOutPayload{RefreshRevoked: refreshToken != ""})
	}
}

// RevokeAll invalidates every token issued to the identity up to now.
func (s *Sessions) RevokeAll(ctx context.Context, identity *domain.Identity, reason string) {
	if identity == nil {
		return
	}
	s.store.RevokeSubject(ctx, identity.Kind, identity.ID, s.signer.Now(), s.issuer.RefreshTTL())
	s.publish(ctx, events.EventSessionsRevoked, identity.Kind, identity.ID, events.SessionsRevokedPayload{Reason: reason})
}

// rejectConsumed runs replay handling only when the store answered itself;
// a fail-closed answer during an outage is a plain rejection.
func (s *Sessions) rejectConsumed(ctx context.Context, token string) {
	if !s.store.Healthy() {
		s.logger.Debug("refresh rejected while revocation store is degraded")
		return
	}
	s.replayDetected(ctx, token)
}

// replayDetected handles a refresh token presented after it was consumed.
// Only genuinely signed tokens can trigger the subject-wide revocation.
func (s *Sessions) replayDetected(ctx context.Context, token string) {
	payload, err := s.signer.Verify(token)
	if err != nil || payload.Type != domain.TokenTypeRefresh {
		return
	}

	s.logger.Warn("refresh token replay detected",
		zap.String("kind", string(payload.Kind)),
		zap.String("subject", payload.Subject),
		zap.Bool("revoke_all", s.revokeAllOnReplay))

	if s.revokeAllOnReplay {
		s.store.RevokeSubject(ctx, payload.Kind, payload.Subject, s.signer.Now(), s.issuer.RefreshTTL())
	}
	s.publish(ctx, events.EventRefreshReplayDetected, payload.Kind, payload.Subject, events.RefreshReplayPayload{SessionsRevoked: s.revokeAllOnReplay})
}

func (s *Sessions) publish(ctx context.Context, eventType events.EventType, kind domain.ActorKind, id string, payload interface{}) {
	if s.events == nil {
		return
	}
	event := events.New(eventType, events.Actor{Kind: kind, ID: id}, s.signer.Now(), payload)
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish auth event", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}
