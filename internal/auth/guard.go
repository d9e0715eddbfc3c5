package auth

import (
	"context"
	"sort"
	"time"

	"github.com/spec-kit/event-admin/internal/domain"
)

// RevocationChecker answers revocation questions. Implementations must not
// return store errors; they apply their own degradation policy.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) bool
	SubjectRevokedAt(ctx context.Context, kind domain.ActorKind, subject string) (time.Time, bool)
}

// Authenticator resolves a bearer token into an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Identity, error)
}

// Guard authenticates access tokens of a single actor kind.
type Guard struct {
	signer    *Signer
	store     RevocationChecker
	validator *Validator
}

// NewGuard builds a guard for the validator's actor kind.
func NewGuard(signer *Signer, store RevocationChecker, validator *Validator) *Guard {
	return &Guard{signer: signer, store: store, validator: validator}
}

// Kind returns the actor kind accepted by the guard.
func (g *Guard) Kind() domain.ActorKind {
	return g.validator.Kind()
}

// Authenticate runs verify, revocation and actor validation in order and
// stops at the first failure.
func (g *Guard) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	return g.authenticate(ctx, token, true)
}

func (g *Guard) authenticate(ctx context.Context, token string, checkRevoked bool) (*domain.Identity, error) {
	payload, err := g.signer.Verify(token)
	if err != nil {
		return nil, err
	}
	if checkRevoked && g.store.IsRevoked(ctx, token) {
		return nil, ErrRevokedToken
	}
	if payload.Kind == g.validator.Kind() && subjectRevoked(ctx, g.store, payload) {
		return nil, ErrRevokedToken
	}
	return g.validator.Validate(ctx, payload, domain.TokenTypeAccess)
}

// subjectRevoked reports whether the payload was issued at or before the
// subject's "revoke everything" cutoff.
func subjectRevoked(ctx context.Context, store RevocationChecker, p *Payload) bool {
	cutoff, ok := store.SubjectRevokedAt(ctx, p.Kind, p.Subject)
	if !ok {
		return false
	}
	return !p.IssuedAt.After(cutoff)
}

// CompositeGuard accepts a token of any of several actor kinds.
type CompositeGuard struct {
	store  RevocationChecker
	guards []*Guard
}

// guardPriority orders kinds from most to least privileged. The first guard
// that accepts a token decides which kind-specific logic runs downstream.
var guardPriority = map[domain.ActorKind]int{
	domain.ActorKindStaff:    0,
	domain.ActorKindMinister: 1,
	domain.ActorKindGuest:    2,
}

// AnyOf builds a composite guard. Guards are tried staff, then minister, then
// guest, whatever order they are passed in.
func AnyOf(store RevocationChecker, guards ...*Guard) *CompositeGuard {
	ordered := make([]*Guard, 0, len(guards))
	for _, g := range guards {
		if g != nil {
			ordered = append(ordered, g)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return guardPriority[ordered[i].Kind()] < guardPriority[ordered[j].Kind()]
	})
	return &CompositeGuard{store: store, guards: ordered}
}

// Kinds returns the accepted kinds in the order they are tried.
func (c *CompositeGuard) Kinds() []domain.ActorKind {
	kinds := make([]domain.ActorKind, 0, len(c.guards))
	for _, g := range c.guards {
		kinds = append(kinds, g.Kind())
	}
	return kinds
}

// Authenticate requires a token, checks revocation once, then tries each
// guard in priority order. Individual failures collapse into ErrInvalidToken.
func (c *CompositeGuard) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if c.store.IsRevoked(ctx, token) {
		return nil, ErrRevokedToken
	}

	for _, g := range c.guards {
		identity, err := g.authenticate(ctx, token, false)
		if err == nil {
			return identity, nil
		}
		if !IsAuthenticationError(err) {
			return nil, err
		}
	}
	return nil, ErrInvalidToken
}
