package auth

import (
	"context"
	"fmt"

	"github.com/spec-kit/event-admin/internal/domain"
)

// ActorLoader resolves the current identity of an actor. It returns (nil, nil)
// when the actor does not exist.
type ActorLoader interface {
	LoadActorByID(ctx context.Context, kind domain.ActorKind, id string) (*domain.Identity, error)
}

// ActorLoaderFunc adapts a function into an ActorLoader.
type ActorLoaderFunc func(ctx context.Context, kind domain.ActorKind, id string) (*domain.Identity, error)

// LoadActorByID satisfies ActorLoader.
func (f ActorLoaderFunc) LoadActorByID(ctx context.Context, kind domain.ActorKind, id string) (*domain.Identity, error) {
	return f(ctx, kind, id)
}

// Validator checks a verified payload against the current state of one actor kind.
type Validator struct {
	kind          domain.ActorKind
	loader        ActorLoader
	requireActive bool
}

// NewStaffValidator validates staff tokens; inactive staff are rejected.
func NewStaffValidator(loader ActorLoader) *Validator {
	return &Validator{kind: domain.ActorKindStaff, loader: loader, requireActive: true}
}

// NewMinisterValidator validates minister tokens; inactive ministers are rejected.
func NewMinisterValidator(loader ActorLoader) *Validator {
	return &Validator{kind: domain.ActorKindMinister, loader: loader, requireActive: true}
}

// NewGuestValidator validates guest tokens. Guests carry no active flag.
func NewGuestValidator(loader ActorLoader) *Validator {
	return &Validator{kind: domain.ActorKindGuest, loader: loader}
}

// Kind returns the actor kind handled by the validator.
func (v *Validator) Kind() domain.ActorKind {
	return v.kind
}

// Validate resolves the actor behind p. The returned identity is a copy the
// caller may keep.
func (v *Validator) Validate(ctx context.Context, p *Payload, expected domain.TokenType) (*domain.Identity, error) {
	if p == nil {
		return nil, ErrMalformedToken
	}
	if p.Type != expected {
		return nil, ErrWrongTokenType
	}
	if p.Kind != v.kind {
		return nil, ErrWrongActorKind
	}

	identity, err := v.loader.LoadActorByID(ctx, v.kind, p.Subject)
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", v.kind, p.Subject, err)
	}
	if identity == nil {
		return nil, ErrActorNotFound
	}
	if v.requireActive && !identity.Active {
		return nil, ErrActorInactive
	}

	resolved := *identity
	resolved.Kind = v.kind
	if implicit := domain.ImplicitRole(v.kind); implicit != "" {
		resolved.Role = implicit
	}
	return &resolved, nil
}
