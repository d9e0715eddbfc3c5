package auth

import (
	"time"

	"github.com/spec-kit/event-admin/internal/domain"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Issuer builds access+refresh pairs for any actor kind.
type Issuer struct {
	signer     *Signer
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer builds an issuer; non-positive TTLs fall back to the product defaults.
func NewIssuer(signer *Signer, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Issuer{signer: signer, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// AccessTTL returns the access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the refresh token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssuePair signs a fresh access and refresh token for the actor. Minister
// and guest tokens always carry their implicit role.
func (i *Issuer) IssuePair(actorID string, kind domain.ActorKind, role domain.Role) (*domain.TokenPair, error) {
	if implicit := domain.ImplicitRole(kind); implicit != "" {
		role = implicit
	}

	base := Payload{Subject: actorID, Kind: kind, Role: role}

	access := base
	access.Type = domain.TokenTypeAccess
	accessToken, accessPayload, err := i.signer.Sign(access, i.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh := base
	refresh.Type = domain.TokenTypeRefresh
	refreshToken, refreshPayload, err := i.signer.Sign(refresh, i.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessPayload.ExpiresAt,
		RefreshExpiresAt: refreshPayload.ExpiresAt,
	}, nil
}
