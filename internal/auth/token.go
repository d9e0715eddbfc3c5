package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/event-admin/internal/domain"
)

// Payload holds the logical fields of a signed token.
type Payload struct {
	ID        string
	Subject   string
	Kind      domain.ActorKind
	Type      domain.TokenType
	Role      domain.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Remaining returns the lifetime left at now, never negative.
func (p *Payload) Remaining(now time.Time) time.Duration {
	if p == nil || p.ExpiresAt.IsZero() {
		return 0
	}
	left := p.ExpiresAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Claims describes JWT payload.
type Claims struct {
	Kind domain.ActorKind `json:"kind"`
	Type domain.TokenType `json:"type"`
	Role domain.Role      `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Signer creates and verifies HMAC-signed tokens. It holds no mutable state
// and is safe for concurrent use.
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// SignerOption customizes a Signer.
type SignerOption func(*Signer)

// WithClock injects the time source used for iat/exp and expiry checks.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIssuer sets the iss claim written to and required from tokens.
func WithIssuer(issuer string) SignerOption {
	return func(s *Signer) {
		s.issuer = issuer
	}
}

// NewSigner builds a signer for the shared secret.
func NewSigner(secret string, opts ...SignerOption) *Signer {
	s := &Signer{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the signer's current time.
func (s *Signer) Now() time.Time {
	return s.now()
}

// Sign builds and signs a token for the payload valid for ttl.
// IssuedAt, ExpiresAt and ID are filled in by the signer.
func (s *Signer) Sign(p Payload, ttl time.Duration) (string, *Payload, error) {
	if p.Subject == "" || !p.Kind.Valid() || !p.Type.Valid() {
		return "", nil, ErrMalformedToken
	}
	if ttl <= 0 {
		return "", nil, errors.New("token ttl must be positive")
	}

	issuedAt := s.now().Truncate(time.Second)
	p.IssuedAt = issuedAt
	p.ExpiresAt = issuedAt.Add(ttl)
	p.ID = uuid.NewString()

	claims := &Claims{
		Kind: p.Kind,
		Type: p.Type,
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        p.ID,
			Issuer:    s.issuer,
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(p.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return tokenString, &p, nil
}

// Verify checks signature, expiry and structure, returning the payload.
func (s *Signer) Verify(tokenStr string) (*Payload, error) {
	if tokenStr == "" {
		return nil, ErrMalformedToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}
	return claims.payload()
}

// VerifySignature checks the signature and issuer but not expiry, so tokens
// that already expired still identify their actor.
func (s *Signer) VerifySignature(tokenStr string) (*Payload, error) {
	if tokenStr == "" {
		return nil, ErrMalformedToken
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrMalformedToken
	}
	return claims.payload()
}

// Decode extracts the payload without checking the signature or expiry.
// Only use it where the token is about to be revoked, never to authenticate.
func Decode(tokenStr string) (*Payload, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, ErrMalformedToken
	}
	return claims.payload()
}

func (c *Claims) payload() (*Payload, error) {
	if c.Subject == "" || !c.Kind.Valid() || !c.Type.Valid() || c.ExpiresAt == nil {
		return nil, ErrMalformedToken
	}
	p := &Payload{
		ID:        c.ID,
		Subject:   c.Subject,
		Kind:      c.Kind,
		Type:      c.Type,
		Role:      c.Role,
		ExpiresAt: c.ExpiresAt.Time,
	}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time
	}
	return p, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature
	default:
		return ErrMalformedToken
	}
}
