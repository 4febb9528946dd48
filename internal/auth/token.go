package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// minSecretLen is the smallest HS256 key accepted (256 bits).
const minSecretLen = 32

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Token is a signed, time-bounded proof of identity.
type Token struct {
	Value string
	Claims
}

// TokenCodec issues and verifies stateless tokens.
type TokenCodec interface {
	Issue(subject string, ttl time.Duration) (Token, error)
	Verify(raw string) (Claims, error)
}

// JWTCodec is an HS256 JWT implementation of TokenCodec.
// The key is fixed at construction, so a codec is safe for concurrent use.
type JWTCodec struct {
	key    []byte
	issuer string
	skew   time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// CodecOption customizes a JWTCodec.
type CodecOption func(*JWTCodec)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) CodecOption {
	return func(c *JWTCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithClockSkew tolerates clocks that drift by up to d. Zero means no tolerance.
func WithClockSkew(d time.Duration) CodecOption {
	return func(c *JWTCodec) {
		if d > 0 {
			c.skew = d
		}
	}
}

// WithIssuer stamps and requires the iss claim.
func WithIssuer(issuer string) CodecOption {
	return func(c *JWTCodec) { c.issuer = issuer }
}

// NewJWTCodec builds a codec around secret, which is copied.
func NewJWTCodec(secret []byte, opts ...CodecOption) (*JWTCodec, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", errShortSecret, minSecretLen, len(secret))
	}
	c := &JWTCodec{
		key: append([]byte(nil), secret...),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(c.skew),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(c.issuer))
	}
	c.parser = jwt.NewParser(parserOpts...)
	return c, nil
}

// Issue signs a token for subject valid from now until now+ttl.
func (c *JWTCodec) Issue(subject string, ttl time.Duration) (Token, error) {
	if subject == "" {
		return Token{}, errors.New("auth: issue token: empty subject")
	}
	if ttl <= 0 {
		return Token{}, fmt.Errorf("auth: issue token: non-positive ttl %s", ttl)
	}
	now := c.now()
	registered := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, registered).SignedString(c.key)
	if err != nil {
		return Token{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return Token{
		Value: signed,
		Claims: Claims{
			Subject:   subject,
			ID:        registered.ID,
			IssuedAt:  registered.IssuedAt.Time,
			ExpiresAt: registered.ExpiresAt.Time,
		},
	}, nil
}

// Verify checks signature, structure and expiry. A token is expired once
// now >= exp (plus skew). Every failure wraps ErrTokenInvalid.
func (c *JWTCodec) Verify(raw string) (Claims, error) {
	var registered jwt.RegisteredClaims
	token, err := c.parser.ParseWithClaims(raw, &registered, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return Claims{}, ErrTokenInvalid
	}
	if registered.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	claims := Claims{Subject: registered.Subject, ID: registered.ID}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return claims, nil
}

var _ TokenCodec = (*JWTCodec)(nil)
