// Package owner issues and verifies signed anonymous owner identities, so
// clients without a player account keep a stable session owner across requests.
package owner

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/puzzlegame/internal/dependencies/clock"
	"github.com/mcoot/puzzlegame/internal/dependencies/ids"
	"github.com/mcoot/puzzlegame/internal/model"
)

const (
	tokenIssuer = "puzzlegame"
	ownerPrefix = "anon_"

	// CookieName is the cookie carrying the signed owner token
	CookieName = "puzzle_owner"

	minSecretLength = 16
)

// ErrInvalidOwnerToken is returned for tokens that fail verification
var ErrInvalidOwnerToken = errors.New("invalid owner token")

// Config holds configuration for the owner issuer
type Config struct {
	Secret []byte
	TTL    time.Duration
}

// DefaultTTL is how long an anonymous owner token stays valid
const DefaultTTL = 30 * 24 * time.Hour

// Issuer mints and verifies HS256 owner tokens
type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
	ids    ids.Generator
}

// New creates an Issuer; the secret must be at least 16 bytes
func New(cfg Config, clock clock.Clock, ids ids.Generator) (*Issuer, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("owner token secret must be at least %d bytes", minSecretLength)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Issuer{
		secret: cfg.Secret,
		ttl:    cfg.TTL,
		clock:  clock,
		ids:    ids,
	}, nil
}

// TTL returns the lifetime of minted tokens
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Mint creates a fresh anonymous owner and its signed token
func (i *Issuer) Mint() (model.OwnerID, string, error) {
	owner := model.OwnerID(ownerPrefix + i.ids.NewID())
	token, err := i.Sign(owner)
	if err != nil {
		return "", "", err
	}
	return owner, token, nil
}

// Sign issues a token asserting owner
func (i *Issuer) Sign(owner model.OwnerID) (string, error) {
	now := i.clock.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   string(owner),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing owner token: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns the owner it asserts
func (i *Issuer) Parse(token string) (model.OwnerID, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidOwnerToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidOwnerToken
	}
	return model.OwnerID(claims.Subject), nil
}
