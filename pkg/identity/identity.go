// Package identity issues and verifies bearer tokens and carries the
// resolved caller through a context.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/daviddao/potluck/pkg/clock"
	"github.com/daviddao/potluck/pkg/model"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("identity: invalid token")

// Manager signs and parses HS256 tokens.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
}

// NewManager returns a Manager. A nil clock means the wall clock.
func NewManager(secret, issuer string, ttl time.Duration, c clock.Clock) *Manager {
	return &Manager{secret: []byte(secret), issuer: issuer, ttl: ttl, clock: clock.OrReal(c)}
}

type claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issue returns a signed token for id.
func (m *Manager) Issue(id model.Identity) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, errors.New("identity: signing secret is empty")
	}
	now := m.clock.Now()
	exp := now.Add(m.ttl)
	cl := claims{
		Name:  id.Name,
		Email: model.NormalizeEmail(id.Email),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify validates raw and returns the identity it names.
func (m *Manager) Verify(raw string) (model.Identity, error) {
	var cl claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	tok, err := jwt.ParseWithClaims(raw, &cl, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid || cl.Subject == "" {
		return model.Identity{}, ErrInvalidToken
	}
	return model.Identity{UserID: cl.Subject, Name: cl.Name, Email: cl.Email}, nil
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, or nil.
func FromContext(ctx context.Context) *model.Identity {
	id, ok := ctx.Value(ctxKey{}).(model.Identity)
	if !ok {
		return nil
	}
	return &id
}
