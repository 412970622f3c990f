// Package identity holds the client-side identity provider.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"payquest/internal/core/domain"
	"payquest/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TokenIdentity implements ports.IdentityProvider from a bearer token issued
// by the backend. The client cannot check the signature (it does not hold the
// signing key); the backend validates every request.
type TokenIdentity struct {
	mu      sync.RWMutex
	current domain.Identity
	now     func() time.Time
	log     zerolog.Logger
}

// New creates a signed-out identity provider.
func New(log zerolog.Logger) *TokenIdentity {
	return &TokenIdentity{now: time.Now, log: log}
}

// Current returns the signed-in identity, or a zero identity when signed out.
func (p *TokenIdentity) Current() domain.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// SignIn adopts token as the current identity. The user id is the token subject.
func (p *TokenIdentity) SignIn(_ context.Context, token string) (domain.Identity, error) {
	id, err := p.parse(token)
	if err != nil {
		return domain.Identity{}, err
	}

	p.mu.Lock()
	p.current = id
	p.mu.Unlock()

	p.log.Info().Str("user_id", id.UserID.String()).Msg("signed in")
	return id, nil
}

// SignOut clears the current identity.
func (p *TokenIdentity) SignOut(_ context.Context) error {
	p.mu.Lock()
	prev := p.current
	p.current = domain.Identity{}
	p.mu.Unlock()

	if prev.UserID != uuid.Nil {
		p.log.Info().Str("user_id", prev.UserID.String()).Msg("signed out")
	}
	return nil
}

func (p *TokenIdentity) parse(token string) (domain.Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return domain.Identity{}, apperror.Wrap(apperror.CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized,
			fmt.Errorf("parse token: %w", err))
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Identity{}, apperror.ErrInvalidToken()
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return domain.Identity{}, apperror.ErrInvalidToken()
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && exp.Before(p.now()) {
		return domain.Identity{}, apperror.ErrInvalidToken()
	}

	name, _ := claims["name"].(string)
	return domain.Identity{UserID: userID, Name: name, Token: token}, nil
}
