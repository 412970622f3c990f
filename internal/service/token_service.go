package service

import (
	"errors"
	"fmt"
	"time"

	"payquest/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// identityClaims is the payload of a PayQuest identity token. The subject is
// the user id.
type identityClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTTokenService issues and checks HS256 identity tokens.
type JWTTokenService struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewJWTTokenService(secret string, ttl time.Duration, issuer string) *JWTTokenService {
	return &JWTTokenService{key: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}
}

// Generate signs a token for userID carrying the display name. It returns
// the token and its expiry.
func (s *JWTTokenService) Generate(userID uuid.UUID, name string) (string, time.Time, error) {
	issued := s.now().Truncate(time.Second)
	expires := issued.Add(s.ttl)
	claims := identityClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing identity token: %w", err)
	}
	return signed, expires, nil
}

// Validate checks signature, issuer and expiry and returns the identity the
// token names.
func (s *JWTTokenService) Validate(raw string) (*ports.TokenClaims, error) {
	var claims identityClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("identity token rejected: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("identity token has no subject")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("identity token subject %q: %w", claims.Subject, err)
	}
	return &ports.TokenClaims{UserID: userID, Name: claims.Name}, nil
}
