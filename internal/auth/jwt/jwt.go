// Package jwt issues and verifies the HS256 access tokens the intake
// pipeline authenticates with.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"conductor/internal/auth"
	"conductor/pkg/platform/sentinel"
)

// Claims are the JWT claims carried by access tokens.
type Claims struct {
	Roles  []string `json:"roles,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// Service handles token creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewService(signingKey, issuer, audience string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// Generate signs a token for subject with the given roles and scopes.
func (s *Service) Generate(subject string, roles, scopes []string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Roles:  roles,
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// Verify checks the signature and expiry and returns the decoded token.
// Failures carry a FailureReason for the audit trail; callers must not
// forward the reason to the requester.
func (s *Service) Verify(tokenString string) (*auth.Token, auth.FailureReason, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, auth.ReasonExpired, sentinel.ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, auth.ReasonInvalidSignature, err
		default:
			return nil, auth.ReasonMalformed, err
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, auth.ReasonMalformed, jwt.ErrTokenInvalidClaims
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, auth.ReasonMalformed, jwt.ErrTokenInvalidClaims
	}

	token := &auth.Token{
		Subject: claims.Subject,
		Roles:   claims.Roles,
		Scopes:  claims.Scopes,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		token.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		token.ExpiresAt = claims.ExpiresAt.Time
	}
	return token, "", nil
}
