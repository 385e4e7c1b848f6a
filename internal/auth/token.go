// Package auth verifies access tokens issued by the identity service.
package auth

import (
	"errors"
	"fmt"

	"github.com/evetabi/auction/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims extends jwt.RegisteredClaims with application-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	TokenType string `json:"type"` // "access" or "refresh"
}

// Identity is the verified caller.
type Identity struct {
	UserID uuid.UUID
	Role   domain.UserRole
}

// TokenVerifier checks HS256 access tokens against a shared secret.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier creates a TokenVerifier. issuer may be empty to skip the
// iss check.
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify validates signature, algorithm, expiry and token type, and returns
// the caller identity. Any failure is reported as domain.ErrTokenInvalid.
func (v *TokenVerifier) Verify(tokenString string) (*Identity, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: verifier has no secret", domain.ErrTokenInvalid)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return nil, errors.Join(domain.ErrTokenInvalid, err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	if claims.TokenType != "" && claims.TokenType != "access" {
		return nil, fmt.Errorf("%w: token type must be access", domain.ErrTokenInvalid)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a uuid", domain.ErrTokenInvalid)
	}

	role := domain.UserRole(claims.Role)
	if role == "" {
		role = domain.RoleBidder
	}
	return &Identity{UserID: userID, Role: role}, nil
}
