package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// I need a type for my context key to avoid collisions.
type contextKey string

// ContextKeyClaims is the key used to store JWT claims in the request context.
const ContextKeyClaims contextKey = "claims"

// Claims identifies the caller. Subject carries the officer id for officer
// tokens; Role distinguishes administrators.
type Claims struct {
	OfficerID string `json:"officer_id,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Identity returns the officer id of the caller, preferring the explicit
// claim over the subject.
func (c *Claims) Identity() string {
	if c.OfficerID != "" {
		return c.OfficerID
	}
	return c.Subject
}

// GenerateJWT signs a token for subject with the given role.
func GenerateJWT(subject, role, secretKey string, expiration time.Duration) (string, time.Time, error) {
	expirationTime := time.Now().Add(expiration)

	claims := &Claims{
		OfficerID: subject,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expirationTime, nil
}

// ValidateJWT validates the given JWT token string.
// It returns the claims if the token is valid, otherwise returns an error.
func ValidateJWT(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// I must check the signing method!
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// WithClaims stores claims in ctx
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ContextKeyClaims, claims)
}

// ClaimsFromContext returns the claims stored by the authenticator, if any
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*Claims)
	return claims, ok && claims != nil
}

// CanActAs reports whether the caller may act on behalf of officerID.
// Callers with adminRole may act for anyone.
func CanActAs(claims *Claims, officerID, adminRole string) bool {
	if claims == nil {
		return false
	}
	if adminRole != "" && claims.Role == adminRole {
		return true
	}
	return claims.Identity() != "" && claims.Identity() == officerID
}
