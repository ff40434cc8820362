// Package auth verifies the bearer tokens that guard admin endpoints.
package auth

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tenantapp/backend/internal/infrastructure/config"
)

// DefaultAdminRole is required when no role is configured.
const DefaultAdminRole = "admin"

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingSubject   = errors.New("missing subject in claims")
	ErrForbidden        = errors.New("token lacks the admin role")
)

// Claims represents admin JWT claims
type Claims struct {
	jwt.RegisteredClaims
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// HasRole checks if the claims carry role
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// AdminTokenVerifier validates HS256 admin tokens issued by the operator tooling.
type AdminTokenVerifier struct {
	secret    []byte
	issuer    string
	adminRole string
	now       func() time.Time
}

// NewAdminTokenVerifier creates a new verifier
func NewAdminTokenVerifier(cfg config.JWTConfig) *AdminTokenVerifier {
	role := cfg.AdminRole
	if role == "" {
		role = DefaultAdminRole
	}
	return &AdminTokenVerifier{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		adminRole: role,
		now:       time.Now,
	}
}

// IssueInput contains input for token issuance
type IssueInput struct {
	Subject  string
	Username string
	Roles    []string
	TTL      time.Duration
}

// Issue signs a token. Used by operator tooling and tests.
func (v *AdminTokenVerifier) Issue(input IssueInput) (string, error) {
	now := v.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    v.issuer,
			Subject:   input.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(input.TTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: input.Username,
		Roles:    input.Roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify validates tokenString and requires the admin role
func (v *AdminTokenVerifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	if !claims.HasRole(v.adminRole) {
		return nil, ErrForbidden
	}
	return claims, nil
}
