// Package auth provides JWT-based authentication for the delegation
// engine. It validates tokens issued by the identity provider using
// JWKS endpoints and surfaces authentication-context claims used as
// step-up evidence.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Claims represents the JWT claims structure accepted by the engine.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.)
// and adds the identity and authentication-context claims the engine
// consumes.
type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`

	// ACR and AMR describe how the caller authenticated. They back the
	// STEP_UP_AUTH control: a delegation requiring step-up accepts the
	// action only when the token shows a strong authentication event.
	ACR string   `json:"acr,omitempty"`
	AMR []string `json:"amr,omitempty"`
}

// strongAMRValues are the RFC 8176 authentication method references
// accepted as step-up evidence.
var strongAMRValues = map[string]bool{
	"mfa":  true,
	"otp":  true,
	"hwk":  true,
	"swk":  true,
	"face": true,
	"fpt":  true,
}

// StepUpSatisfied reports whether the token's authentication context
// qualifies as step-up: either an elevated ACR or a strong AMR value.
func (c *Claims) StepUpSatisfied() bool {
	if c.ACR == "high" || c.ACR == "urn:chantier:acr:step-up" {
		return true
	}
	for _, m := range c.AMR {
		if strongAMRValues[m] {
			return true
		}
	}
	return false
}

// ActorRef returns the best identifier for ledger attribution: the email
// when present, otherwise the token subject.
func (c *Claims) ActorRef() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}
