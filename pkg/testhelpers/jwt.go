// Package testhelpers provides utilities for testing delegation-engine
// components.
package testhelpers

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// GenerateTestJWT creates a test JWT token for use when verification is
// disabled. The token has a valid structure but no signature (alg: none).
// amr values, when given, are carried so step-up evidence can be tested.
func GenerateTestJWT(sub, email string, amr ...string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	payload := fmt.Sprintf(`{"sub":"%s"`, sub)
	if email != "" {
		payload += fmt.Sprintf(`,"email":"%s"`, email)
	}
	if len(amr) > 0 {
		payload += fmt.Sprintf(`,"amr":["%s"]`, strings.Join(amr, `","`))
	}
	payload += "}"

	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return fmt.Sprintf("%s.%s.", header, encodedPayload)
}

// GenerateTestJWTWithBearer returns the token with a "Bearer " prefix
// for the Authorization header.
func GenerateTestJWTWithBearer(sub, email string, amr ...string) string {
	return "Bearer " + GenerateTestJWT(sub, email, amr...)
}
