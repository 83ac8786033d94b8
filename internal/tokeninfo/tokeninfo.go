// Package tokeninfo inspects access tokens without validating them. The
// backend is the authority on token validity; the client only peeks at the
// expiry claim to schedule its silent refresh ahead of expiry.
package tokeninfo

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TimeToExpiry returns how long until the token's exp claim, when the token
// is a JWT carrying one. Opaque tokens and JWTs without exp return ok=false.
func TimeToExpiry(token string, now time.Time) (time.Duration, bool) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return 0, false
	}
	if claims.ExpiresAt == nil {
		return 0, false
	}
	return claims.ExpiresAt.Sub(now), true
}
