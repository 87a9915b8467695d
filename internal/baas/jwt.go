package baas

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"kenoadmin.org/internal/identity"
)

// checkJWT rejects malformed or expired provider JWTs before a network call.
// The signature is verified by the provider, not here.
func checkJWT(token string, now time.Time) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("%w: malformed jwt", identity.ErrUnauthenticated)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("%w: malformed jwt expiry", identity.ErrUnauthenticated)
	}
	if exp != nil && !now.Before(exp.Time) {
		return fmt.Errorf("%w: jwt expired", identity.ErrUnauthenticated)
	}
	return nil
}
