package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// CookieExpiry reads the exp claim of a JWT session cookie. The signature is not verified, the
// value is only informational: the server decides when the session is over.
func CookieExpiry(cookies []*http.Cookie, name string) (time.Time, error) {
	for _, cookie := range cookies {
		if cookie.Name != name {
			continue
		}
		claims := jwt.RegisteredClaims{}
		_, _, err := jwt.NewParser().ParseUnverified(cookie.Value, &claims)
		if err != nil {
			return time.Time{}, fmt.Errorf("the session cookie is not a JWT: %w", err)
		}
		if claims.ExpiresAt == nil {
			return time.Time{}, fmt.Errorf("the session cookie has no expiry")
		}
		return claims.ExpiresAt.Time, nil
	}
	return time.Time{}, fmt.Errorf("there is no %s cookie", name)
}

// CookieExpiry returns the expiry of the current session cookie.
func (m *Manager) CookieExpiry() (time.Time, error) {
	return CookieExpiry(m.api.Cookies(), m.sessionCookieName)
}
