package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by Auth.
const (
	KeyUsername = "username"
	KeyRole     = "role"
	KeyToken    = "token"
)

// RevocationCheck reports whether a token was withdrawn before its expiry.
type RevocationCheck func(token string) bool

// Auth validates the bearer JWT and injects its username, role and raw token
// into the context. Any failure is a 401.
func Auth(jwtSecret string, revoked RevocationCheck) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			scheme, raw, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header")
			}

			claims := jwt.MapClaims{}
			tkn, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(jwtSecret), nil
			}, jwt.WithExpirationRequired())
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}
			if revoked != nil && revoked(raw) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token: revoked")
			}

			c.Set(KeyUsername, claims["username"])
			c.Set(KeyRole, claims["role"])
			c.Set(KeyToken, raw)

			return next(c)
		}
	}
}
