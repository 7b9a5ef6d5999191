package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const msgAdminRequired = "Admin access required"

// RBAC admits only requests whose Auth role is one of allowedRoles. It must be
// installed after Auth.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(KeyRole).(string)
			if _, ok := allowed[role]; !ok {
				return echo.NewHTTPError(http.StatusForbidden, msgAdminRequired)
			}
			return next(c)
		}
	}
}
