package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
)

const RoleAdmin = "admin"

func HasPermission(user *AppUser, permission string) bool {
	if user == nil {
		return false
	}
	return slices.Contains(user.Permissions, permission)
}

// IsAdmin reports whether the user bypasses team membership checks.
func IsAdmin(user *AppUser) bool {
	return user != nil && user.Role == RoleAdmin
}

// RequirePermission rejects requests whose user lacks any of the given
// permissions.
func RequirePermission(permissions ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}
			for _, permission := range permissions {
				if !HasPermission(user, permission) {
					return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: missing permission " + permission})
				}
			}
			return next(c)
		}
	}
}
