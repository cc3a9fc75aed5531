package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/scolab/backend/core/user"
)

// roleMiddleware lets through the users having any of the given roles; admins always pass.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			usr := claims.User()
			if usr.IsAdmin() {
				return next(ctx)
			}
			for _, role := range roles {
				if usr.RoleStartsWith(role) {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func teacherMiddleware() echo.MiddlewareFunc { return roleMiddleware(user.RoleTeacher) }
func studentMiddleware() echo.MiddlewareFunc { return roleMiddleware(user.RoleStudent) }
