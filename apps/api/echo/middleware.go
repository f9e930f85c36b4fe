package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

func authRequired() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getIdentity(ctx); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

func roleRequired(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			identity, err := getIdentity(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if identity.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// approvalRequired lets students and admins through unconditionally. For a
// teacher it re-reads the live approval flag instead of trusting the session
// snapshot, so a post-login rejection takes effect immediately.
func approvalRequired(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			identity, err := getIdentity(ctx)
			if err != nil {
				return err
			}
			switch identity.Role {
			case user.RoleStudent, user.RoleMasterTeacher:
				return next(ctx)
			case user.RoleTeacher:
				usr, err := svc.GetByID(ctx.Request().Context(), identity.ID)
				if err != nil {
					if core.IsNotFound(err) {
						return errPendingApproval
					}
					return errors.Wrap(err, "re-reading approval flag")
				}
				if !usr.IsApproved {
					return errPendingApproval
				}
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
