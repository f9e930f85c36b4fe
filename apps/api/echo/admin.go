package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

var (
	errSelfDelete = errors.New("cannot delete own account")
	errSelfDemote = errors.New("cannot demote own account")
)

type adminApi struct {
	userSvc   user.Service
	courseSvc course.Service
}

func registerAdminAPI(app *echo.Echo, usrSvc user.Service, courseSvc course.Service) {
	api := adminApi{userSvc: usrSvc, courseSvc: courseSvc}

	g := app.Group("/admin", authRequired(), roleRequired(user.RoleMasterTeacher))

	g.GET("/stats", api.stats)
	g.GET("/users", api.users)
	g.GET("/pending-teachers", api.pendingTeachers)
	g.GET("/courses", api.courses)

	ug := g.Group("/users/:id")
	ug.PUT("", api.updateUser)
	ug.DELETE("", api.destroyUser)
	ug.POST("/approve", api.approve)
	ug.POST("/reject", api.reject)
	ug.POST("/promote", api.promote)
}

// Handlers

func (api *adminApi) stats(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	stats, err := api.userSvc.Stats(reqCtx)
	if err != nil {
		return errors.Wrap(err, "computing user stats")
	}
	courses, err := api.courseSvc.ListAll(reqCtx)
	if err != nil {
		return errors.Wrap(err, "counting courses")
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"students":         stats.Students,
		"teachers":         stats.Teachers,
		"admins":           stats.Admins,
		"pending_teachers": stats.PendingTeachers,
		"total_users":      stats.Total,
		"courses":          len(courses),
	})
}

func (api *adminApi) users(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.userSvc.Filter(ctx.Request().Context(), *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *adminApi) pendingTeachers(ctx echo.Context) error {
	approved := false
	users, err := api.userSvc.Filter(ctx.Request().Context(), user.QueryFilter{
		Role:       user.RoleTeacher,
		IsApproved: &approved,
	}, nil)
	if err != nil {
		return errors.Wrap(err, "querying pending teachers")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

// courses is the admin listing; it tries a joined read first and degrades
// to batched separate reads inside the service.
func (api *adminApi) courses(ctx echo.Context) error {
	infos, err := api.courseSvc.ListWithTeachers(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	if infos == nil {
		infos = []course.Info{}
	}
	return ctx.JSON(http.StatusOK, infos)
}

func (api *adminApi) updateUser(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	id := ctx.Param("id")

	usr, err := api.userSvc.GetByID(reqCtx, id)
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	// an admin may not demote their own role via this path
	if id == identity.ID && data.Role != "" && data.Role != user.RoleMasterTeacher {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errSelfDemote.Error()})
	}

	if err := data.Validate(usr, api.userSvc); err != nil {
		return err
	}

	usr, err = api.userSvc.Update(reqCtx, id, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "user": usr})
}

func (api *adminApi) destroyUser(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if id == identity.ID {
		return core.NewValidationError(errSelfDelete)
	}
	if _, err = api.userSvc.GetByID(ctx.Request().Context(), id); err != nil {
		return err
	}

	if err = api.userSvc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true})
}

func (api *adminApi) approve(ctx echo.Context) error {
	usr, err := api.userSvc.Approve(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "user": usr})
}

func (api *adminApi) reject(ctx echo.Context) error {
	usr, err := api.userSvc.Reject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "user": usr})
}

func (api *adminApi) promote(ctx echo.Context) error {
	usr, err := api.userSvc.Promote(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "user": usr})
}
