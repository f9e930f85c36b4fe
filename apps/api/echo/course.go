package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

type courseApi struct {
	svc    course.Service
	asgSvc assignment.Service
}

func registerCourseAPI(app *echo.Echo, svc course.Service, asgSvc assignment.Service, usrSvc user.Service) {
	api := courseApi{svc: svc, asgSvc: asgSvc}

	g := app.Group("/courses", authRequired())

	g.GET("", api.list)
	g.GET("/available", api.listAvailable, roleRequired(user.RoleStudent))
	g.POST("", api.create, roleRequired(user.RoleTeacher, user.RoleMasterTeacher), approvalRequired(usrSvc))

	dg := g.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, roleRequired(user.RoleTeacher, user.RoleMasterTeacher), approvalRequired(usrSvc))
	dg.DELETE("", api.destroy, roleRequired(user.RoleTeacher, user.RoleMasterTeacher), approvalRequired(usrSvc))
	dg.POST("/enroll", api.enroll, roleRequired(user.RoleStudent))
	dg.POST("/unenroll", api.unenroll, roleRequired(user.RoleStudent))
	dg.GET("/students", api.students, roleRequired(user.RoleTeacher, user.RoleMasterTeacher))
}

// getOwnedCourse fetches the course and enforces ownership: the owning
// teacher or any admin.
func (api *courseApi) getOwnedCourse(ctx echo.Context, identity Identity) (course.Course, error) {
	crs, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return course.Course{}, err
	}
	if !crs.OwnedBy(identity.ID, identity.Role) {
		return course.Course{}, errHttpForbidden
	}
	return crs, nil
}

// Handlers

func (api *courseApi) list(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	var infos []course.Info
	switch identity.Role {
	case user.RoleStudent:
		infos, err = api.svc.ListForStudent(reqCtx, identity.ID)
	case user.RoleTeacher:
		infos, err = api.svc.ListForTeacher(reqCtx, identity.ID)
	case user.RoleMasterTeacher:
		infos, err = api.svc.ListAll(reqCtx)
	default:
		return errHttpForbidden
	}
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	if infos == nil {
		infos = []course.Info{}
	}
	return ctx.JSON(http.StatusOK, infos)
}

func (api *courseApi) listAvailable(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	infos, err := api.svc.ListAvailable(ctx.Request().Context(), identity.ID)
	if err != nil {
		return errors.Wrap(err, "listing available courses")
	}
	if infos == nil {
		infos = []course.Info{}
	}
	return ctx.JSON(http.StatusOK, infos)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	detail, err := api.svc.GetDetail(reqCtx, ctx.Param("id"), identity.ID)
	if err != nil {
		return err
	}

	var assignments []assignment.Info
	if identity.Role == user.RoleStudent {
		assignments, err = api.asgSvc.ListForStudent(reqCtx, detail.ID, identity.ID)
	} else {
		assignments, err = api.asgSvc.ListForTeacher(reqCtx, detail.ID)
	}
	if err != nil {
		return errors.Wrap(err, "listing course assignments")
	}
	if assignments == nil {
		assignments = []assignment.Info{}
	}

	return ctx.JSON(http.StatusOK, echo.Map{
		"course":      detail,
		"assignments": assignments,
	})
}

func (api *courseApi) create(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}

	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	crs, err := api.svc.Create(ctx.Request().Context(), identity.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true, "course": crs})
}

func (api *courseApi) update(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	crs, err := api.getOwnedCourse(ctx, identity)
	if err != nil {
		return err
	}

	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(crs); err != nil {
		return err
	}

	crs, err = api.svc.Update(ctx.Request().Context(), crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "course": crs})
}

func (api *courseApi) destroy(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	crs, err := api.getOwnedCourse(ctx, identity)
	if err != nil {
		return err
	}

	if err = api.svc.Deactivate(ctx.Request().Context(), crs.ID); err != nil {
		return errors.Wrap(err, "deactivating course")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true})
}

func (api *courseApi) enroll(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), identity.ID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true, "enrollment": enr})
}

func (api *courseApi) unenroll(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.Unenroll(ctx.Request().Context(), identity.ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true})
}

func (api *courseApi) students(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	crs, err := api.getOwnedCourse(ctx, identity)
	if err != nil {
		return err
	}

	students, err := api.svc.Students(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "listing enrolled students")
	}
	if students == nil {
		students = []course.EnrolledStudent{}
	}
	return ctx.JSON(http.StatusOK, students)
}
