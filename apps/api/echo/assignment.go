package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

type assignmentApi struct {
	svc       assignment.Service
	courseSvc course.Service
	userSvc   user.Service
}

func registerAssignmentAPI(app *echo.Echo, svc assignment.Service, courseSvc course.Service, usrSvc user.Service) {
	api := assignmentApi{svc: svc, courseSvc: courseSvc, userSvc: usrSvc}

	g := app.Group("/assignments", authRequired())

	g.GET("/my-submissions", api.mySubmissions, roleRequired(user.RoleStudent))
	g.GET("/pending-grading", api.pendingGrading, roleRequired(user.RoleTeacher, user.RoleMasterTeacher))
	g.GET("/course/:courseID", api.listByCourse)
	g.POST("", api.create, roleRequired(user.RoleTeacher, user.RoleMasterTeacher), approvalRequired(usrSvc))
	g.POST("/submissions/:id/grade", api.grade, roleRequired(user.RoleTeacher, user.RoleMasterTeacher))

	dg := g.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, roleRequired(user.RoleTeacher, user.RoleMasterTeacher), approvalRequired(usrSvc))
	dg.DELETE("", api.destroy, roleRequired(user.RoleTeacher, user.RoleMasterTeacher), approvalRequired(usrSvc))
	dg.POST("/submit", api.submit, roleRequired(user.RoleStudent))
	dg.GET("/submissions", api.submissions, roleRequired(user.RoleTeacher, user.RoleMasterTeacher))
}

// requireCourseOwnership enforces the submission/assignment mutation chain:
// the parent course's owning teacher, or any admin.
func (api *assignmentApi) requireCourseOwnership(ctx echo.Context, identity Identity, courseID string) (course.Course, error) {
	crs, err := api.courseSvc.Get(ctx.Request().Context(), courseID)
	if err != nil {
		return course.Course{}, err
	}
	if !crs.OwnedBy(identity.ID, identity.Role) {
		return course.Course{}, errHttpForbidden
	}
	return crs, nil
}

// Handlers

func (api *assignmentApi) mySubmissions(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	submissions, err := api.svc.MySubmissions(ctx.Request().Context(), identity.ID)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	if submissions == nil {
		submissions = []assignment.StudentSubmission{}
	}
	return ctx.JSON(http.StatusOK, submissions)
}

func (api *assignmentApi) pendingGrading(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	usr, err := api.userSvc.GetByID(ctx.Request().Context(), identity.ID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	pending, err := api.svc.PendingGrading(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing pending submissions")
	}
	if pending == nil {
		pending = []assignment.PendingSubmission{}
	}
	return ctx.JSON(http.StatusOK, pending)
}

func (api *assignmentApi) listByCourse(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	courseID := ctx.Param("courseID")

	var infos []assignment.Info
	switch identity.Role {
	case user.RoleStudent:
		enrolled, err := api.courseSvc.IsEnrolled(reqCtx, identity.ID, courseID)
		if err != nil {
			return errors.Wrap(err, "checking enrollment")
		}
		if !enrolled {
			return errHttpForbidden
		}
		infos, err = api.svc.ListForStudent(reqCtx, courseID, identity.ID)
		if err != nil {
			return errors.Wrap(err, "listing assignments")
		}
	case user.RoleTeacher, user.RoleMasterTeacher:
		if _, err = api.requireCourseOwnership(ctx, identity, courseID); err != nil {
			return err
		}
		infos, err = api.svc.ListForTeacher(reqCtx, courseID)
		if err != nil {
			return errors.Wrap(err, "listing assignments")
		}
	default:
		return errHttpForbidden
	}
	if infos == nil {
		infos = []assignment.Info{}
	}
	return ctx.JSON(http.StatusOK, infos)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	asg, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}
	crs, err := api.courseSvc.Get(reqCtx, asg.CourseID)
	if err != nil {
		return err
	}

	resp := echo.Map{"assignment": asg, "course": crs}
	if identity.Role == user.RoleStudent {
		if sub, err := api.svc.GetSubmission(reqCtx, asg.ID, identity.ID); err == nil {
			resp["submission"] = sub
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *assignmentApi) create(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}

	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	if _, err = api.requireCourseOwnership(ctx, identity, data.CourseID); err != nil {
		return err
	}

	asg, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true, "assignment": asg})
}

func (api *assignmentApi) update(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	asg, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if _, err = api.requireCourseOwnership(ctx, identity, asg.CourseID); err != nil {
		return err
	}

	var data assignment.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	asg, err = api.svc.Update(ctx.Request().Context(), asg.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "assignment": asg})
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	asg, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if _, err = api.requireCourseOwnership(ctx, identity, asg.CourseID); err != nil {
		return err
	}

	if err = api.svc.Delete(ctx.Request().Context(), asg.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true})
}

func (api *assignmentApi) submit(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}

	var data assignment.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("id"), identity.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true, "submission": sub})
}

func (api *assignmentApi) submissions(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	asg, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if _, err = api.requireCourseOwnership(ctx, identity, asg.CourseID); err != nil {
		return err
	}

	infos, err := api.svc.Submissions(ctx.Request().Context(), asg.ID)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	if infos == nil {
		infos = []assignment.SubmissionInfo{}
	}
	return ctx.JSON(http.StatusOK, infos)
}

func (api *assignmentApi) grade(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	sub, err := api.svc.GetSubmissionByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}
	// ownership is transitive: submission -> assignment -> course
	asg, err := api.svc.Get(reqCtx, sub.AssignmentID)
	if err != nil {
		return err
	}
	if _, err = api.requireCourseOwnership(ctx, identity, asg.CourseID); err != nil {
		return err
	}

	var data assignment.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sub, err = api.svc.Grade(reqCtx, sub.ID, data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "submission": sub})
}
