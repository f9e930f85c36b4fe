package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

// TestGradingWorkflow walks the full happy path: a teacher registers and
// waits for approval, builds a course with an assignment, a student enrolls
// and submits, and the work gets graded.
func TestGradingWorkflow(t *testing.T) {
	app := setup(t)

	testutil.CreateUser(t, app.usrRepo, "Max", "Admin", "max@test.cd", "secret123", user.RoleMasterTeacher, true)

	// Ann registers as a teacher; she starts out unapproved
	body := marchallObj(t, map[string]string{
		"first_name": "Ann", "last_name": "Teacher", "email": "ann@test.cd", "password": "secret123", "role": "teacher",
	})
	req, rec := newRequest(http.MethodPost, "/auth/register", nil, body)
	app.server.ServeHTTP(rec, req)
	checkCode(t, http.StatusCreated, rec)
	annCookies := rec.Result().Cookies()

	var annResp struct {
		User struct{ ID string } `json:"user"`
	}
	decodeBody(t, rec, &annResp)

	// unapproved, she cannot create a course yet
	courseBody := marchallObj(t, map[string]string{"name": "Algebra", "subject": "math"})
	req, rec = newRequest(http.MethodPost, "/courses", annCookies, courseBody)
	app.server.ServeHTTP(rec, req)
	checkCode(t, http.StatusForbidden, rec)

	// the admin approves her; the existing session picks it up
	adminCookies := app.login(t, "max@test.cd", "secret123")
	req, rec = newRequest(http.MethodPost, "/admin/users/"+annResp.User.ID+"/approve", adminCookies)
	app.server.ServeHTTP(rec, req)
	checkCode(t, http.StatusOK, rec)

	req, rec = newRequest(http.MethodPost, "/courses", annCookies, courseBody)
	app.server.ServeHTTP(rec, req)
	checkCode(t, http.StatusCreated, rec)

	var crsResp struct {
		Course course.Course `json:"course"`
	}
	decodeBody(t, rec, &crsResp)
	algebra := crsResp.Course

	// Bo registers and finds Algebra among the available courses
	body = marchallObj(t, map[string]string{
		"first_name": "Bo", "last_name": "Student", "email": "bo@test.cd", "password": "secret123",
	})
	req, rec = newRequest(http.MethodPost, "/auth/register", nil, body)
	app.server.ServeHTTP(rec, req)
	checkCode(t, http.StatusCreated, rec)
	boCookies := rec.Result().Cookies()

	req, rec = newRequest(http.MethodGet, "/courses/available", boCookies)
	app.server.ServeHTTP(rec, req)
	checkCode(t, http.StatusOK, rec)
	var available []course.Info
	decodeBody(t, rec, &available)
	if len(available) != 1 || available[0].ID != algebra.ID {
		t.Fatalf("available = %+v; want just Algebra", available)
	}

	req, rec = newRequest(http.MethodPost, "/courses/"+algebra.ID+"/enroll", boCookies)
	app.server.ServeHTTP(rec, req)
	checkCode(t, http.StatusCreated, rec)

	// Ann posts HW1, due in a week, out of 100
	due := time.Now().UTC().Add(7 * 24 * time.Hour)
	body = marchallObj(t, map[string]interface{}{
		"course_id": algebra.ID, "title": "HW1", "due_date": due, "max_points": 100,
	})
	req, rec = newRequest(http.MethodPost, "/assignments", annCookies, body)
	app.server.ServeHTTP(rec, req)
	checkCode(t, http.StatusCreated, rec)

	var asgResp struct {
		Assignment assignment.Assignment `json:"assignment"`
	}
	decodeBody(t, rec, &asgResp)
	hw1 := asgResp.Assignment

	// Bo submits
	body = marchallObj(t, map[string]string{"content": "answer"})
	req, rec = newRequest(http.MethodPost, "/assignments/"+hw1.ID+"/submit", boCookies, body)
	app.server.ServeHTTP(rec, req)
	checkCode(t, http.StatusCreated, rec)

	// the submission lands in Ann's grading queue
	req, rec = newRequest(http.MethodGet, "/assignments/pending-grading", annCookies)
	app.server.ServeHTTP(rec, req)
	checkCode(t, http.StatusOK, rec)
	var pending []assignment.PendingSubmission
	decodeBody(t, rec, &pending)
	if len(pending) != 1 || pending[0].StudentName != "Bo Student" {
		t.Fatalf("pending = %+v", pending)
	}

	// Ann grades it
	body = marchallObj(t, map[string]interface{}{"grade": 85, "feedback": "good"})
	req, rec = newRequest(http.MethodPost, "/assignments/submissions/"+pending[0].ID+"/grade", annCookies, body)
	app.server.ServeHTTP(rec, req)
	checkCode(t, http.StatusOK, rec)

	// Bo sees the grade in my-submissions
	req, rec = newRequest(http.MethodGet, "/assignments/my-submissions", boCookies)
	app.server.ServeHTTP(rec, req)
	checkCode(t, http.StatusOK, rec)
	var mine []assignment.StudentSubmission
	decodeBody(t, rec, &mine)
	if len(mine) != 1 {
		t.Fatalf("my-submissions = %+v", mine)
	}
	got := mine[0]
	if !got.IsGraded() || got.Grade.Int != 85 || got.Feedback.String != "good" {
		t.Errorf("grade = %+v / %q", got.Grade, got.Feedback.String)
	}
	if got.CourseName != "Algebra" || got.AssignmentTitle != "HW1" || got.MaxPoints != 100 {
		t.Errorf("enrichment off: %+v", got)
	}

	// and Ann's queue is empty again
	req, rec = newRequest(http.MethodGet, "/assignments/pending-grading", annCookies)
	app.server.ServeHTTP(rec, req)
	checkCode(t, http.StatusOK, rec)
	decodeBody(t, rec, &pending)
	if len(pending) != 0 {
		t.Errorf("queue not drained: %+v", pending)
	}
}
