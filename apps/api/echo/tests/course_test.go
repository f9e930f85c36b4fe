package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_courseApi_list(t *testing.T) {
	app := setup(t)

	tess := testutil.CreateUser(t, app.usrRepo, "Tess", "Owner", "tess@test.cd", "secret123", user.RoleTeacher, true)
	paul := testutil.CreateUser(t, app.usrRepo, "Paul", "Other", "paul@test.cd", "secret123", user.RoleTeacher, true)
	stu := testutil.CreateUser(t, app.usrRepo, "Stu", "Dent", "stu@test.cd", "secret123", user.RoleStudent, true)
	testutil.CreateUser(t, app.usrRepo, "Max", "Admin", "max@test.cd", "secret123", user.RoleMasterTeacher, true)

	math := testutil.CreateCourse(t, app.crsRepo, tess.ID, "Math 101", "math", true)
	hist := testutil.CreateCourse(t, app.crsRepo, paul.ID, "History", "history", true)
	old := testutil.CreateCourse(t, app.crsRepo, tess.ID, "Retired", "math", false)

	testutil.CreateEnrollment(t, app.crsRepo, stu.ID, math.ID)
	testutil.CreateEnrollment(t, app.crsRepo, stu.ID, old.ID)
	testutil.CreateAssignment(t, app.asgRepo, math.ID, "HW1", nullTime(), 0)

	t.Run("student sees enrolled active courses only", func(t *testing.T) {
		cookies := app.login(t, "stu@test.cd", "secret123")
		req, rec := newRequest(http.MethodGet, "/courses", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		var infos []course.Info
		decodeBody(t, rec, &infos)
		if len(infos) != 1 {
			t.Fatalf("got %d courses; want 1 (inactive enrollments are hidden)", len(infos))
		}
		info := infos[0]
		if info.ID != math.ID || !info.IsEnrolled {
			t.Errorf("unexpected course: %+v", info)
		}
		if info.TeacherName != "Tess Owner" {
			t.Errorf("teacher_name = %q", info.TeacherName)
		}
		if info.AssignmentCount != 1 {
			t.Errorf("assignment_count = %d; want 1", info.AssignmentCount)
		}
	})

	t.Run("teacher sees own courses incl. inactive", func(t *testing.T) {
		cookies := app.login(t, "tess@test.cd", "secret123")
		req, rec := newRequest(http.MethodGet, "/courses", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		var infos []course.Info
		decodeBody(t, rec, &infos)
		if len(infos) != 2 {
			t.Fatalf("got %d courses; want 2", len(infos))
		}
		counts := map[string]int{}
		for _, info := range infos {
			if info.TeacherID != tess.ID {
				t.Errorf("foreign course in teacher listing: %+v", info)
			}
			counts[info.ID] = info.EnrollmentCount
		}
		if counts[math.ID] != 1 || counts[old.ID] != 1 {
			t.Errorf("enrollment counts = %v", counts)
		}
	})

	t.Run("admin sees everything", func(t *testing.T) {
		cookies := app.login(t, "max@test.cd", "secret123")
		req, rec := newRequest(http.MethodGet, "/courses", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		var infos []course.Info
		decodeBody(t, rec, &infos)
		if len(infos) != 3 {
			t.Errorf("got %d courses; want 3", len(infos))
		}
	})

	t.Run("available excludes enrolled and inactive", func(t *testing.T) {
		cookies := app.login(t, "stu@test.cd", "secret123")
		req, rec := newRequest(http.MethodGet, "/courses/available", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		var infos []course.Info
		decodeBody(t, rec, &infos)
		if len(infos) != 1 || infos[0].ID != hist.ID {
			t.Errorf("available = %+v; want just %s", infos, hist.Name)
		}
		if infos[0].IsEnrolled {
			t.Error("available course flagged as enrolled")
		}
	})

	t.Run("available is student-only", func(t *testing.T) {
		cookies := app.login(t, "tess@test.cd", "secret123")
		req, rec := newRequest(http.MethodGet, "/courses/available", cookies)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("unauthenticated -> 401", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/courses", nil)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthed)}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_courseApi_create(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	testutil.CreateUser(t, app.usrRepo, "Tess", "Owner", "tess@test.cd", "secret123", user.RoleTeacher, true)
	uma := testutil.CreateUser(t, app.usrRepo, "Uma", "Pending", "uma@test.cd", "secret123", user.RoleTeacher, false)
	testutil.CreateUser(t, app.usrRepo, "Stu", "Dent", "stu@test.cd", "secret123", user.RoleStudent, true)

	body := marchallObj(t, map[string]string{"name": "Algebra", "subject": "math"})

	t.Run("student -> 403", func(t *testing.T) {
		cookies := app.login(t, "stu@test.cd", "secret123")
		req, rec := newRequest(http.MethodPost, "/courses", cookies, body)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("unapproved teacher -> 403 pending approval", func(t *testing.T) {
		cookies := app.login(t, "uma@test.cd", "secret123")
		req, rec := newRequest(http.MethodPost, "/courses", cookies, body)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "pending admin approval"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("approval is checked live, not from the session", func(t *testing.T) {
		cookies := app.login(t, "uma@test.cd", "secret123")
		if _, err := app.usrRepo.SetUserApproval(ctx, uma.ID, true); err != nil {
			t.Fatalf("SetUserApproval() failed: %v", err)
		}
		req, rec := newRequest(http.MethodPost, "/courses", cookies, body)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusCreated, rec)

		// revoking approval locks the same session out again
		if _, err := app.usrRepo.SetUserApproval(ctx, uma.ID, false); err != nil {
			t.Fatalf("SetUserApproval() failed: %v", err)
		}
		req, rec = newRequest(http.MethodPost, "/courses", cookies, body)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusForbidden, rec)
	})

	t.Run("missing name -> 400", func(t *testing.T) {
		cookies := app.login(t, "tess@test.cd", "secret123")
		req, rec := newRequest(http.MethodPost, "/courses", cookies, []byte(`{"subject":"math"}`))
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusBadRequest, rec)
	})

	t.Run("approved teacher creates an active course", func(t *testing.T) {
		cookies := app.login(t, "tess@test.cd", "secret123")
		req, rec := newRequest(http.MethodPost, "/courses", cookies, body)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusCreated, rec)

		var resp struct {
			Success bool          `json:"success"`
			Course  course.Course `json:"course"`
		}
		decodeBody(t, rec, &resp)
		if !resp.Success || resp.Course.ID == "" || !resp.Course.IsActive {
			t.Errorf("unexpected response: %+v", resp)
		}

		crs, err := app.crsRepo.GetCourseByID(ctx, resp.Course.ID)
		if err != nil {
			t.Fatalf("GetCourseByID() failed: %v", err)
		}
		if crs.Name != "Algebra" {
			t.Errorf("persisted name = %q", crs.Name)
		}
	})
}

func Test_courseApi_updateDestroy(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	tess := testutil.CreateUser(t, app.usrRepo, "Tess", "Owner", "tess@test.cd", "secret123", user.RoleTeacher, true)
	testutil.CreateUser(t, app.usrRepo, "Paul", "Other", "paul@test.cd", "secret123", user.RoleTeacher, true)
	testutil.CreateUser(t, app.usrRepo, "Max", "Admin", "max@test.cd", "secret123", user.RoleMasterTeacher, true)

	math := testutil.CreateCourse(t, app.crsRepo, tess.ID, "Math 101", "math", true)

	t.Run("non-owner update -> 403, row unchanged", func(t *testing.T) {
		cookies := app.login(t, "paul@test.cd", "secret123")
		body := marchallObj(t, map[string]string{"name": "Hijacked"})
		req, rec := newRequest(http.MethodPut, "/courses/"+math.ID, cookies, body)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)

		crs, _ := app.crsRepo.GetCourseByID(ctx, math.ID)
		if crs.Name != "Math 101" {
			t.Errorf("non-owner update went through: name = %q", crs.Name)
		}
	})

	t.Run("owner partial update leaves omitted fields", func(t *testing.T) {
		cookies := app.login(t, "tess@test.cd", "secret123")
		body := marchallObj(t, map[string]string{"description": "numbers and such"})
		req, rec := newRequest(http.MethodPut, "/courses/"+math.ID, cookies, body)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		crs, _ := app.crsRepo.GetCourseByID(ctx, math.ID)
		if crs.Name != "Math 101" || crs.Subject != "math" {
			t.Errorf("omitted fields changed: %+v", crs)
		}
		if crs.Description != "numbers and such" {
			t.Errorf("description = %q", crs.Description)
		}
	})

	t.Run("admin may update any course", func(t *testing.T) {
		cookies := app.login(t, "max@test.cd", "secret123")
		body := marchallObj(t, map[string]string{"subject": "mathematics"})
		req, rec := newRequest(http.MethodPut, "/courses/"+math.ID, cookies, body)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)
	})

	t.Run("update unknown course -> 404", func(t *testing.T) {
		cookies := app.login(t, "tess@test.cd", "secret123")
		body := marchallObj(t, map[string]string{"name": "X"})
		req, rec := newRequest(http.MethodPut, "/courses/nope", cookies, body)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusNotFound, rec)
	})

	t.Run("destroy deactivates, the row stays", func(t *testing.T) {
		cookies := app.login(t, "tess@test.cd", "secret123")
		req, rec := newRequest(http.MethodDelete, "/courses/"+math.ID, cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		crs, err := app.crsRepo.GetCourseByID(ctx, math.ID)
		if err != nil {
			t.Fatalf("course row gone: %v", err)
		}
		if crs.IsActive {
			t.Error("course still active")
		}
	})
}

func Test_courseApi_enrollment(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	tess := testutil.CreateUser(t, app.usrRepo, "Tess", "Owner", "tess@test.cd", "secret123", user.RoleTeacher, true)
	testutil.CreateUser(t, app.usrRepo, "Paul", "Other", "paul@test.cd", "secret123", user.RoleTeacher, true)
	stu := testutil.CreateUser(t, app.usrRepo, "Stu", "Dent", "stu@test.cd", "secret123", user.RoleStudent, true)

	math := testutil.CreateCourse(t, app.crsRepo, tess.ID, "Math 101", "math", true)
	old := testutil.CreateCourse(t, app.crsRepo, tess.ID, "Retired", "math", false)

	cookies := app.login(t, "stu@test.cd", "secret123")

	t.Run("enroll", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/courses/"+math.ID+"/enroll", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusCreated, rec)

		enrolled, _ := app.crsRepo.IsEnrolled(ctx, stu.ID, math.ID)
		if !enrolled {
			t.Error("enrollment not persisted")
		}
	})

	t.Run("duplicate enroll -> 400, count unchanged", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/courses/"+math.ID+"/enroll", cookies)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "already enrolled in this course"})}
		checkCodeAndData(t, tt, rec)

		enrollments, _ := app.crsRepo.QueryEnrollmentsByCourse(ctx, math.ID)
		if len(enrollments) != 1 {
			t.Errorf("enrollment count = %d; want 1", len(enrollments))
		}
	})

	t.Run("inactive course -> 400", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/courses/"+old.ID+"/enroll", cookies)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "course is not active"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("unknown course -> 404", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/courses/nope/enroll", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusNotFound, rec)
	})

	t.Run("unenroll is idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			req, rec := newRequest(http.MethodPost, "/courses/"+math.ID+"/unenroll", cookies)
			app.server.ServeHTTP(rec, req)
			checkCode(t, http.StatusOK, rec)
		}
		enrolled, _ := app.crsRepo.IsEnrolled(ctx, stu.ID, math.ID)
		if enrolled {
			t.Error("still enrolled after unenroll")
		}
	})

	t.Run("students listing is owner-only", func(t *testing.T) {
		testutil.CreateEnrollment(t, app.crsRepo, stu.ID, math.ID)

		ownerCookies := app.login(t, "tess@test.cd", "secret123")
		req, rec := newRequest(http.MethodGet, "/courses/"+math.ID+"/students", ownerCookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		var students []course.EnrolledStudent
		decodeBody(t, rec, &students)
		if len(students) != 1 || students[0].ID != stu.ID {
			t.Errorf("students = %+v", students)
		}
		if students[0].EnrolledAt.IsZero() {
			t.Error("enrolled_at missing")
		}

		otherCookies := app.login(t, "paul@test.cd", "secret123")
		req, rec = newRequest(http.MethodGet, "/courses/"+math.ID+"/students", otherCookies)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_courseApi_retrieve(t *testing.T) {
	app := setup(t)

	tess := testutil.CreateUser(t, app.usrRepo, "Tess", "Owner", "tess@test.cd", "secret123", user.RoleTeacher, true)
	stu := testutil.CreateUser(t, app.usrRepo, "Stu", "Dent", "stu@test.cd", "secret123", user.RoleStudent, true)

	math := testutil.CreateCourse(t, app.crsRepo, tess.ID, "Math 101", "math", true)
	testutil.CreateEnrollment(t, app.crsRepo, stu.ID, math.ID)
	asg := testutil.CreateAssignment(t, app.asgRepo, math.ID, "HW1", nullTime(), 0)

	cookies := app.login(t, "stu@test.cd", "secret123")
	req, rec := newRequest(http.MethodGet, "/courses/"+math.ID, cookies)
	app.server.ServeHTTP(rec, req)
	checkCode(t, http.StatusOK, rec)

	var resp struct {
		Course course.Detail `json:"course"`
		Assignments []struct {
			ID string `json:"id"`
		} `json:"assignments"`
	}
	decodeBody(t, rec, &resp)
	if resp.Course.ID != math.ID || !resp.Course.IsEnrolled {
		t.Errorf("course = %+v", resp.Course)
	}
	if resp.Course.Teacher.ID != tess.ID {
		t.Errorf("teacher = %+v", resp.Course.Teacher)
	}
	if resp.Course.EnrollmentCount != 1 {
		t.Errorf("enrollment_count = %d", resp.Course.EnrollmentCount)
	}
	if len(resp.Assignments) != 1 || resp.Assignments[0].ID != asg.ID {
		t.Errorf("assignments = %+v", resp.Assignments)
	}
}
