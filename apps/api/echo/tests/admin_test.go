package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_adminApi_accessControl(t *testing.T) {
	app := setup(t)

	testutil.CreateUser(t, app.usrRepo, "Tess", "Owner", "tess@test.cd", "secret123", user.RoleTeacher, true)
	testutil.CreateUser(t, app.usrRepo, "Stu", "Dent", "stu@test.cd", "secret123", user.RoleStudent, true)

	for _, email := range []string{"tess@test.cd", "stu@test.cd"} {
		cookies := app.login(t, email, "secret123")
		req, rec := newRequest(http.MethodGet, "/admin/stats", cookies)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	}

	req, rec := newRequest(http.MethodGet, "/admin/stats", nil)
	app.server.ServeHTTP(rec, req)
	tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthed)}
	checkCodeAndData(t, tt, rec)
}

func Test_adminApi_stats(t *testing.T) {
	app := setup(t)

	tess := testutil.CreateUser(t, app.usrRepo, "Tess", "Owner", "tess@test.cd", "secret123", user.RoleTeacher, true)
	testutil.CreateUser(t, app.usrRepo, "Uma", "Pending", "uma@test.cd", "secret123", user.RoleTeacher, false)
	testutil.CreateUser(t, app.usrRepo, "Stu", "Dent", "stu@test.cd", "secret123", user.RoleStudent, true)
	testutil.CreateUser(t, app.usrRepo, "Max", "Admin", "max@test.cd", "secret123", user.RoleMasterTeacher, true)

	testutil.CreateCourse(t, app.crsRepo, tess.ID, "Math 101", "math", true)
	testutil.CreateCourse(t, app.crsRepo, tess.ID, "Retired", "math", false)

	cookies := app.login(t, "max@test.cd", "secret123")
	req, rec := newRequest(http.MethodGet, "/admin/stats", cookies)
	app.server.ServeHTTP(rec, req)
	tt := httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, map[string]int{
			"students":         1,
			"teachers":         2,
			"admins":           1,
			"pending_teachers": 1,
			"total_users":      4,
			"courses":          2,
		}),
	}
	checkCodeAndData(t, tt, rec)
}

func Test_adminApi_users(t *testing.T) {
	app := setup(t)

	base := time.Now().UTC().Add(-time.Hour)
	testutil.CreateUser(t, app.usrRepo, "Zara", "One", "zara@test.cd", "secret123", user.RoleStudent, true, base)
	testutil.CreateUser(t, app.usrRepo, "Abel", "Two", "abel@test.cd", "secret123", user.RoleStudent, true, base.Add(time.Minute))
	testutil.CreateUser(t, app.usrRepo, "Tess", "Owner", "tess@test.cd", "secret123", user.RoleTeacher, true, base.Add(2*time.Minute))
	testutil.CreateUser(t, app.usrRepo, "Max", "Admin", "max@test.cd", "secret123", user.RoleMasterTeacher, true, base.Add(3*time.Minute))

	cookies := app.login(t, "max@test.cd", "secret123")

	t.Run("unfiltered returns everyone", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/admin/users", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		var users []user.User
		decodeBody(t, rec, &users)
		if len(users) != 4 {
			t.Errorf("got %d users; want 4", len(users))
		}
	})

	t.Run("role filter", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/admin/users?role=student", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		var users []user.User
		decodeBody(t, rec, &users)
		if len(users) != 2 {
			t.Fatalf("got %d students; want 2", len(users))
		}
		for _, usr := range users {
			if usr.Role != user.RoleStudent {
				t.Errorf("role filter leaked %v", usr.Role)
			}
		}
	})

	t.Run("ordering", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/admin/users?role=student&ordering=first_name", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		var users []user.User
		decodeBody(t, rec, &users)
		if len(users) != 2 || users[0].FirstName != "Abel" {
			t.Errorf("ascending order off: %+v", users)
		}

		req, rec = newRequest(http.MethodGet, "/admin/users?role=student&ordering=-first_name", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		decodeBody(t, rec, &users)
		if len(users) != 2 || users[0].FirstName != "Zara" {
			t.Errorf("descending order off: %+v", users)
		}
	})
}

func Test_adminApi_userLifecycle(t *testing.T) {
	app := setup(t)
	ctx := context.Background()
	emailsvc.ClearSentMessages()

	uma := testutil.CreateUser(t, app.usrRepo, "Uma", "Pending", "uma@test.cd", "secret123", user.RoleTeacher, false)
	stu := testutil.CreateUser(t, app.usrRepo, "Stu", "Dent", "stu@test.cd", "secret123", user.RoleStudent, true)
	max := testutil.CreateUser(t, app.usrRepo, "Max", "Admin", "max@test.cd", "secret123", user.RoleMasterTeacher, true)

	cookies := app.login(t, "max@test.cd", "secret123")

	t.Run("pending-teachers", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/admin/pending-teachers", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		var users []user.User
		decodeBody(t, rec, &users)
		if len(users) != 1 || users[0].ID != uma.ID {
			t.Errorf("pending teachers = %+v", users)
		}
	})

	t.Run("approve notifies the teacher", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/admin/users/"+uma.ID+"/approve", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		got, _ := app.usrRepo.GetUserByID(ctx, uma.ID)
		if !got.IsApproved {
			t.Error("teacher not approved")
		}
		if n := len(emailsvc.SentMessages); n != 1 {
			t.Fatalf("sent %d emails; want 1", n)
		}
		if subj := emailsvc.SentMessages[0].Subject; subj != "Your teacher account has been approved" {
			t.Errorf("subject = %q", subj)
		}
	})

	t.Run("reject flips approval back", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/admin/users/"+uma.ID+"/reject", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		got, _ := app.usrRepo.GetUserByID(ctx, uma.ID)
		if got.IsApproved {
			t.Error("teacher still approved")
		}
	})

	t.Run("approve a student -> 400", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/admin/users/"+stu.ID+"/approve", cookies)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "user is not a teacher"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("promote makes an approved admin", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/admin/users/"+uma.ID+"/promote", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		got, _ := app.usrRepo.GetUserByID(ctx, uma.ID)
		if got.Role != user.RoleMasterTeacher || !got.IsApproved {
			t.Errorf("promoted user = %+v", got)
		}
	})

	t.Run("update another user's role", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"role": "teacher"})
		req, rec := newRequest(http.MethodPut, "/admin/users/"+uma.ID, cookies, body)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		got, _ := app.usrRepo.GetUserByID(ctx, uma.ID)
		if got.Role != user.RoleTeacher {
			t.Errorf("role = %v", got.Role)
		}
	})

	t.Run("self-demote -> 400", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"role": "teacher"})
		req, rec := newRequest(http.MethodPut, "/admin/users/"+max.ID, cookies, body)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]interface{}{"error": map[string]string{"role": "cannot demote own account"}}),
		}
		checkCodeAndData(t, tt, rec)

		got, _ := app.usrRepo.GetUserByID(ctx, max.ID)
		if got.Role != user.RoleMasterTeacher {
			t.Errorf("admin demoted themselves: %v", got.Role)
		}
	})

	t.Run("self-delete -> 400", func(t *testing.T) {
		req, rec := newRequest(http.MethodDelete, "/admin/users/"+max.ID, cookies)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "cannot delete own account"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("delete another user", func(t *testing.T) {
		req, rec := newRequest(http.MethodDelete, "/admin/users/"+stu.ID, cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		if _, err := app.usrRepo.GetUserByID(ctx, stu.ID); !core.IsNotFound(err) {
			t.Errorf("user still present, err = %v", err)
		}
	})

	t.Run("delete unknown user -> 404", func(t *testing.T) {
		req, rec := newRequest(http.MethodDelete, "/admin/users/nope", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusNotFound, rec)
	})
}

func Test_adminApi_courses(t *testing.T) {
	app := setup(t)

	tess := testutil.CreateUser(t, app.usrRepo, "Tess", "Owner", "tess@test.cd", "secret123", user.RoleTeacher, true)
	stu := testutil.CreateUser(t, app.usrRepo, "Stu", "Dent", "stu@test.cd", "secret123", user.RoleStudent, true)
	testutil.CreateUser(t, app.usrRepo, "Max", "Admin", "max@test.cd", "secret123", user.RoleMasterTeacher, true)

	math := testutil.CreateCourse(t, app.crsRepo, tess.ID, "Math 101", "math", true)
	old := testutil.CreateCourse(t, app.crsRepo, tess.ID, "Retired", "math", false)
	testutil.CreateEnrollment(t, app.crsRepo, stu.ID, math.ID)

	cookies := app.login(t, "max@test.cd", "secret123")
	req, rec := newRequest(http.MethodGet, "/admin/courses", cookies)
	app.server.ServeHTTP(rec, req)
	checkCode(t, http.StatusOK, rec)

	var infos []course.Info
	decodeBody(t, rec, &infos)
	if len(infos) != 2 {
		t.Fatalf("got %d courses; want 2 (inactive included)", len(infos))
	}
	byID := make(map[string]course.Info, len(infos))
	for _, info := range infos {
		byID[info.ID] = info
	}
	if got := byID[math.ID]; got.TeacherName != "Tess Owner" || got.EnrollmentCount != 1 {
		t.Errorf("math info = %+v", got)
	}
	if got := byID[old.ID]; got.EnrollmentCount != 0 {
		t.Errorf("retired info = %+v", got)
	}
}
