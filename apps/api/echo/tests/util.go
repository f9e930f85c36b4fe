package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/message"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

var (
	errNotAuthed = httpErr{Error: "Not authenticated"}
	errForbidden = httpErr{Error: "Insufficient permissions"}
)

type testApp struct {
	server Server

	usrRepo user.Repository
	crsRepo course.Repository
	asgRepo assignment.Repository
	msgRepo message.Repository
}

func setup(t *testing.T) *testApp {
	t.Helper()

	// set up DB & repos
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	crsRepo := inmemdb.NewCourseRepository(db)
	asgRepo := inmemdb.NewAssignmentRepository(db)
	msgRepo := inmemdb.NewMessageRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock()
	logger := logsvc.NewConsoleLogger(log.New(io.Discard, "", 0))
	usrSvc := user.NewServiceMock(usrRepo, mailSvc)
	asgSvc := assignment.NewService(asgRepo, crsRepo, usrRepo)
	crsSvc := course.NewService(crsRepo, usrRepo, asgRepo, logger)
	msgSvc := message.NewService(msgRepo, usrRepo, crsRepo)

	// set up server
	server := NewServer(&Options{
		DisableReqLogs: true,
		Logger:         logger,
		UserSvc:        usrSvc,
		CourseSvc:      crsSvc,
		AssignmentSvc:  asgSvc,
		MessageSvc:     msgSvc,
	})

	return &testApp{
		server:  server,
		usrRepo: usrRepo,
		crsRepo: crsRepo,
		asgRepo: asgRepo,
		msgRepo: msgRepo,
	}
}

type httpErr struct {
	Error string `json:"error"`
}

func nullTime(t ...time.Time) null.Time {
	if len(t) > 0 {
		return null.TimeFrom(t[0])
	}
	return null.Time{}
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	cookies  []*http.Cookie
	wantCode int
	wantData []byte
	extra    interface{}
}

func newRequest(method, path string, cookies []*http.Cookie, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

// login authenticates via the API and returns the session cookies.
func (app *testApp) login(t *testing.T, email, pwd string) []*http.Cookie {
	t.Helper()

	body := marchallObj(t, map[string]string{"email": email, "password": pwd})
	req, rec := newRequest(http.MethodPost, "/auth/login", nil, body)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login(%s) failed: code = %v; body = %s", email, rec.Code, rec.Body.String())
	}
	return rec.Result().Cookies()
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func checkCode(t *testing.T, wantCode int, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != wantCode {
		t.Fatalf("failed! code = %v; wantCode %v; body = %s", rec.Code, wantCode, rec.Body.String())
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decodeBody() failed: %v; body = %s", err, rec.Body.String())
	}
}
