package echoapi

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/message"
	"github.com/trezcool/darasa/core/user"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		Logger        core.Logger
		UserSvc       user.Service
		CourseSvc     course.Service
		AssignmentSvc assignment.Service
		MessageSvc    message.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		shutdown chan struct{}
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		shutdown: make(chan struct{}, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(session.Middleware(sessions.NewCookieStore([]byte(core.Conf.SecretKey))))
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.signalShutdown)
	s.app.Debug = core.Conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	registerAuthAPI(s.app, s.opts.UserSvc)
	registerCourseAPI(s.app, s.opts.CourseSvc, s.opts.AssignmentSvc, s.opts.UserSvc)
	registerAssignmentAPI(s.app, s.opts.AssignmentSvc, s.opts.CourseSvc, s.opts.UserSvc)
	registerMessageAPI(s.app, s.opts.MessageSvc, s.opts.UserSvc)
	registerAdminAPI(s.app, s.opts.UserSvc, s.opts.CourseSvc)
}

// signalShutdown requests a graceful stop; the Start loop picks it up.
func (s *server) signalShutdown() {
	select {
	case s.shutdown <- struct{}{}:
	default:
	}
}

func (s *server) Start() error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.app.Start(s.opts.Address)
	}()

	select {
	case err := <-errc:
		return err
	case <-s.shutdown:
		ctx, cancel := context.WithTimeout(context.Background(), core.Conf.Server.ShutdownTimeout)
		defer cancel()
		return s.Stop(ctx)
	}
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+core.Conf.AppName+" API!")
}
