package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/casefile"
	"github.com/trezcool/acolher/core/child"
	"github.com/trezcool/acolher/core/community"
	"github.com/trezcool/acolher/core/finance"
	"github.com/trezcool/acolher/core/institution"
	"github.com/trezcool/acolher/core/profile"
	"github.com/trezcool/acolher/core/schedule"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Metrics    *Metrics // optional

		InstitutionSvc *institution.Service
		ProfileSvc     *profile.Service
		ChildSvc       *child.Service
		CaseFileSvc    *casefile.Service
		CommunitySvc   *community.Service
		ScheduleSvc    *schedule.Service
		FinanceSvc     *finance.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		jwt      jwtConfig
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil) // interface compliance check

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		jwt:      newJWTConfig(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	if s.deps.Metrics != nil {
		s.app.Use(s.deps.Metrics.Middleware())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	authed := []echo.MiddlewareFunc{middleware.JWTWithConfig(s.jwt.JWTConfig), sessionMiddleware(s.deps.ProfileSvc)}

	registerProfileAPI(v1, authed, s.jwt, s.deps.ProfileSvc, s.deps.InstitutionSvc, s.deps.Validate)
	registerInstitutionAPI(v1, authed, s.deps.InstitutionSvc, s.deps.Validate)
	registerChildAPI(v1, authed, s.deps.ChildSvc, s.deps.Validate)
	registerCaseFileAPI(v1, authed, s.deps.CaseFileSvc, s.deps.Validate)
	registerCommunityAPI(v1, authed, s.deps.CommunitySvc, s.deps.Validate)
	registerScheduleAPI(v1, authed, s.deps.ScheduleSvc, s.deps.Validate)
	registerFinanceAPI(v1, authed, s.deps.FinanceSvc, s.deps.Validate)
}

// Start listens on the configured host; a listener failure is reported on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the process to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
