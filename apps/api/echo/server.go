package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
)

type Server struct {
	conf     *core.Config
	logger   core.Logger
	app      *echo.Echo
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(conf *core.Config, logger core.Logger, deliverableSvc deliverable.ServiceInterface) *Server {
	s := &Server{
		conf:     conf,
		logger:   logger,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deliverableSvc)
	return s
}

func (s *Server) setup(deliverableSvc deliverable.ServiceInterface) {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.conf.Server.BodyLimit != "" {
		s.app.Use(middleware.BodyLimit(s.conf.Server.BodyLimit))
	}

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := jwtMiddleware(s.conf.SecretKey)

	registerDeliverableAPI(v1, jwt, deliverableSvc)
}

// Start listens on conf.Server.Host until Shutdown or Close is called; other failures are sent to Errors.
func (s *Server) Start() {
	srv := &http.Server{
		Addr:         s.conf.Server.Host,
		ReadTimeout:  s.conf.Server.ReadTimeout,
		WriteTimeout: s.conf.Server.WriteTimeout,
	}
	if err := s.app.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
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
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
