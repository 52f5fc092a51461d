package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/socialpost/postctl/internal/config"
)

const shutdownTimeout time.Duration = 10 * time.Second

// SessionStatus reports on the session the agent keeps alive.
type SessionStatus interface {
	IsAuthenticated(ctx context.Context) (bool, error)
	CookieExpiry() (time.Time, error)
}

// ActivityTimer is the idle timer, reset on every activity signal.
type ActivityTimer interface {
	Start()
	Reset()
	Stop()
}

// Job is a background job that runs while the agent is up, like the session keepalive.
type Job interface {
	Start() error
	Stop()
}

// Server is the local agent: a small HTTP server that other tools call to report user activity
// and query the session, while it keeps the session alive in the background.
type Server struct {
	agentConfig      config.AgentConfig
	monitoringConfig config.MonitoringConfig
	version          string
	session          SessionStatus
	idle             ActivityTimer
	jobs             []Job
	registry         *prometheus.Registry
	logger           *slog.Logger

	echo    *echo.Echo
	metrics *echo.Echo
}

type ServerOption func(*Server) error

func WithConfig(cfg config.Config) ServerOption {
	return func(s *Server) error {
		s.agentConfig = cfg.Agent
		s.monitoringConfig = cfg.Monitoring
		return nil
	}
}

func WithVersion(version string) ServerOption {
	return func(s *Server) error {
		s.version = version
		return nil
	}
}

func WithSession(session SessionStatus) ServerOption {
	return func(s *Server) error {
		s.session = session
		return nil
	}
}

func WithIdleTimer(idle ActivityTimer) ServerOption {
	return func(s *Server) error {
		s.idle = idle
		return nil
	}
}

func WithJobs(jobs ...Job) ServerOption {
	return func(s *Server) error {
		s.jobs = append(s.jobs, jobs...)
		return nil
	}
}

// WithRegistry sets the registry exposed on the metrics port, the API client metrics are registered there too.
func WithRegistry(registry *prometheus.Registry) ServerOption {
	return func(s *Server) error {
		s.registry = registry
		return nil
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

func NewServer(options ...ServerOption) (*Server, error) {
	s := &Server{agentConfig: config.AgentConfig{Host: "127.0.0.1", Port: 8765}}
	for _, opt := range options {
		err := opt(s)
		if err != nil {
			return nil, err
		}
	}
	if s.session == nil {
		return nil, fmt.Errorf("a session is required to create the agent")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	e := echo.New()
	// The banner and the port do not respect the logger formatting
	e.HideBanner = true
	e.HidePort = true
	e.Pre(middleware.RequestID(), middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), requestLogger(s.logger))
	if s.monitoringConfig.Sentry.Enabled {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}
	if s.monitoringConfig.Prometheus.Enabled {
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Namespace:  "postctl",
			Subsystem:  "agent",
			Registerer: s.registry,
		}))
		s.metrics = echo.New()
		s.metrics.HideBanner = true
		s.metrics.HidePort = true
		s.metrics.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: s.registry}))
	}
	s.echo = e
	s.registerHandlers()
	return s, nil
}

func (s *Server) registerHandlers() {
	s.echo.GET("/health", s.health)
	s.echo.GET("/version", s.versionHandler)
	s.echo.POST("/activity", s.activity)
	s.echo.GET("/session", s.sessionHandler)
}

// Handler exposes the agent routes, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	for _, job := range s.jobs {
		err := job.Start()
		if err != nil {
			return err
		}
		defer job.Stop()
	}
	if s.idle != nil {
		s.idle.Start()
		defer s.idle.Stop()
	}
	errs := make(chan error, 2)
	if s.metrics != nil {
		go func() {
			address := fmt.Sprintf("%s:%d", s.agentConfig.Host, s.monitoringConfig.Prometheus.Port)
			slog.Info("AGENT", "message", "starting the metrics server", "address", address)
			err := s.metrics.Start(address)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("prometheus server failed to start: %w", err)
			}
		}()
	}
	address := fmt.Sprintf("%s:%d", s.agentConfig.Host, s.agentConfig.Port)
	slog.Info("AGENT", "message", "starting the agent", "address", address)
	go func() {
		err := s.echo.Start(address)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("AGENT", "message", "received signal to shut down the agent")
	case runErr = <-errs:
		slog.Error("AGENT", "message", "a server stopped unexpectedly", "error", runErr)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.echo.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutting down the agent gracefully failed: %w", err)
	}
	if s.metrics != nil {
		err = s.metrics.Shutdown(shutdownCtx)
		if err != nil {
			return fmt.Errorf("shutting down the metrics server gracefully failed: %w", err)
		}
	}
	return runErr
}

// Address returns the address the agent listens on once it has started, empty before.
func (s *Server) Address() string {
	addr := s.echo.ListenerAddr()
	if addr == nil {
		return ""
	}
	return addr.String()
}
