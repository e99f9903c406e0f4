package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/akave-ai/devserve/internal/config"
	"github.com/akave-ai/devserve/internal/console"
	"github.com/akave-ai/devserve/internal/handler"
	"github.com/akave-ai/devserve/internal/ingest"
	appmw "github.com/akave-ai/devserve/internal/middleware"
	"github.com/akave-ai/devserve/internal/response"
	"github.com/akave-ai/devserve/internal/telemetry"
)

// Server holds the Echo app and dependencies.
type Server struct {
	Echo   *echo.Echo
	Config *config.Config
	log    zerolog.Logger
	apm    *newrelic.Application // optional; flushed on Shutdown
}

// Options are the collaborators New wires into the router.
type Options struct {
	Console console.Sink
	Logger  zerolog.Logger
	APM     *newrelic.Application
}

// New builds the Echo server and registers the single catch-all route.
func New(cfg *config.Config, opts Options) *Server {
	log := opts.Logger
	sink := opts.Console
	if sink == nil {
		sink = console.New(nil)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = response.ErrorHandler(log)
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	e.Use(
		middleware.Recover(),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}),
	)
	// Outside the logger so the access log and APM still see handler errors.
	if cfg.Server.Sequential {
		e.Use(appmw.Sequential())
	}
	e.Use(
		appmw.RequestLogger(log),
		appmw.NewRelic(opts.APM),
	)
	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.Server.CORSAllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost},
		}))
	}

	router := &handler.Router{
		IngestPath: cfg.Ingest.Path,
		Reports: &handler.ReportHandler{
			Sink: sink,
			Log:  log,
			APM:  opts.APM,
		},
		Static: handler.NewStatic(handler.StaticOptions{
			Root:   cfg.Static.Root,
			Index:  cfg.Static.Index,
			Browse: cfg.Static.Browse,
		}),
	}
	e.Any("/*", router.Handle)

	return &Server{Echo: e, Config: cfg, log: log, apm: opts.APM}
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down and
// returns once in-flight requests have finished. ln is owned by the server
// from here on and is closed by Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Echo.Listener = ingest.WrapListener(ln, s.Config.Ingest.Path)
	defer ln.Close()

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), s.Config.Server.ShutdownTimeout)
		defer cancel()
		shutdownErr <- s.Shutdown(sctx)
	}()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("root", s.Config.Static.Root).
		Str("ingest", s.Config.Ingest.Path).
		Bool("sequential", s.Config.Server.Sequential).
		Msg("serving")
	s.log.Info().Msg("to stop the server, press Ctrl+C")

	if err := s.Echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdownErr
}

// Shutdown stops accepting connections, waits for in-flight requests and
// flushes the APM agent.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	timeout := s.Config.Server.ShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	telemetry.Shutdown(s.apm, timeout)
	return err
}
