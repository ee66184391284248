package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/markussandin1/Newsdeck-sub001/internal/config"
	"github.com/markussandin1/Newsdeck-sub001/internal/domain"
	apperrors "github.com/markussandin1/Newsdeck-sub001/internal/errors"
	"github.com/markussandin1/Newsdeck-sub001/internal/logging"
)

// eventBroker is the slice of the broker the HTTP layer needs.
type eventBroker interface {
	domain.Publisher
	domain.UpdateWaiter
	QueuedUpdates() int
	ActiveWaiters() int
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	broker      eventBroker
	clock       clockwork.Clock
	pollLimiter *pollLimiter
	publishRate *ipRateLimiters
	startTime   time.Time
}

func NewServer(cfg *config.Config, broker eventBroker, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(correlationMiddleware())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:        e,
		config:      cfg,
		broker:      broker,
		clock:       clock,
		pollLimiter: newPollLimiter(cfg.MaxConcurrentPolls),
		publishRate: newIPRateLimiters(cfg.PublishRatePerSec, cfg.PublishBurst),
		startTime:   clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

// correlationMiddleware stamps each request context with a fresh
// correlation ID so all logs for one request can be tied together.
func correlationMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logging.WithCorrelationID(c.Request().Context(), logging.NewCorrelationID())
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
