package server

import (
	"github.com/labstack/echo/v4"
)

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := s.clock.Since(s.startTime).Seconds()
	return c.JSON(200, map[string]any{
		"status": "ok",
		"uptime": uptime,
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	// The broker is in-process and holds no external resources, so
	// readiness only reports capacity headroom.
	return c.JSON(200, map[string]any{
		"status":          "ready",
		"queued_updates":  s.broker.QueuedUpdates(),
		"active_waiters":  s.broker.ActiveWaiters(),
		"in_flight_polls": s.pollLimiter.Current(),
	})
}
