package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Long-poll endpoint consumed by column clients
	s.echo.GET("/api/columns/:id/updates", s.handleColumnUpdates)

	// Publish endpoint fed by the ingestion pipeline
	s.echo.POST("/api/columns/publish", s.handlePublish)
}
