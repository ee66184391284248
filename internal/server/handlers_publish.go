package server

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/markussandin1/Newsdeck-sub001/internal/domain"
	apperrors "github.com/markussandin1/Newsdeck-sub001/internal/errors"
	"github.com/markussandin1/Newsdeck-sub001/internal/metrics"
)

const maxItemsPerPublish = 500

// publishRequest is the ingestion-side request body. The pipeline has
// already decided which columns the batch belongs to.
type publishRequest struct {
	ColumnIDs []string      `json:"column_ids"`
	Items     []domain.Item `json:"items"`
}

type publishResponse struct {
	Success   bool  `json:"success"`
	Published int   `json:"published"`
	Timestamp int64 `json:"timestamp"`
}

func (s *Server) handlePublish(c echo.Context) error {
	if !s.publishRate.Allow(c.RealIP()) {
		metrics.IngestRejectedTotal.Inc()
		return apperrors.RateLimitedError("publish rate exceeded").WithField("ip", c.RealIP())
	}

	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if len(req.ColumnIDs) == 0 {
		return apperrors.ValidationError("column_ids must not be empty")
	}
	if len(req.Items) == 0 {
		return apperrors.ValidationError("items must not be empty")
	}
	if len(req.Items) > maxItemsPerPublish {
		return apperrors.ValidationError("too many items in one publish").
			WithField("items", len(req.Items)).
			WithField("max", maxItemsPerPublish)
	}
	for _, id := range req.ColumnIDs {
		if id == "" {
			return apperrors.ValidationError("column_ids must not contain empty ids")
		}
	}

	nowMs := s.clock.Now().UnixMilli()
	for i := range req.Items {
		if req.Items[i].ID == "" {
			req.Items[i].ID = uuid.NewString()
		}
		if req.Items[i].CreatedMs == 0 {
			req.Items[i].CreatedMs = nowMs
		}
	}

	s.broker.Publish(req.ColumnIDs, req.Items)
	metrics.IngestItemsTotal.Add(float64(len(req.Items)))
	slog.InfoContext(c.Request().Context(), "Published items",
		"columns", len(req.ColumnIDs), "items", len(req.Items))

	resp := publishResponse{
		Success:   true,
		Published: len(req.Items),
		Timestamp: nowMs,
	}
	if err := c.JSON(200, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
