package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/markussandin1/Newsdeck-sub001/internal/domain"
	apperrors "github.com/markussandin1/Newsdeck-sub001/internal/errors"
	"github.com/markussandin1/Newsdeck-sub001/internal/filter"
	"github.com/markussandin1/Newsdeck-sub001/internal/metrics"
)

// updatesResponse is the long-poll response body. Timestamp is always
// present and is the server clock at response time, so clients can use
// it as their next "since" value even on an empty result.
type updatesResponse struct {
	Success   bool          `json:"success"`
	Items     []domain.Item `json:"items"`
	Timestamp int64         `json:"timestamp"`
}

func (s *Server) handleColumnUpdates(c echo.Context) error {
	columnID := c.Param("id")
	if columnID == "" {
		return apperrors.ValidationError("column id is required")
	}

	since, err := parseSince(c.QueryParam("since"))
	if err != nil {
		return apperrors.ValidationError("since must be epoch milliseconds").
			WithField("since", c.QueryParam("since"))
	}

	pred, err := filter.Compile(c.QueryParam("filter"))
	if err != nil {
		return apperrors.ValidationError("invalid filter expression").
			WithField("filter", c.QueryParam("filter")).
			WithField("compile_error", err.Error())
	}

	if !s.pollLimiter.Acquire() {
		metrics.PollRequestsTotal.WithLabelValues("rejected").Inc()
		return apperrors.OverloadedError("too many concurrent polls")
	}
	defer s.pollLimiter.Release()

	items, err := s.broker.Wait(c.Request().Context(), columnID, since, s.config.PollTimeout)
	if err != nil {
		// Caller went away mid-wait; nothing left to respond to.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			metrics.PollRequestsTotal.WithLabelValues("cancelled").Inc()
			return nil
		}
		return apperrors.InternalError("wait failed", err).WithField("column", columnID)
	}

	now := s.clock.Now()
	items = pred.Apply(items, now)
	if items == nil {
		items = []domain.Item{}
	}

	if len(items) > 0 {
		metrics.PollRequestsTotal.WithLabelValues("items").Inc()
	} else {
		metrics.PollRequestsTotal.WithLabelValues("empty").Inc()
	}

	resp := updatesResponse{
		Success:   true,
		Items:     items,
		Timestamp: now.UnixMilli(),
	}
	if err := c.JSON(200, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// parseSince turns the optional since query parameter into a time.
// Absent means "from the beginning", represented as the zero time.
func parseSince(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, fmt.Errorf("invalid since value %q", raw)
	}
	return time.UnixMilli(ms), nil
}
