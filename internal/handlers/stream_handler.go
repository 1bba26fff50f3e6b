package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/metrics"
	"shopsquad/internal/squads"
)

const streamKeepAlive = 25 * time.Second

// StreamHandler pushes the identity's squad list over server-sent events
type StreamHandler struct {
	dir       *squads.Directory
	metrics   *metrics.Metrics
	logger    *slog.Logger
	keepAlive time.Duration
	shutdown  <-chan struct{}
}

func NewStreamHandler(dir *squads.Directory, m *metrics.Metrics, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{dir: dir, metrics: m, logger: logger, keepAlive: streamKeepAlive}
}

// Squads handles GET /api/squads/stream. Every snapshot is sent as a
// "squads" event; a failed feed ends with an "error" event.
func (h *StreamHandler) Squads(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	feed, err := h.dir.List(ctx, identity)
	if err != nil {
		return err
	}
	defer feed.Close()

	if h.metrics != nil {
		h.metrics.LiveSubscriptions.Inc()
		defer h.metrics.LiveSubscriptions.Dec()
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.shutdown:
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case list, ok := <-feed.Updates():
			if !ok {
				msg := apperrors.GenericMessage
				if err := feed.Err(); err != nil {
					h.logger.Warn("squad feed ended", "user_id", identity.ID, "error", err)
					msg = apperrors.Message(err)
				}
				_ = writeEvent(res, "error", ErrorEvent{Error: msg})
				return nil
			}
			if err := writeEvent(res, "squads", SquadsResponse{Squads: list}); err != nil {
				return nil
			}
		}
	}
}

// ErrorEvent is the payload of the terminal "error" event
type ErrorEvent struct {
	Error string `json:"error"`
}

func writeEvent(res *echo.Response, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
