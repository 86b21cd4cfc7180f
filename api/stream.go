package api

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/oceanondawave/CigroTrack-sub001/engine"
)

const sseDataPrefix = "data: "

// Proxies drop idle SSE connections, so the current view is re-sent on a
// timer even without board changes.
const streamKeepalive = 30 * time.Second

// streamBoard pushes the rendered board over SSE: the current view
// immediately, then a fresh render on every engine change.
func streamBoard(mgr *engine.Manager, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		projectID := c.Param("projectID")
		eng := mgr.Project(ctx, projectID)

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		updates := eng.Subscribe()
		defer eng.Unsubscribe(updates)

		logger.WithField("projectId", projectID).Debug("board stream opened")
		defer logger.WithField("projectId", projectID).Debug("board stream closed")

		ticker := time.NewTicker(streamKeepalive)
		defer ticker.Stop()

		for {
			if err := writeBoardEvent(c, flusher, eng.View()); err != nil {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-updates:
			case <-ticker.C:
			}
		}
	}
}

func writeBoardEvent(c echo.Context, flusher http.Flusher, v engine.View) error {
	data, err := sonic.ConfigStd.Marshal(renderBoard(v))
	if err != nil {
		return err
	}
	if _, err := c.Response().Write([]byte(sseDataPrefix)); err != nil {
		return err
	}
	if _, err := c.Response().Write(data); err != nil {
		return err
	}
	if _, err := c.Response().Write([]byte("\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
