package api

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/oceanondawave/CigroTrack-sub001/domain"
	"github.com/oceanondawave/CigroTrack-sub001/engine"
)

// Register wires up all board gateway routes on the provided Echo instance.
func Register(e *echo.Echo, mgr *engine.Manager, logger *log.Logger) {
	e.GET("/healthz", healthz())

	e.GET("/api/projects/:projectID/board", getBoard(mgr))
	e.POST("/api/projects/:projectID/refresh", postRefresh(mgr))
	e.POST("/api/projects/:projectID/issues/:issueID/move", postMove(mgr))
	e.POST("/api/projects/:projectID/statuses", postStatus(mgr))
	e.PATCH("/api/projects/:projectID/statuses/:statusID", patchStatus(mgr))
	e.DELETE("/api/projects/:projectID/statuses/:statusID", deleteStatus(mgr))
	e.PUT("/api/projects/:projectID/wip-limits/:status", putWipLimit(mgr))
	e.GET("/api/projects/:projectID/stream", streamBoard(mgr, logger))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getBoard(mgr *engine.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		eng := mgr.Project(c.Request().Context(), c.Param("projectID"))
		return c.JSON(http.StatusOK, renderBoard(eng.View()))
	}
}

func postRefresh(mgr *engine.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		eng := mgr.Project(ctx, c.Param("projectID"))
		if err := eng.Refresh(ctx); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, renderBoard(eng.View()))
	}
}

func postMove(mgr *engine.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		var req moveRequest
		if err := decodeRequest(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		eng := mgr.Project(ctx, c.Param("projectID"))
		issue, err := eng.MoveIssue(ctx, c.Param("issueID"), req.ToStatus, req.Index)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, issue)
	}
}

func postStatus(mgr *engine.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		var draft domain.StatusDraft
		if err := decodeRequest(c, &draft); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		eng := mgr.Project(ctx, c.Param("projectID"))
		status, err := eng.CreateStatus(ctx, draft.Name, draft.Color, draft.Position)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, status)
	}
}

func patchStatus(mgr *engine.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		var patch domain.StatusPatch
		if err := decodeRequest(c, &patch); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		eng := mgr.Project(ctx, c.Param("projectID"))
		status, err := eng.UpdateStatus(ctx, c.Param("statusID"), patch)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, status)
	}
}

func deleteStatus(mgr *engine.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		eng := mgr.Project(ctx, c.Param("projectID"))
		if err := eng.DeleteStatus(ctx, c.Param("statusID")); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func putWipLimit(mgr *engine.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		var req wipLimitRequest
		if err := decodeRequest(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		eng := mgr.Project(ctx, c.Param("projectID"))
		limit, err := eng.SetWipLimit(ctx, statusParam(c), req.Limit)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, wipLimitRequest{Limit: limit})
	}
}

// statusParam returns the :status path segment. Status names may contain
// spaces, so an escaped segment is unescaped before use.
func statusParam(c echo.Context) string {
	raw := c.Param("status")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		return unescaped
	}
	return raw
}

// writeError maps the error taxonomy onto HTTP statuses. Anything the
// taxonomy does not claim is an internal error and gets logged.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case domain.IsValidation(err):
		status = http.StatusBadRequest
	case domain.IsConflict(err):
		status = http.StatusConflict
	case domain.IsNotFound(err):
		status = http.StatusNotFound
	case domain.IsTransport(err):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
	}
	return c.JSON(status, errorResponse{Error: err.Error()})
}
