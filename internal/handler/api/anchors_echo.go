package api

import (
	"time"

	models "SVUEngine/internal/domain/models"
	domrepo "SVUEngine/internal/domain/repository"
	"SVUEngine/internal/usecase"
	xhttp "SVUEngine/pkg/http"
	xlogger "SVUEngine/pkg/logger"
	"SVUEngine/pkg/queue"
	"SVUEngine/pkg/util"

	"github.com/labstack/echo/v4"
)

// AnchorsEchoHandler exposes the anchor history, bucket status, and audit
// surfaces over Echo.
type AnchorsEchoHandler struct {
	logger *xlogger.Logger
	store  domrepo.AnchorStore
	audit  domrepo.AuditLog
	runner *usecase.Runner
	queue  queue.QueueService // optional; recompute runs inline when nil
}

func NewAnchorsEchoHandler(logger *xlogger.Logger, store domrepo.AnchorStore, audit domrepo.AuditLog, runner *usecase.Runner, q queue.QueueService) *AnchorsEchoHandler {
	return &AnchorsEchoHandler{logger: logger, store: store, audit: audit, runner: runner, queue: q}
}

func (h *AnchorsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/anchors", h.Anchors)
	g.GET("/anchors/latest", h.LatestAnchor)
	g.GET("/buckets", h.Buckets)
	g.GET("/audit", h.Audit)
	g.POST("/recompute", h.Recompute)
}

func (h *AnchorsEchoHandler) Anchors(c echo.Context) error {
	req := &models.AnchorRangeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, ok := util.ParseTime(req.From)
	if !ok {
		return xhttp.BadRequestResponse(c, "invalid from")
	}
	to, ok := util.ParseTime(req.To)
	if !ok {
		return xhttp.BadRequestResponse(c, "invalid to")
	}

	anchors, err := h.store.GetAnchors(c.Request().Context(), req.ItemID, from, to, req.Limit)
	if err != nil {
		h.logger.Error("anchors query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, anchors, int64(len(anchors)))
}

func (h *AnchorsEchoHandler) LatestAnchor(c echo.Context) error {
	req := &models.LatestAnchorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	a, err := h.store.GetLastAnchor(c.Request().Context(), req.ItemID)
	if err != nil {
		h.logger.Error("latest anchor query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if a == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no anchor for item %d", req.ItemID))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, a)
}

func (h *AnchorsEchoHandler) Buckets(c echo.Context) error {
	req := &models.BucketStatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	// Absent bounds mean unbounded on that side.
	from := util.ParseTimeDefault(req.From, time.Time{})
	to := util.ParseTimeDefault(req.To, time.Time{})

	statuses := h.runner.BucketStatuses(from, to)
	return xhttp.ListResponse(c, statuses, int64(len(statuses)))
}

func (h *AnchorsEchoHandler) Audit(c echo.Context) error {
	req := &models.AuditRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	events := h.audit.Events(req.ItemID, req.Kind, req.Limit)
	return xhttp.ListResponse(c, events, int64(len(events)))
}

// Recompute re-runs the pipeline over buffered observations in [from, to].
// With a queue configured the run is asynchronous; otherwise it executes
// inline and returns the run report.
func (h *AnchorsEchoHandler) Recompute(c echo.Context) error {
	req := &models.RecomputeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, ok := util.ParseTime(req.From)
	if !ok {
		return xhttp.BadRequestResponse(c, "invalid from")
	}
	to, ok := util.ParseTime(req.To)
	if !ok {
		return xhttp.BadRequestResponse(c, "invalid to")
	}
	if to.Before(from) {
		return xhttp.BadRequestResponse(c, "to is before from")
	}

	if h.queue != nil {
		payload := usecase.RecomputePayload{From: from.UTC().Format(time.RFC3339), To: to.UTC().Format(time.RFC3339)}
		if err := h.queue.PublishMessage(c.Request().Context(), usecase.RecomputeJobType, payload); err != nil {
			h.logger.Error("recompute enqueue error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.SuccessResponse(c, map[string]string{"status": "queued"})
	}

	report, err := h.runner.RunRange(c.Request().Context(), from, to)
	if err != nil {
		h.logger.Error("recompute run error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}
