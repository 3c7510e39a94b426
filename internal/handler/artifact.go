package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/model"
	"github.com/iliyamo/highway-inspection/internal/service"
)

// Artifacts manages videos and alerts.
type Artifacts interface {
	CreateVideo(ctx context.Context, caller service.Caller, in service.VideoInput) (*model.Video, error)
	GetVideo(ctx context.Context, caller service.Caller, id uint64) (*model.Video, error)
	ListVideos(ctx context.Context, caller service.Caller, f service.VideoFilter) (model.PageResult[model.Video], error)
	VideoResults(ctx context.Context, caller service.Caller, id uint64) ([]model.AnalysisResult, error)
	CreateAlert(ctx context.Context, in service.AlertInput) (*model.AlertEvent, error)
	GetAlert(ctx context.Context, id uint64) (*model.AlertEvent, error)
	ListAlerts(ctx context.Context, f service.AlertFilter) (model.PageResult[model.AlertEvent], error)
	ListActiveAlerts(ctx context.Context) ([]model.AlertEvent, error)
	UpdateAlertStatus(ctx context.Context, id uint64, status model.AlertStatus) (*model.AlertEvent, error)
}

// ArtifactHandler serves /api/videos and /api/alerts.
type ArtifactHandler struct {
	svc Artifacts
	log *zap.Logger
}

func NewArtifactHandler(svc Artifacts, log *zap.Logger) *ArtifactHandler {
	return &ArtifactHandler{svc: svc, log: log}
}

func (h *ArtifactHandler) CreateVideo(c echo.Context) error {
	var in service.VideoInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	v, err := h.svc.CreateVideo(ctx, caller(c), in)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *ArtifactHandler) GetVideo(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	v, err := h.svc.GetVideo(ctx, caller(c), id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// ListVideos accepts ?mission_id=&page=&page_size=.
func (h *ArtifactHandler) ListVideos(c echo.Context) error {
	mid, ok := queryID(c, "mission_id")
	if !ok {
		return badRequest(c, "invalid mission_id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.svc.ListVideos(ctx, caller(c), service.VideoFilter{MissionID: mid, Page: page(c)})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ArtifactHandler) VideoResults(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.svc.VideoResults(ctx, caller(c), id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// CreateAlert is open to the AI collaborator.
func (h *ArtifactHandler) CreateAlert(c echo.Context) error {
	var in service.AlertInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	a, err := h.svc.CreateAlert(ctx, in)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *ArtifactHandler) GetAlert(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	a, err := h.svc.GetAlert(ctx, id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, a)
}

// ListAlerts accepts ?status=&severity=&mission_id=&page=&page_size=.
func (h *ArtifactHandler) ListAlerts(c echo.Context) error {
	mid, ok := queryID(c, "mission_id")
	if !ok {
		return badRequest(c, "invalid mission_id")
	}
	f := service.AlertFilter{
		Status:    model.AlertStatus(c.QueryParam("status")),
		Severity:  model.AlertSeverity(c.QueryParam("severity")),
		MissionID: mid,
		Page:      page(c),
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.svc.ListAlerts(ctx, f)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ArtifactHandler) ActiveAlerts(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.svc.ListActiveAlerts(ctx)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, list)
}

type alertStatusReq struct {
	Status model.AlertStatus `json:"status"`
}

func (h *ArtifactHandler) UpdateAlertStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req alertStatusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	a, err := h.svc.UpdateAlertStatus(ctx, id, req.Status)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, a)
}
