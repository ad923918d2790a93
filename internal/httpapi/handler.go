package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ChuLiYu/stepflow/internal/controller"
	"github.com/ChuLiYu/stepflow/internal/scheduler"
	"github.com/ChuLiYu/stepflow/internal/snapshot"
	"github.com/ChuLiYu/stepflow/pkg/types"
)

var log = slog.Default()

// Planner is the part of the controller the HTTP handlers need.
type Planner interface {
	Order(edges []types.Edge[types.TaskID], isolated []types.TaskID) (*types.PlanReport, error)
	Makespan(edges []types.Edge[types.TaskID], isolated []types.TaskID, opts controller.Options) (*types.PlanReport, error)
	OptionsFor(req types.PlanRequest) controller.Options
	Ready(req types.PlanRequest) ([]types.TaskID, error)
	LastReport() (types.PlanReport, error)
	RejectInput(source string, err error)
}

// PlanHandler serves the /v1 scheduling endpoints.
type PlanHandler struct {
	planner Planner
}

// NewPlanHandler creates a PlanHandler.
func NewPlanHandler(planner Planner) *PlanHandler {
	return &PlanHandler{planner: planner}
}

// Order computes the canonical order.
// POST /v1/order
func (h *PlanHandler) Order(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}
	report, err := h.planner.Order(req.Edges, req.Tasks)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(report))
}

// Makespan simulates the run on the requested worker pool.
// POST /v1/makespan
func (h *PlanHandler) Makespan(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}
	report, err := h.planner.Makespan(req.Edges, req.Tasks, h.planner.OptionsFor(req))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(report))
}

// Ready lists the tasks that can start once req.Completed have finished.
// POST /v1/ready
func (h *PlanHandler) Ready(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}
	ready, err := h.planner.Ready(req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(types.ReadyResponse{Ready: ready}))
}

// Report returns the last persisted report.
// GET /v1/report
func (h *PlanHandler) Report(c *gin.Context) {
	report, err := h.planner.LastReport()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(report))
}

func (h *PlanHandler) bindRequest(c *gin.Context) (types.PlanRequest, bool) {
	var req types.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.planner.RejectInput(c.FullPath(), err)
		c.JSON(http.StatusBadRequest, NewErrorResponse(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err)))
		return req, false
	}
	return req, true
}

func writeError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(code, NewErrorResponse(code, err.Error()))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, scheduler.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, scheduler.ErrCyclicDependency):
		return http.StatusUnprocessableEntity
	case errors.Is(err, snapshot.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, controller.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	version   string
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler reporting version.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// Check reports liveness and uptime.
func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, NewSuccessResponse(HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().Unix(),
	}))
}
