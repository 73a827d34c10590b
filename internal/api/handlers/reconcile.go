package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/summons-reconcile/internal/adapters/loader"
	"github.com/eshaffer321/summons-reconcile/internal/api/dto"
	"github.com/eshaffer321/summons-reconcile/internal/application/service"
)

// Reconciler is the job service as seen by the HTTP layer.
type Reconciler interface {
	StartJob(ctx context.Context, req service.JobRequest) (string, error)
	Status() service.JobStatus
	Cancel() error
}

// ReconcileHandler handles live reconciliation job requests.
type ReconcileHandler struct {
	svc Reconciler
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(svc Reconciler) *ReconcileHandler {
	return &ReconcileHandler{svc: svc}
}

// Start handles POST /api/reconcile - starts a job in the background.
func (h *ReconcileHandler) Start(c *gin.Context) {
	var req dto.StartReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	targets, err := loader.Records(req.Targets)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ValidationError("targets: "+err.Error()))
		return
	}
	pool, err := loader.Records(req.Pool)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ValidationError("pool: "+err.Error()))
		return
	}

	source := req.Source
	if source == "" {
		source = "api"
	}

	jobID, err := h.svc.StartJob(c.Request.Context(), service.JobRequest{
		Source:  source,
		Targets: targets,
		Pool:    pool,
	})
	switch {
	case errors.Is(err, service.ErrJobRunning):
		c.AbortWithStatusJSON(http.StatusConflict, dto.ConflictError(err.Error()))
		return
	case errors.Is(err, service.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	case errors.Is(err, service.ErrClosed):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.UnavailableError(err.Error()))
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusAccepted, dto.StartReconcileResponse{
		JobID:  jobID,
		Status: "running",
	})
}

// Status handles GET /api/reconcile - reports the current job.
func (h *ReconcileHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, toStatusResponse(h.svc.Status()))
}

// Cancel handles DELETE /api/reconcile - stops the running job.
func (h *ReconcileHandler) Cancel(c *gin.Context) {
	if err := h.svc.Cancel(); err != nil {
		if errors.Is(err, service.ErrNoActiveJob) {
			c.AbortWithStatusJSON(http.StatusNotFound, dto.NotFoundError("running job"))
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "reconciliation cancelled"})
}

func toStatusResponse(status service.JobStatus) dto.ReconcileStatusResponse {
	resp := dto.ReconcileStatusResponse{
		JobID:    status.JobID,
		State:    string(status.State),
		Progress: status.Progress,
		Outcome:  string(status.Outcome),
		Error:    status.Error,
	}
	if status.StartedAt != nil {
		started := status.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &started
	}
	return resp
}
