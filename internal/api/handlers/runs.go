package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/summons-reconcile/internal/api/dto"
	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
	"github.com/eshaffer321/summons-reconcile/internal/infrastructure/storage"
)

// RunsHandler handles reconciliation run history requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/runs - returns recent runs, newest first.
func (h *RunsHandler) List(c *gin.Context) {
	limit := ParseIntParam(c, "limit", 20)

	runs, err := h.repo.ListRuns(limit)
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RunListResponse{
		Runs:  make([]dto.RunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	h.WriteJSON(c, http.StatusOK, response)
}

// Get handles GET /api/runs/:id - returns a run with its results.
func (h *RunsHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	run, err := h.repo.GetRun(id)
	if errors.Is(err, storage.ErrRunNotFound) {
		h.WriteError(c, http.StatusNotFound, dto.NotFoundError("run"))
		return
	}
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	results, err := h.repo.GetResults(id)
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RunDetailResponse{
		RunResponse: toRunResponse(*run),
		Results:     make([]dto.MatchResultResponse, 0, len(results)),
	}
	for _, result := range results {
		response.Results = append(response.Results, toMatchResultResponse(result))
	}

	h.WriteJSON(c, http.StatusOK, response)
}

// toRunResponse converts a storage Run to an API response.
func toRunResponse(run storage.Run) dto.RunResponse {
	resp := dto.RunResponse{
		ID:             run.ID,
		Source:         run.Source,
		Status:         run.Status,
		TargetCount:    run.TargetCount,
		PoolCount:      run.PoolCount,
		MatchedCount:   run.MatchedCount,
		UnmatchedCount: run.UnmatchedCount,
		ErrorMessage:   run.ErrorMessage,
		StartedAt:      run.StartedAt.Format(time.RFC3339),
	}
	if run.CompletedAt != nil {
		completed := run.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completed
		resp.DurationMs = run.Duration().Milliseconds()
	}
	return resp
}

func toMatchResultResponse(result ledger.MatchResult) dto.MatchResultResponse {
	resp := dto.MatchResultResponse{
		Target:  toRecordResponse(result.Target),
		Matched: result.Matched(),
		Subset:  make([]dto.RecordResponse, 0, len(result.Subset)),
	}
	for _, r := range result.Subset {
		resp.Subset = append(resp.Subset, toRecordResponse(r))
	}
	return resp
}
