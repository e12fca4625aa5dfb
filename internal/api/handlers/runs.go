package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/docmatch-backend/internal/api/dto"
	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/storage"
)

// RunsHandler handles recorded run HTTP requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/runs - returns recent runs.
func (h *RunsHandler) List(c *gin.Context) {
	runs, err := h.repo.ListRuns(c.Request.Context(), ParseIntParam(c, "limit", 20))
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

// Get handles GET /api/runs/:id - returns a single run.
func (h *RunsHandler) Get(c *gin.Context) {
	run, err := h.repo.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if run == nil {
		h.WriteError(c, http.StatusNotFound, dto.NotFoundError("run"))
		return
	}

	h.WriteJSON(c, http.StatusOK, toRunResponse(*run))
}

func toRunResponse(run storage.RunRecord) dto.RunResponse {
	return dto.RunResponse{
		RunID:       run.RunID,
		TenantID:    run.TenantID,
		EventType:   run.EventType,
		StartedAt:   run.StartedAt.Format(time.RFC3339),
		CompletedAt: run.CompletedAt.Format(time.RFC3339),
		DryRun:      run.DryRun,
		Docs:        run.Docs,
		Txs:         run.Txs,
		Accepted:    run.Accepted,
		Suggested:   run.Suggested,
		PrepassHits: run.PrepassHits,
		Status:      run.Status,
		Error:       run.Error,
	}
}
