package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/docmatch-backend/internal/api/dto"
	"github.com/eshaffer321/docmatch-backend/internal/application/pipeline"
	"github.com/eshaffer321/docmatch-backend/internal/application/service"
	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
)

// ReconcileHandler handles reconciliation runs and background jobs.
type ReconcileHandler struct {
	*Base
	service *service.ReconcileService
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(svc *service.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{
		Base:    &Base{},
		service: svc,
	}
}

// Run handles POST /api/reconcile - runs the pipeline and returns its output.
func (h *ReconcileHandler) Run(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	out, err := h.service.Reconcile(c.Request.Context(), req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	h.WriteJSON(c, http.StatusOK, out)
}

// Start handles POST /api/reconcile/jobs - starts a background run.
func (h *ReconcileHandler) Start(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	jobID, err := h.service.StartReconcile(c.Request.Context(), req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	h.WriteJSON(c, http.StatusAccepted, dto.StartJobResponse{
		JobID:    jobID,
		TenantID: req.TenantID,
		Status:   string(service.StatusPending),
	})
}

// GetJob handles GET /api/reconcile/jobs/:jobId - gets job status.
func (h *ReconcileHandler) GetJob(c *gin.Context) {
	job, err := h.service.GetJob(c.Param("jobId"))
	if err != nil {
		h.WriteError(c, http.StatusNotFound, dto.NotFoundError("reconcile job"))
		return
	}

	h.WriteJSON(c, http.StatusOK, toJobResponse(job))
}

// ListJobs handles GET /api/reconcile/jobs - lists jobs, or only running
// ones with ?active=true.
func (h *ReconcileHandler) ListJobs(c *gin.Context) {
	var jobs []*service.RunJob
	if ParseBoolParam(c, "active", false) {
		jobs = h.service.ListActiveJobs()
	} else {
		jobs = h.service.ListAllJobs()
	}

	response := dto.JobListResponse{
		Jobs:  make([]dto.JobResponse, 0, len(jobs)),
		Count: len(jobs),
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, toJobResponse(job))
	}

	h.WriteJSON(c, http.StatusOK, response)
}

// CancelJob handles DELETE /api/reconcile/jobs/:jobId - cancels a job.
func (h *ReconcileHandler) CancelJob(c *gin.Context) {
	if err := h.service.CancelJob(c.Param("jobId")); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			h.WriteError(c, http.StatusNotFound, dto.NotFoundError("reconcile job"))
			return
		}
		h.WriteError(c, http.StatusConflict, dto.APIError{
			Code:    "cancel_failed",
			Message: err.Error(),
		})
		return
	}

	h.WriteJSON(c, http.StatusOK, dto.MessageResponse{
		Message: "Reconcile job cancelled successfully",
	})
}

// ImportHistory handles POST /api/history - stores transaction history.
func (h *ReconcileHandler) ImportHistory(c *gin.Context) {
	var req dto.ImportHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	saved, err := h.service.ImportHistory(c.Request.Context(), req.Txs)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	h.WriteJSON(c, http.StatusOK, dto.ImportHistoryResponse{Received: len(req.Txs), Saved: saved})
}

func (h *ReconcileHandler) bindRequest(c *gin.Context) (service.ReconcileRequest, bool) {
	var body dto.ReconcileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return service.ReconcileRequest{}, false
	}

	event := model.EventType(body.EventType)
	if event != "" && !event.Valid() {
		h.WriteError(c, http.StatusBadRequest, dto.ValidationError("invalid event_type: "+body.EventType))
		return service.ReconcileRequest{}, false
	}

	in := pipeline.Input{Docs: body.Docs, Txs: body.Txs}
	if body.Now != nil {
		in.Now = body.Now.UTC()
	}

	return service.ReconcileRequest{
		TenantID:  body.TenantID,
		Input:     in,
		EventType: event,
		DryRun:    body.DryRun,
		Debug:     body.Debug,
		Limits:    body.Limits.ToLimits(),
		Override:  body.Config,
	}, true
}

func (h *ReconcileHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		h.WriteError(c, http.StatusConflict, dto.ConflictError(err.Error()))
	case errors.Is(err, service.ErrInvalidEvent):
		h.WriteError(c, http.StatusBadRequest, dto.ValidationError(err.Error()))
	case errors.Is(err, service.ErrNoStorage):
		h.WriteError(c, http.StatusServiceUnavailable, dto.NewAPIError(dto.ErrCodeUnavailable, err.Error()))
	default:
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
	}
}

// toJobResponse converts a service job to an API response.
func toJobResponse(job *service.RunJob) dto.JobResponse {
	response := dto.JobResponse{
		JobID:     job.ID,
		TenantID:  job.TenantID,
		Status:    string(job.Status),
		DryRun:    job.Request.DryRun,
		StartedAt: job.StartedAt.Format(time.RFC3339),
		Progress: dto.ProgressResponse{
			CurrentPhase: job.Progress.CurrentPhase,
			Docs:         job.Progress.Docs,
			Txs:          job.Progress.Txs,
			Decisions:    job.Progress.Decisions,
			LastUpdate:   job.Progress.LastUpdate.Format(time.RFC3339),
		},
		Output: job.Output,
	}

	if job.CompletedAt != nil {
		completedAt := job.CompletedAt.Format(time.RFC3339)
		response.CompletedAt = &completedAt
	}

	if job.Error != nil {
		errMsg := job.Error.Error()
		response.Error = &errMsg
	}

	return response
}
