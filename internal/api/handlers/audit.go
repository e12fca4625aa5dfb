package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/docmatch-backend/internal/api/dto"
	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/storage"
)

// AuditHandler handles audit trail HTTP requests.
type AuditHandler struct {
	*Base
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(repo storage.Repository) *AuditHandler {
	return &AuditHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/audit - returns audit records.
// Query params: tenant_id, run_id, limit.
func (h *AuditHandler) List(c *gin.Context) {
	records, err := h.repo.ListAudit(c.Request.Context(), storage.AuditFilters{
		TenantID: c.Query("tenant_id"),
		RunID:    c.Query("run_id"),
		Limit:    ParseIntParam(c, "limit", 100),
	})
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(c, http.StatusOK, dto.AuditListResponse{
		Records: records,
		Count:   len(records),
	})
}
