package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/docmatch-backend/internal/api/dto"
	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/storage"
)

// StatsHandler handles statistics HTTP requests.
type StatsHandler struct {
	*Base
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(repo storage.Repository) *StatsHandler {
	return &StatsHandler{
		Base: NewBase(repo),
	}
}

// Get handles GET /api/stats - returns aggregate statistics, optionally
// for a single tenant_id.
func (h *StatsHandler) Get(c *gin.Context) {
	stats, err := h.repo.GetStats(c.Request.Context(), c.Query("tenant_id"))
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	byState := make(map[string]int, len(stats.GroupsByState))
	for state, n := range stats.GroupsByState {
		byState[string(state)] = n
	}

	h.WriteJSON(c, http.StatusOK, dto.StatsResponse{
		TotalGroups:    stats.TotalGroups,
		GroupsByState:  byState,
		TotalEdges:     stats.TotalEdges,
		LinkedDocs:     stats.LinkedDocs,
		PartialDocs:    stats.PartialDocs,
		LinkedTxs:      stats.LinkedTxs,
		AuditRecords:   stats.AuditRecords,
		HistoryTxCount: stats.HistoryTxCount,
	})
}
