package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/docmatch-backend/internal/api/dto"
	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/storage"
)

// GroupsHandler handles match group HTTP requests.
type GroupsHandler struct {
	*Base
}

// NewGroupsHandler creates a new groups handler.
func NewGroupsHandler(repo storage.Repository) *GroupsHandler {
	return &GroupsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/groups - returns a paginated list of match groups.
// Query params: tenant_id, state, tx_id, doc_id, limit, offset.
func (h *GroupsHandler) List(c *gin.Context) {
	state := model.MatchState(c.Query("state"))
	if state != "" && !state.Valid() {
		h.WriteError(c, http.StatusBadRequest, dto.ValidationError("invalid state: "+string(state)))
		return
	}

	result, err := h.repo.ListGroups(c.Request.Context(), storage.GroupFilters{
		TenantID: c.Query("tenant_id"),
		State:    state,
		TxID:     c.Query("tx_id"),
		DocID:    c.Query("doc_id"),
		Limit:    ParseIntParam(c, "limit", 50),
		Offset:   ParseIntParam(c, "offset", 0),
	})
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.GroupListResponse{
		Groups:     make([]dto.GroupResponse, 0, len(result.Groups)),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	}
	for _, g := range result.Groups {
		response.Groups = append(response.Groups, toGroupResponse(g))
	}

	h.WriteJSON(c, http.StatusOK, response)
}

// Get handles GET /api/groups/:tenant/:id - returns a group with its edges.
func (h *GroupsHandler) Get(c *gin.Context) {
	group, err := h.repo.GetGroup(c.Request.Context(), c.Param("tenant"), c.Param("id"))
	if err != nil {
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if group == nil {
		h.WriteError(c, http.StatusNotFound, dto.NotFoundError("match group"))
		return
	}

	h.WriteJSON(c, http.StatusOK, toGroupResponse(*group))
}

func toGroupResponse(g storage.MatchGroup) dto.GroupResponse {
	resp := dto.GroupResponse{
		TenantID:     g.TenantID,
		GroupID:      g.GroupID,
		State:        string(g.State),
		RelationType: string(g.RelationType),
		TxIDs:        g.TxIDs,
		DocIDs:       g.DocIDs,
		Confidence:   g.Confidence,
		ReasonCodes:  g.ReasonCodes,
		MatchedBy:    string(g.MatchedBy),
		UpdatedAt:    g.UpdatedAt.Format(time.RFC3339),
	}
	for _, e := range g.Edges {
		resp.Edges = append(resp.Edges, dto.EdgeResponse{TxID: e.TxID, DocID: e.DocID})
	}
	return resp
}
