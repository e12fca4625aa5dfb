package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
)

// ListGroups returns groups matching the given filters, most recently
// updated first.
func (s *Storage) ListGroups(ctx context.Context, filters GroupFilters) (*GroupListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = 50
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	var where []string
	var args []any
	if filters.TenantID != "" {
		where = append(where, "g.tenant_id = ?")
		args = append(args, filters.TenantID)
	}
	if filters.State != "" {
		where = append(where, "g.state = ?")
		args = append(args, string(filters.State))
	}
	if filters.TxID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM match_edges e WHERE e.tenant_id = g.tenant_id AND e.group_id = g.group_id AND e.tx_id = ?)")
		args = append(args, filters.TxID)
	}
	if filters.DocID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM match_edges e WHERE e.tenant_id = g.tenant_id AND e.group_id = g.group_id AND e.doc_id = ?)")
		args = append(args, filters.DocID)
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM match_groups g"+whereClause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count groups: %w", err)
	}

	query := `
		SELECT g.tenant_id, g.group_id, g.state, g.relation_type, g.tx_ids, g.doc_ids,
		       g.confidence, g.reason_codes, g.matched_by, g.updated_at
		FROM match_groups g` + whereClause + `
		ORDER BY g.updated_at DESC, g.group_id
		LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, filters.Limit, filters.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	groups := []MatchGroup{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &GroupListResult{
		Groups:     groups,
		TotalCount: total,
		Limit:      filters.Limit,
		Offset:     filters.Offset,
	}, nil
}

// GetGroup retrieves a group with its edges
func (s *Storage) GetGroup(ctx context.Context, tenantID, groupID string) (*MatchGroup, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, group_id, state, relation_type, tx_ids, doc_ids,
		       confidence, reason_codes, matched_by, updated_at
		FROM match_groups WHERE tenant_id = ? AND group_id = ?
	`, tenantID, groupID)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tx_id, doc_id FROM match_edges
		WHERE tenant_id = ? AND group_id = ?
		ORDER BY tx_id, doc_id
	`, tenantID, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.TxID, &e.DocID); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		g.Edges = append(g.Edges, e)
	}
	return g, rows.Err()
}

// GetStats returns aggregate statistics
func (s *Storage) GetStats(ctx context.Context, tenantID string) (*Stats, error) {
	stats := &Stats{GroupsByState: make(map[model.MatchState]int)}

	tenantClause := ""
	var args []any
	if tenantID != "" {
		tenantClause = " WHERE tenant_id = ?"
		args = append(args, tenantID)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT state, COUNT(*) FROM match_groups"+tenantClause+" GROUP BY state", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query group stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats.GroupsByState[model.MatchState(state)] = count
		stats.TotalGroups += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM match_edges" + tenantClause, &stats.TotalEdges},
		{"SELECT COUNT(*) FROM doc_links" + andTenant(tenantClause, "link_state = 'linked'"), &stats.LinkedDocs},
		{"SELECT COUNT(*) FROM doc_links" + andTenant(tenantClause, "link_state = 'partial'"), &stats.PartialDocs},
		{"SELECT COUNT(*) FROM tx_links" + andTenant(tenantClause, "link_state = 'linked'"), &stats.LinkedTxs},
		{"SELECT COUNT(*) FROM match_audit" + tenantClause, &stats.AuditRecords},
		{"SELECT COUNT(*) FROM transactions" + tenantClause, &stats.HistoryTxCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to query stats: %w", err)
		}
	}

	return stats, nil
}

func andTenant(tenantClause, cond string) string {
	if tenantClause == "" {
		return " WHERE " + cond
	}
	return tenantClause + " AND " + cond
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(r rowScanner) (*MatchGroup, error) {
	var g MatchGroup
	var state, relation, txIDs, docIDs, reasons, matchedBy string
	err := r.Scan(
		&g.TenantID,
		&g.GroupID,
		&state,
		&relation,
		&txIDs,
		&docIDs,
		&g.Confidence,
		&reasons,
		&matchedBy,
		&g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}
	g.State = model.MatchState(state)
	g.RelationType = model.RelationType(relation)
	g.TxIDs = unmarshalList(txIDs)
	g.DocIDs = unmarshalList(docIDs)
	g.ReasonCodes = unmarshalList(reasons)
	g.MatchedBy = model.MatchedBy(matchedBy)
	return &g, nil
}
