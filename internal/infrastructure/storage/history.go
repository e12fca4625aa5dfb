package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
)

// SaveTransactions upserts transactions into the history and returns how
// many were written.
func (s *Storage) SaveTransactions(ctx context.Context, txs []model.Tx) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	saved := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transactions
			(tenant_id, tx_id, amount, direction, currency, booking_date, value_date, iban, reference,
			 end_to_end_id, counterparty_name, vendor_key, private_hint, recurring_hint)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(tenant_id, tx_id) DO UPDATE SET
				amount = excluded.amount,
				direction = excluded.direction,
				currency = excluded.currency,
				booking_date = excluded.booking_date,
				value_date = excluded.value_date,
				iban = excluded.iban,
				reference = excluded.reference,
				end_to_end_id = excluded.end_to_end_id,
				counterparty_name = excluded.counterparty_name,
				vendor_key = excluded.vendor_key,
				private_hint = excluded.private_hint,
				recurring_hint = excluded.recurring_hint
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare transaction insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range txs {
			if t.TenantID == "" || t.ID == "" {
				s.logger.Warn("Skipping transaction without tenant or id", "tx_id", t.ID)
				continue
			}
			var valueDate any
			if t.ValueDate != nil {
				valueDate = formatDate(*t.ValueDate)
			}
			if _, err := stmt.ExecContext(ctx,
				t.TenantID,
				t.ID,
				t.Amount.String(),
				string(t.Direction),
				t.Currency,
				formatDate(t.BookingDate),
				valueDate,
				t.IBAN,
				t.Reference,
				t.EndToEndID,
				t.CounterpartyName,
				t.VendorKey,
				t.PrivateHint,
				t.RecurringHint,
			); err != nil {
				return fmt.Errorf("failed to save transaction %s: %w", t.ID, err)
			}
			saved++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return saved, nil
}

// LoadTxHistory returns past transactions of a tenant, newest first, with
// the link state the projection recorded for them. The lookback window ends
// at q.Before (now when zero) and includes that day.
func (s *Storage) LoadTxHistory(ctx context.Context, tenantID string, q model.HistoryQuery) ([]model.Tx, error) {
	before := q.Before
	if before.IsZero() {
		before = time.Now().UTC()
	}

	where := []string{"t.tenant_id = ?", "t.booking_date <= ?"}
	args := []any{tenantID, formatDate(before)}
	if q.LookbackDays > 0 {
		where = append(where, "t.booking_date >= ?")
		args = append(args, formatDate(before.AddDate(0, 0, -q.LookbackDays)))
	}
	if q.VendorKey != "" {
		where = append(where, "t.vendor_key = ?")
		args = append(args, q.VendorKey)
	}
	query := `
		SELECT t.tenant_id, t.tx_id, t.amount, t.direction, t.currency, t.booking_date, t.value_date,
		       t.iban, t.reference, t.end_to_end_id, t.counterparty_name, t.vendor_key,
		       t.private_hint, t.recurring_hint, COALESCE(l.link_state, 'unlinked')
		FROM transactions t
		LEFT JOIN tx_links l ON l.tenant_id = t.tenant_id AND l.tx_id = t.tx_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY t.booking_date DESC, t.tx_id DESC`
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []model.Tx
	for rows.Next() {
		var t model.Tx
		var amount decimal.Decimal
		var direction, booking, link string
		var valueDate sql.NullString
		if err := rows.Scan(
			&t.TenantID,
			&t.ID,
			&amount,
			&direction,
			&t.Currency,
			&booking,
			&valueDate,
			&t.IBAN,
			&t.Reference,
			&t.EndToEndID,
			&t.CounterpartyName,
			&t.VendorKey,
			&t.PrivateHint,
			&t.RecurringHint,
			&link,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Amount = amount
		t.Direction = model.Direction(direction)
		t.BookingDate = parseDate(booking)
		if valueDate.Valid {
			v := parseDate(valueDate.String)
			t.ValueDate = &v
		}
		t.LinkState = model.LinkState(link)
		out = append(out, t)
	}
	return out, rows.Err()
}
