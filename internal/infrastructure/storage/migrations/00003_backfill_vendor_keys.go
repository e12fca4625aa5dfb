package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"

	"github.com/eshaffer321/docmatch-backend/internal/domain/normalize"
)

func init() {
	goose.AddMigrationContext(upBackfillVendorKeys, downBackfillVendorKeys)
}

// upBackfillVendorKeys derives vendor_key from counterparty_name for history
// rows imported without one, so vendor-scoped history lookups find them.
func upBackfillVendorKeys(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT tenant_id, tx_id, counterparty_name FROM transactions
		WHERE vendor_key = '' AND counterparty_name != ''
	`)
	if err != nil {
		return err
	}

	type row struct {
		tenantID, txID, vendorKey string
	}
	var pending []row
	for rows.Next() {
		var r row
		var name string
		if err := rows.Scan(&r.tenantID, &r.txID, &name); err != nil {
			_ = rows.Close()
			return err
		}
		if r.vendorKey = normalize.VendorKey(name); r.vendorKey != "" {
			pending = append(pending, r)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, r := range pending {
		if _, err := tx.ExecContext(ctx, `
			UPDATE transactions SET vendor_key = ? WHERE tenant_id = ? AND tx_id = ?
		`, r.vendorKey, r.tenantID, r.txID); err != nil {
			return err
		}
	}
	return nil
}

// downBackfillVendorKeys is a no-op - derived keys are indistinguishable from imported ones
func downBackfillVendorKeys(ctx context.Context, tx *sql.Tx) error {
	return nil
}
