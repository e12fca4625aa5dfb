package lifecycle

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func day(offset int) *time.Time {
	d := tolerance.Day(now).AddDate(0, 0, offset)
	return &d
}

func makeTx(id, amount, text string) model.Tx {
	return model.Tx{
		ID:          id,
		TenantID:    "tenant-1",
		Amount:      decimal.RequireFromString(amount),
		Direction:   model.DirectionOut,
		BookingDate: *day(0),
		Reference:   text,
	}
}

func makeDoc(id, amount string) model.Doc {
	return model.Doc{
		ID:       id,
		TenantID: "tenant-1",
		Amount:   decimal.RequireFromString(amount),
	}
}

func TestEvaluateTx(t *testing.T) {
	e := NewEvaluator(tolerance.DefaultConfig())

	withCounterparty := func(tx model.Tx, name string) model.Tx {
		tx.CounterpartyName = name
		tx.VendorKey = name
		return tx
	}

	tests := []struct {
		name   string
		tx     model.Tx
		kind   TxKind
		action NextAction
		code   string
	}{
		{"card payment", makeTx("t1", "42.50", "VISA Kartenzahlung REWE"), TxNeedsEigenbeleg, ActionStartEigenbelegFlow, CodeTxEigenbelegKeyword},
		{"atm withdrawal", makeTx("t1", "200", "ATM withdrawal"), TxNeedsEigenbeleg, ActionStartEigenbelegFlow, CodeTxEigenbelegKeyword},
		{"small anonymous", makeTx("t1", "12", "REF 0042"), TxNeedsEigenbeleg, ActionStartEigenbelegFlow, CodeTxSmallAnonymous},
		{"technical", makeTx("t1", "1000", "Umbuchung Tagesgeld"), TxTechnical, ActionNone, CodeTxTechnicalKeyword},
		{"private", makeTx("t1", "80", "Privatentnahme"), TxPrivate, ActionAskUser, CodeTxPrivateKeyword},
		{"fee keyword small", makeTx("t1", "9.90", "Kontoführungsentgelt"), TxFee, ActionNone, CodeTxFeeKeyword},
		{"fee keyword large", withCounterparty(makeTx("t1", "900", "Gebühren Beratung"), "Kanzlei Berg"), TxMissingDoc, ActionInboxTask, CodeTxNoDocument},
		{"subscription keyword", withCounterparty(makeTx("t1", "19.99", "Abo Juni"), "Streamly"), TxSubscription, ActionInboxTask, CodeTxSubscriptionKeyword},
		{"prepayment", withCounterparty(makeTx("t1", "500", "Anzahlung Küche"), "Möbel Haus"), TxPrepayment, ActionNone, CodeTxPrepaymentKeyword},
		{"missing doc", withCounterparty(makeTx("t1", "300", "Rechnung 77"), "Acme Software"), TxMissingDoc, ActionInboxTask, CodeTxNoDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.EvaluateTx(tt.tx, nil)

			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.action, res.NextAction)
			assert.Contains(t, res.ExplanationCodes, tt.code)
		})
	}
}

func TestEvaluateTx_HintsAndAllowList(t *testing.T) {
	cfg := tolerance.DefaultConfig()
	cfg.Lifecycle.FeeVendorKeys = []string{"Sparkasse"}
	e := NewEvaluator(cfg)

	fee := makeTx("t1", "120", "Quartalsabschluss")
	fee.VendorKey = "sparkasse"
	assert.Equal(t, TxFee, e.EvaluateTx(fee, nil).Kind)

	private := makeTx("t2", "120", "Kartenzahlung")
	private.PrivateHint = true
	assert.Equal(t, TxPrivate, e.EvaluateTx(private, nil).Kind, "private outranks eigenbeleg")

	recurring := makeTx("t3", "120", "")
	recurring.CounterpartyName = "Acme"
	recurring.RecurringHint = true
	res := e.EvaluateTx(recurring, nil)
	assert.Equal(t, TxSubscription, res.Kind)
	require.NotNil(t, res.Rematch)
	assert.Equal(t, 7, res.Rematch.DaysBefore)
	assert.Equal(t, 30, res.Rematch.DaysAfter)
}

func TestEvaluateTx_SubscriptionHistory(t *testing.T) {
	cfg := tolerance.DefaultConfig()
	cfg.Lifecycle.Subscription.HistoryEnabled = true
	e := NewEvaluator(cfg)

	tx := makeTx("t0", "49.00", "Rechnung")
	tx.CounterpartyName = "Hosting Co"
	tx.VendorKey = "hosting"

	var history []model.Tx
	for i := 1; i <= 3; i++ {
		h := makeTx("h"+string(rune('0'+i)), "49.00", "")
		h.VendorKey = "hosting"
		h.BookingDate = tx.BookingDate.AddDate(0, -i, 0)
		history = append(history, h)
	}

	res := e.EvaluateTx(tx, history)
	assert.Equal(t, TxSubscription, res.Kind)
	assert.Equal(t, CadenceMonthly, res.Cadence)
	assert.Contains(t, res.ExplanationCodes, CodeTxSubscriptionHistory)

	t.Run("disabled history", func(t *testing.T) {
		res := NewEvaluator(tolerance.DefaultConfig()).EvaluateTx(tx, history)
		assert.Equal(t, TxMissingDoc, res.Kind)
	})
}

func TestDetectCadence(t *testing.T) {
	cfg := tolerance.DefaultConfig().Lifecycle.Subscription

	series := func(amounts []string, step func(time.Time, int) time.Time) (model.Tx, []model.Tx) {
		var txs []model.Tx
		for i, a := range amounts {
			tx := makeTx("t"+string(rune('a'+i)), a, "")
			tx.VendorKey = "vendor"
			tx.BookingDate = step(tx.BookingDate, i)
			txs = append(txs, tx)
		}
		return txs[0], txs[1:]
	}
	weekly := func(base time.Time, i int) time.Time { return base.AddDate(0, 0, -7*i) }
	yearly := func(base time.Time, i int) time.Time { return base.AddDate(-i, 0, 0) }
	irregular := func(base time.Time, i int) time.Time { return base.AddDate(0, 0, -20*i*i) }

	tx, h := series([]string{"10", "10", "10"}, weekly)
	assert.Equal(t, CadenceWeekly, DetectCadence(tx, h, cfg))

	tx, h = series([]string{"99", "99", "95"}, yearly)
	assert.Equal(t, CadenceYearly, DetectCadence(tx, h, cfg))

	tx, h = series([]string{"10", "10", "10"}, irregular)
	assert.Equal(t, CadenceNone, DetectCadence(tx, h, cfg))

	tx, h = series([]string{"10", "30", "10"}, weekly)
	assert.Equal(t, CadenceNone, DetectCadence(tx, h, cfg), "amount variance too high")

	tx, h = series([]string{"10", "10"}, weekly)
	assert.Equal(t, CadenceNone, DetectCadence(tx, h, cfg), "too few occurrences")
}

func TestEvaluateDoc(t *testing.T) {
	e := NewEvaluator(tolerance.DefaultConfig())

	awaiting := makeDoc("d1", "100")
	awaiting.DueDate = day(10)
	awaiting.VendorText = "Acme"

	overdue := makeDoc("d2", "100")
	overdue.DueDate = day(-30)
	overdue.VendorText = "Acme"

	extraction := makeDoc("d3", "100")
	extraction.ExtractionFailed = true

	receipt := makeDoc("d4", "18.40")
	receipt.InvoiceDate = day(-90)

	private := makeDoc("d5", "900")
	private.InvoiceDate = day(-90)
	private.VendorText = "Möbel Haus"
	private.PrivateHint = true

	split := makeDoc("d6", "900")
	split.InvoiceDate = day(-90)
	split.VendorText = "Elektro Markt"
	split.LineItems = []model.DocLineItem{
		{LineIndex: 0, Description: "Laptop", Amount: decimal.NewFromInt(800)},
		{LineIndex: 1, Description: "Spielkonsole privat", Amount: decimal.NewFromInt(100)},
	}

	paid := makeDoc("d7", "900")
	paid.InvoiceDate = day(-90)
	paid.VendorText = "Elektro Markt"
	paid.InvoiceNo = "EM-1"

	tests := []struct {
		doc    model.Doc
		kind   DocKind
		action NextAction
	}{
		{awaiting, DocAwaitingTx, ActionNone},
		{overdue, DocOverdue, ActionInboxTask},
		{extraction, DocExtractionError, ActionReuploadRequest},
		{receipt, DocEigenbelegEligible, ActionStartEigenbelegFlow},
		{private, DocPrivate, ActionAskUser},
		{split, DocSplitRequired, ActionStartSplitUI},
		{paid, DocNone, ActionNone},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			res := e.EvaluateDoc(tt.doc, nil, now)

			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.action, res.NextAction)
			assert.NotEmpty(t, res.ExplanationCodes)
		})
	}

	t.Run("awaiting carries a rematch hint", func(t *testing.T) {
		res := e.EvaluateDoc(awaiting, nil, now)
		require.NotNil(t, res.Rematch)
		assert.Equal(t, *day(10), res.Rematch.AnchorDate)
	})
}

func TestEvaluateDocs_Duplicate(t *testing.T) {
	e := NewEvaluator(tolerance.DefaultConfig())

	first := makeDoc("d1", "100")
	first.InvoiceNo = "RE-1"
	first.VendorText = "Acme GmbH"
	first.DueDate = day(10)
	second := first
	second.ID = "d2"
	other := first
	other.ID = "d3"
	other.TenantID = "tenant-2"

	results := e.EvaluateDocs([]model.Doc{second, first, other}, []model.Doc{first, second, other}, now)

	require.Len(t, results, 3)
	assert.Equal(t, "d1", results[0].DocID)
	assert.Equal(t, DocAwaitingTx, results[0].Kind)
	assert.Equal(t, DocDuplicate, results[1].Kind)
	assert.Equal(t, DocAwaitingTx, results[2].Kind, "other tenant is not a duplicate")
}
