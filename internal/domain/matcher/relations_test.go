package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
)

func relationTypes(rs []Relation) []model.RelationType {
	out := make([]model.RelationType, len(rs))
	for i, r := range rs {
		out[i] = r.Type
	}
	return out
}

func TestBuildCandidates(t *testing.T) {
	m := newTestMatcher()
	due := testDay.AddDate(0, 0, 5)

	tx := makeTx("t1", "100", model.DirectionOut)
	tx.VendorKey = "acme"
	inWindow := makeDoc("d1", "100")
	inWindow.DueDate = &due
	otherVendor := makeDoc("d2", "100")
	otherVendor.VendorText = "Globex Logistics"
	credit := makeDoc("d3", "-100")
	farAway := makeDoc("d4", "100")
	old := testDay.AddDate(-1, 0, 0)
	farAway.DueDate = &old

	linked := makeDoc("d5", "100")
	linked.VendorText = "ACME"
	linked.LinkState = model.LinkLinked
	linked.DueDate = &old

	t.Run("plain transaction", func(t *testing.T) {
		cands := m.BuildCandidates([]model.Tx{tx}, []model.Doc{inWindow, otherVendor, credit, farAway}, []model.Doc{linked})

		require.Len(t, cands, 1)
		assert.Equal(t, []string{"d1"}, docIDs(cands[0].Docs))
	})

	t.Run("recurring transaction pulls linked docs", func(t *testing.T) {
		recurring := tx
		recurring.RecurringHint = true

		cands := m.BuildCandidates([]model.Tx{recurring}, []model.Doc{inWindow}, []model.Doc{linked})

		require.Len(t, cands, 1)
		assert.Equal(t, []string{"d1", "d5"}, docIDs(cands[0].Docs))
		assert.Equal(t, model.LinkLinked, cands[0].Docs[1].LinkState)
	})
}

func TestDetectRelations(t *testing.T) {
	m := newTestMatcher()

	t.Run("one to one", func(t *testing.T) {
		tx := makeTx("t1", "100", model.DirectionOut)
		rs := m.DetectRelations([]Candidates{{Tx: tx, Docs: []model.Doc{makeDoc("d1", "100"), makeDoc("d2", "40")}}}, 5)

		require.Len(t, rs, 1)
		assert.Equal(t, model.RelationOneToOne, rs[0].Type)
		assert.False(t, rs[0].Contested)
		assert.Equal(t, []string{"d1"}, docIDs(rs[0].Docs))
	})

	t.Run("contested one to one", func(t *testing.T) {
		tx := makeTx("t1", "100", model.DirectionOut)
		rs := m.DetectRelations([]Candidates{{Tx: tx, Docs: []model.Doc{makeDoc("d1", "100"), makeDoc("d2", "100")}}}, 5)

		require.Len(t, rs, 2)
		assert.True(t, rs[0].Contested)
		assert.True(t, rs[1].Contested)
	})

	t.Run("one to many", func(t *testing.T) {
		tx := makeTx("t1", "150", model.DirectionOut)
		rs := m.DetectRelations([]Candidates{{Tx: tx, Docs: []model.Doc{makeDoc("d1", "100"), makeDoc("d2", "50"), makeDoc("d3", "7")}}}, 5)

		require.Len(t, rs, 1)
		assert.Equal(t, model.RelationOneToMany, rs[0].Type)
		assert.Equal(t, []string{"d1", "d2"}, docIDs(rs[0].Docs))
	})

	t.Run("many to one", func(t *testing.T) {
		d := makeDoc("d1", "150")
		rs := m.DetectRelations([]Candidates{
			{Tx: makeTx("t1", "100", model.DirectionOut), Docs: []model.Doc{d}},
			{Tx: makeTx("t2", "50", model.DirectionOut), Docs: []model.Doc{d}},
		}, 5)

		require.Len(t, rs, 1)
		assert.Equal(t, model.RelationManyToOne, rs[0].Type)
		assert.Equal(t, []string{"t1", "t2"}, txIDs(rs[0].Txs))
	})

	t.Run("many to many", func(t *testing.T) {
		docs := []model.Doc{makeDoc("d1", "50"), makeDoc("d2", "50")}
		rs := m.DetectRelations([]Candidates{
			{Tx: makeTx("t1", "30", model.DirectionOut), Docs: docs},
			{Tx: makeTx("t2", "70", model.DirectionOut), Docs: docs},
		}, 5)

		require.Len(t, rs, 1)
		assert.Equal(t, model.RelationManyToMany, rs[0].Type)
		assert.Equal(t, []string{"t1", "t2"}, txIDs(rs[0].Txs))
		assert.Equal(t, []string{"d1", "d2"}, docIDs(rs[0].Docs))
	})

	t.Run("cap per transaction", func(t *testing.T) {
		tx := makeTx("t1", "100", model.DirectionOut)
		docs := []model.Doc{makeDoc("d1", "100"), makeDoc("d2", "100"), makeDoc("d3", "100")}
		rs := m.DetectRelations([]Candidates{{Tx: tx, Docs: docs}}, 2)

		assert.Equal(t, []model.RelationType{model.RelationOneToOne, model.RelationOneToOne}, relationTypes(rs))
	})
}

func TestMatch(t *testing.T) {
	m := newTestMatcher()
	due := testDay

	strong := makeTx("t1", "100", model.DirectionOut)
	strong.VendorKey = "acme cloud"
	doc := makeDoc("d1", "100")
	doc.VendorText = "ACME Cloud GmbH"
	doc.DueDate = &due

	t.Run("strong one to one is final", func(t *testing.T) {
		out := m.Match([]Relation{{Type: model.RelationOneToOne, Txs: []model.Tx{strong}, Docs: []model.Doc{doc}}})

		require.Len(t, out, 1)
		assert.Equal(t, model.StateFinal, out[0].State)
		assert.LessOrEqual(t, out[0].Confidence, 0.95)
		assert.Contains(t, out[0].ReasonCodes, model.ReasonAmountMatch)
		assert.Contains(t, out[0].ReasonCodes, model.ReasonDateInWindow)
		assert.Contains(t, out[0].ReasonCodes, model.ReasonVendorMatch)
		assert.False(t, out[0].IsHard())
	})

	t.Run("contested stays a suggestion", func(t *testing.T) {
		out := m.Match([]Relation{{Type: model.RelationOneToOne, Txs: []model.Tx{strong}, Docs: []model.Doc{doc}, Contested: true}})

		assert.Equal(t, model.StateSuggested, out[0].State)
		assert.Contains(t, out[0].ReasonCodes, model.ReasonContested)
	})

	t.Run("many to many is never final", func(t *testing.T) {
		d2 := doc
		d2.ID = "d2"
		strong2 := strong
		strong2.ID = "t2"
		out := m.Match([]Relation{{
			Type: model.RelationManyToMany,
			Txs:  []model.Tx{strong, strong2},
			Docs: []model.Doc{doc, d2},
		}})

		require.Len(t, out, 1)
		assert.Contains(t, []model.MatchState{model.StateSuggested, model.StateAmbiguous}, out[0].State)
		assert.LessOrEqual(t, out[0].Confidence, 0.6)
		assert.Contains(t, out[0].ReasonCodes, model.ReasonManyToManyGroup)
	})
}

func TestScoreOneToOne(t *testing.T) {
	cfg := newTestMatcher().Config()
	due := testDay

	tx := makeTx("t1", "100", model.DirectionOut)
	doc := makeDoc("d1", "100")
	doc.DueDate = &due

	exact := ScoreOneToOne(tx, doc, cfg)
	tx.Amount = dec("180")
	off := ScoreOneToOne(tx, doc, cfg)

	assert.Equal(t, 1.0, exact.Amount)
	assert.Equal(t, 0.5, exact.Vendor)
	assert.Greater(t, exact.Confidence, off.Confidence)
	assert.LessOrEqual(t, exact.Confidence, cfg.SoftConfidenceCap)
}

func TestDetectRelations_SettledLinkedDocs(t *testing.T) {
	m := newTestMatcher()
	zero := dec("0")

	settled := func(id, amount string) model.Doc {
		d := makeDoc(id, amount)
		d.LinkState = model.LinkLinked
		d.OpenAmount = &zero
		return d
	}

	t.Run("one_to_one against the full amount", func(t *testing.T) {
		tx := makeTx("t1", "12.99", model.DirectionOut)

		rels := m.DetectRelations([]Candidates{{Tx: tx, Docs: []model.Doc{settled("d1", "12.99")}}}, 5)

		require.Len(t, rels, 1)
		assert.Equal(t, model.RelationOneToOne, rels[0].Type)
		assert.True(t, rels[0].Linked)
	})

	t.Run("one_to_many sums full amounts", func(t *testing.T) {
		tx := makeTx("t1", "30", model.DirectionOut)

		rels := m.DetectRelations([]Candidates{{Tx: tx, Docs: []model.Doc{settled("d1", "10"), settled("d2", "20")}}}, 5)

		require.Len(t, rels, 1)
		assert.Equal(t, model.RelationOneToMany, rels[0].Type)
		assert.Equal(t, []string{"d1", "d2"}, docIDs(rels[0].Docs))
	})
}
