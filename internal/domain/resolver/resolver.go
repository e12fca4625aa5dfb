// Package resolver turns the decisions proposed by all matching phases into a
// consistent set: no transaction or document ends up in two binding
// (final or partial) decisions.
//
// Resolution is deterministic and independent of input order. Candidates are
// accepted greedily by priority:
//   - state (final before partial)
//   - hard decisions (a HARD_* reason code) before soft ones
//   - relation type (one_to_one, one_to_many, many_to_one, many_to_many)
//   - confidence, descending
//   - entity count, ascending
//   - canonical key, ascending
//
// A candidate sharing any id with an accepted decision is demoted to
// ambiguous and joins the suggestions.
package resolver

import (
	"sort"
	"strings"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// DemotedConfidenceCap is the highest confidence a demoted decision keeps.
const DemotedConfidenceCap = 0.6

// Resolution is the outcome of conflict resolution.
type Resolution struct {
	Accepted    []model.MatchDecision // binding decisions, in acceptance order
	Suggestions []model.MatchDecision // suggested, ambiguous and demoted decisions
	All         []model.MatchDecision // Accepted followed by Suggestions
}

// Normalize returns a copy of d with deduped, sorted ids, clamped confidence
// and deduped reason codes. Binding decisions without tx or doc ids, and
// binding many_to_many decisions, are demoted to ambiguous.
func Normalize(d model.MatchDecision) model.MatchDecision {
	out := d.Clone()
	out.TxIDs = model.DedupeStrings(out.TxIDs)
	out.DocIDs = model.DedupeStrings(out.DocIDs)
	sort.Strings(out.TxIDs)
	sort.Strings(out.DocIDs)
	out.ReasonCodes = model.DedupeStrings(out.ReasonCodes)
	out.Confidence = tolerance.Clamp01(out.Confidence)
	if !out.State.Valid() {
		out.State = model.StateAmbiguous
	}
	if out.MatchedBy == "" {
		out.MatchedBy = model.MatchedBySystem
	}

	if out.State.Binding() && (len(out.TxIDs) == 0 || len(out.DocIDs) == 0) {
		out.State = model.StateAmbiguous
		out.AddReason(model.ReasonInvalidFinalIDs)
	}
	if out.State.Binding() && out.RelationType == model.RelationManyToMany {
		out.State = model.StateAmbiguous
		out.Confidence = min(out.Confidence, DemotedConfidenceCap)
		out.AddReason(model.ReasonManyToManyDemote)
	}
	return out
}

// Key is the canonical identity of a decision: state, relation type and
// sorted ids. Decisions must be normalized first.
func Key(d model.MatchDecision) string {
	return string(d.State) + "|" + string(d.RelationType) + "|" +
		strings.Join(d.TxIDs, ",") + "|" + strings.Join(d.DocIDs, ",")
}

// idsKey identifies the entity sets of a decision regardless of its state.
func idsKey(d model.MatchDecision) string {
	return strings.Join(d.TxIDs, ",") + "|" + strings.Join(d.DocIDs, ",")
}

// Dedupe normalizes decisions and keeps one per canonical key: the most
// confident one, ties broken by group id then reason codes.
func Dedupe(decisions []model.MatchDecision) []model.MatchDecision {
	best := make(map[string]model.MatchDecision, len(decisions))
	for _, raw := range decisions {
		d := Normalize(raw)
		k := Key(d)
		cur, ok := best[k]
		if !ok || better(d, cur) {
			best[k] = d
		}
	}
	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]model.MatchDecision, 0, len(keys))
	for _, k := range keys {
		out = append(out, best[k])
	}
	return out
}

// better picks between two decisions with the same key.
func better(a, b model.MatchDecision) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.IsHard() != b.IsHard() {
		return a.IsHard()
	}
	if a.MatchGroupID != b.MatchGroupID {
		return a.MatchGroupID < b.MatchGroupID
	}
	return strings.Join(a.ReasonCodes, ",") < strings.Join(b.ReasonCodes, ",")
}

// less orders acceptance candidates by priority.
func less(a, b model.MatchDecision) bool {
	if ra, rb := a.State.Rank(), b.State.Rank(); ra != rb {
		return ra < rb
	}
	if ha, hb := a.IsHard(), b.IsHard(); ha != hb {
		return ha
	}
	if ra, rb := a.RelationType.Rank(), b.RelationType.Rank(); ra != rb {
		return ra < rb
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if ea, eb := a.EntityCount(), b.EntityCount(); ea != eb {
		return ea < eb
	}
	return Key(a) < Key(b)
}

// Resolve dedupes decisions, accepts binding ones greedily and demotes
// conflicting ones. Suggestions are sorted by confidence descending, then key.
func Resolve(decisions []model.MatchDecision) Resolution {
	var binding, suggestions []model.MatchDecision
	for _, d := range Dedupe(decisions) {
		if d.State.Binding() {
			binding = append(binding, d)
		} else {
			suggestions = append(suggestions, d)
		}
	}
	sort.SliceStable(binding, func(i, j int) bool { return less(binding[i], binding[j]) })

	usedTx := make(map[string]bool)
	usedDoc := make(map[string]bool)
	acceptedIDs := make(map[string]bool)
	var accepted, demoted []model.MatchDecision

	for _, d := range binding {
		if conflicts(d, usedTx, usedDoc) {
			demoted = append(demoted, demote(d))
			continue
		}
		for _, id := range d.TxIDs {
			usedTx[id] = true
		}
		for _, id := range d.DocIDs {
			usedDoc[id] = true
		}
		acceptedIDs[idsKey(d)] = true
		accepted = append(accepted, d)
	}

	seen := make(map[string]bool)
	var pool []model.MatchDecision
	for _, d := range append(suggestions, demoted...) {
		if acceptedIDs[idsKey(d)] {
			continue
		}
		k := Key(d)
		if seen[k] {
			continue
		}
		seen[k] = true
		pool = append(pool, d)
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Confidence != pool[j].Confidence {
			return pool[i].Confidence > pool[j].Confidence
		}
		return Key(pool[i]) < Key(pool[j])
	})

	all := make([]model.MatchDecision, 0, len(accepted)+len(pool))
	all = append(all, accepted...)
	all = append(all, pool...)

	return Resolution{Accepted: accepted, Suggestions: pool, All: all}
}

func conflicts(d model.MatchDecision, usedTx, usedDoc map[string]bool) bool {
	for _, id := range d.TxIDs {
		if usedTx[id] {
			return true
		}
	}
	for _, id := range d.DocIDs {
		if usedDoc[id] {
			return true
		}
	}
	return false
}

func demote(d model.MatchDecision) model.MatchDecision {
	out := d.Clone()
	out.State = model.StateAmbiguous
	out.Confidence = min(out.Confidence, DemotedConfidenceCap)
	out.AddReason(model.ReasonConflictDemoted)
	return out
}
