package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/eshaffer321/docmatch-backend/internal/application/pipeline"
	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
)

// PrintHeader prints the application header
func PrintHeader(w io.Writer, command string, dryRun bool) {
	mode := "PRODUCTION"
	if dryRun {
		mode = "DRY-RUN"
	}
	fmt.Fprintf(w, "docmatch: %s (%s mode)\n", command, mode)
}

// PrintRunSummary prints the result of a reconciliation run
func PrintRunSummary(w io.Writer, out *pipeline.Output) {
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Run %s\n", out.RunID)
	fmt.Fprintf(w, "Summary: Decisions=%d Accepted=%d Suggested=%d Prepass=%d\n",
		len(out.Decisions),
		out.Accepted,
		out.Suggested,
		out.Prepass.FinalCount)

	byState := make(map[model.MatchState]int)
	for _, d := range out.Decisions {
		byState[d.State]++
	}
	if len(byState) > 0 {
		states := make([]string, 0, len(byState))
		for s := range byState {
			states = append(states, string(s))
		}
		sort.Strings(states)
		fmt.Fprint(w, "States:")
		for _, s := range states {
			fmt.Fprintf(w, " %s=%d", s, byState[model.MatchState(s)])
		}
		fmt.Fprintln(w)
	}

	if len(out.Decisions) > 0 {
		fmt.Fprintln(w, "\nDecisions:")
		for _, d := range out.Decisions {
			fmt.Fprintf(w, "  - %-9s %-12s tx=%s doc=%s confidence=%.2f %s\n",
				d.State,
				d.RelationType,
				strings.Join(d.TxIDs, ","),
				strings.Join(d.DocIDs, ","),
				d.Confidence,
				strings.Join(d.ReasonCodes, ","))
		}
	}

	if out.Debug != nil {
		fmt.Fprintf(w, "\nDebug: pool docs=%d txs=%d doc-only=%d tx-only=%d candidates=%d\n",
			out.Debug.PoolDocs,
			out.Debug.PoolTxs,
			out.Debug.DocOnly,
			out.Debug.TxOnly,
			out.Debug.CandidateTxs)
	}

	if out.Persisted {
		fmt.Fprintln(w, "\nRun completed successfully.")
	} else {
		fmt.Fprintln(w, "\nNothing was persisted.")
	}
}

// PrintJSON writes v as indented JSON
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
