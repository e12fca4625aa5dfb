package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/storage"
)

type reportFlags struct {
	TenantID string
	RunID    string
	Runs     int
	Audit    int
}

func newReportCommand(global *GlobalFlags) *cobra.Command {
	flags := &reportFlags{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print match statistics, recent runs and audit records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := global.LoadConfig()
			logger := global.NewLogger(cfg, cmd.ErrOrStderr(), "report")

			store, err := openStorage(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return writeReport(cmd, store, cfg.Storage.DatabasePath, flags)
		},
	}

	cmd.Flags().StringVar(&flags.TenantID, "tenant", "", "only report this tenant")
	cmd.Flags().StringVar(&flags.RunID, "run", "", "only show audit records of this run")
	cmd.Flags().IntVar(&flags.Runs, "runs", 10, "number of recent runs to show")
	cmd.Flags().IntVar(&flags.Audit, "audit", 20, "number of audit records to show")

	return cmd
}

func writeReport(cmd *cobra.Command, repo storage.Repository, dbPath string, flags *reportFlags) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "DOCMATCH REPORT")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Database: %s\n", dbPath)
	fmt.Fprintf(w, "Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	stats, err := repo.GetStats(ctx, flags.TenantID)
	if err != nil {
		return fmt.Errorf("loading stats: %w", err)
	}
	writeStats(w, stats)

	runs, err := repo.ListRuns(ctx, flags.Runs)
	if err != nil {
		return fmt.Errorf("loading runs: %w", err)
	}
	fmt.Fprintln(w, "\nRECENT RUNS")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
	}
	for _, r := range runs {
		if flags.TenantID != "" && r.TenantID != flags.TenantID {
			continue
		}
		line := fmt.Sprintf("%s  %s  %-9s docs=%d txs=%d accepted=%d suggested=%d",
			r.StartedAt.Format("2006-01-02 15:04"), r.RunID, r.Status, r.Docs, r.Txs, r.Accepted, r.Suggested)
		if r.Error != "" {
			line += "  error=" + r.Error
		}
		fmt.Fprintln(w, line)
	}

	records, err := repo.ListAudit(ctx, storage.AuditFilters{TenantID: flags.TenantID, RunID: flags.RunID, Limit: flags.Audit})
	if err != nil {
		return fmt.Errorf("loading audit: %w", err)
	}
	fmt.Fprintln(w, "\nAUDIT TRAIL")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	if len(records) == 0 {
		fmt.Fprintln(w, "No audit records")
	}
	for _, rec := range records {
		status := "ok"
		if !rec.Persistable {
			status = "rejected: " + rec.RejectReason
		}
		fmt.Fprintf(w, "%-9s tx=%s doc=%s %.2f %s (%s)\n",
			rec.State,
			strings.Join(rec.TxIDs, ","),
			strings.Join(rec.DocIDs, ","),
			rec.Confidence,
			strings.Join(rec.ReasonCodes, ","),
			status)
	}
	return nil
}

func writeStats(w io.Writer, stats *storage.Stats) {
	fmt.Fprintln(w, "OVERALL STATISTICS")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "Match groups: %d (%d edges)\n", stats.TotalGroups, stats.TotalEdges)

	states := make([]model.MatchState, 0, len(stats.GroupsByState))
	for s := range stats.GroupsByState {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	for _, s := range states {
		fmt.Fprintf(w, "  %-10s %d\n", s, stats.GroupsByState[s])
	}

	fmt.Fprintf(w, "Linked documents: %d (partial: %d)\n", stats.LinkedDocs, stats.PartialDocs)
	fmt.Fprintf(w, "Linked transactions: %d\n", stats.LinkedTxs)
	fmt.Fprintf(w, "Audit records: %d\n", stats.AuditRecords)
	fmt.Fprintf(w, "History transactions: %d\n", stats.HistoryTxCount)
}
