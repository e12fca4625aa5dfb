package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/docmatch-backend/internal/application/pipeline"
	"github.com/eshaffer321/docmatch-backend/internal/application/service"
	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
)

// BatchFile is the JSON document read by the run command.
type BatchFile struct {
	TenantID  string `json:"tenant_id"`
	EventType string `json:"event_type"`
	pipeline.Input
}

// RunFlags holds the flags of the run command
type RunFlags struct {
	Input     string
	TenantID  string
	EventType string
	DryRun    bool
	Debug     bool
	JSON      bool
	MaxDocs   int
	MaxTx     int
}

func newRunCommand(global *GlobalFlags) *cobra.Command {
	flags := &RunFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile a batch of documents and transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReconcile(cmd, global, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Input, "input", "i", "", "batch JSON file (- for stdin)")
	_ = cmd.MarkFlagRequired("input")
	cmd.Flags().StringVar(&flags.TenantID, "tenant", "", "only reconcile this tenant (overrides the file)")
	cmd.Flags().StringVar(&flags.EventType, "event", "", "event type: batch, tx_created or doc_created")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "compute decisions without writing them")
	cmd.Flags().BoolVar(&flags.Debug, "debug", false, "include debug counters")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print the full run output as JSON")
	cmd.Flags().IntVar(&flags.MaxDocs, "max-docs", 0, "maximum documents to process (0 = config)")
	cmd.Flags().IntVar(&flags.MaxTx, "max-tx", 0, "maximum transactions to process (0 = config)")

	return cmd
}

func runReconcile(cmd *cobra.Command, global *GlobalFlags, flags *RunFlags) error {
	cfg := global.LoadConfig()
	logger := global.NewLogger(cfg, cmd.ErrOrStderr(), "run")

	var batch BatchFile
	if err := readJSON(flags.Input, cmd.InOrStdin(), &batch); err != nil {
		return err
	}

	tenant := batch.TenantID
	if flags.TenantID != "" {
		tenant = flags.TenantID
	}
	event := batch.EventType
	if flags.EventType != "" {
		event = flags.EventType
	}

	limits := cfg.Limits.ToLimits()
	if flags.MaxDocs > 0 {
		limits.MaxDocs = flags.MaxDocs
	}
	if flags.MaxTx > 0 {
		limits.MaxTx = flags.MaxTx
	}

	store, err := openStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := service.NewReconcileService(cfg, store, logger)

	if !flags.JSON {
		PrintHeader(cmd.OutOrStdout(), "run", flags.DryRun)
	}

	out, err := svc.Reconcile(cmd.Context(), service.ReconcileRequest{
		TenantID:  tenant,
		Input:     batch.Input,
		EventType: model.EventType(event),
		DryRun:    flags.DryRun,
		Debug:     flags.Debug,
		Limits:    limits,
	})
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if flags.JSON {
		return PrintJSON(cmd.OutOrStdout(), out)
	}
	PrintRunSummary(cmd.OutOrStdout(), out)
	return nil
}
