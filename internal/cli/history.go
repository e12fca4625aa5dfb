package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/docmatch-backend/internal/application/service"
	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
)

type historyFile struct {
	Txs []model.Tx `json:"txs"`
}

func newImportHistoryCommand(global *GlobalFlags) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "import-history",
		Short: "Import past transactions used for subscription detection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := global.LoadConfig()
			logger := global.NewLogger(cfg, cmd.ErrOrStderr(), "history")

			var file historyFile
			if err := readJSON(input, cmd.InOrStdin(), &file); err != nil {
				return err
			}

			store, err := openStorage(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			saved, err := service.NewReconcileService(cfg, store, logger).ImportHistory(cmd.Context(), file.Txs)
			if err != nil {
				return fmt.Errorf("importing history: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d transactions into %s\n", saved, len(file.Txs), cfg.Storage.DatabasePath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "history JSON file with a txs array (- for stdin)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}
