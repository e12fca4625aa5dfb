// Package cli wires the docmatch commands: one-shot reconciliation runs,
// history imports and the HTTP server.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	flags := &GlobalFlags{}

	rootCmd := &cobra.Command{
		Use:     "docmatch",
		Short:   "Reconcile bank transactions with accounting documents",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	flags.register(rootCmd)

	rootCmd.AddCommand(newRunCommand(flags))
	rootCmd.AddCommand(newServeCommand(flags))
	rootCmd.AddCommand(newImportHistoryCommand(flags))
	rootCmd.AddCommand(newReportCommand(flags))

	return rootCmd
}
