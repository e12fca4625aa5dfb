package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/config"
	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/logging"
	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/storage"
)

// GlobalFlags are the persistent flags shared by every command
type GlobalFlags struct {
	ConfigPath   string
	DatabasePath string
	Verbose      bool
}

func (f *GlobalFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.ConfigPath, "config", config.DefaultPath, "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&f.DatabasePath, "db", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().BoolVarP(&f.Verbose, "verbose", "v", false, "verbose output")
}

// LoadConfig loads the config file, falling back to the environment, and
// applies flag overrides.
func (f *GlobalFlags) LoadConfig() *config.Config {
	cfg := config.LoadOrEnvWithPath(f.ConfigPath)
	if f.DatabasePath != "" {
		cfg.Storage.DatabasePath = f.DatabasePath
	}
	if f.Verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	return cfg
}

// NewLogger creates the logger for a command, writing to w.
func (f *GlobalFlags) NewLogger(cfg *config.Config, w io.Writer, system string) *slog.Logger {
	return logging.NewLoggerTo(w, cfg.Observability.Logging).With("system", system)
}

func openStorage(cfg *config.Config, logger *slog.Logger) (*storage.Storage, error) {
	store, err := storage.NewStorageWithLogger(cfg.Storage.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Storage.DatabasePath, err)
	}
	return store, nil
}

// readJSON decodes path into v. A path of "-" reads from stdin.
func readJSON(path string, stdin io.Reader, v any) error {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
