package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/reprofactory/internal/config"
	"github.com/lucasnoah/reprofactory/internal/db"
	"github.com/lucasnoah/reprofactory/internal/evaluate"
	"github.com/lucasnoah/reprofactory/internal/workspace"
)

// loadConfig reads the config file and applies flag and environment
// overrides on top.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if root := settings.GetString("root"); root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve root %s: %w", root, err)
		}
		cfg.Repro.Root = abs
	}
	if dsn := settings.GetString("history_dsn"); dsn != "" {
		cfg.Repro.History.DSN = dsn
	}
	if port := settings.GetInt("port"); port != 0 {
		cfg.Repro.Serve.Port = port
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// newEvaluator builds an evaluator over the OS file system.
func newEvaluator(cmd *cobra.Command) (*evaluate.Evaluator, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, nil, fmt.Errorf("invalid config: %s", errs[0])
	}
	logger := newLogger(cmd)
	fs := afero.NewOsFs()
	ws, err := workspace.New(fs, cfg.WorkspaceOptions(), logger)
	if err != nil {
		return nil, nil, err
	}
	return &evaluate.Evaluator{
		FS:           fs,
		Workspace:    ws,
		CurrentPath:  cfg.CurrentPath(),
		BaselinePath: cfg.BaselinePath(),
		Logger:       logger,
	}, cfg, nil
}

// evaluateNow runs one evaluation for the command.
func evaluateNow(cmd *cobra.Command) (*evaluate.Report, *config.Config, error) {
	ev, cfg, err := newEvaluator(cmd)
	if err != nil {
		return nil, nil, err
	}
	rep, err := ev.Evaluate(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return rep, cfg, nil
}

// openHistory opens and migrates the history database.
func openHistory(cfg *config.Config) (*db.DB, error) {
	database, err := db.Open(cfg.HistoryDSN())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return database, nil
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "text", "json":
		return format, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text or json)", format)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
