package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/abhisek/lunareading/internal/config"
	"github.com/abhisek/lunareading/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "lunareading",
	Short: "Reading comprehension tutor API",
	Long: "LunaReading generates reading comprehension questions for a book chapter " +
		"and grades students' answers with an LLM.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides LUNA_DB and any MySQL settings)")
	rootCmd.PersistentFlags().String("env-file", "", "Load environment from this file (default ./.env if present)")
	rootCmd.PersistentFlags().String("addr", "", "HTTP listen address (overrides PORT and LUNA_ADDR)")
	rootCmd.PersistentFlags().Bool("debug", false, "Text logs at debug level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the .env file and environment, then applies flag
// overrides. Flags win over environment variables.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadEnvFile(envFile); err != nil {
		return config.Config{}, err
	}
	cfg := config.FromEnv()

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
	}

	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DB.Driver = store.DriverSQLite
		cfg.DB.Path = p
		if err := store.EnsureDir(p); err != nil {
			return config.Config{}, fmt.Errorf("resolve database path: %w", err)
		}
	} else if cfg.DB.Driver == store.DriverSQLite && cfg.DB.Path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return config.Config{}, fmt.Errorf("resolve database path: %w", err)
		}
		cfg.DB.Path = p
	}
	return cfg, nil
}

// newLogger returns a JSON logger, or a text logger at debug level.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	if debug {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, nil))
}

// openStore opens the configured database. Connection failures carry a
// diagnostic report.
func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("%w\n\n%s", err, store.Diagnose(err, cfg.DB))
	}
	return st, nil
}
