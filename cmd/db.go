package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/lunareading/internal/store"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database setup and diagnostics",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create any missing tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Fprintln(cmd.OutOrStdout(), "Database tables created:", cfg.DB.Describe())
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Test the database connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		cfg.DB.SkipMigrate = true
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		start := time.Now()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Ping(ctx); err != nil {
			fmt.Fprint(out, store.Diagnose(err, cfg.DB))
			return fmt.Errorf("database unreachable: %w", err)
		}
		users, err := st.Users().List(ctx)
		if err != nil {
			fmt.Fprint(out, store.Diagnose(err, cfg.DB))
			return fmt.Errorf("query users: %w", err)
		}

		fmt.Fprintf(out, "Status:    connected\n")
		fmt.Fprintf(out, "Database:  %s\n", cfg.DB.Describe())
		fmt.Fprintf(out, "Users:     %d\n", len(users))
		fmt.Fprintf(out, "Latency:   %s\n", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbStatusCmd)
}
