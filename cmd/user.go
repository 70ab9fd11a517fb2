package cmd

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/abhisek/lunareading/internal/account"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage student accounts",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users with reading statistics",
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

		ctx := cmd.Context()
		users, err := st.Users().List(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		if len(users) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No users found.")
			return nil
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"ID", "Username", "Email", "Grade", "Level", "Sessions", "Done", "Avg Score", "Joined"})
		for _, u := range users {
			stats, err := st.Stats().UserStats(ctx, u.ID)
			if err != nil {
				return fmt.Errorf("stats for user %d: %w", u.ID, err)
			}
			avg := "-"
			if stats.AverageScore != nil {
				avg = fmt.Sprintf("%.1f%%", *stats.AverageScore*100)
			}
			table.Append([]string{
				strconv.Itoa(u.ID),
				u.Username,
				u.Email,
				strconv.Itoa(u.GradeLevel),
				strconv.FormatFloat(u.ReadingLevel, 'f', 1, 64),
				strconv.Itoa(stats.TotalSessions),
				strconv.Itoa(stats.CompletedSessions),
				avg,
				humanize.Time(u.CreatedAt),
			})
		}
		table.Render()
		return nil
	},
}

var userResetPasswordCmd = &cobra.Command{
	Use:   "reset-password <username>",
	Short: "Set a new password for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := account.NewService(account.Deps{Store: st, Logger: newLogger(cmd.ErrOrStderr(), cfg.Debug)})
		if err := svc.ResetPassword(cmd.Context(), args[0], password); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s.\n", args[0])
		return nil
	},
}

func init() {
	userResetPasswordCmd.Flags().StringP("password", "p", "", "New password")
	_ = userResetPasswordCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userResetPasswordCmd)
}
