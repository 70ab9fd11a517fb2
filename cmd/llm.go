package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/abhisek/lunareading/internal/llm"
	"github.com/abhisek/lunareading/internal/store"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect LLM request/response events",
}

// withStore loads the configuration, opens the store and runs fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, s *store.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(cmd.Context(), s)
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")
		out := cmd.OutOrStdout()

		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			events, err := s.EventRepo().QueryLLMEvents(ctx, store.QueryOpts{Limit: limit, Purpose: purpose})
			if err != nil {
				return fmt.Errorf("query events: %w", err)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "No LLM events found.")
				return nil
			}

			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"ID", "When", "Purpose", "Model", "In", "Out", "Ms", "OK"})
			table.SetBorder(false)
			for _, e := range events {
				ok := "✓"
				if !e.Success {
					ok = "✗"
				}
				table.Append([]string{
					strconv.Itoa(e.ID),
					humanize.Time(e.Timestamp),
					e.Purpose,
					truncate(e.Model, 28),
					strconv.Itoa(e.InputTokens),
					strconv.Itoa(e.OutputTokens),
					strconv.FormatInt(e.LatencyMs, 10),
					ok,
				})
			}
			table.Render()
			return nil
		})
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "View full request/response for an LLM event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}
		out := cmd.OutOrStdout()

		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			e, err := s.EventRepo().GetLLMEvent(ctx, id)
			if err != nil {
				return fmt.Errorf("get event: %w", err)
			}
			if e == nil {
				return fmt.Errorf("event %d not found", id)
			}
			printEvent(out, e)
			return nil
		})
	},
}

func printEvent(out io.Writer, e *store.LLMRequestEvent) {
	sep := strings.Repeat("─", 60)

	fmt.Fprintf(out, "ID:        %d\n", e.ID)
	fmt.Fprintf(out, "Time:      %s (%s)\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), humanize.Time(e.Timestamp))
	fmt.Fprintf(out, "Provider:  %s\n", e.Provider)
	fmt.Fprintf(out, "Model:     %s\n", e.Model)
	fmt.Fprintf(out, "Purpose:   %s\n", e.Purpose)
	fmt.Fprintf(out, "Tokens:    %s in / %s out\n", humanize.Comma(int64(e.InputTokens)), humanize.Comma(int64(e.OutputTokens)))
	fmt.Fprintf(out, "Latency:   %dms\n", e.LatencyMs)
	fmt.Fprintf(out, "Success:   %v\n", e.Success)
	if e.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", e.ErrorMessage)
	}

	for _, part := range []struct{ title, body string }{
		{"REQUEST", e.RequestBody},
		{"RESPONSE", e.ResponseBody},
	} {
		fmt.Fprintln(out)
		fmt.Fprintln(out, sep)
		fmt.Fprintln(out, part.title)
		fmt.Fprintln(out, sep)
		if part.body != "" {
			fmt.Fprintln(out, part.body)
		} else {
			fmt.Fprintln(out, "(not captured)")
		}
	}
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated LLM token usage and estimated cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			stats, err := s.EventRepo().LLMUsageByPurpose(ctx)
			if err != nil {
				return fmt.Errorf("query usage: %w", err)
			}
			if len(stats) == 0 {
				fmt.Fprintln(out, "No LLM usage recorded yet.")
				return nil
			}

			fmt.Fprintln(out, "Usage by Purpose")
			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Purpose", "Calls", "Input", "Output", "Total", "Avg Ms"})
			var totalCalls, totalIn, totalOut int
			for _, st := range stats {
				table.Append([]string{
					st.Purpose,
					strconv.Itoa(st.Calls),
					humanize.Comma(int64(st.InputTokens)),
					humanize.Comma(int64(st.OutputTokens)),
					humanize.Comma(int64(st.InputTokens + st.OutputTokens)),
					strconv.Itoa(st.AvgLatencyMs),
				})
				totalCalls += st.Calls
				totalIn += st.InputTokens
				totalOut += st.OutputTokens
			}
			table.SetFooter([]string{"Total", strconv.Itoa(totalCalls),
				humanize.Comma(int64(totalIn)), humanize.Comma(int64(totalOut)), humanize.Comma(int64(totalIn + totalOut)), ""})
			table.Render()

			modelUsage, err := s.EventRepo().LLMUsageByModel(ctx)
			if err != nil {
				return fmt.Errorf("query model usage: %w", err)
			}
			if len(modelUsage) == 0 {
				return nil
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Estimated Cost (USD)")
			table = tablewriter.NewWriter(out)
			table.SetHeader([]string{"Model", "Calls", "Input", "Output", "Cost"})
			var totalCost float64
			var unknownModels []string
			for _, mu := range modelUsage {
				cost := "?"
				if c := llm.LookupCost(mu.Model); c != nil {
					usd := c.Cost(mu.InputTokens, mu.OutputTokens)
					totalCost += usd
					cost = formatCost(usd)
				} else {
					unknownModels = append(unknownModels, mu.Model)
				}
				table.Append([]string{
					truncate(mu.Model, 32),
					strconv.Itoa(mu.Calls),
					humanize.Comma(int64(mu.InputTokens)),
					humanize.Comma(int64(mu.OutputTokens)),
					cost,
				})
			}
			label := "Total"
			if len(unknownModels) > 0 {
				label = "Total (partial)"
			}
			table.SetFooter([]string{label, "", "", "", formatCost(totalCost)})
			table.Render()

			if len(unknownModels) > 0 {
				fmt.Fprintf(out, "\nPricing unavailable for: %s\n", strings.Join(unknownModels, ", "))
			}
			return nil
		})
	},
}

// pingSchema is the tiny response shape used to check a provider.
var pingSchema = &llm.Schema{
	Name:        "ping",
	Description: "Connectivity check",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ok": map[string]any{"type": "boolean"},
		},
		"required":             []any{"ok"},
		"additionalProperties": false,
	},
}

var llmPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send a minimal request to the configured LLM provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			provider, err := llm.NewProvider(ctx, cfg.LLM, llm.Deps{
				Events: s.EventRepo(),
				Logger: newLogger(cmd.ErrOrStderr(), cfg.Debug),
			})
			if errors.Is(err, llm.ErrNotConfigured) {
				return fmt.Errorf("%w: set OPENAI_API_KEY or another provider key", err)
			}
			if err != nil {
				return err
			}

			req := llm.UserPrompt("You are a connectivity check.", `Respond with {"ok": true}.`)
			req.Schema = pingSchema
			req.MaxTokens = 32

			start := time.Now()
			resp, err := provider.Generate(llm.WithPurpose(ctx, llm.PurposePing), req)
			if err != nil {
				return fmt.Errorf("ping %s: %w", provider.ModelID(), err)
			}
			fmt.Fprintf(out, "%s (%s) answered in %s: %s\n",
				cfg.LLM.Provider, resp.Model, time.Since(start).Round(time.Millisecond), string(resp.Content))
			return nil
		})
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose ("+llm.PurposeQuestionGen+", "+llm.PurposeEvaluation+", "+llm.PurposePing+")")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
	llmCmd.AddCommand(llmPingCmd)
}
