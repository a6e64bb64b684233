package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/BrennanTM/vacraft/internal/llm"
	"github.com/BrennanTM/vacraft/internal/store"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect LLM requests made for insights",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")
		since, _ := cmd.Flags().GetDuration("since")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		opts := store.QueryOpts{Limit: limit, Purpose: purpose}
		if since > 0 {
			opts.From = time.Now().Add(-since)
		}
		events, err := s.EventRepo().QueryLLMEvents(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, "No LLM requests recorded.")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.AppendHeader(table.Row{"ID", "Time", "Purpose", "Model", "In", "Out", "Ms", "OK"})
		for _, e := range events {
			ok := "✓"
			if !e.Success {
				ok = "✗"
			}
			t.AppendRow(table.Row{
				e.ID,
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.Purpose,
				truncate(e.Model, 28),
				e.InputTokens,
				e.OutputTokens,
				e.LatencyMs,
				ok,
			})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show the full prompt and response of one request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := s.EventRepo().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "ID:        %d\n", e.ID)
		fmt.Fprintf(w, "Time:      %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "Provider:  %s\n", e.Provider)
		fmt.Fprintf(w, "Model:     %s\n", e.Model)
		fmt.Fprintf(w, "Purpose:   %s\n", e.Purpose)
		fmt.Fprintf(w, "Tokens:    %d in / %d out\n", e.InputTokens, e.OutputTokens)
		if c, ok := llm.EstimateCost(e.Model, e.InputTokens, e.OutputTokens); ok {
			fmt.Fprintf(w, "Cost:      %s\n", formatCost(c))
		}
		fmt.Fprintf(w, "Latency:   %dms\n", e.LatencyMs)
		fmt.Fprintf(w, "Success:   %v\n", e.Success)
		if e.ErrorMessage != "" {
			fmt.Fprintf(w, "Error:     %s\n", e.ErrorMessage)
		}

		sep := strings.Repeat("─", 60)
		for _, part := range []struct{ name, body string }{
			{"REQUEST", e.RequestBody},
			{"RESPONSE", e.ResponseBody},
		} {
			fmt.Fprintf(w, "\n%s\n%s\n%s\n", sep, part.name, sep)
			if part.body == "" {
				fmt.Fprintln(w, "(not captured)")
			} else {
				fmt.Fprintln(w, part.body)
			}
		}
		return nil
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated LLM token usage and estimated cost",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		stats, err := s.EventRepo().LLMUsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(stats) == 0 {
			fmt.Fprintln(out, "No LLM usage recorded yet.")
			return nil
		}

		right := []table.ColumnConfig{
			{Number: 2, Align: text.AlignRight},
			{Number: 3, Align: text.AlignRight},
			{Number: 4, Align: text.AlignRight},
			{Number: 5, Align: text.AlignRight},
			{Number: 6, Align: text.AlignRight},
		}

		pt := table.NewWriter()
		pt.SetOutputMirror(out)
		pt.SetTitle("Usage by Purpose")
		pt.AppendHeader(table.Row{"Purpose", "Calls", "Input", "Output", "Total", "Avg Ms"})
		var totalCalls, totalIn, totalOut int
		for _, st := range stats {
			pt.AppendRow(table.Row{st.Purpose, st.Calls, st.InputTokens, st.OutputTokens, st.InputTokens + st.OutputTokens, st.AvgLatencyMs})
			totalCalls += st.Calls
			totalIn += st.InputTokens
			totalOut += st.OutputTokens
		}
		pt.AppendFooter(table.Row{"Total", totalCalls, totalIn, totalOut, totalIn + totalOut, ""})
		pt.SetColumnConfigs(right)
		pt.SetStyle(table.StyleLight)
		pt.Render()

		modelUsage, err := s.EventRepo().LLMUsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}
		if len(modelUsage) == 0 {
			return nil
		}

		mt := table.NewWriter()
		mt.SetOutputMirror(out)
		mt.SetTitle("Estimated Cost (USD)")
		mt.AppendHeader(table.Row{"Model", "Calls", "Input", "Output", "Cost"})
		var totalCost float64
		var unpriced []string
		for _, mu := range modelUsage {
			cost := "?"
			if c, ok := llm.EstimateCost(mu.Model, mu.InputTokens, mu.OutputTokens); ok {
				totalCost += c
				cost = formatCost(c)
			} else {
				unpriced = append(unpriced, mu.Model)
			}
			mt.AppendRow(table.Row{truncate(mu.Model, 32), mu.Calls, mu.InputTokens, mu.OutputTokens, cost})
		}
		label := "Total"
		if len(unpriced) > 0 {
			label = "Total (partial)"
		}
		mt.AppendFooter(table.Row{label, "", "", "", formatCost(totalCost)})
		mt.SetColumnConfigs(right[:4])
		mt.SetStyle(table.StyleLight)
		mt.Render()

		if len(unpriced) > 0 {
			fmt.Fprintf(out, "\nPricing unavailable for: %s\n", strings.Join(unpriced, ", "))
		}
		return nil
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose (e.g. insights)")
	llmListCmd.Flags().Duration("since", 0, "Only show requests newer than this, e.g. 24h")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
