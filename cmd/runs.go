package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/BrennanTM/vacraft/internal/metrics"
	"github.com/BrennanTM/vacraft/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect and prune stored analysis runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.RunRepo().List(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs stored yet.")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.AppendHeader(table.Row{"#", "ID", "Created", "Users", "Views", "Completion", "Events"})
		for _, r := range runs {
			t.AppendRow(table.Row{
				r.Sequence,
				shortID(r.ID),
				r.CreatedAt.Local().Format("2006-01-02 15:04"),
				r.Cohort.TotalUsers,
				r.Cohort.TotalPageViews,
				fmt.Sprintf("%.1f%%", r.Cohort.MeanCompletionRate),
				r.EventsPath,
			})
		}
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 4, Align: text.AlignRight},
			{Number: 5, Align: text.AlignRight},
			{Number: 6, Align: text.AlignRight},
		})
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show [number|id]",
	Short: "Show one run (latest by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		top, _ := cmd.Flags().GetInt("top")
		rankFlag, _ := cmd.Flags().GetString("rank")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		run, err := lookupRun(cmd, s.RunRepo(), args)
		if err != nil {
			return err
		}
		users, err := s.RunRepo().Users(cmd.Context(), run.ID)
		if err != nil {
			return fmt.Errorf("load users: %w", err)
		}

		key := cfg.RankKey
		if rankFlag != "" {
			if key, err = metrics.ParseRankKey(rankFlag); err != nil {
				return err
			}
		}
		printRun(cmd.OutOrStdout(), run, metrics.Rank(users, key, top), key)
		return nil
	},
}

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the most recent runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		keep := cfg.KeepRuns
		if cmd.Flags().Changed("keep") {
			keep, _ = cmd.Flags().GetInt("keep")
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := s.RunRepo().Prune(cmd.Context(), keep)
		if err != nil {
			return fmt.Errorf("prune runs: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s), kept at most %d.\n", n, max(keep, 0))
		return nil
	},
}

// lookupRun resolves args[0] or falls back to the latest run.
func lookupRun(cmd *cobra.Command, repo store.RunRepo, args []string) (*store.Run, error) {
	var (
		run *store.Run
		err error
	)
	if len(args) == 0 {
		run, err = repo.Latest(cmd.Context())
	} else {
		run, err = repo.Get(cmd.Context(), args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	if run == nil {
		if len(args) == 0 {
			return nil, fmt.Errorf("no runs stored yet; run `vacraft analyze` first")
		}
		return nil, fmt.Errorf("run %q not found", args[0])
	}
	return run, nil
}

func printRun(w io.Writer, run *store.Run, top []metrics.UserMetrics, key metrics.RankKey) {
	c := run.Cohort
	fmt.Fprintf(w, "Run #%d  %s\n", run.Sequence, run.ID)
	fmt.Fprintf(w, "Created:     %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Events:      %s\n", run.EventsPath)
	fmt.Fprintf(w, "Dictionary:  %s\n", run.DictionaryPath)
	fmt.Fprintf(w, "Timeout:     %.0f min\n", run.TimeoutSeconds/60)
	fmt.Fprintf(w, "Rows:        %d read, %d dropped, %d kept\n", run.Load.RawRows, run.Load.Dropped(), run.Load.Kept)
	fmt.Fprintf(w, "Coverage:    %.1f%% of views matched", run.Coverage.MatchRate)
	if n := len(run.Coverage.UnmappedPages); n > 0 {
		fmt.Fprintf(w, ", %d unmapped page(s)", n)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Cohort")
	t.AppendRows([]table.Row{
		{"Users", c.TotalUsers},
		{"Page views", c.TotalPageViews},
		{"Sessions", c.TotalSessions},
		{"Mean time per user", fmt.Sprintf("%.1f h", c.MeanDwellSeconds/3600)},
		{"Mean completion", fmt.Sprintf("%.1f%%", c.MeanCompletionRate)},
		{"Completed all lessons", c.Completers},
		{"Never started", c.NeverStarted},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(top) > 0 {
		ut := table.NewWriter()
		ut.SetOutputMirror(w)
		ut.SetTitle(fmt.Sprintf("Top %d by %s", len(top), key))
		ut.AppendHeader(table.Row{"User", "Visits", "Pages", "Hours", "Completion", "Last section"})
		for _, u := range top {
			completion := "n/a"
			if u.CompletionDefined {
				completion = fmt.Sprintf("%.1f%%", u.CompletionRate)
			}
			ut.AppendRow(table.Row{u.UserID, u.TotalSessions, u.TotalPageViews, fmt.Sprintf("%.2f", u.TotalHours()), completion, u.LastSection})
		}
		ut.SetStyle(table.StyleRounded)
		ut.Render()
	}

	if run.Insights != nil && len(run.Insights.Insights) > 0 {
		fmt.Fprintf(w, "\nInsights (%s)\n%s\n", run.Insights.Source, strings.Repeat("─", 40))
		for i, line := range run.Insights.Insights {
			fmt.Fprintf(w, "%d. %s\n", i+1, line)
		}
	}
}

func init() {
	runsListCmd.Flags().IntP("limit", "n", 20, "Number of runs to show (0 for all)")
	runsShowCmd.Flags().Int("top", 10, "Users to list")
	runsShowCmd.Flags().String("rank", "", "Rank users by time, visits, pages or completion")
	runsPruneCmd.Flags().Int("keep", 0, "Runs to keep (default from config)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsPruneCmd)
}
