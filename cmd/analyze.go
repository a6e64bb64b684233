package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/BrennanTM/vacraft/internal/insights"
	"github.com/BrennanTM/vacraft/internal/llm"
	"github.com/BrennanTM/vacraft/internal/metrics"
	"github.com/BrennanTM/vacraft/internal/pipeline"
	"github.com/BrennanTM/vacraft/internal/report"
	"github.com/BrennanTM/vacraft/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Sessionize page views and write engagement reports",
	Example: "  vacraft analyze --events views.csv --dictionary dictionary.csv\n" +
		"  vacraft analyze --events views.csv --dictionary dictionary.csv --rank visits --top 20 --insights llm",
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.String("events", "", "Page-view export CSV (UserId, Page, Date / Time)")
	f.String("dictionary", "", "Content dictionary CSV")
	f.String("out", "", "Output directory (default from config, \"out\")")
	f.Int("top", 0, "Users given individual summaries (default from config, 50)")
	f.String("rank", "", "Rank users by time, visits, pages or completion")
	f.Duration("timeout", 0, "Session inactivity timeout (default 30m)")
	f.Int("workers", 0, "Parallel workers for per-user metrics (default GOMAXPROCS)")
	f.String("insights", "", "Insight source: template or llm")
	f.String("title", "", "Heading of the synthesis text")
	f.Bool("no-store", false, "Do not record the run in the database")
	_ = analyzeCmd.MarkFlagRequired("events")
	_ = analyzeCmd.MarkFlagRequired("dictionary")
}

// analyzeSettings are the config values after flag overrides.
type analyzeSettings struct {
	pipeline pipeline.Options
	out      string
	top      int
	rank     metrics.RankKey
	mode     insights.Mode
	title    string
}

func analyzeFlags(cmd *cobra.Command) (analyzeSettings, error) {
	s := analyzeSettings{
		pipeline: cfg.Pipeline,
		out:      cfg.OutDir,
		top:      cfg.Top,
		rank:     cfg.RankKey,
		mode:     cfg.Insights,
		title:    cfg.Title,
	}
	f := cmd.Flags()
	if f.Changed("out") {
		s.out, _ = f.GetString("out")
	}
	if f.Changed("top") {
		s.top, _ = f.GetInt("top")
		if s.top < 0 {
			return s, fmt.Errorf("--top must not be negative")
		}
	}
	if f.Changed("rank") {
		v, _ := f.GetString("rank")
		k, err := metrics.ParseRankKey(v)
		if err != nil {
			return s, err
		}
		s.rank = k
	}
	if f.Changed("timeout") {
		s.pipeline.Timeout, _ = f.GetDuration("timeout")
		if s.pipeline.Timeout <= 0 {
			return s, fmt.Errorf("--timeout must be positive")
		}
	}
	if f.Changed("workers") {
		s.pipeline.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("insights") {
		v, _ := f.GetString("insights")
		m, err := insights.ParseMode(v)
		if err != nil {
			return s, err
		}
		s.mode = m
	}
	if f.Changed("title") {
		s.title, _ = f.GetString("title")
	}
	return s, nil
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	settings, err := analyzeFlags(cmd)
	if err != nil {
		return err
	}
	eventsPath, _ := cmd.Flags().GetString("events")
	dictPath, _ := cmd.Flags().GetString("dictionary")
	noStore, _ := cmd.Flags().GetBool("no-store")

	res, err := pipeline.Run(ctx, eventsPath, dictPath, settings.pipeline)
	if err != nil {
		return err
	}

	// The run history is optional; analysis output does not depend on it.
	var st *store.Store
	if !noStore {
		st, err = openStore(cmd)
		if err != nil {
			slog.WarnContext(ctx, "run history unavailable", "err", err)
			st = nil
		} else {
			defer st.Close()
		}
	}

	top := metrics.Rank(res.Users, settings.rank, settings.top)
	ins := generateInsights(ctx, settings.mode, st, insights.Input{Cohort: res.Cohort, Top: top})

	rep := &report.Report{
		Title:    settings.title,
		Result:   res,
		Insights: ins,
		RankKey:  settings.rank,
		Top:      top,
	}

	// The id is fixed up front so the reports can name the run; the run
	// is only recorded once every report file has been written.
	var run *store.Run
	if st != nil {
		run = runFromResult(res, ins)
		run.ID = uuid.NewString()
		rep.RunID = run.ID
	}

	paths, err := report.WriteAll(settings.out, rep)
	if err != nil {
		return err
	}

	if run != nil {
		run = saveRun(ctx, st.RunRepo(), run, res)
	}

	out := cmd.OutOrStdout()
	report.RenderSummary(out, rep)
	fmt.Fprintln(out)
	for _, p := range paths {
		fmt.Fprintf(out, "wrote %s\n", p)
	}
	if run != nil {
		fmt.Fprintf(out, "saved run #%d (%s)\n", run.Sequence, shortID(run.ID))
	}
	return nil
}

// saveRun records run and prunes old ones. It returns nil when the run
// could not be saved.
func saveRun(ctx context.Context, repo store.RunRepo, run *store.Run, res *pipeline.Result) *store.Run {
	if err := repo.Save(ctx, run, res.Users); err != nil {
		slog.WarnContext(ctx, "save run failed", "run", run.ID, "err", err)
		return nil
	}
	if n, err := repo.Prune(ctx, cfg.KeepRuns); err != nil {
		slog.WarnContext(ctx, "prune runs failed", "err", err)
	} else if n > 0 {
		slog.DebugContext(ctx, "pruned old runs", "removed", n, "keep", cfg.KeepRuns)
	}
	return run
}

// generateInsights never fails: when the model is unavailable or errors,
// the templated rules are used.
func generateInsights(ctx context.Context, mode insights.Mode, st *store.Store, in insights.Input) *insights.Insights {
	var gen insights.Generator = insights.TemplateGenerator{}
	if mode == insights.ModeLLM {
		var sink llm.RequestSink
		if st != nil {
			sink = st.EventRepo()
		}
		provider, err := newInsightsProvider(ctx, sink)
		if err != nil {
			slog.WarnContext(ctx, "LLM provider not configured, using templated insights", "err", err)
		} else {
			gen = insights.FallbackGenerator{
				Primary:  insights.NewLLMGenerator(provider, cfg.InsightsConfig),
				Fallback: gen,
			}
		}
	}

	ins, err := gen.Generate(ctx, in)
	if err != nil {
		slog.WarnContext(ctx, "insight generation failed", "err", err)
		t := insights.Template(in.Cohort)
		return &t
	}
	return ins
}

// newInsightsProvider uses the configured provider, or the first vendor key
// found in the environment when the configured one has no key.
func newInsightsProvider(ctx context.Context, sink llm.RequestSink) (llm.Provider, error) {
	p, err := llm.NewProvider(ctx, cfg.LLM, sink)
	if err == nil {
		return p, nil
	}
	if discovered, ok := llm.DiscoverConfig(os.Getenv); ok {
		discovered.Timeout = cfg.LLM.Timeout
		discovered.Retry = cfg.LLM.Retry
		return llm.NewProvider(ctx, discovered, sink)
	}
	return nil, err
}

func runFromResult(res *pipeline.Result, ins *insights.Insights) *store.Run {
	return &store.Run{
		CreatedAt:      res.GeneratedAt,
		EventsPath:     res.EventsPath,
		DictionaryPath: res.DictionaryPath,
		TimeoutSeconds: res.TimeoutSeconds,
		Load:           res.Load,
		Coverage:       res.Join,
		Cohort:         res.Cohort,
		Insights:       ins,
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
