package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrennanTM/vacraft/internal/enrich"
	"github.com/BrennanTM/vacraft/internal/events"
	"github.com/BrennanTM/vacraft/internal/insights"
	"github.com/BrennanTM/vacraft/internal/llm"
	"github.com/BrennanTM/vacraft/internal/metrics"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "vacraft.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{"analysis_runs", "user_metrics", "llm_request_events", "run_sequence"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		seq, err := s.seq.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if seq != int64(i+1) {
			t.Errorf("seq[%d] = %d, want %d", i, seq, i+1)
		}
	}
}

func testRun(id string) *Run {
	return &Run{
		ID:             id,
		EventsPath:     "events.csv",
		DictionaryPath: "dictionary.csv",
		TimeoutSeconds: 1800,
		Load:           events.Diagnostics{RawRows: 10, DroppedPlaceholder: 1, Kept: 9},
		Coverage:       enrich.Diagnostics{Events: 9, Matched: 8, Unmatched: 1, MatchRate: 88.9, UnmappedPages: []string{"99"}},
		Cohort: metrics.CohortSummary{
			TotalUsers:         2,
			TotalPageViews:     9,
			MeanCompletionRate: 25,
			Sections:           []metrics.SectionStats{{Section: "Core", UniqueUsers: 2, Views: 7, DwellSeconds: 300}},
			Dropout:            []metrics.SectionCount{{Section: "Core", Users: 2}},
		},
	}
}

func testUsers() []metrics.UserMetrics {
	page := 12
	return []metrics.UserMetrics{
		{UserID: "7", TotalSessions: 2, TotalPageViews: 6, TotalDwellSeconds: 240, CompletionRate: 50, CompletionDefined: true, FurthestPage: &page, FurthestTitle: "Wrap-up"},
		{UserID: "12", TotalSessions: 1, TotalPageViews: 3, TotalDwellSeconds: 60, CompletionDefined: true, FurthestTitle: metrics.UnknownTitle},
	}
}

func TestRunSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	repo := s.RunRepo()
	ctx := context.Background()

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest, "no runs yet")

	run := testRun("")
	run.Insights = &insights.Insights{Source: "template", Insights: []string{"a"}, Recommendations: []string{"b"}}
	require.NoError(t, repo.Save(ctx, run, testUsers()))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, int64(1), run.Sequence)
	assert.False(t, run.CreatedAt.IsZero())

	for _, ref := range []string{run.ID, run.ID[:8], "1"} {
		got, err := repo.Get(ctx, ref)
		require.NoError(t, err, ref)
		require.NotNil(t, got, ref)
		assert.Equal(t, run.ID, got.ID)
		assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
		assert.Equal(t, run.Load, got.Load)
		assert.Equal(t, run.Coverage, got.Coverage)
		assert.Equal(t, run.Cohort.Sections, got.Cohort.Sections)
		assert.Equal(t, run.Insights, got.Insights)
	}

	missing, err := repo.Get(ctx, "42")
	require.NoError(t, err)
	assert.Nil(t, missing)

	users, err := repo.Users(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, testUsers(), users)
}

func TestRunGetAmbiguousPrefix(t *testing.T) {
	s := openTestStore(t)
	repo := s.RunRepo()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testRun("abc-1"), nil))
	require.NoError(t, repo.Save(ctx, testRun("abc-2"), nil))

	_, err := repo.Get(ctx, "abc")
	assert.ErrorContains(t, err, "ambiguous")

	got, err := repo.Get(ctx, "abc-2")
	require.NoError(t, err)
	assert.Nil(t, got.Insights)
	assert.Equal(t, int64(2), got.Sequence)
}

func TestRunListAndPrune(t *testing.T) {
	s := openTestStore(t)
	repo := s.RunRepo()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range 7 {
		run := testRun("")
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Save(ctx, run, testUsers()))
	}

	runs, err := repo.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, int64(7), runs[0].Sequence)
	assert.Equal(t, int64(5), runs[2].Sequence)

	removed, err := repo.Prune(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	runs, err = repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 5)

	var rows int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM user_metrics").Scan(&rows))
	assert.Equal(t, 10, rows)

	// Run numbers keep counting after a prune.
	next := testRun("")
	require.NoError(t, repo.Save(ctx, next, nil))
	assert.Equal(t, int64(8), next.Sequence)

	removed, err = repo.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, removed)
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM user_metrics").Scan(&rows))
	assert.Zero(t, rows)
}

func TestRunPruneWithFewerThanKeep(t *testing.T) {
	s := openTestStore(t)
	repo := s.RunRepo()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testRun(""), nil))
	removed, err := repo.Prune(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestLLMEvents(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	var sink llm.RequestSink = repo
	records := []llm.RequestRecord{
		{Provider: "anthropic", Model: "claude-haiku-4-5-20251001", Purpose: "insights", InputTokens: 100, OutputTokens: 40, LatencyMs: 200, Success: true, RequestBody: "[user]\nUsers: 4", ResponseBody: `{"insights":[]}`},
		{Provider: "anthropic", Model: "claude-haiku-4-5-20251001", Purpose: "insights", InputTokens: 50, OutputTokens: 0, LatencyMs: 400, ErrorMessage: "rate limited"},
		{Provider: "openai", Model: "gpt-4o-mini", Purpose: "unknown", InputTokens: 10, OutputTokens: 5, LatencyMs: 100, Success: true},
	}
	for _, rec := range records {
		require.NoError(t, sink.AppendLLMRequest(ctx, rec))
	}

	all, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "gpt-4o-mini", all[0].Model, "newest first")

	filtered, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "insights", Limit: 1})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "rate limited", filtered[0].ErrorMessage)
	assert.False(t, filtered[0].Success)

	future, err := repo.QueryLLMEvents(ctx, QueryOpts{From: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)

	ev, err := repo.GetLLMEvent(ctx, all[2].ID)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.True(t, ev.Success)
	assert.Equal(t, `{"insights":[]}`, ev.ResponseBody)

	ev, err = repo.GetLLMEvent(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, ev)

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	require.NoError(t, err)
	assert.Equal(t, []LLMUsageByPurpose{
		{Purpose: "insights", Calls: 2, InputTokens: 150, OutputTokens: 40, AvgLatencyMs: 300},
		{Purpose: "unknown", Calls: 1, InputTokens: 10, OutputTokens: 5, AvgLatencyMs: 100},
	}, byPurpose)

	byModel, err := repo.LLMUsageByModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, []LLMUsageByModel{
		{Model: "claude-haiku-4-5-20251001", Calls: 2, InputTokens: 150, OutputTokens: 40},
		{Model: "gpt-4o-mini", Calls: 1, InputTokens: 10, OutputTokens: 5},
	}, byModel)
}

func TestDefaultDBPath(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("VACRAFT_DB", filepath.Join(dir, "custom", "x.db"))
	p, err := DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "custom", "x.db"), p)
	assert.DirExists(t, filepath.Join(dir, "custom"))

	t.Setenv("VACRAFT_DB", "")
	t.Setenv("XDG_DATA_HOME", dir)
	p, err = DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "vacraft", "vacraft.db"), p)
}
