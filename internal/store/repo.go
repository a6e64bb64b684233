package store

import (
	"context"
	"time"

	"github.com/BrennanTM/vacraft/internal/enrich"
	"github.com/BrennanTM/vacraft/internal/events"
	"github.com/BrennanTM/vacraft/internal/insights"
	"github.com/BrennanTM/vacraft/internal/llm"
	"github.com/BrennanTM/vacraft/internal/metrics"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	Purpose string    // exact purpose match ("" = any)
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
}

// Run is one persisted analysis. User rows are stored separately and
// loaded with RunRepo.Users.
type Run struct {
	ID             string
	Sequence       int64
	CreatedAt      time.Time
	EventsPath     string
	DictionaryPath string
	TimeoutSeconds float64

	Load     events.Diagnostics
	Coverage enrich.Diagnostics
	Cohort   metrics.CohortSummary
	Insights *insights.Insights
}

// RunRepo manages stored analysis runs.
type RunRepo interface {
	// Save stores run and its user rows in one transaction. ID, Sequence and
	// CreatedAt are assigned when empty.
	Save(ctx context.Context, run *Run, users []metrics.UserMetrics) error

	// Get resolves ref as a run number, a full id or a unique id prefix.
	// It returns nil when nothing matches.
	Get(ctx context.Context, ref string) (*Run, error)

	// Latest returns the most recent run, or nil if none exist.
	Latest(ctx context.Context) (*Run, error)

	// List returns runs newest first; limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]Run, error)

	// Users returns the user rows of a run in their original order.
	Users(ctx context.Context, runID string) ([]metrics.UserMetrics, error)

	// Prune deletes all but the N most recent runs and reports how many
	// were removed.
	Prune(ctx context.Context, keep int) (int, error)
}

// LLMEvent is a stored LLM request.
type LLMEvent struct {
	ID           int
	Timestamp    time.Time
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMUsageByPurpose aggregates token usage per purpose.
type LLMUsageByPurpose struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// LLMUsageByModel aggregates token usage per model.
type LLMUsageByModel struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	llm.RequestSink

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMEvent, error)

	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageByPurpose, error)
	LLMUsageByModel(ctx context.Context) ([]LLMUsageByModel, error)
}
