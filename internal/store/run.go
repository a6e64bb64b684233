package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/BrennanTM/vacraft/internal/insights"
	"github.com/BrennanTM/vacraft/internal/metrics"
)

// userBatch bounds rows per INSERT to stay under SQLite's variable limit.
const userBatch = 500

var runColumns = []string{
	"id", "sequence", "created_at", "events_path", "dictionary_path",
	"timeout_seconds", "load", "coverage", "cohort", "insights",
}

func sqlite() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

// runRepo implements RunRepo with the ent SQL builder.
type runRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *runRepo) Save(ctx context.Context, run *Run, users []metrics.UserMetrics) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	load, err := json.Marshal(run.Load)
	if err != nil {
		return fmt.Errorf("marshal load diagnostics: %w", err)
	}
	coverage, err := json.Marshal(run.Coverage)
	if err != nil {
		return fmt.Errorf("marshal coverage: %w", err)
	}
	cohort, err := json.Marshal(run.Cohort)
	if err != nil {
		return fmt.Errorf("marshal cohort: %w", err)
	}
	var ins any
	if run.Insights != nil {
		b, err := json.Marshal(run.Insights)
		if err != nil {
			return fmt.Errorf("marshal insights: %w", err)
		}
		ins = string(b)
	}

	// The counter uses its own statement, so it must run before the
	// transaction takes the only connection.
	seq, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}
	run.Sequence = seq

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback()

	q, args := sqlite().Insert(runsTableName).
		Columns(append(runColumns, "total_users", "total_page_views", "mean_completion_rate")...).
		Values(run.ID, run.Sequence, run.CreatedAt, run.EventsPath, run.DictionaryPath,
			run.TimeoutSeconds, string(load), string(coverage), string(cohort), ins,
			run.Cohort.TotalUsers, run.Cohort.TotalPageViews, run.Cohort.MeanCompletionRate).
		Query()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	for start := 0; start < len(users); start += userBatch {
		end := min(start+userBatch, len(users))
		insert := sqlite().Insert(usersTableName).
			Columns("run_id", "user_id", "total_dwell_seconds", "completion_rate", "data")
		for _, u := range users[start:end] {
			data, err := json.Marshal(u)
			if err != nil {
				return fmt.Errorf("marshal user %s: %w", u.UserID, err)
			}
			insert.Values(run.ID, u.UserID, u.TotalDwellSeconds, u.CompletionRate, string(data))
		}
		q, args := insert.Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("save user metrics: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func (r *runRepo) Get(ctx context.Context, ref string) (*Run, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("empty run reference")
	}

	sel := sqlite().Select(runColumns...).From(sqlite().Table(runsTableName))
	if n, err := strconv.ParseInt(ref, 10, 64); err == nil {
		sel.Where(entsql.EQ("sequence", n))
	} else {
		sel.Where(entsql.HasPrefix("id", ref))
	}
	runs, err := r.query(ctx, sel.Limit(2))
	if err != nil {
		return nil, err
	}
	switch len(runs) {
	case 0:
		return nil, nil
	case 1:
		return &runs[0], nil
	}
	return nil, fmt.Errorf("run reference %q is ambiguous", ref)
}

func (r *runRepo) Latest(ctx context.Context) (*Run, error) {
	runs, err := r.List(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

func (r *runRepo) List(ctx context.Context, limit int) ([]Run, error) {
	sel := sqlite().Select(runColumns...).
		From(sqlite().Table(runsTableName)).
		OrderBy(entsql.Desc("sequence"))
	if limit > 0 {
		sel.Limit(limit)
	}
	return r.query(ctx, sel)
}

func (r *runRepo) query(ctx context.Context, sel *entsql.Selector) ([]Run, error) {
	q, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return runs, nil
}

func scanRun(rows *sql.Rows) (*Run, error) {
	var (
		run                    Run
		load, coverage, cohort []byte
		ins                    sql.NullString
	)
	err := rows.Scan(&run.ID, &run.Sequence, &run.CreatedAt, &run.EventsPath, &run.DictionaryPath,
		&run.TimeoutSeconds, &load, &coverage, &cohort, &ins)
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal(load, &run.Load); err != nil {
		return nil, fmt.Errorf("unmarshal load diagnostics: %w", err)
	}
	if err := json.Unmarshal(coverage, &run.Coverage); err != nil {
		return nil, fmt.Errorf("unmarshal coverage: %w", err)
	}
	if err := json.Unmarshal(cohort, &run.Cohort); err != nil {
		return nil, fmt.Errorf("unmarshal cohort: %w", err)
	}
	if ins.Valid {
		run.Insights = &insights.Insights{}
		if err := json.Unmarshal([]byte(ins.String), run.Insights); err != nil {
			return nil, fmt.Errorf("unmarshal insights: %w", err)
		}
	}
	return &run, nil
}

func (r *runRepo) Users(ctx context.Context, runID string) ([]metrics.UserMetrics, error) {
	q, args := sqlite().Select("data").
		From(sqlite().Table(usersTableName)).
		Where(entsql.EQ("run_id", runID)).
		OrderBy("id").
		Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query user metrics: %w", err)
	}
	defer rows.Close()

	var users []metrics.UserMetrics
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan user metrics: %w", err)
		}
		var u metrics.UserMetrics
		if err := json.Unmarshal(data, &u); err != nil {
			return nil, fmt.Errorf("unmarshal user metrics: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query user metrics: %w", err)
	}
	return users, nil
}

func (r *runRepo) Prune(ctx context.Context, keep int) (int, error) {
	var kept []any
	if keep > 0 {
		q, args := sqlite().Select("id").
			From(sqlite().Table(runsTableName)).
			OrderBy(entsql.Desc("sequence")).
			Limit(keep).
			Query()
		rows, err := r.db.QueryContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("query runs for prune: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return 0, fmt.Errorf("scan run id: %w", err)
			}
			kept = append(kept, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("query runs for prune: %w", err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune: %w", err)
	}
	defer tx.Rollback()

	delUsers := sqlite().Delete(usersTableName)
	delRuns := sqlite().Delete(runsTableName)
	if len(kept) > 0 {
		delUsers.Where(entsql.NotIn("run_id", kept...))
		delRuns.Where(entsql.NotIn("id", kept...))
	}

	q, args := delUsers.Query()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return 0, fmt.Errorf("prune user metrics: %w", err)
	}
	q, args = delRuns.Query()
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return int(n), nil
}
