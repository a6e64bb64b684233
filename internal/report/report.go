// Package report renders analysis results: a JSON document, three CSV
// sheets, a narrative synthesis and terminal tables. Rendering only reads
// the metrics it is given.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BrennanTM/vacraft/internal/insights"
	"github.com/BrennanTM/vacraft/internal/metrics"
	"github.com/BrennanTM/vacraft/internal/pipeline"
)

// File names written by WriteAll.
const (
	JSONFile      = "engagement.json"
	UsersFile     = "user_metrics.csv"
	SectionsFile  = "section_engagement.csv"
	SummaryFile   = "summary_statistics.csv"
	SynthesisFile = "synthesis.txt"
)

// DefaultTitle heads the synthesis text.
const DefaultTitle = "COURSE ENGAGEMENT ANALYSIS SUMMARY"

// Report bundles one finished analysis with its narrative.
type Report struct {
	Title    string
	RunID    string
	Result   *pipeline.Result
	Insights *insights.Insights
	RankKey  metrics.RankKey
	// Top holds the users given individual summaries, best first.
	Top []metrics.UserMetrics
}

func (r *Report) title() string {
	if r.Title == "" {
		return DefaultTitle
	}
	return r.Title
}

type document struct {
	RunID string `json:"run_id,omitempty"`
	*pipeline.Result
	RankKey  metrics.RankKey    `json:"rank_key"`
	TopUsers []string           `json:"top_users"`
	Insights *insights.Insights `json:"insights,omitempty"`
}

// WriteJSON writes the full result document. Keys appear in a fixed order
// and users keep their result order, so equal inputs give equal bytes
// apart from generated_at and run_id.
func WriteJSON(w io.Writer, r *Report) error {
	top := make([]string, len(r.Top))
	for i, u := range r.Top {
		top[i] = u.UserID
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{
		RunID:    r.RunID,
		Result:   r.Result,
		RankKey:  r.RankKey,
		TopUsers: top,
		Insights: r.Insights,
	}); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteAll renders every output into memory and only then writes the files
// into dir, so a rendering failure leaves dir untouched. It returns the
// paths written.
func WriteAll(dir string, r *Report) ([]string, error) {
	outputs := []struct {
		name   string
		render func(io.Writer, *Report) error
	}{
		{JSONFile, WriteJSON},
		{UsersFile, WriteUserCSV},
		{SectionsFile, WriteSectionCSV},
		{SummaryFile, WriteSummaryCSV},
		{SynthesisFile, WriteSynthesis},
	}

	rendered := make([][]byte, len(outputs))
	for i, o := range outputs {
		var buf bytes.Buffer
		if err := o.render(&buf, r); err != nil {
			return nil, fmt.Errorf("render %s: %w", o.name, err)
		}
		rendered[i] = buf.Bytes()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	paths := make([]string, 0, len(outputs))
	for i, o := range outputs {
		p := filepath.Join(dir, o.name)
		if err := os.WriteFile(p, rendered[i], 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
