// Package insights turns a cohort summary into narrative findings and
// recommendations, either from fixed rules or from an LLM.
package insights

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BrennanTM/vacraft/internal/metrics"
)

// Mode selects how insights are produced.
type Mode string

const (
	ModeTemplate Mode = "template"
	ModeLLM      Mode = "llm"
)

// ParseMode validates s.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTemplate, ModeLLM:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown insights mode %q (want template or llm)", s)
}

// Insights is the narrative part of a report.
type Insights struct {
	// Source is "template" or the model id that produced the text.
	Source          string   `json:"source"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

// Input is what a Generator sees.
type Input struct {
	Cohort metrics.CohortSummary
	// Top holds the highest-ranked users, used for context only.
	Top []metrics.UserMetrics
}

// Generator produces insights for a cohort.
type Generator interface {
	Generate(ctx context.Context, in Input) (*Insights, error)
}

// TemplateGenerator applies the built-in rules. It never fails.
type TemplateGenerator struct{}

// Generate implements Generator.
func (TemplateGenerator) Generate(_ context.Context, in Input) (*Insights, error) {
	ins := Template(in.Cohort)
	return &ins, nil
}

// FallbackGenerator tries Primary and uses Fallback when it fails.
type FallbackGenerator struct {
	Primary  Generator
	Fallback Generator
}

// Generate implements Generator.
func (f FallbackGenerator) Generate(ctx context.Context, in Input) (*Insights, error) {
	ins, err := f.Primary.Generate(ctx, in)
	if err == nil {
		return ins, nil
	}
	slog.WarnContext(ctx, "insight generation failed, using fallback", "err", err)
	return f.Fallback.Generate(ctx, in)
}
