package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/BrennanTM/vacraft/internal/llm"
)

// Purpose labels LLM requests made by this package.
const Purpose = "insights"

// Config controls the LLMGenerator.
type Config struct {
	MaxTokens   int
	Temperature float64
	// MaxSections caps how many sections are listed in the prompt.
	MaxSections int
}

// DefaultConfig returns recommended defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   1024,
		Temperature: 0.3,
		MaxSections: 10,
	}
}

// LLMGenerator implements Generator using an LLM provider.
type LLMGenerator struct {
	provider llm.Provider
	config   Config
}

// NewLLMGenerator creates an LLMGenerator.
func NewLLMGenerator(provider llm.Provider, cfg Config) *LLMGenerator {
	return &LLMGenerator{provider: provider, config: cfg}
}

type insightsOutput struct {
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

// Generate asks the model for insights on the cohort.
func (g *LLMGenerator) Generate(ctx context.Context, in Input) (*Insights, error) {
	if in.Cohort.TotalUsers == 0 {
		return nil, fmt.Errorf("no users to describe")
	}
	ctx = llm.WithPurpose(ctx, Purpose)

	req := llm.Request{
		System: systemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildUserMessage(in, g.config)},
		},
		Schema:      InsightsSchema,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	}

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM insight generation failed: %w", err)
	}

	var raw insightsOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	out := &Insights{
		Source:          resp.Model,
		Insights:        clean(raw.Insights),
		Recommendations: clean(raw.Recommendations),
	}
	if out.Source == "" {
		out.Source = g.provider.ModelID()
	}
	if len(out.Insights) == 0 || len(out.Recommendations) == 0 {
		return nil, &llm.ErrInvalidResponse{Content: resp.Content, Err: errors.New("empty insights or recommendations")}
	}
	return out, nil
}

func clean(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
