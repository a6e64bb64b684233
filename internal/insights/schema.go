package insights

import "github.com/BrennanTM/vacraft/internal/llm"

// InsightsSchema defines the JSON schema for LLM insight responses.
var InsightsSchema = &llm.Schema{
	Name:        "engagement-insights",
	Description: "Findings and recommendations drawn from course engagement metrics",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"insights": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Factual findings, each one sentence, citing figures from the metrics",
			},
			"recommendations": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Concrete actions for the course team, each one sentence",
			},
		},
		"required":             []any{"insights", "recommendations"},
		"additionalProperties": false,
	},
}
