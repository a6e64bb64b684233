package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func testSchema() *Schema {
	return &Schema{
		Name:        "test-insights",
		Description: "Insights for tests",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"insights":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"recommendations": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"tone":            map[string]any{"type": "string", "enum": []any{"neutral", "urgent"}},
			},
			"required":             []any{"insights", "recommendations"},
			"additionalProperties": false,
		},
	}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"insights":["a"],"recommendations":["b"],"tone":"neutral"}`, false},
		{"optional omitted", `{"insights":[],"recommendations":[]}`, false},
		{"missing required", `{"insights":["a"]}`, true},
		{"wrong item type", `{"insights":[1],"recommendations":[]}`, true},
		{"bad enum", `{"insights":[],"recommendations":[],"tone":"angry"}`, true},
		{"extra property", `{"insights":[],"recommendations":[],"extra":1}`, true},
		{"not json", `insights: a`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResponse(testSchema(), json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var inv *ErrInvalidResponse
				if !errors.As(err, &inv) {
					t.Fatalf("expected ErrInvalidResponse, got %T", err)
				}
				if string(inv.Content) != tt.raw {
					t.Errorf("content not preserved: %s", inv.Content)
				}
			}
		})
	}
}

func TestValidateResponse_NilSchema(t *testing.T) {
	if err := validateResponse(nil, json.RawMessage(`not json`)); err != nil {
		t.Fatalf("nil schema must accept anything: %v", err)
	}
}
