package llm

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestMockProvider_Queue(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"a":1}`), Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockResponse{Err: &ErrRateLimit{}},
	)

	resp, err := mock.Generate(context.Background(), Request{System: "sys"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Content) != `{"a":1}` || resp.Usage.TotalTokens != 15 || resp.StopReason != StopEnd {
		t.Fatalf("unexpected response: %+v", resp)
	}

	var rl *ErrRateLimit
	if _, err := mock.Generate(context.Background(), Request{}); !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got %v", err)
	}

	var unavail *ErrProviderUnavailable
	if _, err := mock.Generate(context.Background(), Request{}); !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable on empty queue, got %v", err)
	}

	if mock.CallCount() != 3 || mock.Calls[0].System != "sys" {
		t.Fatalf("calls not recorded: %+v", mock.Calls)
	}
}

func TestPurposeContext(t *testing.T) {
	ctx := context.Background()
	if p := PurposeFrom(ctx); p != "unknown" {
		t.Fatalf("expected 'unknown', got %q", p)
	}
	if p := PurposeFrom(WithPurpose(ctx, "insights")); p != "insights" {
		t.Fatalf("expected 'insights', got %q", p)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"anthropic without key", Config{Provider: ProviderAnthropic}, true},
		{"anthropic with key", Config{Provider: ProviderAnthropic, Anthropic: AnthropicConfig{APIKey: "sk"}}, false},
		{"openai without key", Config{Provider: ProviderOpenAI}, true},
		{"gemini with key", Config{Provider: ProviderGemini, Gemini: GeminiConfig{APIKey: "k"}}, false},
		{"openrouter without key", Config{Provider: ProviderOpenRouter}, true},
		{"mock needs no key", Config{Provider: ProviderMock}, false},
		{"unknown provider", Config{Provider: "watson"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	err := Config{Provider: ProviderOpenAI}.Validate()
	if err == nil || err.Error() != "VACRAFT_OPENAI_API_KEY is required for the openai provider" {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"VACRAFT_LLM_PROVIDER":    "openai",
		"VACRAFT_OPENAI_API_KEY":  "sk-test",
		"VACRAFT_OPENAI_BASE_URL": "http://localhost:1234/v1",
		"VACRAFT_LLM_TIMEOUT":     "5s",
		"OPENAI_API_KEY":          "ignored",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != ProviderOpenAI || cfg.OpenAI.APIKey != "sk-test" || cfg.OpenAI.BaseURL != "http://localhost:1234/v1" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Fatalf("default model lost: %q", cfg.OpenAI.Model)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %s", cfg.Timeout)
	}

	if err := cfg.ApplyEnv(envMap(map[string]string{"VACRAFT_LLM_TIMEOUT": "soon"})); err == nil {
		t.Fatal("expected error for malformed timeout")
	}
}

func TestDiscoverConfig(t *testing.T) {
	if _, ok := DiscoverConfig(envMap(nil)); ok {
		t.Fatal("expected no provider without keys")
	}
	cfg, ok := DiscoverConfig(envMap(map[string]string{
		"GEMINI_API_KEY": "g",
		"OPENAI_API_KEY": "o",
	}))
	if !ok || cfg.Provider != ProviderOpenAI || cfg.OpenAI.APIKey != "o" {
		t.Fatalf("expected openai to win over gemini, got %+v", cfg)
	}
}

func TestLookupCost(t *testing.T) {
	c := LookupCost("gpt-4o-mini")
	if c == nil {
		t.Fatal("expected pricing for gpt-4o-mini")
	}
	if got := c.Cost(1_000_000, 1_000_000); math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("expected 0.75, got %f", got)
	}
	if LookupCost("google/gemini-2.5-flash") == nil {
		t.Fatal("expected OpenRouter slug to resolve")
	}
	if _, ok := EstimateCost("mock", 10, 10); ok {
		t.Fatal("mock must be unpriced")
	}
}

func TestFinish(t *testing.T) {
	req := Request{Schema: testSchema()}

	resp, err := finish(req, json.RawMessage(`{"insights":["a"],"recommendations":["b"]}`), Usage{InputTokens: 3, OutputTokens: 4}, "m", StopEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Usage.TotalTokens != 7 {
		t.Fatalf("expected total 7, got %d", resp.Usage.TotalTokens)
	}

	var trunc *ErrMaxTokensExceeded
	if _, err := finish(req, json.RawMessage(`{"insights":[`), Usage{}, "m", StopMaxTokens); !errors.As(err, &trunc) {
		t.Fatalf("expected ErrMaxTokensExceeded, got %v", err)
	}

	// Without a schema any text passes through.
	if _, err := finish(Request{}, json.RawMessage(`plain text`), Usage{}, "m", StopMaxTokens); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewProvider_Mock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = ProviderMock
	sink := &memorySink{}

	p, err := NewProvider(context.Background(), cfg, sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Fatalf("expected mock model, got %q", p.ModelID())
	}

	cfg.Provider = ProviderAnthropic
	if _, err := NewProvider(context.Background(), cfg, sink); err == nil {
		t.Fatal("expected error for anthropic without key")
	}
}
