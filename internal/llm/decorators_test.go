package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type memorySink struct {
	mu      sync.Mutex
	records []RequestRecord
	err     error
}

func (s *memorySink) AppendLLMRequest(_ context.Context, rec RequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func noSleepRetry(p Provider, attempts int) (*RetryProvider, *[]time.Duration) {
	var waits []time.Duration
	r := &RetryProvider{
		inner: p,
		config: RetryConfig{
			MaxAttempts: attempts,
			InitialWait: 100 * time.Millisecond,
			MaxWait:     time.Second,
			Multiplier:  2,
		},
		sleep: func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	}
	return r, &waits
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
		MockResponse{Err: &ErrRateLimit{RetryAfter: 3 * time.Second}},
		MockResponse{Content: json.RawMessage(`{"ok":true}`)},
	)
	p, waits := noSleepRetry(mock, 3)

	resp, err := p.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Content) != `{"ok":true}` {
		t.Fatalf("unexpected content: %s", resp.Content)
	}
	if len(*waits) != 2 {
		t.Fatalf("expected 2 waits, got %v", *waits)
	}
	if w := (*waits)[0]; w < 80*time.Millisecond || w > 120*time.Millisecond {
		t.Errorf("first backoff out of jitter range: %s", w)
	}
	if (*waits)[1] != 3*time.Second {
		t.Errorf("expected RetryAfter to be honored, got %s", (*waits)[1])
	}
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	down := MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}}
	mock := NewMockProvider(down, down, down, down)
	p, _ := noSleepRetry(mock, 3)

	_, err := p.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if mock.CallCount() != 3 {
		t.Fatalf("expected 3 calls, got %d", mock.CallCount())
	}
}

func TestRetry_InvalidResponseRetriedOnce(t *testing.T) {
	bad := MockResponse{Err: &ErrInvalidResponse{Err: errors.New("bad json")}}
	mock := NewMockProvider(bad, bad, bad)
	p, _ := noSleepRetry(mock, 5)

	_, err := p.Generate(context.Background(), Request{})
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
	if mock.CallCount() != 2 {
		t.Fatalf("expected 2 calls, got %d", mock.CallCount())
	}
}

func TestRetry_NonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"max tokens", &ErrMaxTokensExceeded{}},
		{"canceled", context.Canceled},
		{"deadline", context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockProvider(MockResponse{Err: tt.err}, MockResponse{Content: json.RawMessage(`{}`)})
			p, _ := noSleepRetry(mock, 3)
			if _, err := p.Generate(context.Background(), Request{}); !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
			if mock.CallCount() != 1 {
				t.Fatalf("expected 1 call, got %d", mock.CallCount())
			}
		})
	}
}

func TestRetry_SleepCancelled(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := WithRetry(mock, RetryConfig{MaxAttempts: 3, InitialWait: time.Hour, MaxWait: time.Hour, Multiplier: 1})

	if _, err := p.Generate(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type slowProvider struct{}

func (slowProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowProvider) ModelID() string { return "slow" }

func TestWithTimeout(t *testing.T) {
	p := WithTimeout(slowProvider{}, 10*time.Millisecond)
	if _, err := p.Generate(context.Background(), Request{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	mock := NewMockProvider()
	if WithTimeout(mock, 0) != Provider(mock) {
		t.Fatal("zero timeout must not wrap")
	}
}

func TestLogging_RecordsSuccessAndFailure(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"insights":[]}`), Usage: Usage{InputTokens: 12, OutputTokens: 8}},
		MockResponse{Err: &ErrRateLimit{}},
	)
	sink := &memorySink{}
	p := WithLogging(mock, ProviderMock, sink)
	ctx := WithPurpose(context.Background(), "insights")

	req := Request{System: "be brief", Messages: []Message{{Role: RoleUser, Content: "Users: 4"}}, Schema: testSchema()}
	if _, err := p.Generate(ctx, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Generate(ctx, req); err == nil {
		t.Fatal("expected error")
	}

	if len(sink.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(sink.records))
	}
	ok, failed := sink.records[0], sink.records[1]
	if !ok.Success || ok.Purpose != "insights" || ok.InputTokens != 12 || ok.ResponseBody != `{"insights":[]}` {
		t.Errorf("unexpected success record: %+v", ok)
	}
	for _, want := range []string{"[system]\nbe brief", "[user]\nUsers: 4", "[schema: test-insights]"} {
		if !strings.Contains(ok.RequestBody, want) {
			t.Errorf("request body missing %q:\n%s", want, ok.RequestBody)
		}
	}
	if failed.Success || failed.ErrorMessage == "" {
		t.Errorf("unexpected failure record: %+v", failed)
	}
}

func TestLogging_SinkErrorDoesNotFailCall(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)})
	p := WithLogging(mock, ProviderMock, &memorySink{err: errors.New("disk full")})
	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("sink failure leaked: %v", err)
	}
}
