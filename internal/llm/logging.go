package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RequestRecord is the audit entry written for every LLM call.
type RequestRecord struct {
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

// RequestSink persists request records.
type RequestSink interface {
	AppendLLMRequest(ctx context.Context, rec RequestRecord) error
}

// LoggingProvider records every call to a RequestSink.
type LoggingProvider struct {
	inner    Provider
	provider string
	sink     RequestSink
}

// WithLogging wraps p so each call is recorded under the provider name.
func WithLogging(p Provider, provider string, sink RequestSink) Provider {
	return &LoggingProvider{inner: p, provider: provider, sink: sink}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	rec := RequestRecord{
		Provider:    l.provider,
		Model:       l.inner.ModelID(),
		Purpose:     PurposeFrom(ctx),
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: renderRequest(req),
	}
	if resp != nil {
		rec.Model = resp.Model
		rec.InputTokens = resp.Usage.InputTokens
		rec.OutputTokens = resp.Usage.OutputTokens
		rec.ResponseBody = string(resp.Content)
	}
	if err != nil {
		rec.ErrorMessage = err.Error()
	}

	slog.DebugContext(ctx, "llm request",
		"provider", rec.Provider,
		"model", rec.Model,
		"purpose", rec.Purpose,
		"latency_ms", rec.LatencyMs,
		"ok", rec.Success)

	if l.sink != nil {
		if logErr := l.sink.AppendLLMRequest(ctx, rec); logErr != nil {
			slog.WarnContext(ctx, "failed to record LLM request", "err", logErr)
		}
	}
	return resp, err
}

func (l *LoggingProvider) ModelID() string { return l.inner.ModelID() }

// renderRequest flattens a request into the text stored with the record.
func renderRequest(req Request) string {
	var b strings.Builder
	if req.System != "" {
		fmt.Fprintf(&b, "[system]\n%s\n\n", req.System)
	}
	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role, m.Content)
	}
	if req.Schema != nil {
		if def, err := json.Marshal(req.Schema.Definition); err == nil {
			fmt.Fprintf(&b, "[schema: %s]\n%s\n", req.Schema.Name, def)
		}
	}
	return b.String()
}
