package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/medprep/mcqgen/internal/logger"
	"github.com/medprep/mcqgen/internal/store"
)

// LoggingProvider is a decorator that records every LLM request as an
// event and writes a structured log line per call.
type LoggingProvider struct {
	inner     Provider
	provider  string
	eventRepo store.EventRepo
	log       *logger.Logger
}

// WithLogging wraps a Provider with event logging. repo may be nil, in
// which case only the log line is written.
func WithLogging(p Provider, providerName string, repo store.EventRepo, log *logger.Logger) Provider {
	if log == nil {
		log = logger.Nop()
	}
	return &LoggingProvider{inner: p, provider: providerName, eventRepo: repo, log: log}
}

func (l *LoggingProvider) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	var partial strings.Builder
	resp, err := l.inner.Stream(ctx, req, func(s string) error {
		partial.WriteString(s)
		return onChunk(s)
	})

	latencyMs := time.Since(start).Milliseconds()

	data := store.LLMRequestEventData{
		SessionID:   SessionFrom(ctx),
		Provider:    l.provider,
		Model:       l.inner.ModelID(),
		Purpose:     purpose,
		LatencyMs:   latencyMs,
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}

	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		if resp.Model != "" {
			data.Model = resp.Model
		}
		data.ResponseBody = resp.Content
	} else {
		data.ResponseBody = partial.String()
	}

	if err != nil {
		data.ErrorMessage = err.Error()
		l.log.Warn("llm stream failed",
			"provider", l.provider, "model", data.Model, "purpose", purpose,
			"latency_ms", latencyMs, "streamed_chars", partial.Len(), "error", err)
	} else {
		l.log.Debug("llm stream done",
			"provider", l.provider, "model", data.Model, "purpose", purpose,
			"latency_ms", latencyMs, "output_tokens", data.OutputTokens)
	}

	if l.eventRepo != nil {
		// Log the event but don't fail the request if logging fails.
		if logErr := l.eventRepo.AppendLLMRequest(context.WithoutCancel(ctx), data); logErr != nil {
			l.log.Warn("failed to record llm request event", "error", logErr)
		}
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// serializeRequest builds a readable representation of the LLM request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		b.WriteString(fmt.Sprintf("[%s]\n", m.Role))
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	return b.String()
}
