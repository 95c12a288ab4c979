// Package llm provides the language-model client used by the cognitive
// loop, and the parser for the structured output the prompts request.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/animus-ai/animus/internal/config"
	"github.com/animus-ai/animus/internal/observability"
)

// Client generates a completion for a fully assembled prompt. A failure
// is never fatal to the loop: the tick simply produces no thought.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// NewFromConfig builds the configured client. cfg.ResponseModel, when
// set, yields a second client for spoken responses via WithModel.
func NewFromConfig(cfg config.LLMConfig, log *observability.Logger, metrics *observability.Metrics) (Client, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Provider {
	case "ollama", "":
		return newOllamaClient(cfg, timeout, log, metrics), nil
	case "openai":
		return newOpenAIClient(cfg, timeout, log, metrics), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// WithModel returns a client identical to c but generating with a
// different model name. Used for the response model.
func WithModel(c Client, model string) Client {
	switch impl := c.(type) {
	case *ollamaClient:
		clone := *impl
		clone.model = model
		return &clone
	case *openaiClient:
		clone := *impl
		clone.model = model
		return &clone
	default:
		return c
	}
}

// instrument wraps a raw generate call with latency and status metrics.
func instrument(metrics *observability.Metrics, model string, fn func() (string, error)) (string, error) {
	start := time.Now()
	out, err := fn()
	if metrics != nil {
		metrics.LLMRequestDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.LLMRequestCounter.WithLabelValues(model, status).Inc()
	}
	return out, err
}
