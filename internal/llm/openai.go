package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/animus-ai/animus/internal/config"
	"github.com/animus-ai/animus/internal/observability"
)

// openaiClient talks to the OpenAI chat-completions API (or any
// compatible endpoint via base_url).
type openaiClient struct {
	client  *openai.Client
	model   string
	cfg     config.LLMConfig
	timeout time.Duration
	log     *observability.Logger
	metrics *observability.Metrics
}

func newOpenAIClient(cfg config.LLMConfig, timeout time.Duration, log *observability.Logger, metrics *observability.Metrics) *openaiClient {
	if log == nil {
		log = observability.NewNopLogger()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openaiClient{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		cfg:     cfg,
		timeout: timeout,
		log:     log,
		metrics: metrics,
	}
}

func (c *openaiClient) Model() string { return c.model }

func (c *openaiClient) Generate(ctx context.Context, prompt string) (string, error) {
	return instrument(c.metrics, c.model, func() (string, error) {
		return c.generate(ctx, prompt)
	})
}

func (c *openaiClient) generate(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: float32(c.cfg.Temperature),
		TopP:        float32(c.cfg.TopP),
		MaxTokens:   c.cfg.NumPredict,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("language model request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("language model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
