package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/animus-ai/animus/internal/config"
	"github.com/animus-ai/animus/internal/observability"
)

// ollamaClient talks to an Ollama-compatible /api/generate endpoint.
type ollamaClient struct {
	baseURL string
	model   string
	cfg     config.LLMConfig
	http    *http.Client
	log     *observability.Logger
	metrics *observability.Metrics
}

func newOllamaClient(cfg config.LLMConfig, timeout time.Duration, log *observability.Logger, metrics *observability.Metrics) *ollamaClient {
	if log == nil {
		log = observability.NewNopLogger()
	}
	return &ollamaClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		log:     log,
		metrics: metrics,
	}
}

func (c *ollamaClient) Model() string { return c.model }

type ollamaRequest struct {
	Model         string         `json:"model"`
	Prompt        string         `json:"prompt"`
	Stream        bool           `json:"stream"`
	Temperature   float64        `json:"temperature"`
	TopP          float64        `json:"top_p"`
	TopK          int            `json:"top_k"`
	RepeatPenalty float64        `json:"repeat_penalty"`
	NumPredict    int            `json:"num_predict"`
	KeepAlive     string         `json:"keep_alive,omitempty"`
	Options       map[string]any `json:"options,omitempty"`
	Seed          *int           `json:"seed,omitempty"`
}

// ollamaResponse tolerates both the generate shape ({"response": ...})
// and the chat shape ({"message": {"content": ...}}).
type ollamaResponse struct {
	Response string `json:"response"`
	Message  struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

func (c *ollamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	return instrument(c.metrics, c.model, func() (string, error) {
		return c.generate(ctx, prompt)
	})
}

func (c *ollamaClient) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:         c.model,
		Prompt:        prompt,
		Stream:        false,
		Temperature:   c.cfg.Temperature,
		TopP:          c.cfg.TopP,
		TopK:          c.cfg.TopK,
		RepeatPenalty: c.cfg.RepeatPenalty,
		NumPredict:    c.cfg.NumPredict,
		KeepAlive:     c.cfg.KeepAlive,
		Options:       map[string]any{"num_ctx": c.cfg.NumCtx},
		Seed:          c.cfg.Seed,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("language model request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("language model returned %d: %s", resp.StatusCode, truncateForLog(data))
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("language model error: %s", parsed.Error)
	}
	if parsed.Response != "" {
		return parsed.Response, nil
	}
	return parsed.Message.Content, nil
}

func truncateForLog(data []byte) string {
	const max = 200
	s := string(data)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
