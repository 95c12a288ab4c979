package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/animus-ai/animus/internal/memory"
	"github.com/animus-ai/animus/internal/thought"
	"github.com/animus-ai/animus/internal/tools"
)

// MemorySearchTool lets the model query the long-term tiers explicitly
// instead of waiting for automatic retrieval.
type MemorySearchTool struct {
	mem *memory.Manager
}

// NewMemorySearchTool wraps the memory manager.
func NewMemorySearchTool(mem *memory.Manager) *MemorySearchTool {
	return &MemorySearchTool{mem: mem}
}

func (t *MemorySearchTool) Start(context.Context, *thought.Buffer) error { return nil }
func (t *MemorySearchTool) End(context.Context) error                    { return nil }
func (t *MemorySearchTool) IsAvailable() bool                            { return t.mem != nil }

// Execute handles search, knowledge, and yesterday.
func (t *MemorySearchTool) Execute(ctx context.Context, command string, args []string) (*tools.Result, error) {
	switch command {
	case "search":
		if len(args) < 1 {
			return nil, fmt.Errorf("search needs a query")
		}
		query := args[0]
		longHits, err := t.mem.SearchLongCombined(ctx, query, nil, 3, 0.3, false)
		if err != nil {
			return nil, fmt.Errorf("long memory search: %w", err)
		}
		mediumHits, err := t.mem.SearchMediumCombined(ctx, query, nil, 3, 0.3, false)
		if err != nil {
			return nil, fmt.Errorf("medium memory search: %w", err)
		}
		if len(longHits) == 0 && len(mediumHits) == 0 {
			return &tools.Result{Content: "Nothing relevant found in memory for: " + query, Source: "memory_search"}, nil
		}
		var b strings.Builder
		for _, h := range longHits {
			fmt.Fprintf(&b, "On %s: %s\n", h.Date, h.Summary)
		}
		for _, h := range mediumHits {
			fmt.Fprintf(&b, "%s said: %s\n", h.Role, h.Content)
		}
		return &tools.Result{Content: strings.TrimRight(b.String(), "\n"), Source: "memory_search"}, nil

	case "knowledge":
		if len(args) < 1 {
			return nil, fmt.Errorf("knowledge needs a query")
		}
		hits, err := t.mem.SearchBaseCombined(ctx, args[0], nil, 3, 0.3, false)
		if err != nil {
			return nil, fmt.Errorf("base knowledge search: %w", err)
		}
		if len(hits) == 0 {
			return &tools.Result{Content: "No base knowledge matched: " + args[0], Source: "memory_search"}, nil
		}
		var b strings.Builder
		for _, h := range hits {
			fmt.Fprintf(&b, "%s\n", h.Text)
		}
		return &tools.Result{Content: strings.TrimRight(b.String(), "\n"), Source: "memory_search"}, nil

	case "yesterday":
		lines := t.mem.YesterdayContext(10)
		if len(lines) == 0 {
			return &tools.Result{Content: "No record of yesterday.", Source: "memory_search"}, nil
		}
		return &tools.Result{Content: strings.Join(lines, "\n"), Source: "memory_search"}, nil

	default:
		return nil, fmt.Errorf("unknown memory_search command %q", command)
	}
}
