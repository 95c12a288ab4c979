package builtin

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/animus-ai/animus/internal/memory"
	"github.com/animus-ai/animus/internal/thought"
	"github.com/animus-ai/animus/internal/tools"
)

// SystemTool answers introspection queries: current time, uptime, and
// memory tier sizes.
type SystemTool struct {
	mem     *memory.Manager
	started time.Time
	now     func() time.Time
}

// NewSystemTool wraps the memory manager for the stats command; mem may
// be nil.
func NewSystemTool(mem *memory.Manager) *SystemTool {
	return &SystemTool{mem: mem, started: time.Now(), now: time.Now}
}

func (t *SystemTool) Start(context.Context, *thought.Buffer) error { return nil }
func (t *SystemTool) End(context.Context) error                    { return nil }
func (t *SystemTool) IsAvailable() bool                            { return true }

// Execute handles time, uptime, and stats.
func (t *SystemTool) Execute(_ context.Context, command string, _ []string) (*tools.Result, error) {
	switch command {
	case "time":
		return &tools.Result{
			Content: "Current time: " + t.now().Format("Monday, 2006-01-02 15:04:05"),
			Source:  "system",
		}, nil

	case "uptime":
		return &tools.Result{
			Content: fmt.Sprintf("Running for %s, %d goroutines", t.now().Sub(t.started).Round(time.Second), runtime.NumGoroutine()),
			Source:  "system",
		}, nil

	case "stats":
		if t.mem == nil {
			return &tools.Result{Content: "Memory subsystem not attached.", Source: "system"}, nil
		}
		s := t.mem.Stats()
		return &tools.Result{
			Content: fmt.Sprintf("Memory tiers: short=%d medium=%d long=%d base=%d personality=%d",
				s.Short, s.Medium, s.Long, s.Base, s.Personality),
			Source: "system",
		}, nil

	default:
		return nil, fmt.Errorf("unknown system command %q", command)
	}
}
