// Package tools implements the installed-tool registry: manifest
// discovery and validation, enable/disable lifecycle keyed by control
// variables, and hot-reload of the tool directory.
package tools

import (
	"context"

	"github.com/animus-ai/animus/internal/thought"
)

// Result is what a tool execution hands back to the cognitive loop. The
// content becomes a thought; Source labels where it came from for the
// prompt (for example "reminders" or "system").
type Result struct {
	Content string
	Source  string
}

// Tool is one runnable capability. Start is called when the tool's
// control variable turns on and receives the thought buffer so
// long-running tools can inject events; End is called when it turns off
// or at shutdown. Execute runs one command with positional string args.
type Tool interface {
	Start(ctx context.Context, buf *thought.Buffer) error
	End(ctx context.Context) error
	IsAvailable() bool
	Execute(ctx context.Context, command string, args []string) (*Result, error)
}

// Factory builds a tool instance for a discovered manifest. Factories
// are registered by name before Discover runs; a manifest with no
// factory is recorded but can never be enabled.
type Factory func() (Tool, error)
