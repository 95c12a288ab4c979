package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/animus-ai/animus/internal/actionstate"
	"github.com/animus-ai/animus/internal/instructions"
	"github.com/animus-ai/animus/internal/thought"
	"github.com/animus-ai/animus/internal/tools"
	"github.com/animus-ai/animus/pkg/models"
)

const searchManifest = `{
  "tool_name": "search",
  "control_variable_name": "search_enabled",
  "tool_description": "Web search",
  "available_commands": [{"command": "query", "description": "Run a search"}]
}`

// scriptedTool records execute calls and returns a canned outcome.
type scriptedTool struct {
	calls   []string
	result  string
	err     error
	execDur time.Duration
}

func (s *scriptedTool) Start(context.Context, *thought.Buffer) error { return nil }
func (s *scriptedTool) End(context.Context) error                    { return nil }
func (s *scriptedTool) IsAvailable() bool                            { return true }
func (s *scriptedTool) Execute(ctx context.Context, command string, args []string) (*tools.Result, error) {
	s.calls = append(s.calls, command+"("+strings.Join(args, ",")+")")
	if s.execDur > 0 {
		select {
		case <-time.After(s.execDur):
		case <-ctx.Done():
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &tools.Result{Content: s.result, Source: "search"}, nil
}

type fixture struct {
	engine   *Engine
	buf      *thought.Buffer
	state    *actionstate.Manager
	tracker  *instructions.Tracker
	tool     *scriptedTool
	registry *tools.Registry
}

func newFixture(t *testing.T, tool *scriptedTool, defaultTimeout time.Duration) *fixture {
	return newFixtureWithManifest(t, tool, defaultTimeout, searchManifest)
}

func newFixtureWithManifest(t *testing.T, tool *scriptedTool, defaultTimeout time.Duration, manifest string) *fixture {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "search")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, tools.ManifestFileName), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	buf := thought.NewBuffer(25, "animus")
	registry := tools.NewRegistry(tools.RegistryOptions{Dir: root, DefaultTimeout: defaultTimeout, Buffer: buf})
	registry.RegisterFactory("search", func() (tools.Tool, error) { return tool, nil })

	ctx := context.Background()
	if err := registry.Discover(ctx); err != nil {
		t.Fatal(err)
	}
	if err := registry.SetEnabled(ctx, "search", true); err != nil {
		t.Fatal(err)
	}

	state := actionstate.NewManager()
	tracker := instructions.NewTracker(0)
	return &fixture{
		engine:   New(registry, state, tracker, buf, nil, nil),
		buf:      buf,
		state:    state,
		tracker:  tracker,
		tool:     tool,
		registry: registry,
	}
}

func lastThought(t *testing.T, buf *thought.Buffer) models.Thought {
	t.Helper()
	recent := buf.RecentThoughts(1)
	if len(recent) == 0 {
		t.Fatal("no thoughts in buffer")
	}
	return recent[0]
}

func TestDispatch_InstructionGateBlocksExecution(t *testing.T) {
	tool := &scriptedTool{result: "sunny"}
	f := newFixture(t, tool, time.Second)

	f.engine.Dispatch(context.Background(), []models.Action{
		{Tool: "search.query", Args: []string{"weather"}},
	})

	if len(tool.calls) != 0 {
		t.Fatalf("execute called despite missing instructions: %v", tool.calls)
	}
	th := lastThought(t, f.buf)
	if th.Priority != models.PriorityHigh {
		t.Errorf("thought priority = %v, want HIGH", th.Priority)
	}
	if !strings.Contains(th.Content, "search") || !strings.Contains(th.Content, "instructions") {
		t.Errorf("thought = %q, want mention of tool and instructions", th.Content)
	}

	// The enforcement record never reached IN_PROGRESS.
	if pending := f.state.PendingActions(); len(pending) != 0 {
		t.Errorf("pending actions = %+v, want none", pending)
	}
}

func TestDispatch_InstructionsThenExecute(t *testing.T) {
	tool := &scriptedTool{result: "42 degrees"}
	f := newFixture(t, tool, time.Second)
	ctx := context.Background()

	f.engine.Dispatch(ctx, []models.Action{{Tool: "instructions", Args: []string{"search"}}})
	if !f.tracker.HasActive("search") {
		t.Fatal("instructions action did not mark the grant")
	}

	f.engine.Dispatch(ctx, []models.Action{{Tool: "search.query", Args: []string{"weather"}}})
	if len(tool.calls) != 1 || tool.calls[0] != "query(weather)" {
		t.Fatalf("calls = %v, want query(weather)", tool.calls)
	}

	th := lastThought(t, f.buf)
	if th.Priority != models.PriorityMedium {
		t.Errorf("result thought priority = %v, want MEDIUM", th.Priority)
	}
	if !strings.Contains(th.Content, "42 degrees") {
		t.Errorf("result thought = %q", th.Content)
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	f := newFixture(t, &scriptedTool{}, time.Second)

	f.engine.Dispatch(context.Background(), []models.Action{{Tool: "vision.look", Args: nil}})

	th := lastThought(t, f.buf)
	if th.Priority != models.PriorityHigh || !strings.Contains(th.Content, "vision") {
		t.Errorf("thought = %+v", th)
	}
}

func TestDispatch_ExecutionError(t *testing.T) {
	tool := &scriptedTool{err: errors.New("backend unreachable")}
	f := newFixture(t, tool, time.Second)
	ctx := context.Background()

	f.tracker.MarkRetrieved("search")
	f.engine.Dispatch(ctx, []models.Action{{Tool: "search.query", Args: []string{"x"}}})

	th := lastThought(t, f.buf)
	if !strings.HasPrefix(th.Formatted(), "[HIGH] [FAILED]") {
		t.Errorf("thought = %q, want [HIGH] [FAILED] prefix", th.Formatted())
	}
	if !strings.Contains(th.Content, "backend unreachable") {
		t.Errorf("thought = %q", th.Content)
	}
}

func TestDispatch_Timeout(t *testing.T) {
	tool := &scriptedTool{result: "late", execDur: 500 * time.Millisecond}
	f := newFixture(t, tool, 50*time.Millisecond)
	ctx := context.Background()

	f.tracker.MarkRetrieved("search")
	f.engine.Dispatch(ctx, []models.Action{{Tool: "search.query", Args: []string{"slow"}}})

	th := lastThought(t, f.buf)
	if !strings.Contains(th.Content, "[TIMEOUT]") {
		t.Errorf("thought = %q, want [TIMEOUT]", th.Content)
	}
	if th.Priority != models.PriorityHigh {
		t.Errorf("priority = %v, want HIGH", th.Priority)
	}
	if !f.engine.Drain(time.Second) {
		t.Error("Drain did not finish after tool goroutine exited")
	}
}

func TestDispatch_RejectsWhileExecuting(t *testing.T) {
	tool := &scriptedTool{result: "ok"}
	f := newFixture(t, tool, time.Second)
	ctx := context.Background()
	f.tracker.MarkRetrieved("search")

	// Simulate an in-flight action.
	id := f.state.RegisterAction("search", []string{"first"}, "")
	f.state.MarkInProgress(id)

	f.engine.Dispatch(ctx, []models.Action{{Tool: "search.query", Args: []string{"second"}}})
	if len(tool.calls) != 0 {
		t.Fatalf("execute called while another action in flight: %v", tool.calls)
	}
	th := lastThought(t, f.buf)
	if !strings.Contains(th.Content, "already executing") {
		t.Errorf("thought = %q", th.Content)
	}
}

func TestDispatch_ThrottlesAfterRepeatedFailures(t *testing.T) {
	tool := &scriptedTool{err: errors.New("backend unreachable")}
	f := newFixture(t, tool, time.Second)
	ctx := context.Background()
	f.tracker.MarkRetrieved("search")

	f.engine.Dispatch(ctx, []models.Action{{Tool: "search.query", Args: []string{"tea"}}})
	f.engine.Dispatch(ctx, []models.Action{{Tool: "search.query", Args: []string{"tea again"}}})
	if len(tool.calls) != 2 {
		t.Fatalf("calls = %v, want two failing executions", tool.calls)
	}

	f.engine.Dispatch(ctx, []models.Action{{Tool: "search.query", Args: []string{"tea once more"}}})
	if len(tool.calls) != 2 {
		t.Fatalf("third dispatch reached the tool despite the failure streak: %v", tool.calls)
	}
	th := lastThought(t, f.buf)
	if th.Priority != models.PriorityHigh {
		t.Errorf("throttle thought priority = %v, want HIGH", th.Priority)
	}
	if !strings.Contains(th.Content, "backing off") {
		t.Errorf("thought = %q, want backing-off reason", th.Content)
	}
}

func TestDispatch_CooldownHoldsSecondCall(t *testing.T) {
	const cooldownManifest = `{
  "tool_name": "search",
  "control_variable_name": "search_enabled",
  "tool_description": "Web search",
  "cooldown_seconds": 60,
  "available_commands": [{"command": "query", "description": "Run a search"}]
}`
	tool := &scriptedTool{result: "ok"}
	f := newFixtureWithManifest(t, tool, time.Second, cooldownManifest)
	ctx := context.Background()
	f.tracker.MarkRetrieved("search")

	f.engine.Dispatch(ctx, []models.Action{{Tool: "search.query", Args: []string{"first"}}})
	if len(tool.calls) != 1 {
		t.Fatalf("calls = %v, want one execution", tool.calls)
	}

	f.engine.Dispatch(ctx, []models.Action{{Tool: "search.query", Args: []string{"second"}}})
	if len(tool.calls) != 1 {
		t.Fatalf("second dispatch ignored the cooldown: %v", tool.calls)
	}
	th := lastThought(t, f.buf)
	if !strings.Contains(th.Content, "minimum interval") {
		t.Errorf("thought = %q, want minimum-interval reason", th.Content)
	}
}

func TestDispatch_DisabledReportedBeforeInstructionGate(t *testing.T) {
	tool := &scriptedTool{result: "ok"}
	f := newFixture(t, tool, time.Second)
	ctx := context.Background()
	if err := f.registry.SetEnabled(ctx, "search", false); err != nil {
		t.Fatal(err)
	}

	// No instruction grant either; the disabled state must win.
	f.engine.Dispatch(ctx, []models.Action{{Tool: "search.query", Args: []string{"x"}}})

	th := lastThought(t, f.buf)
	if !strings.Contains(th.Content, "disabled") {
		t.Errorf("thought = %q, want disabled message", th.Content)
	}
	if strings.Contains(th.Content, "instructions") {
		t.Errorf("thought = %q, instruction gate reported before disabled state", th.Content)
	}
}

func TestDispatch_InstructionsUnknownTool(t *testing.T) {
	f := newFixture(t, &scriptedTool{}, time.Second)

	f.engine.Dispatch(context.Background(), []models.Action{{Tool: "instructions", Args: []string{"ghost"}}})
	if f.tracker.HasActive("ghost") {
		t.Error("grant created for unknown tool")
	}
	th := lastThought(t, f.buf)
	if th.Priority != models.PriorityHigh || !strings.Contains(th.Content, "ghost") {
		t.Errorf("thought = %+v", th)
	}
}

func TestDispatch_InstructionsCapsRequests(t *testing.T) {
	f := newFixture(t, &scriptedTool{}, time.Second)

	f.engine.Dispatch(context.Background(), []models.Action{
		{Tool: "instructions", Args: []string{"search", "a", "b", "c"}},
	})
	// Only the first three names are considered; "search" is among them.
	if !f.tracker.HasActive("search") {
		t.Error("grant for search missing")
	}
}

func TestDispatch_BatchContinuesPastFailure(t *testing.T) {
	tool := &scriptedTool{result: "fine"}
	f := newFixture(t, tool, time.Second)
	ctx := context.Background()
	f.tracker.MarkRetrieved("search")

	f.engine.Dispatch(ctx, []models.Action{
		{Tool: "nonexistent.run", Args: nil},
		{Tool: "search.query", Args: []string{"after failure"}},
	})
	if len(tool.calls) != 1 {
		t.Fatalf("calls = %v, want the second action executed", tool.calls)
	}
}
