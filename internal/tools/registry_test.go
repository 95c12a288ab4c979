package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/animus-ai/animus/internal/thought"
)

const searchManifest = `{
  "tool_name": "search",
  "control_variable_name": "search_enabled",
  "tool_description": "Web search",
  "available_commands": [
    {"command": "query", "description": "Run a search", "arguments": [
      {"name": "terms", "type": "string", "required": true}
    ]}
  ],
  "tool_usage_guidance": ["Keep queries short"],
  "timeout_seconds": 10
}`

const timerManifest = `{
  "tool_name": "timer",
  "control_variable_name": "timer_enabled",
  "tool_description": "Countdown timers",
  "available_commands": [{"command": "set", "description": "Set a timer"}]
}`

// fakeTool counts lifecycle calls.
type fakeTool struct {
	started   atomic.Int32
	ended     atomic.Int32
	startErr  error
	available bool
}

func (f *fakeTool) Start(context.Context, *thought.Buffer) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started.Add(1)
	return nil
}
func (f *fakeTool) End(context.Context) error { f.ended.Add(1); return nil }
func (f *fakeTool) IsAvailable() bool         { return f.available }
func (f *fakeTool) Execute(context.Context, string, []string) (*Result, error) {
	return &Result{Content: "ok"}, nil
}

func writeManifest(t *testing.T, root, tool, body string) {
	t.Helper()
	dir := filepath.Join(root, tool)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "search", searchManifest)

	m, err := LoadManifest(filepath.Join(root, "search", ManifestFileName))
	if err != nil {
		t.Fatalf("LoadManifest() error: %v", err)
	}
	if m.ToolName != "search" || m.ControlVariableName != "search_enabled" {
		t.Errorf("manifest = %+v", m)
	}
	if m.TimeoutSeconds != 10 {
		t.Errorf("TimeoutSeconds = %d, want 10", m.TimeoutSeconds)
	}
	if len(m.AvailableCommands) != 1 || m.AvailableCommands[0].Command != "query" {
		t.Errorf("commands = %+v", m.AvailableCommands)
	}
}

func TestLoadManifest_SchemaRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing tool_name", `{"control_variable_name":"x","tool_description":"d","available_commands":[{"command":"c","description":"d"}]}`},
		{"empty commands", `{"tool_name":"a","control_variable_name":"x","tool_description":"d","available_commands":[]}`},
		{"bad tool name", `{"tool_name":"Bad Name","control_variable_name":"x","tool_description":"d","available_commands":[{"command":"c","description":"d"}]}`},
		{"not json", `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			path := filepath.Join(root, ManifestFileName)
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadManifest(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRegistry_DiscoverAndLifecycle(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "search", searchManifest)
	writeManifest(t, root, "timer", timerManifest)

	ft := &fakeTool{available: true}
	r := NewRegistry(RegistryOptions{Dir: root})
	r.RegisterFactory("search", func() (Tool, error) { return ft, nil })

	ctx := context.Background()
	if err := r.Discover(ctx); err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if !r.Known("search") || !r.Known("timer") {
		t.Fatal("discovered tools not recorded")
	}
	if got := r.EnabledToolNames(); len(got) != 0 {
		t.Errorf("EnabledToolNames() = %v, want none before enabling", got)
	}

	name, err := r.SetControl(ctx, "search_enabled", true)
	if err != nil {
		t.Fatalf("SetControl() error: %v", err)
	}
	if name != "search" {
		t.Errorf("SetControl() name = %q", name)
	}
	if ft.started.Load() != 1 {
		t.Errorf("started = %d, want 1", ft.started.Load())
	}
	if got := r.EnabledToolNames(); len(got) != 1 || got[0] != "search" {
		t.Errorf("EnabledToolNames() = %v", got)
	}

	// Enabling again is a no-op.
	if err := r.SetEnabled(ctx, "search", true); err != nil {
		t.Fatalf("SetEnabled() again: %v", err)
	}
	if ft.started.Load() != 1 {
		t.Errorf("started after re-enable = %d, want 1", ft.started.Load())
	}

	if err := r.SetEnabled(ctx, "search", false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if ft.ended.Load() != 1 {
		t.Errorf("ended = %d, want 1", ft.ended.Load())
	}
	if _, _, ok := r.Get("search"); ok {
		t.Error("Get() returned instance for disabled tool")
	}
}

func TestRegistry_StartFailureLeavesDisabled(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "search", searchManifest)

	ft := &fakeTool{startErr: errors.New("no browser"), available: true}
	r := NewRegistry(RegistryOptions{Dir: root})
	r.RegisterFactory("search", func() (Tool, error) { return ft, nil })

	ctx := context.Background()
	if err := r.Discover(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := r.SetControl(ctx, "search_enabled", true); err == nil {
		t.Fatal("expected start failure")
	}
	if got := r.EnabledToolNames(); len(got) != 0 {
		t.Errorf("EnabledToolNames() = %v, want none after failed start", got)
	}
}

func TestRegistry_NoFactoryCannotEnable(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "timer", timerManifest)

	r := NewRegistry(RegistryOptions{Dir: root})
	ctx := context.Background()
	if err := r.Discover(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.SetEnabled(ctx, "timer", true); err == nil {
		t.Error("expected error enabling tool without implementation")
	}
}

func TestRegistry_UnknownControlVariable(t *testing.T) {
	r := NewRegistry(RegistryOptions{Dir: t.TempDir()})
	if _, err := r.SetControl(context.Background(), "nope", true); err == nil {
		t.Error("expected error for unknown control variable")
	}
}

func TestRegistry_InvalidManifestSkipped(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "good", timerManifest)
	writeManifest(t, root, "bad", `{"tool_name": "bad"}`)

	r := NewRegistry(RegistryOptions{Dir: root})
	if err := r.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if r.Known("bad") {
		t.Error("invalid manifest was recorded")
	}
	if !r.Known("timer") {
		t.Error("valid manifest was dropped")
	}
}

func TestRegistry_Timeout(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "search", searchManifest)
	writeManifest(t, root, "timer", timerManifest)

	r := NewRegistry(RegistryOptions{Dir: root, DefaultTimeout: 30 * time.Second})
	if err := r.Discover(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := r.Timeout("search"); got != 10*time.Second {
		t.Errorf("Timeout(search) = %v, want manifest value", got)
	}
	if got := r.Timeout("timer"); got != 30*time.Second {
		t.Errorf("Timeout(timer) = %v, want default", got)
	}
}

func TestRegistry_PromptSurfaces(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "search", searchManifest)

	r := NewRegistry(RegistryOptions{Dir: root})
	r.RegisterFactory("search", func() (Tool, error) { return &fakeTool{available: true}, nil })
	ctx := context.Background()
	if err := r.Discover(ctx); err != nil {
		t.Fatal(err)
	}

	if got := r.OneLineList(); got != "" {
		t.Errorf("OneLineList() before enable = %q, want empty", got)
	}
	if err := r.SetEnabled(ctx, "search", true); err != nil {
		t.Fatal(err)
	}
	one := r.OneLineList()
	if !strings.Contains(one, "search: Web search") {
		t.Errorf("OneLineList() = %q", one)
	}
	if strings.Contains(one, "query") {
		t.Errorf("OneLineList() leaks command details: %q", one)
	}

	detail := r.DetailedInstructions([]string{"search"})
	for _, want := range []string{"search.query", "terms", "Keep queries short"} {
		if !strings.Contains(detail, want) {
			t.Errorf("DetailedInstructions() missing %q:\n%s", want, detail)
		}
	}
}

func TestRegistry_RediscoverDropsRemovedTool(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "search", searchManifest)

	ft := &fakeTool{available: true}
	var disabled atomic.Int32
	r := NewRegistry(RegistryOptions{
		Dir:       root,
		OnDisable: func(string) { disabled.Add(1) },
	})
	r.RegisterFactory("search", func() (Tool, error) { return ft, nil })

	ctx := context.Background()
	if err := r.Discover(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.SetEnabled(ctx, "search", true); err != nil {
		t.Fatal(err)
	}

	if err := os.RemoveAll(filepath.Join(root, "search")); err != nil {
		t.Fatal(err)
	}
	if err := r.Discover(ctx); err != nil {
		t.Fatal(err)
	}
	if r.Known("search") {
		t.Error("removed tool still known after re-discover")
	}
	if ft.ended.Load() != 1 {
		t.Errorf("ended = %d, want removed tool stopped", ft.ended.Load())
	}

	deadline := time.After(time.Second)
	for disabled.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("OnDisable hook never fired")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}
