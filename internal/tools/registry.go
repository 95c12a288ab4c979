package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/animus-ai/animus/internal/observability"
	"github.com/animus-ai/animus/internal/thought"
	"github.com/animus-ai/animus/pkg/models"
)

// RegistryOptions configures the tool registry.
type RegistryOptions struct {
	// Dir is the installed-tools directory scanned for manifests.
	Dir string

	// DefaultTimeout applies to tools whose manifest sets no
	// timeout_seconds.
	DefaultTimeout time.Duration

	// Buffer is handed to tools on Start so they can inject events.
	Buffer *thought.Buffer

	// OnDisable is invoked with the tool name after a tool stops, letting
	// the instruction tracker drop stale grants.
	OnDisable func(toolName string)

	Logger *observability.Logger
}

// entry is the registry's record for one discovered tool.
type entry struct {
	manifest models.ToolManifest
	dir      string
	instance Tool // non-nil while enabled
}

// Registry owns every discovered tool: manifest metadata, the
// enable/disable lifecycle driven by control variables, and the prompt
// surfaces describing what is currently available.
type Registry struct {
	mu   sync.Mutex
	opts RegistryOptions
	log  *observability.Logger

	factories map[string]Factory
	entries   map[string]*entry
	byControl map[string]string // control variable -> tool name

	watcher *fsnotify.Watcher
}

// NewRegistry creates an empty registry; call RegisterFactory for each
// runnable tool, then Discover.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewNopLogger()
	}
	return &Registry{
		opts:      opts,
		log:       opts.Logger,
		factories: make(map[string]Factory),
		entries:   make(map[string]*entry),
		byControl: make(map[string]string),
	}
}

// RegisterFactory binds a constructor to a tool name. Must be called
// before Discover for the tool to be enableable.
func (r *Registry) RegisterFactory(toolName string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[toolName] = f
}

// Discover scans the tool directory and records every valid manifest.
// Re-running keeps enabled instances whose manifests are still present
// and drops tools whose directories disappeared.
func (r *Registry) Discover(ctx context.Context) error {
	found, err := discoverManifests(r.opts.Dir, func(dir string, err error) {
		r.log.Warn(ctx, "skipping tool with invalid manifest", "dir", dir, "error", err)
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(found))
	for _, d := range found {
		name := d.manifest.ToolName
		seen[name] = true
		if existing, ok := r.entries[name]; ok {
			existing.manifest = d.manifest
			existing.dir = d.dir
		} else {
			r.entries[name] = &entry{manifest: d.manifest, dir: d.dir}
			if _, runnable := r.factories[name]; !runnable {
				r.log.Warn(ctx, "manifest has no registered implementation", "tool", name)
			}
		}
		r.byControl[d.manifest.ControlVariableName] = name
	}

	for name, e := range r.entries {
		if seen[name] {
			continue
		}
		if e.instance != nil {
			r.stopLocked(ctx, name, e)
		}
		delete(r.byControl, e.manifest.ControlVariableName)
		delete(r.entries, name)
		r.log.Info(ctx, "tool removed from directory", "tool", name)
	}
	return nil
}

// SetControl flips the tool bound to a control variable. Returns the
// affected tool name. A failed start leaves the tool disabled.
func (r *Registry) SetControl(ctx context.Context, controlVar string, enabled bool) (string, error) {
	r.mu.Lock()
	name, ok := r.byControl[controlVar]
	r.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown control variable %q", controlVar)
	}
	return name, r.SetEnabled(ctx, name, enabled)
}

// SetEnabled starts or stops a tool by name. Enabling an already-enabled
// tool (or disabling a disabled one) is a no-op.
func (r *Registry) SetEnabled(ctx context.Context, toolName string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[toolName]
	if !ok {
		return fmt.Errorf("unknown tool %q", toolName)
	}

	if !enabled {
		if e.instance != nil {
			r.stopLocked(ctx, toolName, e)
		}
		return nil
	}

	if e.instance != nil {
		return nil
	}
	factory, ok := r.factories[toolName]
	if !ok {
		return fmt.Errorf("tool %q has no implementation", toolName)
	}
	instance, err := factory()
	if err != nil {
		return fmt.Errorf("construct tool %q: %w", toolName, err)
	}
	if err := instance.Start(ctx, r.opts.Buffer); err != nil {
		return fmt.Errorf("start tool %q: %w", toolName, err)
	}
	e.instance = instance
	r.log.Info(ctx, "tool enabled", "tool", toolName)
	return nil
}

// stopLocked stops an enabled tool and fires the disable hook. Caller
// holds r.mu.
func (r *Registry) stopLocked(ctx context.Context, name string, e *entry) {
	if err := e.instance.End(ctx); err != nil {
		r.log.Warn(ctx, "tool end failed", "tool", name, "error", err)
	}
	e.instance = nil
	r.log.Info(ctx, "tool disabled", "tool", name)
	if r.opts.OnDisable != nil {
		// Hook runs without the lock: it may call back into the registry.
		go r.opts.OnDisable(name)
	}
}

// StopAll disables every enabled tool; used at shutdown.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.entries {
		if e.instance != nil {
			r.stopLocked(ctx, name, e)
		}
	}
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
}

// Get returns the enabled instance and manifest for a tool, or ok=false
// when the tool is unknown or disabled.
func (r *Registry) Get(toolName string) (Tool, models.ToolManifest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[toolName]
	if !ok || e.instance == nil {
		return nil, models.ToolManifest{}, false
	}
	return e.instance, e.manifest, true
}

// ToolForControl resolves a control variable to its tool name and
// current enabled state.
func (r *Registry) ToolForControl(controlVar string) (name string, enabled, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok = r.byControl[controlVar]
	if !ok {
		return "", false, false
	}
	e := r.entries[name]
	return name, e != nil && e.instance != nil, true
}

// Known reports whether a manifest for the tool exists at all.
func (r *Registry) Known(toolName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[toolName]
	return ok
}

// EnabledToolNames returns the sorted names of currently enabled tools.
func (r *Registry) EnabledToolNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for name, e := range r.entries {
		if e.instance != nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// EnabledSet returns the enabled names as a membership map for action
// validation.
func (r *Registry) EnabledSet() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]bool)
	for name, e := range r.entries {
		if e.instance != nil {
			out[name] = true
		}
	}
	return out
}

// Timeout returns the execution deadline for a tool: its manifest value
// or the registry default.
func (r *Registry) Timeout(toolName string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[toolName]; ok && e.manifest.TimeoutSeconds > 0 {
		return time.Duration(e.manifest.TimeoutSeconds) * time.Second
	}
	return r.opts.DefaultTimeout
}

// Cooldown returns the manifest's minimum interval between calls to the
// tool; zero when the manifest sets none.
func (r *Registry) Cooldown(toolName string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[toolName]; ok && e.manifest.CooldownSeconds > 0 {
		return time.Duration(e.manifest.CooldownSeconds) * time.Second
	}
	return 0
}

// OneLineList renders the default prompt surface: one line per enabled
// tool, name plus description. The model must request instructions
// before seeing command details.
func (r *Registry) OneLineList() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entries))
	for name, e := range r.entries {
		if e.instance != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, r.entries[name].manifest.ToolDescription)
	}
	return strings.TrimRight(b.String(), "\n")
}

// DetailedInstructions renders the full command reference for the named
// tools; shown only while an instruction grant is active.
func (r *Registry) DetailedInstructions(toolNames []string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	for _, name := range toolNames {
		e, ok := r.entries[name]
		if !ok {
			continue
		}
		m := e.manifest
		fmt.Fprintf(&b, "### %s\n%s\n", m.ToolName, m.ToolDescription)
		for _, cmd := range m.AvailableCommands {
			fmt.Fprintf(&b, "- %s.%s: %s", m.ToolName, cmd.Command, cmd.Description)
			if cmd.Format != "" {
				fmt.Fprintf(&b, " (format: %s)", cmd.Format)
			}
			b.WriteString("\n")
			for _, arg := range cmd.Arguments {
				req := "optional"
				if arg.Required {
					req = "required"
				}
				fmt.Fprintf(&b, "    %s (%s, %s): %s\n", arg.Name, arg.Type, req, arg.Description)
			}
		}
		for _, g := range m.ToolUsageGuidance {
			fmt.Fprintf(&b, "Guidance: %s\n", g)
		}
		for _, ex := range m.ToolUsageExamples {
			fmt.Fprintf(&b, "Example: %s\n", ex)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Watch hot-reloads the tool directory: manifest creates, edits, and
// removals trigger a re-discover. Runs until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create tools watcher: %w", err)
	}
	if err := watcher.Add(r.opts.Dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch tools dir: %w", err)
	}

	r.mu.Lock()
	r.watcher = watcher
	r.mu.Unlock()

	go func() {
		defer watcher.Close()

		// Coalesce event bursts (editors fire several per save).
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !relevantManifestEvent(event) {
					continue
				}
				pending = time.After(250 * time.Millisecond)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.log.Warn(ctx, "tools watcher error", "error", err)
			case <-pending:
				pending = nil
				if err := r.Discover(ctx); err != nil {
					r.log.Warn(ctx, "tools re-discover failed", "error", err)
				}
			}
		}
	}()
	return nil
}

func relevantManifestEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	// Directory-level creates/removes matter too: a new tool dir arrives
	// before its manifest.
	return base == ManifestFileName || !strings.Contains(base, ".")
}
