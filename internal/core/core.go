// Package core runs the cognitive loop: it drains events, picks a mode,
// asks the language model for thoughts and actions, dispatches the
// actions, and voices responses when the state demands one.
package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/animus-ai/animus/internal/actionstate"
	"github.com/animus-ai/animus/internal/config"
	"github.com/animus-ai/animus/internal/engine"
	"github.com/animus-ai/animus/internal/instructions"
	"github.com/animus-ai/animus/internal/llm"
	"github.com/animus-ai/animus/internal/memory"
	"github.com/animus-ai/animus/internal/observability"
	"github.com/animus-ai/animus/internal/prompt"
	"github.com/animus-ai/animus/internal/reminders"
	"github.com/animus-ai/animus/internal/thought"
	"github.com/animus-ai/animus/internal/tools"
	"github.com/animus-ai/animus/internal/tts"
	"github.com/animus-ai/animus/pkg/models"
)

// shutdownNotice is the reply given when the kill command is seen.
const shutdownNotice = "Understood. Shutting down now. Goodbye."

// Options wires the core's collaborators. Config is required; nil
// optional collaborators degrade gracefully (no memory, no speech).
type Options struct {
	Config    *config.Config
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	Cognitive llm.Client
	Response  llm.Client // falls back to Cognitive when nil
	Speaker   tts.Speaker
	Memory    *memory.Manager
	Reminders *reminders.Store
	Registry  *tools.Registry

	// OnSpoken receives every spoken reply, after TTS. Chat adapters
	// hook here to mirror speech into their channels.
	OnSpoken func(text string)
}

// Stats is a snapshot of loop health for the control surface.
type Stats struct {
	Uptime          time.Duration    `json:"uptime"`
	Ticks           int64            `json:"ticks"`
	Thoughts        int              `json:"thoughts"`
	PendingEvents   int              `json:"pending_events"`
	TrackedActions  int              `json:"tracked_actions"`
	EnabledTools    []string         `json:"enabled_tools"`
	MemoryTiers     memory.TierSizes `json:"memory_tiers"`
	LastMode        string           `json:"last_mode"`
	ConsecutiveIdle int              `json:"consecutive_proactive"`
}

// Core owns the loop goroutine and coordinates every subsystem.
type Core struct {
	cfg     *config.Config
	log     *observability.Logger
	metrics *observability.Metrics

	buf      *thought.Buffer
	state    *actionstate.Manager
	tracker  *instructions.Tracker
	mem      *memory.Manager
	registry *tools.Registry
	engine   *engine.Engine
	decider  *prompt.Decider
	builder  *prompt.Builder
	sched    *reminders.Scheduler

	cognitive llm.Client
	response  llm.Client
	speaker   tts.Speaker
	onSpoken  func(string)

	mu                    sync.Mutex
	lastChatConvert       time.Time
	lastMemoryIntegration time.Time
	lastMode              prompt.Mode
	tickCount             int64
	started               time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	wakeCh   chan struct{}
	now      func() time.Time
}

// New assembles a core from its collaborators.
func New(opts Options) *Core {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = observability.NewNopLogger()
	}
	speaker := opts.Speaker
	if speaker == nil {
		speaker = tts.NopSpeaker{}
	}
	response := opts.Response
	if response == nil {
		response = opts.Cognitive
	}

	buf := thought.NewBuffer(cfg.Loop.ThoughtBufferCapacity, cfg.Agent.Name)
	state := actionstate.NewManager()
	tracker := instructions.NewTracker(time.Duration(cfg.Instructions.TTLSeconds) * time.Second)

	registry := opts.Registry
	if registry == nil {
		registry = tools.NewRegistry(tools.RegistryOptions{
			Dir:            cfg.Tools.Dir,
			DefaultTimeout: time.Duration(cfg.Tools.DefaultTimeoutSeconds) * time.Second,
			Buffer:         buf,
			Logger:         log,
		})
	}

	c := &Core{
		cfg:       cfg,
		log:       log,
		metrics:   opts.Metrics,
		buf:       buf,
		state:     state,
		tracker:   tracker,
		mem:       opts.Memory,
		registry:  registry,
		cognitive: opts.Cognitive,
		response:  response,
		speaker:   speaker,
		onSpoken:  opts.OnSpoken,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		wakeCh:    make(chan struct{}, 1),
		now:       time.Now,
	}
	c.engine = engine.New(registry, state, tracker, buf, log, opts.Metrics)
	c.decider = prompt.NewDecider(cfg.Agent.Name,
		time.Duration(cfg.Loop.PlanningWindowSeconds)*time.Second,
		cfg.Loop.StartupThoughtThreshold)
	c.builder = prompt.NewBuilder(cfg.Agent.Name, cfg.Agent.PersonalityThought, cfg.Agent.PersonalityResponse,
		buf, registry, tracker, state, opts.Memory)

	if opts.Reminders != nil {
		c.sched = reminders.NewScheduler(opts.Reminders, buf,
			time.Duration(cfg.Reminders.CheckIntervalSeconds)*time.Second, log)
	}
	return c
}

// Buffer exposes the thought buffer for adapters that push chat.
func (c *Core) Buffer() *thought.Buffer { return c.buf }

// Registry exposes the tool registry for the control surface.
func (c *Core) Registry() *tools.Registry { return c.registry }

// PushChatMessage is the uniform chat-adapter callback.
func (c *Core) PushChatMessage(platform, username, message string, hasBotMention bool) {
	c.buf.IngestChatMessage(platform, username, message, hasBotMention)
	c.wake()
}

// ProcessUserMessage ingests direct user input. A message containing the
// kill command short-circuits: the shutdown notice is returned
// immediately and the language model is never consulted.
func (c *Core) ProcessUserMessage(ctx context.Context, text string) (string, bool) {
	if kill := c.cfg.Agent.KillCommand; kill != "" && strings.Contains(text, kill) {
		c.log.Info(ctx, "kill command received, shutting down")
		c.buf.ForceShutdown()
		c.wake()
		return shutdownNotice, true
	}

	c.buf.IngestRawData(models.SourceUserInput, text)
	if c.mem != nil {
		c.mem.AddConversationEntry(ctx, "user", text)
	}
	c.wake()
	return "", false
}

// SetFeature flips the tool bound to a control variable and drops stale
// instruction grants when disabling.
func (c *Core) SetFeature(ctx context.Context, controlVar string, enabled bool) error {
	name, err := c.registry.SetControl(ctx, controlVar, enabled)
	if err != nil {
		return err
	}
	if !enabled {
		c.tracker.ClearDisabled(c.registry.EnabledSet())
	}
	c.log.Info(ctx, "feature toggled", "tool", name, "enabled", enabled)
	return nil
}

// ToggleFeature flips a control variable to the opposite of its current
// state and returns the new state.
func (c *Core) ToggleFeature(ctx context.Context, controlVar string) (bool, error) {
	_, enabled, ok := c.registry.ToolForControl(controlVar)
	if !ok {
		return false, fmt.Errorf("unknown control variable %q", controlVar)
	}
	if err := c.SetFeature(ctx, controlVar, !enabled); err != nil {
		return enabled, err
	}
	return !enabled, nil
}

// Run drives the cognitive loop until ctx is cancelled or a shutdown is
// requested. Pacing is adaptive: activity resets the interval to the
// minimum, idle ticks stretch it toward the maximum.
func (c *Core) Run(ctx context.Context) error {
	defer close(c.doneCh)

	if c.sched != nil {
		c.sched.Start(ctx)
	}

	minInterval := time.Duration(c.cfg.Loop.MinProactiveIntervalSeconds) * time.Second
	maxInterval := time.Duration(c.cfg.Loop.MaxProactiveIntervalSeconds) * time.Second
	interval := minInterval
	c.mu.Lock()
	c.started = c.now()
	c.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		case <-c.wakeCh:
			interval = minInterval
		case <-time.After(interval):
		}

		if c.buf.IsShutdownRequested() {
			c.log.Info(ctx, "shutdown flag observed, loop exiting")
			return nil
		}

		busy := c.Tick(ctx)
		if busy {
			interval = minInterval
		} else {
			interval = time.Duration(float64(interval) * 1.5)
			if interval > maxInterval {
				interval = maxInterval
			}
		}
	}
}

// Tick runs one full pass of the loop and reports whether it processed
// external activity. Exported for tests and for forcing a pass.
func (c *Core) Tick(ctx context.Context) bool {
	c.mu.Lock()
	c.tickCount++
	c.mu.Unlock()

	c.convertChatBatch()
	events := c.buf.UnprocessedEvents()
	decision := c.decider.Decide(c.buf, events)

	c.mu.Lock()
	c.lastMode = decision.Mode
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.TickCounter.WithLabelValues(string(decision.Mode)).Inc()
	}
	c.log.Debug(ctx, "tick", "mode", string(decision.Mode), "events", len(events), "reason", decision.Reasoning)

	busy := len(events) > 0
	switch decision.Mode {
	case prompt.ModeSpoken:
		c.runSpoken(ctx, decision, events)
		busy = true
	case prompt.ModeResponsive:
		c.runResponsive(ctx, decision, events)
	default:
		c.runProactive(ctx, decision)
	}

	c.maintain(ctx)
	return busy
}

// convertChatBatch turns unengaged chat messages into events, at most
// once per batch window and up to the batch cap per pass.
func (c *Core) convertChatBatch() {
	window := time.Duration(c.cfg.Loop.ChatBatchWindowSeconds) * time.Second

	c.mu.Lock()
	if c.now().Sub(c.lastChatConvert) < window {
		c.mu.Unlock()
		return
	}
	c.lastChatConvert = c.now()
	c.mu.Unlock()

	msgs := c.buf.UnengagedMessages(c.cfg.Loop.ChatBatchMax)
	if len(msgs) == 0 {
		return
	}

	indices := make([]int, 0, len(msgs))
	for _, m := range msgs {
		source := models.SourceChatMessage
		switch m.Priority {
		case models.PriorityCritical:
			source = models.SourceChatDirectMention
		case models.PriorityHigh:
			source = models.SourceChatQuestion
		}
		c.buf.IngestRawData(source, fmt.Sprintf("[%s] %s: %s", m.Platform, m.Username, m.Message))
		indices = append(indices, m.Index)
	}
	c.buf.MarkChatEngaged(indices)
}

// runResponsive asks for one thought per event plus actions.
func (c *Core) runResponsive(ctx context.Context, decision prompt.Decision, events []models.Event) {
	if len(events) == 0 {
		return
	}
	raw, err := c.generate(ctx, c.cognitive, c.builder.Responsive(events))
	if err != nil {
		// Events stay queued so the next tick retries them.
		c.log.Error(ctx, "language model call failed, tick produces no thought", "error", err)
		return
	}
	c.buf.MarkEventsProcessed(len(events))

	out := llm.ParseOutput(raw)
	n := len(out.Thoughts)
	if n > len(events) {
		n = len(events)
	}
	for i := 0; i < n; i++ {
		// Thought i answers event i: keep its timestamp and derive
		// priority from its source.
		c.buf.AddProcessedThought(out.Thoughts[i], events[i].Source, events[i].Data, nil, events[i].Timestamp)
	}
	if out.Strategic != "" {
		c.buf.AddProcessedThought(out.Strategic, models.SourceInternal, "", nil, time.Time{})
	}
	c.dispatchActions(ctx, out.Actions)
	c.observeBufferSize()
}

// runProactive handles planning and reflective ticks: one thought.
func (c *Core) runProactive(ctx context.Context, decision prompt.Decision) {
	raw, err := c.generate(ctx, c.cognitive, c.builder.Build(ctx, decision, nil))
	if err != nil {
		c.log.Error(ctx, "language model call failed, tick produces no thought", "error", err)
		return
	}

	if single, ok := llm.ParseSingleThought(raw); ok {
		c.buf.AddProactiveThought(single)
	}
	c.dispatchActions(ctx, llm.ParseOutput(raw).Actions)
	c.observeBufferSize()
}

// runSpoken voices a response built from the current thought chain.
func (c *Core) runSpoken(ctx context.Context, decision prompt.Decision, events []models.Event) {
	// Events drained this tick still become thoughts afterwards; speech
	// takes priority within the tick.
	raw, err := c.generate(ctx, c.response, c.builder.Spoken(ctx, decision))
	if err != nil {
		c.log.Error(ctx, "response generation failed", "error", err)
		return
	}
	reply := strings.TrimSpace(raw)
	if reply == "" {
		return
	}

	if outcome, err := c.speaker.Speak(ctx, reply); err != nil {
		c.log.Warn(ctx, "speech failed", "outcome", string(outcome), "error", err)
	}
	if c.onSpoken != nil {
		c.onSpoken(reply)
	}

	c.buf.AddResponseEcho(reply, time.Time{})
	c.buf.MarkAllIntegrated()
	c.buf.SetUrgentReminders(false)
	if c.mem != nil {
		c.mem.AddConversationEntry(ctx, "assistant", reply)
	}

	if len(events) > 0 {
		// The events that triggered the speech still deserve thoughts on
		// the next responsive pass; leave them queued.
		c.wake()
	}
}

// dispatchActions validates against the enabled-tool set (instructions
// excepted) and hands the survivors to the engine.
func (c *Core) dispatchActions(ctx context.Context, actions []models.Action) {
	if len(actions) == 0 {
		return
	}
	enabled := c.registry.EnabledSet()
	kept := actions[:0]
	for _, a := range actions {
		if a.IsInstructions() || enabled[a.BaseName()] {
			kept = append(kept, a)
			continue
		}
		c.log.Debug(ctx, "rejecting action for disabled tool", "tool", a.Tool)
	}
	if len(kept) > 0 {
		c.engine.Dispatch(ctx, kept)
	}
}

// generate calls a client with the configured timeout.
func (c *Core) generate(ctx context.Context, client llm.Client, promptText string) (string, error) {
	if client == nil {
		return "", fmt.Errorf("no language model client configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.LLM.TimeoutSeconds)*time.Second)
	defer cancel()
	return client.Generate(callCtx, promptText)
}

// maintain runs the background chores: periodic memory integration and
// action-record cleanup.
func (c *Core) maintain(ctx context.Context) {
	c.state.CleanupOldActions(time.Duration(c.cfg.Loop.ActionCleanupSeconds) * time.Second)
	c.observeBufferSize()

	if c.mem == nil {
		return
	}
	integration := time.Duration(c.cfg.Loop.MemoryIntegrationIntervalSeconds) * time.Second

	c.mu.Lock()
	due := c.now().Sub(c.lastMemoryIntegration) >= integration
	if due {
		c.lastMemoryIntegration = c.now()
	}
	c.mu.Unlock()
	if !due {
		return
	}

	recent := c.buf.RecentThoughts(5)
	if len(recent) == 0 {
		return
	}
	thoughts := make([]string, len(recent))
	for i, t := range recent {
		thoughts[i] = t.Content
	}
	hits, err := c.mem.SearchLongCombined(ctx, "", thoughts, 1, 0.3, true)
	if err != nil || len(hits) == 0 {
		return
	}
	c.buf.AddProcessedThought(
		fmt.Sprintf("I remember from %s: %s", hits[0].Date, hits[0].Summary),
		models.SourceMemoryIntegration, "", nil, time.Time{})
}

// Shutdown stops the loop, drains outstanding tool work briefly, and
// stops every subsystem.
func (c *Core) Shutdown(ctx context.Context) {
	c.buf.ForceShutdown()
	c.stopOnce.Do(func() { close(c.stopCh) })
	select {
	case <-c.doneCh:
	case <-time.After(3 * time.Second):
		c.log.Warn(ctx, "loop did not exit in time")
	}

	if !c.engine.Drain(2 * time.Second) {
		c.log.Warn(ctx, "abandoning outstanding tool executions")
	}
	if c.sched != nil {
		c.sched.Stop()
	}
	c.registry.StopAll(ctx)
	c.log.Info(ctx, "core stopped")
}

// PerformanceStats snapshots loop health.
func (c *Core) PerformanceStats() Stats {
	c.mu.Lock()
	ticks := c.tickCount
	started := c.started
	mode := c.lastMode
	c.mu.Unlock()

	uptime := time.Duration(0)
	if !started.IsZero() {
		uptime = c.now().Sub(started)
	}
	stats := Stats{
		Uptime:          uptime,
		Ticks:           ticks,
		Thoughts:        c.buf.Len(),
		PendingEvents:   c.buf.PendingEventCount(),
		TrackedActions:  c.state.ActionCount(),
		EnabledTools:    c.registry.EnabledToolNames(),
		LastMode:        string(mode),
		ConsecutiveIdle: c.buf.ConsecutiveProactive(),
	}
	if c.mem != nil {
		stats.MemoryTiers = c.mem.Stats()
	}
	return stats
}

func (c *Core) observeBufferSize() {
	if c.metrics != nil {
		c.metrics.ThoughtBufferSize.Set(float64(c.buf.Len()))
	}
}

func (c *Core) wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}
