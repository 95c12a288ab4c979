// Package engine dispatches structured actions from the language model:
// instruction retrievals go to the tracker, regular invocations run
// against enabled tools with per-manifest timeouts. Every outcome is fed
// back into the thought buffer so the next prompt reflects reality.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/animus-ai/animus/internal/actionstate"
	"github.com/animus-ai/animus/internal/instructions"
	"github.com/animus-ai/animus/internal/observability"
	"github.com/animus-ai/animus/internal/thought"
	"github.com/animus-ai/animus/internal/tools"
	"github.com/animus-ai/animus/pkg/models"
)

// maxInstructionRequests bounds how many tools one instructions action
// may name.
const maxInstructionRequests = 3

// Engine borrows the registry, action state, instruction tracker, and
// thought buffer; it owns no state beyond in-flight bookkeeping.
type Engine struct {
	registry *tools.Registry
	state    *actionstate.Manager
	tracker  *instructions.Tracker
	buf      *thought.Buffer
	log      *observability.Logger
	metrics  *observability.Metrics

	wg sync.WaitGroup
}

// New wires an engine.
func New(registry *tools.Registry, state *actionstate.Manager, tracker *instructions.Tracker, buf *thought.Buffer, log *observability.Logger, metrics *observability.Metrics) *Engine {
	if log == nil {
		log = observability.NewNopLogger()
	}
	return &Engine{
		registry: registry,
		state:    state,
		tracker:  tracker,
		buf:      buf,
		log:      log,
		metrics:  metrics,
	}
}

// Dispatch runs a batch of actions sequentially. Failures never abort
// the batch: each action degrades to a thought explaining what happened.
func (e *Engine) Dispatch(ctx context.Context, actions []models.Action) {
	for _, action := range actions {
		if action.IsInstructions() {
			e.handleInstructions(ctx, action)
			continue
		}
		e.executeAction(ctx, action)
	}
}

// handleInstructions marks grants for up to three requested tools and
// injects a summary thought so the model knows what it can now call.
func (e *Engine) handleInstructions(ctx context.Context, action models.Action) {
	names := action.Args
	if len(names) > maxInstructionRequests {
		names = names[:maxInstructionRequests]
	}

	var granted, unknown []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !e.registry.Known(name) {
			unknown = append(unknown, name)
			continue
		}
		refreshed := e.tracker.MarkRetrieved(name)
		granted = append(granted, name)
		e.log.Info(ctx, "instructions granted", "tool", name, "refreshed", refreshed)
	}

	switch {
	case len(granted) > 0 && len(unknown) > 0:
		e.addThought(fmt.Sprintf("Retrieved usage instructions for %s; no such tool: %s.",
			strings.Join(granted, ", "), strings.Join(unknown, ", ")), models.SourceToolResult, nil)
	case len(granted) > 0:
		e.addThought(fmt.Sprintf("Retrieved usage instructions for %s. Detailed commands are now available.",
			strings.Join(granted, ", ")), models.SourceToolResult, nil)
	case len(unknown) > 0:
		high := models.PriorityHigh
		e.addThought(fmt.Sprintf("Cannot retrieve instructions: no tool named %s exists.",
			strings.Join(unknown, ", ")), models.SourceToolFailed, &high)
	}
}

// executeAction runs one regular tool invocation through the gate
// sequence: known, enabled and available, not already running, not
// throttled, instructions active.
func (e *Engine) executeAction(ctx context.Context, action models.Action) {
	base := action.BaseName()
	high := models.PriorityHigh

	if !e.registry.Known(base) {
		e.countExecution(base, "rejected")
		e.addThought(fmt.Sprintf("Tool %q does not exist. Check the available tools list before acting.", base),
			models.SourceToolFailed, &high)
		return
	}

	instance, _, ok := e.registry.Get(base)
	if !ok {
		e.countExecution(base, "rejected")
		e.addThought(fmt.Sprintf("Tool %q is currently disabled.", base), models.SourceToolFailed, &high)
		return
	}
	if !instance.IsAvailable() {
		e.countExecution(base, "rejected")
		e.addThought(fmt.Sprintf("Tool %q is not available right now.", base), models.SourceToolFailed, &high)
		return
	}

	if e.state.IsToolExecuting(base) {
		e.countExecution(base, "rejected")
		e.addThought(fmt.Sprintf("Tool %q is already executing an action; wait for its result instead of re-issuing.", base),
			models.SourceToolFailed, &high)
		return
	}

	if throttled, reason := e.state.ShouldThrottleTool(base, e.registry.Cooldown(base)); throttled {
		e.countExecution(base, "throttled")
		e.addThought(fmt.Sprintf("Holding off on %q: %s.", base, reason), models.SourceToolFailed, &high)
		return
	}

	if !e.tracker.HasActive(base) {
		// The enforcement record goes PENDING -> FAILED without ever
		// reaching IN_PROGRESS; execute is never called.
		id := e.state.RegisterAction(base, action.Args, "")
		e.state.FailAction(id, "instructions not retrieved", "enforcement")
		e.countExecution(base, "rejected")
		e.addThought(fmt.Sprintf("Before using %q you must retrieve its instructions: call {\"tool\":\"instructions\",\"args\":[%q]}.", base, base),
			models.SourceToolFailed, &high)
		return
	}

	id := e.state.RegisterAction(base, action.Args, "")
	e.state.MarkInProgress(id)
	timeout := e.registry.Timeout(base)
	e.log.Info(ctx, "executing tool action", "action_id", id, "tool", action.Tool, "timeout", timeout)

	start := time.Now()
	result, err, timedOut := e.runWithTimeout(ctx, instance, action, timeout)
	if e.metrics != nil {
		e.metrics.ToolExecutionDuration.WithLabelValues(base).Observe(time.Since(start).Seconds())
	}

	switch {
	case timedOut:
		e.state.MarkTimeout(id)
		e.countExecution(base, "timeout")
		e.addThought(fmt.Sprintf("[TIMEOUT] %s did not finish within %s. The operation was abandoned.", action.Tool, timeout),
			models.SourceToolTimeout, nil)
	case err != nil:
		e.state.FailAction(id, err.Error(), "")
		e.countExecution(base, "error")
		e.addThought(fmt.Sprintf("[FAILED] %s: %v", action.Tool, err), models.SourceToolFailed, nil)
	default:
		content := ""
		if result != nil {
			content = result.Content
		}
		e.state.CompleteAction(id, content)
		e.countExecution(base, "success")
		medium := models.PriorityMedium
		e.addThought(fmt.Sprintf("%s result: %s", action.Tool, content), models.SourceToolResult, &medium)
	}
}

// runWithTimeout executes the tool call in its own goroutine so a hung
// tool cannot stall the loop; the goroutine is tracked for Drain.
func (e *Engine) runWithTimeout(ctx context.Context, instance tools.Tool, action models.Action, timeout time.Duration) (*tools.Result, error, bool) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)

	type outcome struct {
		result *tools.Result
		err    error
	}
	ch := make(chan outcome, 1)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		res, err := instance.Execute(execCtx, action.Command(), action.Args)
		ch <- outcome{result: res, err: err}
	}()

	select {
	case out := <-ch:
		return out.result, out.err, false
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err(), false
		}
		return nil, nil, true
	}
}

// Drain waits up to timeout for outstanding tool goroutines; used at
// shutdown so abandoned executions get a short grace period.
func (e *Engine) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (e *Engine) addThought(content, source string, override *models.Priority) {
	e.buf.AddProcessedThought(content, source, "", override, time.Time{})
}

func (e *Engine) countExecution(tool, status string) {
	if e.metrics != nil {
		e.metrics.ToolExecutionCounter.WithLabelValues(tool, status).Inc()
	}
}
