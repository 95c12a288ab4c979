package actionstate

import (
	"strings"
	"testing"
	"time"

	"github.com/animus-ai/animus/pkg/models"
)

func newTestManager(t *testing.T) (*Manager, *time.Time) {
	t.Helper()
	m := NewManager()
	now := time.Now()
	m.now = func() time.Time { return now }
	return m, &now
}

func TestRegisterAction_IDsAndAttempts(t *testing.T) {
	m, _ := newTestManager(t)

	id1 := m.RegisterAction("search", []string{"weather today"}, "")
	id2 := m.RegisterAction("search", []string{"weather today"}, "")

	if id1 == id2 {
		t.Errorf("ids not unique: %q", id1)
	}
	if !strings.HasPrefix(id1, "a1_") || !strings.HasPrefix(id2, "a2_") {
		t.Errorf("ids = %q, %q, want a<counter>_<ms> form", id1, id2)
	}

	rec, ok := m.Get(id2)
	if !ok {
		t.Fatal("record not found")
	}
	if rec.AttemptNumber != 2 {
		t.Errorf("AttemptNumber = %d, want 2", rec.AttemptNumber)
	}
	if rec.Status != models.ActionPending {
		t.Errorf("Status = %v, want pending", rec.Status)
	}
}

func TestRegisterAction_QuerySimplified(t *testing.T) {
	m, _ := newTestManager(t)

	m.RegisterAction("search", []string{"detailed weather forecast for tomorrow morning"}, "")
	id := m.RegisterAction("search", []string{"detailed weather forecast for tomorrow morning"}, "")
	// Same leading 50 chars, fewer tokens overall counts as simplified.
	rec, _ := m.Get(id)
	if rec.QuerySimplified {
		t.Error("same query should not be marked simplified")
	}
}

func TestLifecycleTransitions(t *testing.T) {
	m, _ := newTestManager(t)
	id := m.RegisterAction("search", []string{"q"}, "")

	m.MarkInProgress(id)
	if rec, _ := m.Get(id); rec.Status != models.ActionInProgress {
		t.Errorf("Status = %v, want in_progress", rec.Status)
	}

	m.CompleteAction(id, "result text")
	rec, _ := m.Get(id)
	if rec.Status != models.ActionCompleted {
		t.Errorf("Status = %v, want completed", rec.Status)
	}
	if rec.Result != "result text" {
		t.Errorf("Result = %q", rec.Result)
	}
	if rec.CompletedAt.IsZero() {
		t.Error("CompletedAt not set")
	}
}

func TestMarkTimeout(t *testing.T) {
	m, _ := newTestManager(t)
	id := m.RegisterAction("slow", []string{"x"}, "")
	m.MarkInProgress(id)
	m.MarkTimeout(id)

	rec, _ := m.Get(id)
	if rec.Status != models.ActionFailed {
		t.Errorf("Status = %v, want failed", rec.Status)
	}
	if rec.FailureReason != "timeout" {
		t.Errorf("FailureReason = %q, want timeout", rec.FailureReason)
	}
}

func TestPendingActionsAndExecuting(t *testing.T) {
	m, _ := newTestManager(t)
	id1 := m.RegisterAction("a", []string{"1"}, "")
	id2 := m.RegisterAction("b", []string{"2"}, "")
	m.MarkInProgress(id1)
	m.CompleteAction(id2, "done")

	pending := m.PendingActions()
	if len(pending) != 1 || pending[0].Tool != "a" {
		t.Errorf("PendingActions() = %v, want one record for tool a", pending)
	}
	if !m.IsToolExecuting("a") {
		t.Error("IsToolExecuting(a) = false")
	}
	if m.IsToolExecuting("b") {
		t.Error("IsToolExecuting(b) = true after completion")
	}
}

func TestRecentToolResult(t *testing.T) {
	m, now := newTestManager(t)
	id := m.RegisterAction("search", []string{"q"}, "")
	m.CompleteAction(id, "fresh result")

	if res, ok := m.RecentToolResult("search", time.Minute); !ok || res != "fresh result" {
		t.Errorf("RecentToolResult = %q, %v", res, ok)
	}

	*now = now.Add(2 * time.Minute)
	if _, ok := m.RecentToolResult("search", time.Minute); ok {
		t.Error("stale result still returned")
	}
}

func TestShouldThrottle_MinInterval(t *testing.T) {
	m, now := newTestManager(t)
	id := m.RegisterAction("search", []string{"q"}, "")
	m.CompleteAction(id, "ok")

	*now = now.Add(5 * time.Second)
	throttled, reason := m.ShouldThrottleTool("search", 10*time.Second)
	if !throttled {
		t.Error("expected throttle within min interval")
	}
	if reason == "" {
		t.Error("expected a throttle reason")
	}

	*now = now.Add(30 * time.Second)
	if throttled, _ := m.ShouldThrottleTool("search", 10*time.Second); throttled {
		t.Error("throttle persisted past min interval")
	}
}

func TestShouldThrottle_FailureStreak(t *testing.T) {
	m, now := newTestManager(t)

	// Three failed actions, last one 10s ago.
	for i := 0; i < 3; i++ {
		id := m.RegisterAction("flaky", []string{"q"}, "")
		m.MarkInProgress(id)
		m.FailAction(id, "boom", "error")
		*now = now.Add(2 * time.Second)
	}
	*now = now.Add(8 * time.Second) // last call now-10s

	throttled, _ := m.ShouldThrottleTool("flaky", 0)
	if !throttled {
		t.Error("expected throttle with 3 recent failures 10s ago")
	}

	*now = now.Add(25 * time.Second) // last call now-35s
	if throttled, _ := m.ShouldThrottleTool("flaky", 0); throttled {
		t.Error("throttle persisted past the 30s failure window")
	}
}

func TestShouldThrottle_PendingAction(t *testing.T) {
	m, now := newTestManager(t)
	m.RegisterAction("busy", []string{"q"}, "")
	*now = now.Add(time.Hour) // well past any interval window

	throttled, reason := m.ShouldThrottleTool("busy", time.Second)
	if !throttled {
		t.Error("expected throttle while an action is pending")
	}
	if !strings.Contains(reason, "pending") {
		t.Errorf("reason = %q, want mention of pending", reason)
	}
}

func TestToolAwarenessContext(t *testing.T) {
	m, _ := newTestManager(t)
	id := m.RegisterAction("vision", []string{"look"}, "")
	m.MarkInProgress(id)

	ctx := m.ToolAwarenessContext()
	if !strings.Contains(ctx, "vision") || !strings.Contains(ctx, "in progress") {
		t.Errorf("ToolAwarenessContext() = %q", ctx)
	}
}

func TestSummaries(t *testing.T) {
	m, _ := newTestManager(t)
	ok := m.RegisterAction("good", []string{"q"}, "")
	m.CompleteAction(ok, "fine")
	bad := m.RegisterAction("bad", []string{"q"}, "")
	m.FailAction(bad, "exploded", "error")

	failures := m.RecentFailuresSummary()
	if !strings.Contains(failures, "bad") {
		t.Errorf("RecentFailuresSummary() = %q", failures)
	}
	health := m.ToolsHealthSummary()
	if !strings.Contains(health, "good: 1 ok, 0 failed") {
		t.Errorf("ToolsHealthSummary() = %q", health)
	}
	if !strings.Contains(health, "bad: 0 ok, 1 failed") {
		t.Errorf("ToolsHealthSummary() = %q", health)
	}
}

func TestCleanupOldActions(t *testing.T) {
	m, now := newTestManager(t)
	old := m.RegisterAction("a", []string{"1"}, "")
	m.CompleteAction(old, "done")
	live := m.RegisterAction("b", []string{"2"}, "")
	m.MarkInProgress(live)

	*now = now.Add(10 * time.Minute)
	m.CleanupOldActions(5 * time.Minute)

	if _, ok := m.Get(old); ok {
		t.Error("old completed action not purged")
	}
	if _, ok := m.Get(live); !ok {
		t.Error("in-progress action purged")
	}
}
