// Package actionstate tracks the lifecycle of dispatched tool actions:
// attempt counts, throttling windows, timeouts, and the health summaries
// fed back into prompts so the model sees what is actually in flight.
package actionstate

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/animus-ai/animus/pkg/models"
)

const (
	// failureWindow is how recently a tool must have been called for its
	// failure streak to trigger throttling.
	failureWindow = 30 * time.Second

	// attemptMapLimit and attemptMapKeep bound the per-query attempt maps.
	attemptMapLimit = 100
	attemptMapKeep  = 50
)

// Record is the state of one dispatched action.
type Record struct {
	ID               string
	Tool             string
	Args             []string
	Status           models.ActionStatus
	InitiatedAt      time.Time
	CompletedAt      time.Time
	Result           string
	Error            string
	FailureReason    string
	Acknowledged     bool
	ResultIntegrated bool
	AttemptNumber    int
	QuerySimplified  bool
}

type attempt struct {
	at     time.Time
	tokens int
	failed bool
}

// Manager owns all action records. All methods are safe for concurrent
// use.
type Manager struct {
	mu      sync.Mutex
	counter int64
	actions map[string]*Record
	order   []string

	// attempts is keyed by hash(tool ":" args[0][:50]).
	attempts map[uint64][]attempt

	// lastCall and lastFailures are per-tool.
	lastCall map[string]time.Time

	now func() time.Time
}

// NewManager creates an empty action state manager.
func NewManager() *Manager {
	return &Manager{
		actions:  make(map[string]*Record),
		attempts: make(map[uint64][]attempt),
		lastCall: make(map[string]time.Time),
		now:      time.Now,
	}
}

// RegisterAction creates a PENDING record and returns its id
// ("a<counter>_<ms-timestamp>"). The attempt number counts prior calls
// with the same tool and leading argument; QuerySimplified is set when the
// token count of the query dropped versus the previous attempt.
func (m *Manager) RegisterAction(tool string, args []string, failureReason string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.counter++
	id := fmt.Sprintf("a%d_%d", m.counter, now.UnixMilli())

	key := queryKey(tool, args)
	prior := m.attempts[key]
	tokens := queryTokens(args)
	simplified := len(prior) > 0 && tokens < prior[len(prior)-1].tokens

	m.attempts[key] = append(prior, attempt{at: now, tokens: tokens})
	m.lastCall[tool] = now

	rec := &Record{
		ID:              id,
		Tool:            tool,
		Args:            append([]string(nil), args...),
		Status:          models.ActionPending,
		InitiatedAt:     now,
		FailureReason:   failureReason,
		AttemptNumber:   len(prior) + 1,
		QuerySimplified: simplified,
	}
	m.actions[id] = rec
	m.order = append(m.order, id)
	return id
}

// MarkInProgress transitions a pending action to IN_PROGRESS.
func (m *Manager) MarkInProgress(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.actions[id]; ok {
		rec.Status = models.ActionInProgress
	}
}

// CompleteAction records a successful result.
func (m *Manager) CompleteAction(id, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.actions[id]; ok {
		rec.Status = models.ActionCompleted
		rec.Result = result
		rec.CompletedAt = m.now()
	}
}

// FailAction records a failure with an optional reason.
func (m *Manager) FailAction(id, errMsg, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.actions[id]; ok {
		rec.Status = models.ActionFailed
		rec.Error = errMsg
		rec.FailureReason = reason
		rec.CompletedAt = m.now()
		m.markAttemptFailedLocked(rec)
	}
}

// MarkTimeout fails an action with reason "timeout".
func (m *Manager) MarkTimeout(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.actions[id]; ok {
		rec.Status = models.ActionFailed
		rec.Error = "execution exceeded timeout"
		rec.FailureReason = "timeout"
		rec.CompletedAt = m.now()
		m.markAttemptFailedLocked(rec)
	}
}

// CancelAction marks an action cancelled (used during shutdown drain).
func (m *Manager) CancelAction(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.actions[id]; ok {
		rec.Status = models.ActionCancelled
		rec.CompletedAt = m.now()
	}
}

func (m *Manager) markAttemptFailedLocked(rec *Record) {
	key := queryKey(rec.Tool, rec.Args)
	if atts := m.attempts[key]; len(atts) > 0 {
		atts[len(atts)-1].failed = true
	}
}

// PendingActions returns copies of all records still PENDING or
// IN_PROGRESS, oldest first.
func (m *Manager) PendingActions() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, id := range m.order {
		rec := m.actions[id]
		if rec == nil {
			continue
		}
		if rec.Status == models.ActionPending || rec.Status == models.ActionInProgress {
			out = append(out, *rec)
		}
	}
	return out
}

// RecentToolResult returns the most recent completed result for the tool
// no older than maxAge.
func (m *Manager) RecentToolResult(tool string, maxAge time.Duration) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	for i := len(m.order) - 1; i >= 0; i-- {
		rec := m.actions[m.order[i]]
		if rec == nil || rec.Tool != tool || rec.Status != models.ActionCompleted {
			continue
		}
		if rec.CompletedAt.Before(cutoff) {
			return "", false
		}
		return rec.Result, true
	}
	return "", false
}

// IsToolExecuting reports whether the tool has a PENDING or IN_PROGRESS
// action.
func (m *Manager) IsToolExecuting(tool string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isToolExecutingLocked(tool)
}

func (m *Manager) isToolExecutingLocked(tool string) bool {
	for _, rec := range m.actions {
		if rec.Tool == tool && (rec.Status == models.ActionPending || rec.Status == models.ActionInProgress) {
			return true
		}
	}
	return false
}

// ShouldThrottleTool decides whether a new call to the tool must be held
// back. Throttled when: the last call was within minInterval; or at least
// two of the last three attempts failed and the last call was under 30s
// ago; or any action for this tool is still pending.
func (m *Manager) ShouldThrottleTool(tool string, minInterval time.Duration) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if last, ok := m.lastCall[tool]; ok && minInterval > 0 {
		if since := now.Sub(last); since < minInterval {
			return true, fmt.Sprintf("called %.0fs ago, minimum interval is %.0fs", since.Seconds(), minInterval.Seconds())
		}
	}

	if last, ok := m.lastCall[tool]; ok && now.Sub(last) < failureWindow {
		failures, total := m.recentAttemptStatsLocked(tool, 3)
		if total >= 2 && failures >= 2 {
			return true, fmt.Sprintf("%d of last %d attempts failed, backing off", failures, total)
		}
	}

	if m.isToolExecutingLocked(tool) {
		return true, "an action for this tool is still pending"
	}
	return false, ""
}

// recentAttemptStatsLocked counts failures in the last n attempts for the
// tool across all query keys, ordered by time. Enforcement rejections are
// not attempts; only calls that actually ran count toward the streak.
func (m *Manager) recentAttemptStatsLocked(tool string, n int) (failures, total int) {
	var all []attempt
	for _, id := range m.order {
		rec := m.actions[id]
		if rec == nil || rec.Tool != tool || rec.FailureReason == "enforcement" {
			continue
		}
		if rec.Status == models.ActionFailed || rec.Status == models.ActionCompleted {
			all = append(all, attempt{at: rec.InitiatedAt, failed: rec.Status == models.ActionFailed})
		}
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	for _, a := range all {
		total++
		if a.failed {
			failures++
		}
	}
	return failures, total
}

// ToolAwarenessContext renders a markdown block describing in-flight and
// recently finished actions, used by prompt construction so the model
// does not hallucinate completion of pending operations.
func (m *Manager) ToolAwarenessContext() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending, recent []string
	now := m.now()
	for _, id := range m.order {
		rec := m.actions[id]
		if rec == nil {
			continue
		}
		switch rec.Status {
		case models.ActionPending, models.ActionInProgress:
			pending = append(pending, fmt.Sprintf("- %s (%s): running for %.0fs, attempt %d",
				rec.Tool, rec.ID, now.Sub(rec.InitiatedAt).Seconds(), rec.AttemptNumber))
		case models.ActionCompleted, models.ActionFailed:
			if now.Sub(rec.CompletedAt) < time.Minute {
				recent = append(recent, fmt.Sprintf("- %s: %s", rec.Tool, rec.Status))
			}
		}
	}

	if len(pending) == 0 && len(recent) == 0 {
		return ""
	}
	var sb strings.Builder
	if len(pending) > 0 {
		sb.WriteString("### Tool actions currently in progress (do NOT re-issue these)\n")
		sb.WriteString(strings.Join(pending, "\n"))
		sb.WriteString("\n")
	}
	if len(recent) > 0 {
		sb.WriteString("### Tool actions finished in the last minute\n")
		sb.WriteString(strings.Join(recent, "\n"))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RecentFailuresSummary lists failed actions from the last five minutes.
func (m *Manager) RecentFailuresSummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-5 * time.Minute)
	var lines []string
	for _, id := range m.order {
		rec := m.actions[id]
		if rec == nil || rec.Status != models.ActionFailed || rec.CompletedAt.Before(cutoff) {
			continue
		}
		reason := rec.FailureReason
		if reason == "" {
			reason = rec.Error
		}
		lines = append(lines, fmt.Sprintf("- %s failed (%s)", rec.Tool, reason))
	}
	if len(lines) == 0 {
		return ""
	}
	return "### Recent tool failures\n" + strings.Join(lines, "\n") + "\n"
}

// ToolsHealthSummary aggregates per-tool success/failure counts.
func (m *Manager) ToolsHealthSummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	type health struct{ ok, failed int }
	byTool := make(map[string]*health)
	for _, rec := range m.actions {
		h := byTool[rec.Tool]
		if h == nil {
			h = &health{}
			byTool[rec.Tool] = h
		}
		switch rec.Status {
		case models.ActionCompleted:
			h.ok++
		case models.ActionFailed:
			h.failed++
		}
	}
	if len(byTool) == 0 {
		return ""
	}

	names := make([]string, 0, len(byTool))
	for name := range byTool {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("### Tool health\n")
	for _, name := range names {
		h := byTool[name]
		fmt.Fprintf(&sb, "- %s: %d ok, %d failed\n", name, h.ok, h.failed)
	}
	return sb.String()
}

// CleanupOldActions purges completed/failed/cancelled records older than
// maxAge and trims attempt-tracking lists that exceed their cap.
func (m *Manager) CleanupOldActions(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	keep := m.order[:0]
	for _, id := range m.order {
		rec := m.actions[id]
		if rec == nil {
			continue
		}
		done := rec.Status == models.ActionCompleted || rec.Status == models.ActionFailed || rec.Status == models.ActionCancelled
		if done && rec.CompletedAt.Before(cutoff) {
			delete(m.actions, id)
			continue
		}
		keep = append(keep, id)
	}
	m.order = append([]string(nil), keep...)

	for key, atts := range m.attempts {
		if len(atts) > attemptMapLimit {
			m.attempts[key] = append([]attempt(nil), atts[len(atts)-attemptMapKeep:]...)
		}
	}
	if len(m.attempts) > attemptMapLimit {
		m.pruneAttemptKeysLocked()
	}
}

// pruneAttemptKeysLocked keeps only the query keys with the most recent
// activity.
func (m *Manager) pruneAttemptKeysLocked() {
	type keyed struct {
		key  uint64
		last time.Time
	}
	all := make([]keyed, 0, len(m.attempts))
	for key, atts := range m.attempts {
		k := keyed{key: key}
		if len(atts) > 0 {
			k.last = atts[len(atts)-1].at
		}
		all = append(all, k)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].last.After(all[j].last) })
	for _, k := range all[attemptMapKeep:] {
		delete(m.attempts, k.key)
	}
}

// ActionCount returns the number of retained records.
func (m *Manager) ActionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.actions)
}

// Get returns a copy of the record for id.
func (m *Manager) Get(id string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.actions[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// queryKey hashes tool ":" args[0][:50] so retries of the same query share
// an attempt history.
func queryKey(tool string, args []string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(tool))
	h.Write([]byte{':'})
	if len(args) > 0 {
		arg := args[0]
		if len(arg) > 50 {
			arg = arg[:50]
		}
		h.Write([]byte(arg))
	}
	return h.Sum64()
}

func queryTokens(args []string) int {
	n := 0
	for _, a := range args {
		n += len(strings.Fields(a))
	}
	return n
}
