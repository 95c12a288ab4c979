// Package thought implements the bounded working memory of the agent: a
// raw event queue, a FIFO-evicting list of processed thoughts, and the
// unengaged-chat queue. All mutating operations are safe for concurrent
// use.
package thought

import (
	"strings"
	"sync"
	"time"

	"github.com/animus-ai/animus/pkg/models"
)

// DefaultCapacity bounds the processed-thought list when no capacity is
// given.
const DefaultCapacity = 25

// Buffer owns the raw event queue and the processed thought list. Eviction
// is strictly FIFO; priority affects decisions downstream, never
// retention.
type Buffer struct {
	mu        sync.Mutex
	capacity  int
	agentName string

	events   []models.Event
	thoughts []models.Thought

	chatQueue []models.ChatMessage
	chatIndex int
	engaged   map[int]struct{}

	lastUserInput        time.Time
	consecutiveProactive int
	urgentReminders      bool
	shutdown             bool

	now func() time.Time
}

// NewBuffer creates a buffer holding at most capacity processed thoughts.
// agentName is used to refine chat message urgency.
func NewBuffer(capacity int, agentName string) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity:      capacity,
		agentName:     agentName,
		engaged:       make(map[int]struct{}),
		lastUserInput: time.Now(),
		now:           time.Now,
	}
}

// IngestRawData appends a raw event without interpretation. User-input
// sources refresh the last-user-input timestamp and reset the proactive
// counter.
func (b *Buffer) IngestRawData(source, data string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, models.Event{
		Source:    source,
		Data:      data,
		Timestamp: b.now(),
	})
	if source == models.SourceUserInput {
		b.lastUserInput = b.now()
		b.consecutiveProactive = 0
	}
}

// UnprocessedEvents returns a snapshot of events not yet drained.
func (b *Buffer) UnprocessedEvents() []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.Event, len(b.events))
	copy(out, b.events)
	return out
}

// MarkEventsProcessed removes the oldest n events from the queue.
func (b *Buffer) MarkEventsProcessed(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n >= len(b.events) {
		b.events = nil
		return
	}
	b.events = append([]models.Event(nil), b.events[n:]...)
}

// PendingEventCount returns the number of undrained raw events.
func (b *Buffer) PendingEventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// AddProcessedThought formats and stores a thought. When override is nil
// the priority derives from the source, unless the content itself begins
// with an explicit priority tag. A zero ts means now. Oldest thoughts are
// evicted when the buffer is full.
func (b *Buffer) AddProcessedThought(content, source, originalRef string, override *models.Priority, ts time.Time) {
	prio := models.PriorityFromSource(source)
	if override != nil {
		prio = *override
	} else if tagged, p := stripLeadingTag(content); p != nil {
		content = tagged
		prio = *p
	}
	if ts.IsZero() {
		ts = b.now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.appendLocked(models.Thought{
		Content:     content,
		Source:      source,
		OriginalRef: originalRef,
		Priority:    prio,
		Timestamp:   ts,
	})
}

// AddProactiveThought stores an internally generated thought and counts it
// against the consecutive-proactive limit.
func (b *Buffer) AddProactiveThought(content string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveProactive++
	b.appendLocked(models.Thought{
		Content:   content,
		Source:    models.SourceInternal,
		Priority:  models.PriorityLow,
		Timestamp: b.now(),
	})
}

// AddResponseEcho records the agent's just-spoken reply so future
// reflective thinking sees what was already said.
func (b *Buffer) AddResponseEcho(responseText string, ts time.Time) {
	if ts.IsZero() {
		ts = b.now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appendLocked(models.Thought{
		Content:    "I said: " + responseText,
		Source:     models.SourceInternal,
		Priority:   models.PriorityLow,
		Timestamp:  ts,
		Integrated: true,
	})
}

func (b *Buffer) appendLocked(t models.Thought) {
	b.thoughts = append(b.thoughts, t)
	if len(b.thoughts) > b.capacity {
		b.thoughts = append([]models.Thought(nil), b.thoughts[len(b.thoughts)-b.capacity:]...)
	}
}

// ThoughtsForResponse returns the formatted view of all held thoughts,
// oldest first, each carrying its priority tag.
func (b *Buffer) ThoughtsForResponse() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.thoughts))
	for i, t := range b.thoughts {
		out[i] = t.Formatted()
	}
	return out
}

// RecentThoughts returns up to k most recent thoughts, oldest first.
func (b *Buffer) RecentThoughts(k int) []models.Thought {
	b.mu.Lock()
	defer b.mu.Unlock()

	if k <= 0 || k > len(b.thoughts) {
		k = len(b.thoughts)
	}
	out := make([]models.Thought, k)
	copy(out, b.thoughts[len(b.thoughts)-k:])
	return out
}

// Len returns the processed-thought count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.thoughts)
}

// TimeSinceLastUserInput reports how long the user has been silent.
func (b *Buffer) TimeSinceLastUserInput() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now().Sub(b.lastUserInput)
}

// IngestChatMessage adds a platform chat message to the unengaged queue
// with a monotonic index. Urgency is refined by scanning the text: the
// agent's name is critical, a question mark is high, an exclamation mark
// is medium.
func (b *Buffer) IngestChatMessage(platform, username, message string, hasBotMention bool) {
	prio := models.PriorityLow
	lower := strings.ToLower(message)
	switch {
	case hasBotMention, b.agentName != "" && strings.Contains(lower, strings.ToLower(b.agentName)):
		prio = models.PriorityCritical
	case strings.Contains(message, "?"):
		prio = models.PriorityHigh
	case strings.Contains(message, "!"):
		prio = models.PriorityMedium
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.chatQueue = append(b.chatQueue, models.ChatMessage{
		Index:         b.chatIndex,
		Platform:      platform,
		Username:      username,
		Message:       message,
		HasBotMention: hasBotMention,
		Priority:      prio,
		Timestamp:     b.now(),
	})
	b.chatIndex++
}

// UnengagedMessages returns up to max chat messages that have not been
// marked engaged, in arrival order. max <= 0 means all.
func (b *Buffer) UnengagedMessages(max int) []models.ChatMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []models.ChatMessage
	for _, m := range b.chatQueue {
		if _, ok := b.engaged[m.Index]; ok {
			continue
		}
		out = append(out, m)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

// MarkChatEngaged records the given indices as engaged and drops engaged
// messages from the head of the queue.
func (b *Buffer) MarkChatEngaged(indices []int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, idx := range indices {
		b.engaged[idx] = struct{}{}
	}
	for len(b.chatQueue) > 0 {
		if _, ok := b.engaged[b.chatQueue[0].Index]; !ok {
			break
		}
		delete(b.engaged, b.chatQueue[0].Index)
		b.chatQueue = b.chatQueue[1:]
	}
}

// ShouldEngageWithChat reports whether unengaged chat messages are
// waiting.
func (b *Buffer) ShouldEngageWithChat() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, m := range b.chatQueue {
		if _, ok := b.engaged[m.Index]; !ok {
			return true
		}
	}
	return false
}

// MarkAllIntegrated flags every held thought as integrated; called after
// a spoken response so the same thoughts do not retrigger speech.
func (b *Buffer) MarkAllIntegrated() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.thoughts {
		b.thoughts[i].Integrated = true
	}
}

// ConsecutiveProactive returns the current proactive-thought streak.
func (b *Buffer) ConsecutiveProactive() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveProactive
}

// ResetConsecutiveCounter clears the proactive-thought streak.
func (b *Buffer) ResetConsecutiveCounter() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveProactive = 0
}

// SetUrgentReminders flags that an urgent reminder fired; the response
// decider escalates to a spoken response while set.
func (b *Buffer) SetUrgentReminders(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.urgentReminders = v
}

// HasUrgentReminders reports the urgent-reminder flag.
func (b *Buffer) HasUrgentReminders() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.urgentReminders
}

// ForceShutdown marks the buffer shut down; the cognitive loop observes
// this on its next tick.
func (b *Buffer) ForceShutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdown = true
}

// IsShutdownRequested reports whether a shutdown was forced.
func (b *Buffer) IsShutdownRequested() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shutdown
}

// stripLeadingTag detects an explicit "[PRIO] " prefix on content and
// returns the content without it plus the parsed priority.
func stripLeadingTag(content string) (string, *models.Priority) {
	if !strings.HasPrefix(content, "[") {
		return content, nil
	}
	end := strings.IndexByte(content, ']')
	if end < 0 {
		return content, nil
	}
	p, ok := models.ParsePriority(content[1:end])
	if !ok {
		return content, nil
	}
	return strings.TrimSpace(content[end+1:]), &p
}
