// Package prompt decides which cognitive mode each tick runs in and
// assembles the mode's prompt from the live state: thoughts, tools,
// action awareness, and memory context.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/animus-ai/animus/internal/memory"
	"github.com/animus-ai/animus/internal/thought"
	"github.com/animus-ai/animus/pkg/models"
)

// Mode is one of the four prompt modes.
type Mode string

const (
	ModeResponsive Mode = "responsive"
	ModePlanning   Mode = "planning"
	ModeReflective Mode = "reflective"
	ModeSpoken     Mode = "spoken"
)

// recentWindow is how many trailing thoughts the decider scans for
// priority tags.
const recentWindow = 10

// Flags are context hints the constructors use to enrich prompts.
type Flags struct {
	HasVision                bool
	HasChat                  bool
	NeedsMemoryRetrieval     bool
	IsStartup                bool
	NeedsPersonalityExamples bool

	// MemoryNeed carries the trigger families detected in the current
	// events and thoughts; the builder routes retrieval by family and
	// performs none when nothing matched.
	MemoryNeed memory.Need
}

// Decision is the decider's verdict for one tick.
type Decision struct {
	Mode                Mode
	NeedsSpokenResponse bool
	Priority            models.Priority
	Reasoning           string
	Flags               Flags
}

// Decider selects the mode. First match wins: urgent or critical state
// speaks, high-priority thoughts speak, direct address speaks, open
// questions speak; otherwise events drive responsive thinking, recent
// user activity drives planning, and silence drives reflection.
type Decider struct {
	agentName        string
	planningWindow   time.Duration
	startupThreshold int
}

// NewDecider creates a decider. planningWindow is how long after the
// last user input the agent keeps planning before drifting to
// reflection; startupThreshold is the processed-thought count below
// which reflective mode is forced with the enriched startup context.
func NewDecider(agentName string, planningWindow time.Duration, startupThreshold int) *Decider {
	if planningWindow <= 0 {
		planningWindow = 360 * time.Second
	}
	if startupThreshold <= 0 {
		startupThreshold = 3
	}
	return &Decider{
		agentName:        agentName,
		planningWindow:   planningWindow,
		startupThreshold: startupThreshold,
	}
}

// Decide picks the mode for a tick given the drained events.
func (d *Decider) Decide(buf *thought.Buffer, events []models.Event) Decision {
	recent := buf.RecentThoughts(recentWindow)
	flags := d.contextFlags(buf, events, recent)

	// Thoughts already folded into a spoken response do not retrigger
	// speech.
	var joined []string
	for _, t := range recent {
		if t.Integrated {
			continue
		}
		joined = append(joined, t.Formatted())
	}
	recentText := strings.Join(joined, "\n")

	switch {
	case buf.HasUrgentReminders():
		return Decision{Mode: ModeSpoken, NeedsSpokenResponse: true, Priority: models.PriorityCritical,
			Reasoning: "urgent reminder pending", Flags: withPersonality(flags)}
	case strings.Contains(recentText, models.PriorityCritical.Tag()):
		return Decision{Mode: ModeSpoken, NeedsSpokenResponse: true, Priority: models.PriorityCritical,
			Reasoning: "critical thought in recent window", Flags: withPersonality(flags)}
	case strings.Contains(recentText, models.PriorityHigh.Tag()):
		return Decision{Mode: ModeSpoken, NeedsSpokenResponse: true, Priority: models.PriorityHigh,
			Reasoning: "high-priority thought in recent window", Flags: withPersonality(flags)}
	case d.agentName != "" && strings.Contains(recentText, strings.ToUpper(d.agentName)):
		return Decision{Mode: ModeSpoken, NeedsSpokenResponse: true, Priority: models.PriorityHigh,
			Reasoning: "directly addressed by name", Flags: withPersonality(flags)}
	case strings.Contains(recentText, "?"):
		return Decision{Mode: ModeSpoken, NeedsSpokenResponse: true, Priority: models.PriorityMedium,
			Reasoning: "open question in recent thoughts", Flags: withPersonality(flags)}
	case len(events) > 0:
		return Decision{Mode: ModeResponsive, Priority: models.PriorityMedium,
			Reasoning: fmt.Sprintf("%d new events to process", len(events)), Flags: flags}
	case buf.Len() < d.startupThreshold:
		flags.IsStartup = true
		return Decision{Mode: ModeReflective, Priority: models.PriorityLow,
			Reasoning: "near-empty thought buffer, loading startup context", Flags: withPersonality(flags)}
	case buf.TimeSinceLastUserInput() < d.planningWindow:
		return Decision{Mode: ModePlanning, Priority: models.PriorityLow,
			Reasoning: "user active recently, planning", Flags: flags}
	default:
		return Decision{Mode: ModeReflective, Priority: models.PriorityLow,
			Reasoning: "user idle, reflecting", Flags: flags}
	}
}

func (d *Decider) contextFlags(buf *thought.Buffer, events []models.Event, recent []models.Thought) Flags {
	var flags Flags
	var texts []string
	for _, e := range events {
		texts = append(texts, e.Data)
		switch e.Source {
		case models.SourceVisionResult:
			flags.HasVision = true
		case models.SourceChatMessage, models.SourceChatDirectMention, models.SourceChatQuestion:
			flags.HasChat = true
		}
	}
	if buf.ShouldEngageWithChat() {
		flags.HasChat = true
	}
	for _, t := range recent {
		texts = append(texts, t.Content)
	}
	flags.MemoryNeed = memory.DetectMemoryNeed(strings.Join(texts, " "))
	flags.NeedsMemoryRetrieval = flags.MemoryNeed.Any()
	return flags
}

func withPersonality(f Flags) Flags {
	f.NeedsPersonalityExamples = true
	return f
}
