package prompt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/animus-ai/animus/internal/actionstate"
	"github.com/animus-ai/animus/internal/instructions"
	"github.com/animus-ai/animus/internal/memory"
	"github.com/animus-ai/animus/internal/thought"
	"github.com/animus-ai/animus/internal/tools"
	"github.com/animus-ai/animus/pkg/models"
)

// Builder assembles the per-mode prompts. Every prompt carries the same
// section order: personality, recent thoughts, mode instructions, tool
// section, situational context, grounding rules, output format.
type Builder struct {
	AgentName           string
	PersonalityThought  string
	PersonalityResponse string

	Buffer   *thought.Buffer
	Registry *tools.Registry
	Tracker  *instructions.Tracker
	State    *actionstate.Manager
	Memory   *memory.Manager

	now func() time.Time
}

// NewBuilder wires a builder over the live components.
func NewBuilder(agentName, personalityThought, personalityResponse string, buf *thought.Buffer, registry *tools.Registry, tracker *instructions.Tracker, state *actionstate.Manager, mem *memory.Manager) *Builder {
	return &Builder{
		AgentName:           agentName,
		PersonalityThought:  personalityThought,
		PersonalityResponse: personalityResponse,
		Buffer:              buf,
		Registry:            registry,
		Tracker:             tracker,
		State:               state,
		Memory:              mem,
		now:                 time.Now,
	}
}

const cognitiveOutputFormat = `Respond EXACTLY in this format:
<thoughts>
[1] first thought
[2] second thought
</thoughts>
<think>optional strategic thought</think>
<action_list>[{"tool":"name.command","args":["..."]}]</action_list>

Use <action_list>[]</action_list> when no action is needed.`

const singleThoughtOutputFormat = `Respond with ONE thought between 10 and 300 characters:
<think>your single thought</think>
<action_list>[{"tool":"name.command","args":["..."]}]</action_list>

Use <action_list>[]</action_list> when no action is needed.`

const groundingRules = `Grounding rules:
- Only reference events, tool results, and memories shown above. Never invent them.
- If a tool action is listed as in progress, do NOT assume it finished and do NOT re-issue it.
- To use a tool you have no instructions for, first call {"tool":"instructions","args":["<tool>"]}.`

const visionGroundingRules = `- Describe only what the vision result text states. Do not embellish or infer objects that are not mentioned.`

// Responsive builds the prompt for a tick with drained events: one
// thought per event, in order.
func (b *Builder) Responsive(events []models.Event) string {
	var sb strings.Builder
	b.writePersonality(&sb, b.PersonalityThought)
	b.writeRecentThoughts(&sb, 10)

	sb.WriteString("## Task\n")
	fmt.Fprintf(&sb, "You are %s. New events arrived. Produce exactly one thought per event, numbered in the same order, then an optional strategic <think>, then an action list.\n\n", b.AgentName)

	b.writeToolSection(&sb)

	sb.WriteString("## New events\n")
	for i, e := range events {
		fmt.Fprintf(&sb, "[%d] (%s) %s\n", i+1, e.Source, e.Data)
	}
	sb.WriteString("\n")

	b.writeGrounding(&sb, hasVisionEvent(events))
	sb.WriteString(cognitiveOutputFormat)
	return sb.String()
}

// Planning builds the prompt used while the user is recently active but
// silent: one forward-looking thought.
func (b *Builder) Planning() string {
	var sb strings.Builder
	b.writePersonality(&sb, b.PersonalityThought)
	b.writeRecentThoughts(&sb, 10)

	sb.WriteString("## Task\n")
	fmt.Fprintf(&sb, "You are %s. The user is nearby but quiet. Think one step ahead: what would be useful to prepare or check next?\n\n", b.AgentName)

	b.writeToolSection(&sb)

	idle := b.Buffer.TimeSinceLastUserInput().Round(time.Second)
	fmt.Fprintf(&sb, "## Situation\nLast user input was %s ago. Consecutive proactive thoughts: %d.\n\n", idle, b.Buffer.ConsecutiveProactive())

	b.writeGrounding(&sb, false)
	sb.WriteString(singleThoughtOutputFormat)
	return sb.String()
}

// Reflective builds the idle-time prompt. At startup it loads the
// enriched context: identity, personality exemplars, recent day
// summaries, yesterday's conversation, and the latest short entries.
func (b *Builder) Reflective(ctx context.Context, d Decision) string {
	var sb strings.Builder
	b.writePersonality(&sb, b.PersonalityThought)
	b.writeRecentThoughts(&sb, 10)

	sb.WriteString("## Task\n")
	if d.Flags.IsStartup {
		fmt.Fprintf(&sb, "You are %s, just waking up. Re-orient yourself using the context below, then produce one grounding thought about where things left off.\n\n", b.AgentName)
	} else {
		fmt.Fprintf(&sb, "You are %s. Nothing is happening. Reflect on recent experience or revisit an earlier idea.\n\n", b.AgentName)
	}

	b.writeToolSection(&sb)

	if b.Memory != nil {
		if d.Flags.IsStartup {
			b.writeStartupContext(ctx, &sb)
		} else {
			b.writeMemoryContext(ctx, &sb, d.Flags.MemoryNeed)
		}
	}

	b.writeGrounding(&sb, false)
	sb.WriteString(singleThoughtOutputFormat)
	return sb.String()
}

// Spoken builds the response-generation prompt: same thought chain, the
// response-stage personality, and a plain-text reply.
func (b *Builder) Spoken(ctx context.Context, d Decision) string {
	var sb strings.Builder
	b.writePersonality(&sb, b.PersonalityResponse)

	if d.Flags.NeedsPersonalityExamples && b.Memory != nil {
		b.writePersonalityExamples(ctx, &sb, "response")
	}

	b.writeRecentThoughts(&sb, 10)

	sb.WriteString("## Task\n")
	fmt.Fprintf(&sb, "You are %s. Speak now (%s priority: %s). Reply in your own voice with 1-3 sentences of plain text. No tags, no lists, no stage directions.\n\n",
		b.AgentName, d.Priority, d.Reasoning)

	if b.Memory != nil {
		b.writeMemoryContext(ctx, &sb, d.Flags.MemoryNeed)
	}

	b.writeGrounding(&sb, d.Flags.HasVision)
	return sb.String()
}

// Build routes to the constructor for a decision.
func (b *Builder) Build(ctx context.Context, d Decision, events []models.Event) string {
	switch d.Mode {
	case ModeResponsive:
		return b.Responsive(events)
	case ModePlanning:
		return b.Planning()
	case ModeSpoken:
		return b.Spoken(ctx, d)
	default:
		return b.Reflective(ctx, d)
	}
}

func (b *Builder) writePersonality(sb *strings.Builder, personality string) {
	if personality == "" {
		return
	}
	sb.WriteString("## Personality\n")
	sb.WriteString(personality)
	sb.WriteString("\n\n")
}

func (b *Builder) writeRecentThoughts(sb *strings.Builder, k int) {
	recent := b.Buffer.RecentThoughts(k)
	if len(recent) == 0 {
		return
	}
	sb.WriteString("## Recent thoughts\n")
	for _, t := range recent {
		sb.WriteString(t.Formatted())
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// writeToolSection shows the one-line list by default, or the detailed
// command reference for tools with an active instruction grant, plus the
// action-awareness blocks.
func (b *Builder) writeToolSection(sb *strings.Builder) {
	if b.Registry == nil {
		return
	}
	sb.WriteString("## Tools\n")
	if active := b.Tracker.ActiveToolNames(); len(active) > 0 {
		sb.WriteString(b.Registry.DetailedInstructions(active))
		sb.WriteString("\n")
		if rest := b.Registry.OneLineList(); rest != "" {
			sb.WriteString("Other tools (instructions required before use):\n")
			sb.WriteString(rest)
			sb.WriteString("\n")
		}
	} else if list := b.Registry.OneLineList(); list != "" {
		sb.WriteString(list)
		sb.WriteString("\n")
	} else {
		sb.WriteString("No tools are currently enabled.\n")
	}

	if b.State != nil {
		if aware := b.State.ToolAwarenessContext(); aware != "" {
			sb.WriteString(aware)
		}
		if failures := b.State.RecentFailuresSummary(); failures != "" {
			sb.WriteString(failures)
		}
		if health := b.State.ToolsHealthSummary(); health != "" {
			sb.WriteString(health)
		}
	}
	sb.WriteString("\n")
}

func (b *Builder) writeGrounding(sb *strings.Builder, hasVision bool) {
	sb.WriteString(groundingRules)
	sb.WriteString("\n")
	if hasVision {
		sb.WriteString(visionGroundingRules)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// writeMemoryContext retrieves per detected trigger family: recall and
// comparison hit the long and medium tiers, reference questions hit the
// base corpus with the extracted subject, yesterday mentions pull
// yesterday's conversation plus medium. No trigger, no retrieval.
func (b *Builder) writeMemoryContext(ctx context.Context, sb *strings.Builder, need memory.Need) {
	if !need.Any() {
		return
	}
	recent := b.Buffer.RecentThoughts(5)
	thoughts := make([]string, len(recent))
	for i, t := range recent {
		thoughts[i] = t.Content
	}

	if need.Recall || need.Comparison {
		if hits, err := b.Memory.SearchLongCombined(ctx, "", thoughts, 2, 0.35, true); err == nil && len(hits) > 0 {
			sb.WriteString("## Relevant memories\n")
			for _, h := range hits {
				fmt.Fprintf(sb, "On %s: %s\n", h.Date, h.Summary)
			}
			sb.WriteString("\n")
		}
	}

	if need.Recall || need.Comparison || need.Yesterday {
		if hits, err := b.Memory.SearchMediumCombined(ctx, "", thoughts, 2, 0.3, true); err == nil && len(hits) > 0 {
			sb.WriteString("## Earlier conversation\n")
			for _, h := range hits {
				fmt.Fprintf(sb, "%s said: %s\n", h.Role, h.Content)
			}
			sb.WriteString("\n")
		}
	}

	if need.Reference {
		if hits, err := b.Memory.SearchBaseCombined(ctx, need.ReferenceSubject, thoughts, 2, 0.3, true); err == nil && len(hits) > 0 {
			sb.WriteString("## Reference knowledge\n")
			for _, h := range hits {
				fmt.Fprintf(sb, "- %s\n", h.Text)
			}
			sb.WriteString("\n")
		}
	}

	if need.Yesterday {
		if lines := b.Memory.YesterdayContext(10); len(lines) > 0 {
			sb.WriteString("## Yesterday\n")
			sb.WriteString(strings.Join(lines, "\n"))
			sb.WriteString("\n\n")
		}
	}
}

// writeStartupContext loads the enriched wake-up context.
func (b *Builder) writeStartupContext(ctx context.Context, sb *strings.Builder) {
	sb.WriteString("## Who you are\n")
	fmt.Fprintf(sb, "You are %s. This is a fresh start; your working memory is empty but your long-term memory is not.\n\n", b.AgentName)

	b.writePersonalityExamples(ctx, sb, "thought")

	if summaries := b.Memory.RecentLongSummaries(3); len(summaries) > 0 {
		sb.WriteString("## Recent days\n")
		for _, s := range summaries {
			fmt.Fprintf(sb, "%s: %s\n", s.Date, s.Summary)
		}
		sb.WriteString("\n")
	}

	if yesterday := b.Memory.YesterdayContext(10); len(yesterday) > 0 {
		sb.WriteString("## Yesterday\n")
		sb.WriteString(strings.Join(yesterday, "\n"))
		sb.WriteString("\n\n")
	}

	if entries := b.Memory.RecentShortEntries(15); len(entries) > 0 {
		sb.WriteString("## Last conversation\n")
		for _, e := range entries {
			fmt.Fprintf(sb, "%s: %s\n", e.Role, e.Content)
		}
		sb.WriteString("\n")
	}
}

func (b *Builder) writePersonalityExamples(ctx context.Context, sb *strings.Builder, stage string) {
	recent := b.Buffer.RecentThoughts(3)
	query := b.AgentName
	if len(recent) > 0 {
		query = recent[len(recent)-1].Content
	}
	examples, err := b.Memory.SearchPersonality(ctx, query, stage, 3, 0.2)
	if err != nil || len(examples) == 0 {
		return
	}
	sb.WriteString("## How you sound\n")
	for _, ex := range examples {
		fmt.Fprintf(sb, "- %s\n", ex.Text)
	}
	sb.WriteString("\n")
}

func hasVisionEvent(events []models.Event) bool {
	for _, e := range events {
		if e.Source == models.SourceVisionResult {
			return true
		}
	}
	return false
}
