// Package models defines the shared domain types of the cognitive core:
// raw events, processed thoughts, structured actions, reminders, and tool
// manifests. Types live here rather than in internal packages so external
// tool plugins can depend on them.
package models

import "time"

// Event source identifiers. The source of an event determines its default
// priority and how the prompt constructors describe it to the model.
const (
	SourceUserInput         = "user_input"
	SourceChatMessage       = "chat_message"
	SourceChatDirectMention = "chat_direct_mention"
	SourceChatQuestion      = "chat_question"
	SourceVisionResult      = "vision_result"
	SourceToolResult        = "tool_result"
	SourceToolFailed        = "tool_failed"
	SourceToolTimeout       = "tool_timeout"
	SourceInternal          = "internal"
	SourceReminder          = "reminder"
	SourceMemoryIntegration = "memory_integration"
)

// Event is a raw, pre-cognitive input item awaiting interpretation by the
// cognitive loop. Events carry no formatting; they are consumed during a
// tick and replaced by processed thoughts.
type Event struct {
	Source    string    `json:"source"`
	Data      string    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatMessage is an entry in the unengaged-chat queue. Index is monotonic
// per run and identifies the message when marking it engaged.
type ChatMessage struct {
	Index         int       `json:"index"`
	Platform      string    `json:"platform"`
	Username      string    `json:"username"`
	Message       string    `json:"message"`
	HasBotMention bool      `json:"has_bot_mention"`
	Priority      Priority  `json:"priority"`
	Timestamp     time.Time `json:"timestamp"`
}
