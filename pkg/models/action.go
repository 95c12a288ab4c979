package models

import "strings"

// InstructionsTool is the reserved action name that requests detailed
// usage instructions for other tools instead of executing anything.
const InstructionsTool = "instructions"

// Action is a structured tool request emitted by the language model.
// Tool is "name" or "name.command"; Args are positional strings (non-string
// JSON literals are stringified during parsing).
type Action struct {
	Tool string   `json:"tool"`
	Args []string `json:"args"`
}

// BaseName returns the tool name without the command suffix.
func (a Action) BaseName() string {
	if i := strings.IndexByte(a.Tool, '.'); i >= 0 {
		return a.Tool[:i]
	}
	return a.Tool
}

// Command returns the command suffix, or "" when the action names only
// the tool.
func (a Action) Command() string {
	if i := strings.IndexByte(a.Tool, '.'); i >= 0 {
		return a.Tool[i+1:]
	}
	return ""
}

// IsInstructions reports whether this action is an instruction-retrieval
// request rather than a regular tool invocation.
func (a Action) IsInstructions() bool {
	return a.BaseName() == InstructionsTool
}

// ActionStatus tracks the lifecycle of a dispatched action.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
	ActionFailed     ActionStatus = "failed"
	ActionCancelled  ActionStatus = "cancelled"
)
