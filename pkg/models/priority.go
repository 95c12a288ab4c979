package models

// Priority ranks how urgently a thought or event should influence the
// agent's next response.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// String returns the canonical upper-case name used in thought tags.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "CRITICAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// Tag returns the bracketed form embedded in formatted thought text,
// e.g. "[HIGH]".
func (p Priority) Tag() string {
	return "[" + p.String() + "]"
}

// ParsePriority maps a tag name (with or without brackets) back to a
// Priority. The second return value reports whether the name was
// recognized.
func ParsePriority(name string) (Priority, bool) {
	switch name {
	case "LOW", "[LOW]":
		return PriorityLow, true
	case "MEDIUM", "[MEDIUM]":
		return PriorityMedium, true
	case "HIGH", "[HIGH]":
		return PriorityHigh, true
	case "CRITICAL", "[CRITICAL]":
		return PriorityCritical, true
	}
	return PriorityLow, false
}

// PriorityFromSource derives the default priority for an event source.
// Explicit overrides at ingestion time take precedence over this mapping.
func PriorityFromSource(source string) Priority {
	switch source {
	case SourceUserInput, SourceChatQuestion, SourceToolFailed, SourceToolTimeout:
		return PriorityHigh
	case SourceChatDirectMention:
		return PriorityCritical
	case SourceVisionResult, SourceToolResult:
		return PriorityMedium
	case SourceInternal:
		return PriorityLow
	default:
		return PriorityLow
	}
}
