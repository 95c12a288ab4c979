package models

import "time"

// Thought is a processed, formatted observation or plan held by the
// thought buffer. Priority is kept both as a structured field and as a
// bracketed tag inside the formatted content so the language model can
// scan it textually.
type Thought struct {
	Content     string    `json:"content"`
	Source      string    `json:"source"`
	OriginalRef string    `json:"original_ref,omitempty"`
	Priority    Priority  `json:"priority"`
	Timestamp   time.Time `json:"timestamp"`
	Integrated  bool      `json:"integrated"`
}

// Formatted returns the content prefixed with the priority tag, the view
// consumed by the response decider and prompt constructors.
func (t Thought) Formatted() string {
	return t.Priority.Tag() + " " + t.Content
}
