// Package builtin provides the tools that ship with the agent itself:
// reminder management, memory search, and system introspection. Each is
// registered with the registry under the name its manifest declares.
package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/animus-ai/animus/internal/reminders"
	"github.com/animus-ai/animus/internal/thought"
	"github.com/animus-ai/animus/internal/tools"
	"github.com/animus-ai/animus/pkg/models"
)

// ReminderTool exposes the reminder store to the language model.
type ReminderTool struct {
	store *reminders.Store
	now   func() time.Time
}

// NewReminderTool wraps the store.
func NewReminderTool(store *reminders.Store) *ReminderTool {
	return &ReminderTool{store: store, now: time.Now}
}

func (t *ReminderTool) Start(context.Context, *thought.Buffer) error { return nil }
func (t *ReminderTool) End(context.Context) error                    { return nil }
func (t *ReminderTool) IsAvailable() bool                            { return t.store != nil }

// Execute handles set, timer, list, and cancel.
func (t *ReminderTool) Execute(_ context.Context, command string, args []string) (*tools.Result, error) {
	switch command {
	case "set":
		if len(args) < 2 {
			return nil, fmt.Errorf("set needs a description and a time, got %d args", len(args))
		}
		when, err := parseWhen(args[1], t.now())
		if err != nil {
			return nil, err
		}
		r := t.store.Add(args[0], when, models.ReminderTypeReminder, 0, false)
		return &tools.Result{
			Content: fmt.Sprintf("Reminder set for %s: %s", r.TriggerTime.Format("15:04"), r.Description),
			Source:  "reminders",
		}, nil

	case "timer":
		if len(args) < 1 {
			return nil, fmt.Errorf("timer needs a duration")
		}
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return nil, fmt.Errorf("bad duration %q: %w", args[0], err)
		}
		desc := "timer"
		if len(args) > 1 {
			desc = args[1]
		}
		r := t.store.Add(desc, t.now().Add(d), models.ReminderTypeTimer, 0, true)
		return &tools.Result{
			Content: fmt.Sprintf("Timer %q set for %s from now", r.Description, d),
			Source:  "reminders",
		}, nil

	case "list":
		pending := t.store.List(false)
		if len(pending) == 0 {
			return &tools.Result{Content: "No pending reminders.", Source: "reminders"}, nil
		}
		var b strings.Builder
		for _, r := range pending {
			fmt.Fprintf(&b, "- [%s] %s at %s\n", r.ID[:8], r.Description, r.TriggerTime.Format("2006-01-02 15:04"))
		}
		return &tools.Result{Content: strings.TrimRight(b.String(), "\n"), Source: "reminders"}, nil

	case "cancel":
		if len(args) < 1 {
			return nil, fmt.Errorf("cancel needs a reminder id")
		}
		id := t.resolveID(args[0])
		if err := t.store.Cancel(id); err != nil {
			return nil, err
		}
		return &tools.Result{Content: "Reminder cancelled.", Source: "reminders"}, nil

	default:
		return nil, fmt.Errorf("unknown reminders command %q", command)
	}
}

// resolveID accepts the full UUID or the 8-char prefix shown by list.
func (t *ReminderTool) resolveID(arg string) string {
	if len(arg) >= 36 {
		return arg
	}
	for _, r := range t.store.List(true) {
		if strings.HasPrefix(r.ID, arg) {
			return r.ID
		}
	}
	return arg
}

// parseWhen accepts "in <duration>", RFC3339, "2006-01-02 15:04", or a
// bare "15:04" meaning today (or tomorrow when already past).
func parseWhen(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "in "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return time.Time{}, fmt.Errorf("bad duration %q: %w", rest, err)
		}
		return now.Add(d), nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if ts, err := time.ParseInLocation("2006-01-02 15:04", s, now.Location()); err == nil {
		return ts, nil
	}
	if ts, err := time.ParseInLocation("15:04", s, now.Location()); err == nil {
		at := time.Date(now.Year(), now.Month(), now.Day(), ts.Hour(), ts.Minute(), 0, 0, now.Location())
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		return at, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}
