package builtin

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/animus-ai/animus/internal/memory"
	"github.com/animus-ai/animus/internal/reminders"
)

func testReminderTool(t *testing.T) *ReminderTool {
	t.Helper()
	store, err := reminders.OpenStore(filepath.Join(t.TempDir(), "reminders.json"), nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewReminderTool(store)
}

func TestReminderTool_SetAndList(t *testing.T) {
	rt := testReminderTool(t)
	ctx := context.Background()

	res, err := rt.Execute(ctx, "set", []string{"check the kiln", "in 45m"})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !strings.Contains(res.Content, "check the kiln") {
		t.Errorf("set result = %q", res.Content)
	}

	res, err = rt.Execute(ctx, "list", nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(res.Content, "check the kiln") {
		t.Errorf("list result = %q", res.Content)
	}
}

func TestReminderTool_Timer(t *testing.T) {
	rt := testReminderTool(t)
	res, err := rt.Execute(context.Background(), "timer", []string{"5m", "tea"})
	if err != nil {
		t.Fatalf("timer: %v", err)
	}
	if !strings.Contains(res.Content, "tea") {
		t.Errorf("timer result = %q", res.Content)
	}
	pending := rt.store.List(false)
	if len(pending) != 1 || !pending[0].IsUrgent {
		t.Errorf("timer reminder = %+v, want urgent", pending)
	}
}

func TestReminderTool_CancelByPrefix(t *testing.T) {
	rt := testReminderTool(t)
	ctx := context.Background()
	if _, err := rt.Execute(ctx, "set", []string{"x", "in 1h"}); err != nil {
		t.Fatal(err)
	}
	id := rt.store.List(false)[0].ID

	if _, err := rt.Execute(ctx, "cancel", []string{id[:8]}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := rt.store.List(false); len(got) != 0 {
		t.Errorf("reminders after cancel = %+v", got)
	}
}

func TestReminderTool_Errors(t *testing.T) {
	rt := testReminderTool(t)
	ctx := context.Background()
	if _, err := rt.Execute(ctx, "set", []string{"only description"}); err == nil {
		t.Error("set without time should fail")
	}
	if _, err := rt.Execute(ctx, "timer", []string{"not-a-duration"}); err == nil {
		t.Error("bad duration should fail")
	}
	if _, err := rt.Execute(ctx, "nope", nil); err == nil {
		t.Error("unknown command should fail")
	}
}

func TestParseWhen(t *testing.T) {
	now := time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"in 30m", now.Add(30 * time.Minute)},
		{"2026-08-25 09:00", time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)},
		{"15:30", time.Date(2026, 8, 24, 15, 30, 0, 0, time.UTC)},
		{"09:00", time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)}, // already past today
	}
	for _, tt := range tests {
		got, err := parseWhen(tt.in, now)
		if err != nil {
			t.Errorf("parseWhen(%q) error: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseWhen(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := parseWhen("whenever", now); err == nil {
		t.Error("parseWhen(whenever) should fail")
	}
}

func TestSystemTool(t *testing.T) {
	st := NewSystemTool(nil)
	st.now = func() time.Time { return time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC) }

	res, err := st.Execute(context.Background(), "time", nil)
	if err != nil {
		t.Fatalf("time: %v", err)
	}
	if !strings.Contains(res.Content, "2026-08-24 10:30:00") {
		t.Errorf("time result = %q", res.Content)
	}

	if _, err := st.Execute(context.Background(), "bogus", nil); err == nil {
		t.Error("unknown command should fail")
	}
}

func TestSystemTool_Stats(t *testing.T) {
	mem, err := memory.Open(memory.Options{Dir: t.TempDir(), ShortCapacity: 25})
	if err != nil {
		t.Fatal(err)
	}
	st := NewSystemTool(mem)
	res, err := st.Execute(context.Background(), "stats", nil)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(res.Content, "short=0") {
		t.Errorf("stats result = %q", res.Content)
	}
}
