package instructions

import (
	"testing"
	"time"
)

func TestTracker_TTLBoundary(t *testing.T) {
	tr := NewTracker(360 * time.Second)
	base := time.Now()
	now := base
	tr.now = func() time.Time { return now }

	tr.MarkRetrieved("search")

	now = base.Add(359 * time.Second)
	if !tr.HasActive("search") {
		t.Error("grant expired at t+359s, want active until t+360s")
	}

	now = base.Add(360 * time.Second)
	if tr.HasActive("search") {
		t.Error("grant still active at exactly t+360s")
	}
	// Lazy expiry removed the entry.
	if names := tr.ActiveToolNames(); len(names) != 0 {
		t.Errorf("ActiveToolNames() = %v, want empty", names)
	}
}

func TestTracker_RefreshExtendsValidity(t *testing.T) {
	tr := NewTracker(360 * time.Second)
	base := time.Now()
	now := base
	tr.now = func() time.Time { return now }

	if refreshed := tr.MarkRetrieved("search"); refreshed {
		t.Error("first retrieval reported as refresh")
	}

	now = base.Add(300 * time.Second)
	if refreshed := tr.MarkRetrieved("search"); !refreshed {
		t.Error("second retrieval within TTL not reported as refresh")
	}

	// Validity now extends to t+300+360.
	now = base.Add(650 * time.Second)
	if !tr.HasActive("search") {
		t.Error("refreshed grant expired early")
	}
	now = base.Add(661 * time.Second)
	if tr.HasActive("search") {
		t.Error("refreshed grant outlived extended TTL")
	}
}

func TestTracker_ActiveToolNamesSweeps(t *testing.T) {
	tr := NewTracker(time.Minute)
	base := time.Now()
	now := base
	tr.now = func() time.Time { return now }

	tr.MarkRetrieved("b")
	tr.MarkRetrieved("a")
	now = base.Add(30 * time.Second)
	tr.MarkRetrieved("c")

	now = base.Add(70 * time.Second) // a and b expired
	names := tr.ActiveToolNames()
	if len(names) != 1 || names[0] != "c" {
		t.Errorf("ActiveToolNames() = %v, want [c]", names)
	}
}

func TestTracker_ClearDisabled(t *testing.T) {
	tr := NewTracker(time.Minute)
	tr.MarkRetrieved("kept")
	tr.MarkRetrieved("dropped")

	tr.ClearDisabled(map[string]bool{"kept": true})

	if !tr.HasActive("kept") {
		t.Error("enabled tool's grant cleared")
	}
	if tr.HasActive("dropped") {
		t.Error("disabled tool's grant survived")
	}
}

func TestNewTracker_DefaultTTL(t *testing.T) {
	tr := NewTracker(0)
	if tr.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", tr.ttl, DefaultTTL)
	}
}
