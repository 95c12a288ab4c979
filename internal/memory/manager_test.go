package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/animus-ai/animus/internal/memory/embeddings"
)

// fakeEmbedder returns fixed vectors per text, defaulting to unit-x.
type fakeEmbedder struct {
	vectors map[string][]float32
	fail    bool
	calls   int
}

var _ embeddings.Provider = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.fail {
		return nil, embeddings.ErrUnavailable
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) Name() string   { return "fake" }
func (f *fakeEmbedder) Dimension() int { return 3 }

func openTestManager(t *testing.T, emb embeddings.Provider) *Manager {
	t.Helper()
	m, err := Open(Options{
		Dir:           t.TempDir(),
		ShortCapacity: 3,
		Embedder:      emb,
	})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return m
}

func TestAddConversationEntry_OverflowToMedium(t *testing.T) {
	emb := &fakeEmbedder{}
	m := openTestManager(t, emb)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		m.AddConversationEntry(ctx, "user", fmt.Sprintf("message %d", i))
	}

	stats := m.Stats()
	if stats.Short != 3 {
		t.Errorf("Short = %d, want 3", stats.Short)
	}
	if stats.Medium != 1 {
		t.Errorf("Medium = %d, want 1", stats.Medium)
	}

	m.mu.Lock()
	overflowed := m.medium[0].Content
	hasEmbedding := len(m.medium[0].Embedding) > 0
	m.mu.Unlock()
	if overflowed != "message 0" {
		t.Errorf("overflowed content = %q, want oldest entry", overflowed)
	}
	if !hasEmbedding {
		t.Error("medium entry missing embedding")
	}
}

func TestAddConversationEntry_EmbedFailureDropsRecord(t *testing.T) {
	emb := &fakeEmbedder{fail: true}
	m := openTestManager(t, emb)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m.AddConversationEntry(ctx, "user", fmt.Sprintf("m%d", i))
	}

	if stats := m.Stats(); stats.Medium != 0 {
		t.Errorf("Medium = %d, want 0 when embedding fails", stats.Medium)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	emb := &fakeEmbedder{}

	m, err := Open(Options{Dir: dir, ShortCapacity: 25, Embedder: emb})
	if err != nil {
		t.Fatal(err)
	}
	m.AddConversationEntry(context.Background(), "user", "hello there")
	m.AddConversationEntry(context.Background(), "assistant", "hi!")

	// Reopen from disk.
	m2, err := Open(Options{Dir: dir, ShortCapacity: 25, Embedder: emb})
	if err != nil {
		t.Fatal(err)
	}
	entries := m2.RecentShortEntries(0)
	if len(entries) != 2 {
		t.Fatalf("reloaded entries = %d, want 2", len(entries))
	}
	if entries[0].Content != "hello there" || entries[1].Role != "assistant" {
		t.Errorf("reloaded entries = %+v", entries)
	}
}

func TestOpen_MissingFilesStartEmpty(t *testing.T) {
	m, err := Open(Options{Dir: t.TempDir(), ShortCapacity: 25})
	if err != nil {
		t.Fatalf("Open() with missing files: %v", err)
	}
	if stats := m.Stats(); stats.Short != 0 || stats.Medium != 0 || stats.Long != 0 {
		t.Errorf("Stats() = %+v, want all zero", stats)
	}
}

func TestRotation_OlderThanYesterdayPending(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	today := now.Format(DateLayout)
	yesterday := now.AddDate(0, 0, -1).Format(DateLayout)
	older := now.AddDate(0, 0, -3).Format(DateLayout)

	short := []ShortEntry{
		{Role: "user", Content: "old talk", Date: older, Timestamp: now.AddDate(0, 0, -3)},
		{Role: "user", Content: "yesterday talk", Date: yesterday, Timestamp: now.AddDate(0, 0, -1)},
		{Role: "user", Content: "today talk", Date: today, Timestamp: now},
	}
	data, _ := json.Marshal(short)
	if err := os.WriteFile(filepath.Join(dir, "short_memory.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	emb := &fakeEmbedder{}
	m, err := Open(Options{Dir: dir, ShortCapacity: 25, Embedder: emb})
	if err != nil {
		t.Fatal(err)
	}

	pending := m.DaysNeedingArchive()
	if len(pending) != 1 {
		t.Fatalf("DaysNeedingArchive() = %v, want one day", pending)
	}
	if lines := pending[older]; len(lines) != 1 || lines[0] != "user: old talk" {
		t.Errorf("pending[%s] = %v", older, lines)
	}

	// Yesterday and today survive in the live tiers.
	if stats := m.Stats(); stats.Short != 2 {
		t.Errorf("Short after rotation = %d, want 2", stats.Short)
	}

	// Archiving the day embeds the summary and populates Tier 3.
	if err := m.ArchivePreviousDay(context.Background(), "we talked about old things", older); err != nil {
		t.Fatalf("ArchivePreviousDay() error: %v", err)
	}
	if stats := m.Stats(); stats.Long != 1 {
		t.Errorf("Long = %d, want 1", stats.Long)
	}
	if pending := m.DaysNeedingArchive(); len(pending) != 0 {
		t.Errorf("pending after archive = %v, want empty", pending)
	}

	summaries := m.RecentLongSummaries(1)
	if summaries[0].EntryCount != 1 {
		t.Errorf("EntryCount = %d, want 1", summaries[0].EntryCount)
	}
}

func TestArchivePreviousDay_EmbedFailureKeepsPending(t *testing.T) {
	dir := t.TempDir()
	older := time.Now().AddDate(0, 0, -2).Format(DateLayout)
	data, _ := json.Marshal([]ShortEntry{{Role: "user", Content: "x", Date: older}})
	if err := os.WriteFile(filepath.Join(dir, "short_memory.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	emb := &fakeEmbedder{fail: true}
	m, err := Open(Options{Dir: dir, ShortCapacity: 25, Embedder: emb})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.ArchivePreviousDay(context.Background(), "summary", older); err == nil {
		t.Error("expected error when embedding fails")
	}
	if pending := m.DaysNeedingArchive(); len(pending) != 1 {
		t.Errorf("pending = %v, want the day kept", pending)
	}
}

func TestYesterdayContext(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	yesterday := now.AddDate(0, 0, -1).Format(DateLayout)

	medium := []MediumEntry{
		{Role: "user", Content: "we set up the stream", Date: yesterday, Embedding: []float32{1}},
		{Role: "assistant", Content: "it went well", Date: yesterday, Embedding: []float32{1}},
	}
	data, _ := json.Marshal(medium)
	if err := os.WriteFile(filepath.Join(dir, "medium_memory.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Open(Options{Dir: dir, ShortCapacity: 25})
	if err != nil {
		t.Fatal(err)
	}

	lines := m.YesterdayContext(10)
	if len(lines) != 2 {
		t.Fatalf("YesterdayContext() = %v, want 2 lines", lines)
	}
	if lines[0] != "user: we set up the stream" {
		t.Errorf("lines[0] = %q", lines[0])
	}

	if got := m.YesterdayContext(1); len(got) != 1 || got[0] != "assistant: it went well" {
		t.Errorf("YesterdayContext(1) = %v, want newest line only", got)
	}
}

func TestLoadBase_EnvelopeAndPersonality(t *testing.T) {
	baseDir := t.TempDir()
	envelope := baseFile{
		SourceFile: "guide.md",
		EmbedModel: "fake",
		Chunks: []BaseChunk{
			{Text: "rust borrow checker notes", Embedding: []float32{1, 0}},
			{Text: "be cheerful", Embedding: []float32{0, 1}, Metadata: map[string]string{"type": "personality", "stage": "response"}},
			{Text: "no embedding, skipped"},
		},
	}
	data, _ := json.Marshal(envelope)
	if err := os.WriteFile(filepath.Join(baseDir, "guide.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Open(Options{Dir: t.TempDir(), BaseDir: baseDir, ShortCapacity: 25})
	if err != nil {
		t.Fatal(err)
	}
	stats := m.Stats()
	if stats.Base != 1 {
		t.Errorf("Base = %d, want 1", stats.Base)
	}
	if stats.Personality != 1 {
		t.Errorf("Personality = %d, want 1", stats.Personality)
	}
}
