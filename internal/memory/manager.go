// Package memory implements the four-tier persistent memory subsystem:
// short (recent turns), medium (today's older turns plus yesterday, with
// embeddings), long (per-day summaries), and base (a read-only knowledge
// corpus loaded at startup).
//
// Daily rotation runs at startup: days older than yesterday found in
// tiers 1-2 are pulled out and reported by DaysNeedingArchive; summary
// generation is external, and ArchivePreviousDay folds the summary into
// tier 3. Yesterday's raw entries stay in tier 2 in full detail.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/animus-ai/animus/internal/memory/embeddings"
	"github.com/animus-ai/animus/internal/observability"
)

const (
	shortFile  = "short_memory.json"
	mediumFile = "medium_memory.json"
	longFile   = "long_memory.json"
)

// Options configures the memory manager.
type Options struct {
	// Dir holds the mutable tier files.
	Dir string

	// BaseDir holds the read-only base-memory JSON files.
	BaseDir string

	// ShortCapacity bounds Tier 1; overflow is pushed to Tier 2 with an
	// embedding attached.
	ShortCapacity int

	// UserWeight and ThoughtsWeight steer combined-query retrieval.
	UserWeight     float64
	ThoughtsWeight float64

	Embedder embeddings.Provider
	Logger   *observability.Logger
	Metrics  *observability.Metrics
}

// Manager owns all four tiers and persists tiers 1-3 on every significant
// write. In-memory state is authoritative; failed saves are logged and
// retried on the next write.
type Manager struct {
	mu   sync.Mutex
	opts Options
	log  *observability.Logger

	short  []ShortEntry
	medium []MediumEntry
	long   []LongEntry

	base        []BaseChunk
	baseNorms   []float64
	personality map[string][]BaseChunk // keyed by stage: "thought" / "response"
	persNorms   map[string][]float64

	// pendingArchive holds entries for days older than yesterday, keyed
	// by date, awaiting an external summary.
	pendingArchive map[string][]ShortEntry

	now func() time.Time
}

// Open loads all tiers from disk and performs daily rotation. Missing
// files initialize empty tiers.
func Open(opts Options) (*Manager, error) {
	if opts.ShortCapacity <= 0 {
		opts.ShortCapacity = 25
	}
	if opts.UserWeight <= 0 && opts.ThoughtsWeight <= 0 {
		opts.UserWeight, opts.ThoughtsWeight = 0.6, 0.4
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewNopLogger()
	}

	m := &Manager{
		opts:           opts,
		log:            opts.Logger,
		personality:    make(map[string][]BaseChunk),
		persNorms:      make(map[string][]float64),
		pendingArchive: make(map[string][]ShortEntry),
		now:            time.Now,
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create memory dir: %w", err)
		}
		loadJSON(filepath.Join(opts.Dir, shortFile), &m.short, m.log)
		loadJSON(filepath.Join(opts.Dir, mediumFile), &m.medium, m.log)
		loadJSON(filepath.Join(opts.Dir, longFile), &m.long, m.log)
	}

	if opts.BaseDir != "" {
		if err := m.loadBase(opts.BaseDir); err != nil {
			return nil, err
		}
	}

	m.rotate()
	return m, nil
}

// loadJSON reads one tier file; a missing file leaves the tier empty.
func loadJSON(path string, v any, log *observability.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn(context.Background(), "memory file unreadable, starting empty", "path", path, "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn(context.Background(), "memory file corrupt, starting empty", "path", path, "error", err)
	}
}

// loadBase loads every .json file in dir into Tier 4, partitioning
// personality exemplars by their stage metadata.
func (m *Manager) loadBase(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read base memory dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			m.log.Warn(context.Background(), "base memory file unreadable, skipping", "path", path, "error", err)
			continue
		}

		var chunks []BaseChunk
		var envelope baseFile
		if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Chunks) > 0 {
			chunks = envelope.Chunks
		} else if err := json.Unmarshal(data, &chunks); err != nil {
			m.log.Warn(context.Background(), "base memory file unparseable, skipping", "path", path, "error", err)
			continue
		}

		for _, c := range chunks {
			if len(c.Embedding) == 0 {
				continue
			}
			if c.Metadata == nil {
				c.Metadata = map[string]string{}
			}
			if c.Metadata["source_file"] == "" {
				c.Metadata["source_file"] = entry.Name()
			}
			if c.Metadata["type"] == "personality" {
				stage := c.Metadata["stage"]
				if stage == "" {
					stage = "thought"
				}
				m.personality[stage] = append(m.personality[stage], c)
				m.persNorms[stage] = append(m.persNorms[stage], embeddings.Norm(c.Embedding))
				continue
			}
			m.base = append(m.base, c)
			m.baseNorms = append(m.baseNorms, embeddings.Norm(c.Embedding))
		}
	}
	return nil
}

// rotate pulls days older than yesterday out of tiers 1-2 into the
// pending-archive set. Called with no lock held (startup only).
func (m *Manager) rotate() {
	yesterday := m.now().AddDate(0, 0, -1).Format(DateLayout)

	var keptShort []ShortEntry
	for _, e := range m.short {
		if e.Date != "" && e.Date < yesterday {
			m.pendingArchive[e.Date] = append(m.pendingArchive[e.Date], e)
			continue
		}
		keptShort = append(keptShort, e)
	}
	m.short = keptShort

	var keptMedium []MediumEntry
	for _, e := range m.medium {
		if e.Date != "" && e.Date < yesterday {
			m.pendingArchive[e.Date] = append(m.pendingArchive[e.Date], ShortEntry{
				Role: e.Role, Content: e.Content, Timestamp: e.Timestamp, Date: e.Date,
			})
			continue
		}
		keptMedium = append(keptMedium, e)
	}
	m.medium = keptMedium

	if len(m.pendingArchive) > 0 {
		m.saveShort()
		m.saveMedium()
	}
}

// DaysNeedingArchive returns the dates awaiting an external summary,
// oldest first, with the raw lines to summarize.
func (m *Manager) DaysNeedingArchive() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]string, len(m.pendingArchive))
	for date, entries := range m.pendingArchive {
		lines := make([]string, len(entries))
		for i, e := range entries {
			lines[i] = e.Role + ": " + e.Content
		}
		out[date] = lines
	}
	return out
}

// ArchivePreviousDay embeds the externally generated summary for date and
// appends it to Tier 3. The pending entries for that date are dropped on
// success.
func (m *Manager) ArchivePreviousDay(ctx context.Context, summary, date string) error {
	if m.opts.Embedder == nil {
		return errors.New("no embedder configured")
	}
	vec, err := m.opts.Embedder.Embed(ctx, summary)
	if err != nil {
		m.countEmbeddingFailure()
		return fmt.Errorf("embed day summary: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entryCount := len(m.pendingArchive[date])
	m.long = append(m.long, LongEntry{
		Date:       date,
		Summary:    summary,
		Timestamp:  m.now(),
		EntryCount: entryCount,
		Embedding:  vec,
		Metadata:   map[string]string{"embed_model": m.opts.Embedder.Name()},
	})
	delete(m.pendingArchive, date)
	m.saveLong()
	return nil
}

// AddConversationEntry appends a turn to Tier 1. Overflow beyond the
// short capacity pushes the oldest entry into Tier 2 with an embedding;
// when embedding fails the overflow entry is dropped from Tier 2 (the
// record is not retained without a vector).
func (m *Manager) AddConversationEntry(ctx context.Context, role, content string) {
	now := m.now()
	entry := ShortEntry{
		Role:      role,
		Content:   content,
		Timestamp: now,
		Date:      now.Format(DateLayout),
	}

	m.mu.Lock()
	m.short = append(m.short, entry)
	var overflow *ShortEntry
	if len(m.short) > m.opts.ShortCapacity {
		overflow = &m.short[0]
		m.short = append([]ShortEntry(nil), m.short[1:]...)
	}
	m.saveShort()
	m.mu.Unlock()

	if overflow == nil {
		return
	}
	if m.opts.Embedder == nil {
		return
	}
	vec, err := m.opts.Embedder.Embed(ctx, overflow.Content)
	if err != nil {
		m.countEmbeddingFailure()
		m.log.Warn(ctx, "embedding failed, dropping overflow entry from medium memory", "error", err)
		return
	}

	m.mu.Lock()
	m.medium = append(m.medium, MediumEntry{
		Role:      overflow.Role,
		Content:   overflow.Content,
		Timestamp: overflow.Timestamp,
		Date:      overflow.Date,
		Embedding: vec,
	})
	m.saveMedium()
	m.mu.Unlock()
}

// YesterdayContext returns up to maxEntries verbatim "role: content"
// lines from yesterday, oldest first, for reflective prompts.
func (m *Manager) YesterdayContext(maxEntries int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	yesterday := m.now().AddDate(0, 0, -1).Format(DateLayout)
	var lines []string
	for _, e := range m.medium {
		if e.Date == yesterday {
			lines = append(lines, e.Role+": "+e.Content)
		}
	}
	for _, e := range m.short {
		if e.Date == yesterday {
			lines = append(lines, e.Role+": "+e.Content)
		}
	}
	if maxEntries > 0 && len(lines) > maxEntries {
		lines = lines[len(lines)-maxEntries:]
	}
	return lines
}

// RecentShortEntries returns the last n Tier 1 entries, oldest first.
func (m *Manager) RecentShortEntries(n int) []ShortEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 || n > len(m.short) {
		n = len(m.short)
	}
	out := make([]ShortEntry, n)
	copy(out, m.short[len(m.short)-n:])
	return out
}

// RecentLongSummaries returns the last n Tier 3 summaries, oldest first.
func (m *Manager) RecentLongSummaries(n int) []LongEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	sorted := append([]LongEntry(nil), m.long...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })
	if n > 0 && len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}

// Stats reports per-tier entry counts.
func (m *Manager) Stats() TierSizes {
	m.mu.Lock()
	defer m.mu.Unlock()

	pers := 0
	for _, chunks := range m.personality {
		pers += len(chunks)
	}
	return TierSizes{
		Short:       len(m.short),
		Medium:      len(m.medium),
		Long:        len(m.long),
		Base:        len(m.base),
		Personality: pers,
	}
}

func (m *Manager) countEmbeddingFailure() {
	if m.opts.Metrics != nil {
		m.opts.Metrics.EmbeddingFailures.Inc()
	}
}

func (m *Manager) countSearch(tier string) {
	if m.opts.Metrics != nil {
		m.opts.Metrics.MemorySearchCounter.WithLabelValues(tier).Inc()
	}
}

// save helpers run with m.mu held. Failures are logged; the next write
// retries.

func (m *Manager) saveShort()  { m.saveFile(shortFile, m.short) }
func (m *Manager) saveMedium() { m.saveFile(mediumFile, m.medium) }
func (m *Manager) saveLong()   { m.saveFile(longFile, m.long) }

func (m *Manager) saveFile(name string, v any) {
	if m.opts.Dir == "" {
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		m.log.Error(context.Background(), "marshal memory tier", "file", name, "error", err)
		return
	}
	path := filepath.Join(m.opts.Dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		m.log.Error(context.Background(), "write memory tier", "file", name, "error", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		m.log.Error(context.Background(), "rename memory tier", "file", name, "error", err)
	}
}
