package memory

import "time"

// DateLayout is the day key used by the tiers.
const DateLayout = "2006-01-02"

// ShortEntry is one conversation turn in Tier 1 (no embedding).
type ShortEntry struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Date      string    `json:"date"`
}

// MediumEntry is a Tier 2 entry: a conversation turn with its embedding.
type MediumEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Date      string    `json:"date"`
	Embedding []float32 `json:"embedding"`
}

// LongEntry is a Tier 3 entry: one archived day's summary.
type LongEntry struct {
	Date       string            `json:"date"`
	Summary    string            `json:"summary"`
	Timestamp  time.Time         `json:"timestamp"`
	EntryCount int               `json:"entry_count"`
	Embedding  []float32         `json:"embedding"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// BaseChunk is a Tier 4 entry from the read-only knowledge corpus.
type BaseChunk struct {
	Text           string            `json:"text"`
	SearchableText string            `json:"searchable_text,omitempty"`
	Embedding      []float32         `json:"embedding"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CharCount      int               `json:"char_count,omitempty"`
}

// baseFile is the on-disk envelope for base-memory files. Files may also
// be a bare array of chunks.
type baseFile struct {
	SourceFile  string      `json:"source_file"`
	EmbedModel  string      `json:"embed_model"`
	ChunkMethod string      `json:"chunk_method"`
	Chunks      []BaseChunk `json:"chunks"`
}

// SearchResult is a scored Tier 4 or personality hit.
type SearchResult struct {
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Similarity float64           `json:"similarity"`
}

// LongResult is a scored Tier 3 hit.
type LongResult struct {
	Date       string  `json:"date"`
	Summary    string  `json:"summary"`
	Similarity float64 `json:"similarity"`
}

// MediumResult is a scored Tier 2 hit.
type MediumResult struct {
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Similarity float64   `json:"similarity"`
}

// TierSizes reports per-tier entry counts for stats surfaces.
type TierSizes struct {
	Short       int `json:"short"`
	Medium      int `json:"medium"`
	Long        int `json:"long"`
	Base        int `json:"base"`
	Personality int `json:"personality"`
}
