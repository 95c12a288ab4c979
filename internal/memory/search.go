package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/animus-ai/animus/internal/memory/embeddings"
)

// maxCombinedTextLen bounds the text-concatenation query before
// embedding.
const maxCombinedTextLen = 500

// maxRecentThoughts bounds how many recent thoughts blend into a combined
// query.
const maxRecentThoughts = 5

// CombineQueryText builds the text-concatenation form of the combined
// query: each component is duplicated proportionally to its weight, then
// the whole string is truncated.
func CombineQueryText(userInput string, thoughts []string, userWeight, thoughtsWeight float64) string {
	if len(thoughts) > maxRecentThoughts {
		thoughts = thoughts[len(thoughts)-maxRecentThoughts:]
	}

	userReps := int(userWeight * 10)
	thoughtReps := int(thoughtsWeight * 10)
	if userReps <= 0 {
		userReps = 1
	}
	if thoughtReps <= 0 {
		thoughtReps = 1
	}

	var parts []string
	if strings.TrimSpace(userInput) != "" {
		for i := 0; i < userReps; i++ {
			parts = append(parts, userInput)
		}
	}
	for _, th := range thoughts {
		if strings.TrimSpace(th) == "" {
			continue
		}
		for i := 0; i < thoughtReps; i++ {
			parts = append(parts, th)
		}
	}

	combined := strings.Join(parts, " ")
	if len(combined) > maxCombinedTextLen {
		combined = combined[:maxCombinedTextLen]
	}
	return combined
}

// combinedEmbedding produces the weighted-embedding form: embed the user
// text to u, average the thought embeddings to t, return the L2-normalized
// weighted sum. When one side is missing or fails, the other is used
// alone.
func (m *Manager) combinedEmbedding(ctx context.Context, userInput string, thoughts []string) ([]float32, error) {
	if len(thoughts) > maxRecentThoughts {
		thoughts = thoughts[len(thoughts)-maxRecentThoughts:]
	}

	var userVec []float32
	if strings.TrimSpace(userInput) != "" {
		v, err := m.opts.Embedder.Embed(ctx, userInput)
		if err != nil {
			m.countEmbeddingFailure()
		} else {
			userVec = v
		}
	}

	var thoughtVecs [][]float32
	for _, th := range thoughts {
		if strings.TrimSpace(th) == "" {
			continue
		}
		v, err := m.opts.Embedder.Embed(ctx, th)
		if err != nil {
			m.countEmbeddingFailure()
			continue
		}
		thoughtVecs = append(thoughtVecs, v)
	}
	thoughtVec := embeddings.Mean(thoughtVecs)

	switch {
	case userVec == nil && thoughtVec == nil:
		return nil, embeddings.ErrUnavailable
	case userVec == nil:
		return embeddings.Normalize(thoughtVec), nil
	case thoughtVec == nil:
		return embeddings.Normalize(userVec), nil
	}

	dim := len(userVec)
	if len(thoughtVec) < dim {
		dim = len(thoughtVec)
	}
	combined := make([]float32, dim)
	wu := float32(m.opts.UserWeight)
	wt := float32(m.opts.ThoughtsWeight)
	for i := 0; i < dim; i++ {
		combined[i] = wu*userVec[i] + wt*thoughtVec[i]
	}
	return embeddings.Normalize(combined), nil
}

// queryVector resolves the combined query to a single embedding using the
// selected combination strategy.
func (m *Manager) queryVector(ctx context.Context, userInput string, thoughts []string, useEmbeddingCombination bool) ([]float32, error) {
	if m.opts.Embedder == nil {
		return nil, embeddings.ErrUnavailable
	}
	if useEmbeddingCombination {
		return m.combinedEmbedding(ctx, userInput, thoughts)
	}
	text := CombineQueryText(userInput, thoughts, m.opts.UserWeight, m.opts.ThoughtsWeight)
	if text == "" {
		return nil, embeddings.ErrUnavailable
	}
	vec, err := m.opts.Embedder.Embed(ctx, text)
	if err != nil {
		m.countEmbeddingFailure()
		return nil, err
	}
	return vec, nil
}

// scored pairs a corpus index with its cosine similarity.
type scored struct {
	idx int
	sim float64
}

// topK keeps the k best candidates by similarity (ties by lower index),
// insertion-sorting into a bounded slice rather than sorting the whole
// corpus.
func topK(candidates []scored, k int) []scored {
	if k <= 0 {
		return nil
	}
	best := make([]scored, 0, k)
	for _, c := range candidates {
		pos := sort.Search(len(best), func(i int) bool {
			if best[i].sim != c.sim {
				return best[i].sim < c.sim
			}
			return best[i].idx > c.idx
		})
		if pos >= k {
			continue
		}
		if len(best) < k {
			best = append(best, scored{})
		}
		copy(best[pos+1:], best[pos:])
		best[pos] = c
	}
	return best
}

// scoreCorpus computes similarities of query against vectors using
// precomputed norms (nil norms are computed on the fly) and returns the
// candidates at or above minSimilarity.
func scoreCorpus(query []float32, vectors func(i int) []float32, norms []float64, n int, minSimilarity float64) []scored {
	qNorm := embeddings.Norm(query)
	if qNorm == 0 {
		return nil
	}
	var out []scored
	for i := 0; i < n; i++ {
		vec := vectors(i)
		var vNorm float64
		if norms != nil {
			vNorm = norms[i]
		} else {
			vNorm = embeddings.Norm(vec)
		}
		if vNorm == 0 {
			continue
		}
		sim := embeddings.Dot(query, vec) / (qNorm * vNorm)
		if sim >= minSimilarity {
			out = append(out, scored{idx: i, sim: sim})
		}
	}
	return out
}

// SearchBaseCombined searches Tier 4 with the combined query.
func (m *Manager) SearchBaseCombined(ctx context.Context, userInput string, recentThoughts []string, k int, minSimilarity float64, useEmbeddingCombination bool) ([]SearchResult, error) {
	query, err := m.queryVector(ctx, userInput, recentThoughts, useEmbeddingCombination)
	if err != nil {
		return nil, err
	}
	m.countSearch("base")

	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := scoreCorpus(query, func(i int) []float32 { return m.base[i].Embedding }, m.baseNorms, len(m.base), minSimilarity)
	results := make([]SearchResult, 0, k)
	for _, c := range topK(candidates, k) {
		chunk := m.base[c.idx]
		results = append(results, SearchResult{
			Text:       chunk.Text,
			Metadata:   chunk.Metadata,
			Similarity: c.sim,
		})
	}
	return results, nil
}

// SearchLongCombined searches Tier 3 with the combined query.
func (m *Manager) SearchLongCombined(ctx context.Context, userInput string, recentThoughts []string, k int, minSimilarity float64, useEmbeddingCombination bool) ([]LongResult, error) {
	query, err := m.queryVector(ctx, userInput, recentThoughts, useEmbeddingCombination)
	if err != nil {
		return nil, err
	}
	m.countSearch("long")

	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := scoreCorpus(query, func(i int) []float32 { return m.long[i].Embedding }, nil, len(m.long), minSimilarity)
	results := make([]LongResult, 0, k)
	for _, c := range topK(candidates, k) {
		entry := m.long[c.idx]
		results = append(results, LongResult{
			Date:       entry.Date,
			Summary:    entry.Summary,
			Similarity: c.sim,
		})
	}
	return results, nil
}

// SearchMediumCombined searches Tier 2 with the combined query.
func (m *Manager) SearchMediumCombined(ctx context.Context, userInput string, recentThoughts []string, k int, minSimilarity float64, useEmbeddingCombination bool) ([]MediumResult, error) {
	query, err := m.queryVector(ctx, userInput, recentThoughts, useEmbeddingCombination)
	if err != nil {
		return nil, err
	}
	m.countSearch("medium")

	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := scoreCorpus(query, func(i int) []float32 { return m.medium[i].Embedding }, nil, len(m.medium), minSimilarity)
	results := make([]MediumResult, 0, k)
	for _, c := range topK(candidates, k) {
		entry := m.medium[c.idx]
		results = append(results, MediumResult{
			Role:       entry.Role,
			Content:    entry.Content,
			Timestamp:  entry.Timestamp,
			Similarity: c.sim,
		})
	}
	return results, nil
}

// SearchPersonality searches the exemplars for the given stage ("thought"
// or "response"); used only by the prompt constructors for in-context
// examples.
func (m *Manager) SearchPersonality(ctx context.Context, query, stage string, k int, minSimilarity float64) ([]SearchResult, error) {
	if m.opts.Embedder == nil {
		return nil, embeddings.ErrUnavailable
	}
	vec, err := m.opts.Embedder.Embed(ctx, query)
	if err != nil {
		m.countEmbeddingFailure()
		return nil, err
	}
	m.countSearch("personality")

	m.mu.Lock()
	defer m.mu.Unlock()

	chunks := m.personality[stage]
	norms := m.persNorms[stage]
	candidates := scoreCorpus(vec, func(i int) []float32 { return chunks[i].Embedding }, norms, len(chunks), minSimilarity)
	results := make([]SearchResult, 0, k)
	for _, c := range topK(candidates, k) {
		results = append(results, SearchResult{
			Text:       chunks[c.idx].Text,
			Metadata:   chunks[c.idx].Metadata,
			Similarity: c.sim,
		})
	}
	return results, nil
}
