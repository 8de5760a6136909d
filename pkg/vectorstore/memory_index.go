package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process Index used by tests and as the degraded
// fallback when no Postgres backend is reachable. Ties rank in
// insertion order.
type MemoryIndex struct {
	mu         sync.RWMutex
	namespaces map[string]*memoryNamespace
}

type memoryNamespace struct {
	records map[string]Record
	order   []string
}

// NewMemoryIndex initializes an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{namespaces: make(map[string]*memoryNamespace)}
}

// Upsert stores or replaces records. Last writer wins on conflicting IDs.
func (m *MemoryIndex) Upsert(_ context.Context, namespace string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = &memoryNamespace{records: make(map[string]Record)}
		m.namespaces[namespace] = ns
	}
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("record id required")
		}
		if _, exists := ns.records[rec.ID]; !exists {
			ns.order = append(ns.order, rec.ID)
		}
		ns.records[rec.ID] = rec
	}
	return nil
}

// Query returns up to topK matches by cosine similarity, descending.
// A nil vector performs a metadata-only scan in insertion order.
func (m *MemoryIndex) Query(_ context.Context, namespace string, vector []float32, topK int, filter Filter) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, ok := m.namespaces[namespace]
	if !ok {
		return []Match{}, nil
	}
	matches := make([]Match, 0, topK)
	for _, id := range ns.order {
		rec := ns.records[id]
		if !metadataMatches(rec.Metadata, filter) {
			continue
		}
		match := Match{ID: rec.ID, Metadata: rec.Metadata}
		if vector != nil {
			match.Score = cosineSimilarity(vector, rec.Values)
		}
		matches = append(matches, match)
	}
	if vector != nil {
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Score > matches[j].Score
		})
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete removes records by ID. Unknown IDs are ignored.
func (m *MemoryIndex) Delete(_ context.Context, namespace string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.namespaces[namespace]
	if !ok {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
		delete(ns.records, id)
	}
	filtered := ns.order[:0]
	for _, id := range ns.order {
		if _, gone := drop[id]; !gone {
			filtered = append(filtered, id)
		}
	}
	ns.order = filtered
	return nil
}

func metadataMatches(meta map[string]any, filter Filter) bool {
	for key, want := range filter {
		got, ok := meta[key]
		if !ok || !equalValue(got, want) {
			return false
		}
	}
	return true
}

// equalValue compares metadata values loosely: numeric types compare
// by value so int filters match float64 values decoded from JSON.
func equalValue(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
