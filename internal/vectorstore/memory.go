package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-memory brute-force store for development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Point
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]Point)}
}

func (s *MemoryStore) Upsert(ctx context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collections[collection]
	if coll == nil {
		coll = make(map[string]Point)
		s.collections[collection] = coll
	}
	for _, p := range points {
		coll[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hits := make([]Hit, 0, len(s.collections[collection]))
	for _, p := range s.collections[collection] {
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		hits = append(hits, Hit{ID: p.ID, Score: cosineSimilarity(vector, p.Vector), Payload: p.Payload})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryStore) Count(ctx context.Context, collection string, filter map[string]string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, p := range s.collections[collection] {
		if matchesFilter(p.Payload, filter) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection string, filter map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collections[collection]
	for id, p := range coll {
		if matchesFilter(p.Payload, filter) {
			delete(coll, id)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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

func init() {
	Register("memory", func(cfg Config) (Store, error) {
		return NewMemoryStore(), nil
	})
}
