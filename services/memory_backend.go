package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github/itish2003/tariff/models"
)

// MemoryBackend keeps collections in process memory using brute-force
// cosine similarity. Nothing survives a restart.
type MemoryBackend struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]*memoryCollection)}
}

func (m *MemoryBackend) Lookup(ctx context.Context, name string) (VectorCollection, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[name]
	if !ok {
		return nil, false, nil
	}
	n, _ := col.Count(ctx)
	if n == 0 {
		return nil, false, nil
	}
	return col, true, nil
}

func (m *MemoryBackend) Create(ctx context.Context, name string, dimension int) (VectorCollection, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if col, ok := m.collections[name]; ok {
		if col.dimension != dimension {
			return nil, errors.New("collection exists with a different dimension")
		}
		return col, nil
	}
	col := &memoryCollection{name: name, dimension: dimension, byID: make(map[string]int)}
	m.collections[name] = col
	return col, nil
}

func (m *MemoryBackend) Close() error { return nil }

type memoryCollection struct {
	name      string
	dimension int

	mu      sync.RWMutex
	chunks  []models.TextChunk
	vectors [][]float32
	byID    map[string]int
}

func (c *memoryCollection) Name() string { return c.name }

func (c *memoryCollection) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chunks), nil
}

func (c *memoryCollection) Add(ctx context.Context, records []VectorRecord) error {
	for _, r := range records {
		if len(r.Vector) != c.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		if i, ok := c.byID[r.Chunk.ID]; ok && r.Chunk.ID != "" {
			c.chunks[i] = r.Chunk
			c.vectors[i] = r.Vector
			continue
		}
		c.byID[r.Chunk.ID] = len(c.chunks)
		c.chunks = append(c.chunks, r.Chunk)
		c.vectors = append(c.vectors, r.Vector)
	}
	return nil
}

func (c *memoryCollection) Query(ctx context.Context, vector []float32, k int) ([]models.TextChunk, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if k <= 0 {
		k = DefaultTopK
	}

	idxs := make([]int, len(c.vectors))
	scores := make([]float64, len(c.vectors))
	for i := range c.vectors {
		idxs[i] = i
		scores[i] = cosine(c.vectors[i], vector)
	}
	// stable so equal scores keep insertion order
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })

	if k > len(idxs) {
		k = len(idxs)
	}
	results := make([]models.TextChunk, 0, k)
	for _, i := range idxs[:k] {
		results = append(results, c.chunks[i])
	}
	return results, nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
