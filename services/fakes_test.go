package services

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/stretchr/testify/require"
)

const testDims = 256

// wordEmbedder hashes words into buckets so texts sharing words are close.
type wordEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (w *wordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	w.mu.Lock()
	w.calls++
	err := w.err
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}

	vec := make([]float32, testDims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%testDims]++
	}
	return vec, nil
}

func (w *wordEmbedder) ModelName() string { return "words" }

func (w *wordEmbedder) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

func (w *wordEmbedder) setErr(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

// countingBackend records how often collections are looked up and created.
type countingBackend struct {
	*MemoryBackend

	mu      sync.Mutex
	lookups int
	creates int
}

func newCountingBackend() *countingBackend {
	return &countingBackend{MemoryBackend: NewMemoryBackend()}
}

func (c *countingBackend) Lookup(ctx context.Context, name string) (VectorCollection, bool, error) {
	c.mu.Lock()
	c.lookups++
	c.mu.Unlock()
	return c.MemoryBackend.Lookup(ctx, name)
}

func (c *countingBackend) Create(ctx context.Context, name string, dimension int) (VectorCollection, error) {
	c.mu.Lock()
	c.creates++
	c.mu.Unlock()
	return c.MemoryBackend.Create(ctx, name, dimension)
}

func (c *countingBackend) createCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creates
}

// writeCountry creates base/dir with the given files.
func writeCountry(t *testing.T, base, dir string, files map[string]string) {
	t.Helper()
	path := filepath.Join(base, dir)
	require.NoError(t, os.MkdirAll(path, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(path, name), []byte(content), 0o644))
	}
}

type registryFixture struct {
	base     string
	backend  *countingBackend
	embedder *wordEmbedder
	registry *CountryRegistry
	// pdfPages is what the stubbed PDF extractor returns, by file name.
	pdfPages map[string][]string
}

func newRegistryFixture(t *testing.T, backend *countingBackend) *registryFixture {
	t.Helper()
	if backend == nil {
		backend = newCountingBackend()
	}
	f := &registryFixture{
		base:     t.TempDir(),
		backend:  backend,
		embedder: &wordEmbedder{},
		pdfPages: make(map[string][]string),
	}
	indexer := NewDocumentIndexer(DefaultChunkSize, DefaultChunkOverlap)
	indexer.extractPDF = func(path string) ([]string, error) {
		pages, ok := f.pdfPages[filepath.Base(path)]
		if !ok {
			return nil, os.ErrInvalid
		}
		return pages, nil
	}
	f.registry = NewCountryRegistry(RegistryConfig{
		BasePath:         f.base,
		Extensions:       []string{".pdf", ".txt"},
		CollectionPrefix: "tariff_",
		Parallelism:      2,
	}, backend, indexer, f.embedder, nil)
	return f
}
