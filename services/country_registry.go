package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github/itish2003/tariff/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RegistryConfig describes where country documents live and how their
// collections are named.
type RegistryConfig struct {
	BasePath         string
	Extensions       []string
	CollectionPrefix string
	// Parallelism bounds how many countries are indexed at once.
	Parallelism int
}

// CountryIndex is the fully built similarity index of one country. It is
// immutable once published by the registry.
type CountryIndex struct {
	Country    string
	Collection string
	Documents  []models.DocumentReference
	// Reused is true when the collection was loaded from the store instead
	// of being embedded in this process.
	Reused bool

	col      VectorCollection
	embedder Embedder
}

// SimilaritySearch returns the k chunks most similar to query, best first.
func (ci *CountryIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]models.TextChunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	vec, err := ci.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query for %s: %v", ErrIndexBackendUnavailable, ci.Country, err)
	}
	return ci.col.Query(ctx, vec, k)
}

// CountryRegistry discovers per-country document directories and owns the
// country → index mapping. Discovery runs one at a time; lookups only take
// a read lock and never observe a partially built index.
type CountryRegistry struct {
	cfg           RegistryConfig
	backend       VectorBackend
	indexer       *DocumentIndexer
	embedder      Embedder
	queryEmbedder Embedder

	discoverMu  sync.Mutex
	mu          sync.RWMutex
	countries   map[string]*CountryIndex
	unavailable map[string]string
}

type countryCandidate struct {
	key  string
	dir  string
	docs []models.DocumentReference
}

// NewCountryRegistry creates an empty registry. queryEmbedder may be nil,
// in which case queries use embedder.
func NewCountryRegistry(cfg RegistryConfig, backend VectorBackend, indexer *DocumentIndexer, embedder, queryEmbedder Embedder) *CountryRegistry {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".pdf"}
	}
	if queryEmbedder == nil {
		queryEmbedder = embedder
	}
	return &CountryRegistry{
		cfg:           cfg,
		backend:       backend,
		indexer:       indexer,
		embedder:      embedder,
		queryEmbedder: queryEmbedder,
		countries:     make(map[string]*CountryIndex),
		unavailable:   make(map[string]string),
	}
}

// Discover scans the base path and indexes every country not yet
// registered. It returns the newly added country keys, sorted. A missing
// base path is logged and treated as "no data"; a country that fails to
// build is recorded as unavailable and does not stop the others.
func (r *CountryRegistry) Discover(ctx context.Context) ([]string, error) {
	r.discoverMu.Lock()
	defer r.discoverMu.Unlock()

	candidates, err := r.scan()
	if errors.Is(err, ErrConfigurationMissing) {
		zap.L().Warn("knowledge base path doesn't exist", zap.String("path", r.cfg.BasePath))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		seen[c.key] = true
	}
	r.mu.Lock()
	for key := range r.unavailable {
		if !seen[key] {
			delete(r.unavailable, key)
		}
	}
	r.mu.Unlock()

	var (
		g       errgroup.Group
		addedMu sync.Mutex
		added   []string
	)
	g.SetLimit(r.cfg.Parallelism)
	for _, c := range candidates {
		g.Go(func() error {
			idx, err := r.build(ctx, c)
			if err != nil {
				zap.L().Error("failed to index country",
					zap.String("country", c.key), zap.String("dir", c.dir), zap.Error(err))
				r.mu.Lock()
				r.unavailable[c.key] = err.Error()
				r.mu.Unlock()
				return nil
			}

			r.mu.Lock()
			r.countries[c.key] = idx
			delete(r.unavailable, c.key)
			r.mu.Unlock()

			addedMu.Lock()
			added = append(added, c.key)
			addedMu.Unlock()
			zap.L().Info("country indexed",
				zap.String("country", c.key),
				zap.String("collection", idx.Collection),
				zap.Int("documents", len(idx.Documents)),
				zap.Bool("reused", idx.Reused))
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(added)
	return added, ctx.Err()
}

// Refresh re-runs discovery and reports what changed. A cancelled context
// still yields the report of countries published before the cancellation;
// the ones it interrupted are listed as unavailable.
func (r *CountryRegistry) Refresh(ctx context.Context) (*models.RefreshReport, error) {
	added, err := r.Discover(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if err != nil {
		zap.L().Warn("refresh interrupted", zap.Strings("added", added), zap.Error(err))
	}
	if added == nil {
		added = []string{}
	}
	return &models.RefreshReport{
		Added:       added,
		Available:   r.Countries(),
		Unavailable: r.Unavailable(),
	}, nil
}

// IndexFor looks up a country case-insensitively.
func (r *CountryRegistry) IndexFor(country string) (*CountryIndex, error) {
	key := NormalizeCountry(country)
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.countries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCountryNotFound, country)
	}
	return idx, nil
}

// Countries returns the queryable country keys, sorted.
func (r *CountryRegistry) Countries() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.countries))
	for key := range r.countries {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Unavailable returns countries whose last build failed, with the reason.
func (r *CountryRegistry) Unavailable() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.unavailable))
	for k, v := range r.unavailable {
		out[k] = v
	}
	return out
}

// BasePath is the directory scanned for country subdirectories.
func (r *CountryRegistry) BasePath() string {
	return r.cfg.BasePath
}

// scan lists unregistered country directories with at least one
// recognised document. Directory names are lower-cased; a name colliding
// with an earlier one is skipped. Registered countries are not re-listed.
func (r *CountryRegistry) scan() ([]countryCandidate, error) {
	entries, err := os.ReadDir(r.cfg.BasePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigurationMissing, r.cfg.BasePath)
		}
		return nil, fmt.Errorf("reading knowledge base %s: %w", r.cfg.BasePath, err)
	}

	var candidates []countryCandidate
	owners := make(map[string]string)
	for _, entry := range entries {
		dir := filepath.Join(r.cfg.BasePath, entry.Name())
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		key := NormalizeCountry(entry.Name())
		if key == "" {
			continue
		}
		if owner, dup := owners[key]; dup {
			zap.L().Warn("duplicate country directory ignored",
				zap.String("country", key), zap.String("kept", owner), zap.String("ignored", entry.Name()))
			continue
		}
		if r.isRegistered(key) {
			owners[key] = entry.Name()
			continue
		}

		docs, err := r.listDocuments(dir)
		if err != nil {
			zap.L().Warn("could not list country directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		if len(docs) == 0 {
			continue
		}
		owners[key] = entry.Name()
		candidates = append(candidates, countryCandidate{key: key, dir: dir, docs: docs})
	}
	return candidates, nil
}

func (r *CountryRegistry) isRegistered(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.countries[key]
	return ok
}

// listDocuments is a flat listing; subdirectories are not descended into.
func (r *CountryRegistry) listDocuments(dir string) ([]models.DocumentReference, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var docs []models.DocumentReference
	for _, entry := range entries {
		if !r.isSupportedFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		docs = append(docs, models.DocumentReference{Path: path, Kind: KindForPath(path)})
	}
	return docs, nil
}

func (r *CountryRegistry) isSupportedFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range r.cfg.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// build reuses a persisted collection when it already holds every chunk of
// the country's documents. Otherwise it embeds the documents and upserts
// them, which also completes a collection left half-filled by an
// interrupted run. Documents are always split, never re-embedded on reuse.
func (r *CountryRegistry) build(ctx context.Context, c countryCandidate) (*CountryIndex, error) {
	name := CollectionName(r.cfg.CollectionPrefix, c.key)
	idx := &CountryIndex{
		Country:    c.key,
		Collection: name,
		Documents:  c.docs,
		embedder:   r.queryEmbedder,
	}

	col, found, err := r.backend.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	var chunks []models.TextChunk
	for _, doc := range c.docs {
		docChunks, err := r.indexer.Load(doc.Path, c.key)
		if err != nil {
			zap.L().Warn("skipping unreadable document", zap.String("country", c.key), zap.Error(err))
			continue
		}
		zap.L().Debug("document split", zap.String("path", doc.Path), zap.Int("chunks", len(docChunks)))
		chunks = append(chunks, docChunks...)
	}

	if found {
		stored, err := col.Count(ctx)
		if err != nil {
			return nil, err
		}
		if stored >= len(chunks) {
			zap.L().Info("reusing persisted collection",
				zap.String("country", c.key), zap.String("collection", name), zap.Int("chunks", stored))
			idx.col = col
			idx.Reused = true
			return idx, nil
		}
		zap.L().Warn("persisted collection is incomplete, resuming",
			zap.String("collection", name), zap.Int("stored", stored), zap.Int("expected", len(chunks)))
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no readable text in %d documents of %s", ErrUnreadableDocument, len(c.docs), c.key)
	}
	for i := range chunks {
		chunks[i].ID = chunkID(name, chunks[i])
	}

	vectors, err := embedChunks(ctx, r.embedder, chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexBackendUnavailable, err)
	}

	if !found {
		col, err = r.backend.Create(ctx, name, len(vectors[0]))
		if err != nil {
			return nil, err
		}
	}
	records := make([]VectorRecord, len(chunks))
	for i := range chunks {
		records[i] = VectorRecord{Chunk: chunks[i], Vector: vectors[i]}
	}
	if err := col.Add(ctx, records); err != nil {
		return nil, err
	}
	idx.col = col
	return idx, nil
}

// chunkID is stable across runs so re-adding a document upserts in place.
func chunkID(collection string, chunk models.TextChunk) string {
	key := collection + "/" + filepath.Base(chunk.Source) + "#" + strconv.Itoa(chunk.Index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}
