package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github/itish2003/tariff/models"
)

// VectorRecord is a chunk paired with its embedding.
type VectorRecord struct {
	Chunk  models.TextChunk
	Vector []float32
}

// VectorCollection is one named similarity index.
type VectorCollection interface {
	Name() string
	Count(ctx context.Context) (int, error)
	// Add upserts records by chunk id.
	Add(ctx context.Context, records []VectorRecord) error
	// Query returns up to k chunks, most similar first.
	Query(ctx context.Context, vector []float32, k int) ([]models.TextChunk, error)
}

// VectorBackend owns named collections in a vector store.
type VectorBackend interface {
	// Lookup returns a persisted collection that already holds vectors.
	// found is false when the collection is missing or empty.
	Lookup(ctx context.Context, name string) (col VectorCollection, found bool, err error)
	// Create makes a collection for vectors of the given dimension,
	// reopening it if it already exists.
	Create(ctx context.Context, name string, dimension int) (VectorCollection, error)
	Close() error
}

// CollectionName derives the persisted collection name of a country.
// Characters vector stores reject in names become underscores; when that
// happens a hash of the key is appended so distinct countries never share
// a collection.
func CollectionName(prefix, country string) string {
	key := NormalizeCountry(country)
	var sb strings.Builder
	sb.WriteString(prefix)
	replaced := false
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
			replaced = true
		}
	}
	if replaced {
		h := fnv.New32a()
		_, _ = h.Write([]byte(key))
		fmt.Fprintf(&sb, "_%08x", h.Sum32())
	}
	return sb.String()
}

// NormalizeCountry returns the case-insensitive registry key of a country.
func NormalizeCountry(country string) string {
	return strings.ToLower(strings.TrimSpace(country))
}
