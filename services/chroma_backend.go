package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github/itish2003/tariff/models"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"go.uber.org/zap"
)

const chromaBatchSize = 100

// ChromaBackend stores country collections in a Chroma server (v2 API).
type ChromaBackend struct {
	client chromago.Client
}

func NewChromaBackend(baseURL string) (*ChromaBackend, error) {
	var opts []chromago.ClientOption
	if baseURL != "" {
		opts = append(opts, chromago.WithBaseURL(baseURL))
	}
	client, err := chromago.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create chroma client: %v", ErrIndexBackendUnavailable, err)
	}
	return &ChromaBackend{client: client}, nil
}

// Lookup gets or creates the collection and reports it found only when it
// already holds documents. Chroma has no cheap existence check, so an
// empty collection may be left behind; Create reuses it.
func (b *ChromaBackend) Lookup(ctx context.Context, name string) (VectorCollection, bool, error) {
	col, err := b.getOrCreate(ctx, name)
	if err != nil {
		return nil, false, err
	}
	count, err := col.Count(ctx)
	if err != nil {
		return nil, false, err
	}
	if count == 0 {
		return nil, false, nil
	}
	return col, true, nil
}

func (b *ChromaBackend) Create(ctx context.Context, name string, dimension int) (VectorCollection, error) {
	return b.getOrCreate(ctx, name)
}

func (b *ChromaBackend) Close() error {
	return b.client.Close()
}

func (b *ChromaBackend) getOrCreate(ctx context.Context, name string) (*chromaCollection, error) {
	zap.L().Debug("getting or creating chroma collection", zap.String("collection", name))
	col, err := b.client.GetOrCreateCollection(
		ctx,
		name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "tariff classification documents"),
				chromago.NewStringAttribute("created_by", "tariff_registry"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: get or create collection %s: %v", ErrIndexBackendUnavailable, name, err)
	}
	return &chromaCollection{name: name, col: col}, nil
}

type chromaCollection struct {
	name string
	col  chromago.Collection
}

func (c *chromaCollection) Name() string { return c.name }

func (c *chromaCollection) Count(ctx context.Context) (int, error) {
	count, err := c.col.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count items in collection %s: %v", ErrIndexBackendUnavailable, c.name, err)
	}
	return int(count), nil
}

func (c *chromaCollection) Add(ctx context.Context, records []VectorRecord) error {
	for start := 0; start < len(records); start += chromaBatchSize {
		end := min(start+chromaBatchSize, len(records))
		batch := records[start:end]

		ids := make([]chromago.DocumentID, 0, len(batch))
		texts := make([]string, 0, len(batch))
		embs := make([]embeddings.Embedding, 0, len(batch))
		metas := make([]chromago.DocumentMetadata, 0, len(batch))
		for _, r := range batch {
			ids = append(ids, chromago.DocumentID(r.Chunk.ID))
			texts = append(texts, r.Chunk.Text)
			embs = append(embs, embeddings.NewEmbeddingFromFloat32(r.Vector))
			metas = append(metas, chromaMetadata(r.Chunk))
		}

		err := c.col.Upsert(ctx,
			chromago.WithIDs(ids...),
			chromago.WithTexts(texts...),
			chromago.WithEmbeddings(embs...),
			chromago.WithMetadatas(metas...),
		)
		if err != nil {
			return fmt.Errorf("%w: failed to add chunks to chromadb: %v", ErrIndexBackendUnavailable, err)
		}
	}
	return nil
}

func (c *chromaCollection) Query(ctx context.Context, vector []float32, k int) ([]models.TextChunk, error) {
	results, err := c.col.Query(
		ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chromago.WithNResults(k),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query chromadb: %v", ErrIndexBackendUnavailable, err)
	}

	var chunks []models.TextChunk
	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	if len(documentGroups) == 0 {
		return chunks, nil
	}
	for i, doc := range documentGroups[0] {
		text := doc.ContentString()
		if text == "" {
			continue
		}
		var meta map[string]any
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) && metadataGroups[0][i] != nil {
			meta = metadataToMap(metadataGroups[0][i])
		}
		chunks = append(chunks, models.ChunkFromMetadata("", text, meta))
	}
	return chunks, nil
}

func chromaMetadata(chunk models.TextChunk) chromago.DocumentMetadata {
	attrs := make([]*chromago.MetaAttribute, 0, 4)
	for key, value := range chunk.Metadata() {
		switch v := value.(type) {
		case string:
			attrs = append(attrs, chromago.NewStringAttribute(key, v))
		case int64:
			attrs = append(attrs, chromago.NewIntAttribute(key, v))
		}
	}
	return chromago.NewDocumentMetadata(attrs...)
}

// metadataToMap converts chroma metadata through JSON; DocumentMetadata has
// no accessor for the full key set.
func metadataToMap(meta chromago.DocumentMetadata) map[string]any {
	jsonBytes, err := json.Marshal(meta)
	if err != nil {
		zap.L().Warn("could not marshal chroma metadata", zap.Error(err))
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(jsonBytes, &out); err != nil {
		zap.L().Warn("could not unmarshal chroma metadata", zap.Error(err))
		return nil
	}
	return out
}
