package services

import (
	"context"
	"fmt"

	"github/itish2003/tariff/models"

	"github.com/qdrant/go-client/qdrant"
)

const (
	qdrantBatchSize  = 128
	qdrantContentKey = "page_content"
)

type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// QdrantBackend stores country collections in Qdrant over gRPC.
type QdrantBackend struct {
	client *qdrant.Client
}

func NewQdrantBackend(cfg QdrantConfig) (*QdrantBackend, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant connect: %v", ErrIndexBackendUnavailable, err)
	}
	return &QdrantBackend{client: client}, nil
}

func (b *QdrantBackend) Lookup(ctx context.Context, name string) (VectorCollection, bool, error) {
	exists, err := b.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("%w: qdrant collection exists %s: %v", ErrIndexBackendUnavailable, name, err)
	}
	if !exists {
		return nil, false, nil
	}
	col := &qdrantCollection{name: name, client: b.client}
	count, err := col.Count(ctx)
	if err != nil {
		return nil, false, err
	}
	if count == 0 {
		return nil, false, nil
	}
	return col, true, nil
}

func (b *QdrantBackend) Create(ctx context.Context, name string, dimension int) (VectorCollection, error) {
	exists, err := b.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant collection exists %s: %v", ErrIndexBackendUnavailable, name, err)
	}
	if !exists {
		err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: qdrant create collection %s: %v", ErrIndexBackendUnavailable, name, err)
		}
	}
	return &qdrantCollection{name: name, client: b.client}, nil
}

func (b *QdrantBackend) Close() error {
	return b.client.Close()
}

type qdrantCollection struct {
	name   string
	client *qdrant.Client
}

func (c *qdrantCollection) Name() string { return c.name }

func (c *qdrantCollection) Count(ctx context.Context) (int, error) {
	n, err := c.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: c.name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: qdrant count %s: %v", ErrIndexBackendUnavailable, c.name, err)
	}
	return int(n), nil
}

func (c *qdrantCollection) Add(ctx context.Context, records []VectorRecord) error {
	for start := 0; start < len(records); start += qdrantBatchSize {
		end := min(start+qdrantBatchSize, len(records))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, r := range records[start:end] {
			payload := r.Chunk.Metadata()
			payload[qdrantContentKey] = r.Chunk.Text
			values, err := qdrant.TryValueMap(payload)
			if err != nil {
				return fmt.Errorf("qdrant payload for %s: %w", r.Chunk.ID, err)
			}
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(r.Chunk.ID),
				Vectors: qdrant.NewVectorsDense(r.Vector),
				Payload: values,
			})
		}
		_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: c.name,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("%w: qdrant upsert %s: %v", ErrIndexBackendUnavailable, c.name, err)
		}
	}
	return nil
}

func (c *qdrantCollection) Query(ctx context.Context, vector []float32, k int) ([]models.TextChunk, error) {
	points, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant query %s: %v", ErrIndexBackendUnavailable, c.name, err)
	}

	chunks := make([]models.TextChunk, 0, len(points))
	for _, pt := range points {
		meta := make(map[string]any, len(pt.Payload))
		text := ""
		for key, v := range pt.Payload {
			switch key {
			case qdrantContentKey:
				text = v.GetStringValue()
			case "page", "chunk_num":
				meta[key] = v.GetIntegerValue()
			default:
				meta[key] = v.GetStringValue()
			}
		}
		chunks = append(chunks, models.ChunkFromMetadata(pt.GetId().GetUuid(), text, meta))
	}
	return chunks, nil
}
