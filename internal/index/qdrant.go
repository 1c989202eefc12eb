package index

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Payload field names as stored in Qdrant.
const (
	fieldTitle      = "title"
	fieldChunkIndex = "chunk_index"
	fieldText       = "text"
	fieldSource     = "source"
)

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements Admin backed by a Qdrant instance.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrantIndex connects to Qdrant and returns a ready-to-use index.
// The collection is NOT created here — callers ensure it lazily with the
// embedder's dimensionality, so the connection can be established before the
// embedding backend is chosen.
func NewQdrantIndex(cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantIndex{client: client, cfg: cfg}, nil
}

// Collection returns the configured collection name.
func (s *QdrantIndex) Collection() string { return s.cfg.Collection }

// EnsureCollection creates the collection with cosine distance if it does
// not already exist. When the collection exists, its stored vector size is
// compared against dim; a mismatch returns ErrDimensionMismatch rather than
// silently proceeding.
func (s *QdrantIndex) EnsureCollection(ctx context.Context, dim int) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
		if err != nil {
			return fmt.Errorf("qdrant: failed to inspect collection %q: %w", s.cfg.Collection, err)
		}
		existing := collectionVectorSize(info)
		if existing != 0 && existing != uint64(dim) {
			return fmt.Errorf("qdrant: collection %q has vector size %d, embedder produces %d: %w",
				s.cfg.Collection, existing, dim, ErrDimensionMismatch)
		}
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// collectionVectorSize extracts the configured vector size from collection
// info, returning 0 when the config shape is not the simple single-vector
// layout this service creates.
func collectionVectorSize(info *qdrant.CollectionInfo) uint64 {
	cfg := info.GetConfig()
	if cfg == nil || cfg.GetParams() == nil {
		return 0
	}
	params := cfg.GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return 0
	}
	return params.GetSize()
}

// Upsert stores a batch of points in a single call.
func (s *QdrantIndex) Upsert(ctx context.Context, points []StoredPoint) error {
	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				fieldTitle:      p.Payload.Title,
				fieldChunkIndex: int64(p.Payload.ChunkIndex),
				fieldText:       p.Payload.Text,
				fieldSource:     p.Payload.Source,
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Query performs a cosine similarity search and returns the top-limit hits
// with their payloads.
func (s *QdrantIndex) Query(ctx context.Context, vector []float32, limit int) ([]SearchHit, error) {
	qLimit := uint64(limit)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &qLimit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hit := SearchHit{
			ID:    r.GetId().GetUuid(),
			Score: r.GetScore(),
		}
		if p := r.GetPayload(); p != nil {
			hit.Payload = Payload{
				Title:      p[fieldTitle].GetStringValue(),
				ChunkIndex: int(p[fieldChunkIndex].GetIntegerValue()),
				Text:       p[fieldText].GetStringValue(),
				Source:     p[fieldSource].GetStringValue(),
			}
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// Collections lists all collection names on the backend.
func (s *QdrantIndex) Collections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("qdrant: list collections failed: %w", err)
	}
	return names, nil
}

// Info returns the configured collection's point count.
func (s *QdrantIndex) Info(ctx context.Context) (CollectionInfo, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("qdrant: collection info failed: %w", err)
	}
	return CollectionInfo{
		Collection:  s.cfg.Collection,
		PointsCount: info.GetPointsCount(),
	}, nil
}

// Reset drops and recreates the configured collection, discarding all
// stored points.
func (s *QdrantIndex) Reset(ctx context.Context, dim int) error {
	if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
		return fmt.Errorf("qdrant: delete collection %q: %w", s.cfg.Collection, err)
	}
	return s.EnsureCollection(ctx, dim)
}

// Ping calls the Qdrant HealthCheck RPC.
func (s *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}
