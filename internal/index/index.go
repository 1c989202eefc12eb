// Package index defines the interfaces and data types for the external
// vector similarity index. The core pipeline consumes the narrow Index
// interface; the HTTP API layer additionally uses Admin for collection
// lifecycle management. The concrete implementation (Qdrant) satisfies both,
// so nothing above this package depends on a specific backend.
package index

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned by EnsureCollection when the collection
// already exists with a different vector dimensionality than requested.
// This is a fatal configuration error: embedding into a collection created
// for another model silently corrupts every similarity score.
var ErrDimensionMismatch = errors.New("collection dimensionality mismatch")

// Payload is the durable per-chunk metadata stored alongside each vector.
// This shape is the only externally persistent format the service defines —
// it must remain stable across embedding backend swaps so previously
// ingested data stays queryable.
type Payload struct {
	// Title is the document title supplied at ingestion.
	Title string

	// ChunkIndex is the chunk's 0-based position within its document.
	ChunkIndex int

	// Text is the chunk content, cited verbatim in answers.
	Text string

	// Source labels how the document entered the system (e.g. "pasted_text").
	Source string
}

// StoredPoint is one embedded chunk as persisted in the vector index.
// Points are never mutated after creation — re-ingesting a document inserts
// new points under fresh IDs.
type StoredPoint struct {
	// ID is the point's UUID.
	ID string

	// Vector is the chunk's embedding.
	Vector []float32

	// Payload is the chunk metadata.
	Payload Payload
}

// SearchHit is one nearest-neighbour result from a vector query. Score is
// the index's own similarity metric — the reranker recomputes a more precise
// score and supersedes it.
type SearchHit struct {
	// ID is the matched point's UUID.
	ID string

	// Score is the index-native similarity score for the query.
	Score float32

	// Payload is the stored chunk metadata.
	Payload Payload
}

// Index is the narrow interface the ingestion and answering pipelines
// consume. Implementations must be safe to call from multiple goroutines.
type Index interface {
	// EnsureCollection creates the collection with the given vector
	// dimensionality (cosine distance) if it does not exist. Idempotent when
	// the existing collection matches; returns ErrDimensionMismatch when it
	// was created with a different dimensionality.
	EnsureCollection(ctx context.Context, dim int) error

	// Upsert stores a batch of points in one call.
	Upsert(ctx context.Context, points []StoredPoint) error

	// Query returns the top-limit nearest neighbours of vector.
	Query(ctx context.Context, vector []float32, limit int) ([]SearchHit, error)
}

// CollectionInfo summarises a collection for the stats endpoint.
type CollectionInfo struct {
	// Collection is the collection name.
	Collection string

	// PointsCount is the number of stored points.
	PointsCount uint64
}

// Admin extends Index with the collection lifecycle operations consumed by
// the management endpoints (/init, /reset, /stats, /qdrant-check).
type Admin interface {
	Index

	// Collections lists all collection names on the backend.
	Collections(ctx context.Context) ([]string, error)

	// Info returns the configured collection's summary.
	Info(ctx context.Context) (CollectionInfo, error)

	// Reset drops and recreates the configured collection with the given
	// dimensionality, discarding all stored points.
	Reset(ctx context.Context, dim int) error

	// Ping checks backend reachability.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
