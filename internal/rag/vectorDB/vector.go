package vectorDB

import (
	"context"

	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
)

type VectorStore interface {
	// EnsureCollection is an idempotent get-or-create.
	EnsureCollection(ctx context.Context, collectionName string) error
	// Upsert appends; chunk ids are fresh per call so nothing is replaced.
	Upsert(ctx context.Context, collectionName string, chunks []commonModels.DocChunk, vectors [][]float32) error
	// Search returns at most topK chunks, most similar first.
	Search(ctx context.Context, collectionName string, vector []float32, topK int) ([]commonModels.DocChunk, error)
}
