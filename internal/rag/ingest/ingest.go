package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/StudyMentor/internal/adapter/utils"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/rag/embedding"
	"github.com/akolanti/StudyMentor/internal/rag/vectorDB"
)

//splitter

// splitTextIntoChunks slides a limit-rune window forward by limit-overlap runes,
// so consecutive chunks share exactly overlap runes and no boundary fact is cut in both.
func splitTextIntoChunks(text string, limit int, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= limit {
		return []string{text}
	}
	step := limit - overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + limit
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

func PrepareChunks(texts []string, userId string, ingestedAt time.Time) []commonModels.DocChunk {
	allChunks := make([]commonModels.DocChunk, 0, len(texts))
	for i, text := range texts {
		allChunks = append(allChunks, commonModels.DocChunk{
			ChunkId:    utils.GetNewUUID(),
			UserId:     userId,
			Chunk:      text,
			ChunkOrder: i,
			IngestedAt: ingestedAt,
		})
	}
	return allChunks
}

// BatchIngest embeds and upserts chunks batchSize at a time; the first failing batch stops the run.
func BatchIngest(ctx context.Context, collection string, chunks []commonModels.DocChunk, batchSize int, vectorDB vectorDB.VectorStore, embedder embedding.Embedder) error {
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		currentBatch := chunks[i:end]

		texts := make([]string, len(currentBatch))
		for j, c := range currentBatch {
			texts[j] = c.Chunk
		}

		vectors, err := embedder.BatchEmbedding(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch %d failed: %w", i/batchSize, err)
		}
		if err := vectorDB.Upsert(ctx, collection, currentBatch, vectors); err != nil {
			return fmt.Errorf("upserting batch %d failed: %w", i/batchSize, err)
		}
	}
	return nil
}
