package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/metrics"
	"github.com/akolanti/StudyMentor/internal/rag/embedding"
	"github.com/akolanti/StudyMentor/internal/rag/vectorDB"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
)

// Locker serializes writers per name. Both store.RedisLock and store.KeyedMutex satisfy it.
type Locker interface {
	Lock(ctx context.Context, name string) (unlock func(), err error)
}

type Indexer struct {
	embedder  embedding.Embedder
	vectorDB  vectorDB.VectorStore
	locker    Locker
	batchSize int
	topK      int
	now       func() time.Time
	logger    *logger_i.Logger
}

func NewIndexer(e embedding.Embedder, v vectorDB.VectorStore, l Locker) *Indexer {
	return &Indexer{
		embedder:  e,
		vectorDB:  v,
		locker:    l,
		batchSize: config.EmbeddingBatchSize,
		topK:      config.SearchTopK,
		now:       time.Now,
		logger:    logger_i.NewLogger("Corpus Indexer"),
	}
}

// Index appends text to the user's collection and returns the number of chunks written.
// Re-indexing the same text appends again; nothing is deduplicated.
func (ix *Indexer) Index(ctx context.Context, userId string, text string) (chunksWritten int, err error) {
	const op = "index"
	log := ix.logger.WithTrace(ctx).With("userId", userId)
	start := time.Now()
	defer func() {
		metrics.CaptureExecutionMetrics(op, time.Since(start))
		log.Info("index call finished", "chunks", chunksWritten, "elapsed", time.Since(start), "failed", err != nil)
	}()

	if userId == "" {
		return 0, apperr.Validation(op, "user id is required")
	}
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}

	unlock, err := ix.locker.Lock(ctx, "index:"+userId)
	if err != nil {
		return 0, apperr.ForUser(asBackend(op, err, "could not acquire collection lock"), userId)
	}
	defer unlock()

	collection := commonModels.CollectionName(userId)
	if err := ix.vectorDB.EnsureCollection(ctx, collection); err != nil {
		return 0, apperr.ForUser(asBackend(op, err, "collection unavailable"), userId)
	}

	chunks := PrepareChunks(splitTextIntoChunks(text, config.ChunkSize, config.ChunkOverlap), userId, ix.now())
	log.Debug("indexing chunks", "chunks", len(chunks), "collection", collection)
	if err := BatchIngest(ctx, collection, chunks, ix.batchSize, ix.vectorDB, ix.embedder); err != nil {
		return 0, apperr.ForUser(asBackend(op, err, "indexing failed"), userId)
	}
	return len(chunks), nil
}

// Query returns up to topK chunks ranked from 1.
func (ix *Indexer) Query(ctx context.Context, userId string, query string) ([]commonModels.SearchHit, error) {
	const op = "query"
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics(op, time.Since(start)) }()

	if userId == "" {
		return nil, apperr.Validation(op, "user id is required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Validation(op, "query is required")
	}

	collection := commonModels.CollectionName(userId)
	if err := ix.vectorDB.EnsureCollection(ctx, collection); err != nil {
		return nil, apperr.ForUser(asBackend(op, err, "collection unavailable"), userId)
	}
	vector, err := ix.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, apperr.ForUser(asBackend(op, err, "query embedding failed"), userId)
	}
	found, err := ix.vectorDB.Search(ctx, collection, vector, ix.topK)
	if err != nil {
		return nil, apperr.ForUser(asBackend(op, err, "similarity search failed"), userId)
	}

	hits := make([]commonModels.SearchHit, 0, len(found))
	for i, c := range found {
		if i == ix.topK {
			break
		}
		hits = append(hits, commonModels.SearchHit{Rank: i + 1, Content: c.Chunk})
	}
	return hits, nil
}

// asBackend keeps classified errors and treats everything else as a backend failure.
func asBackend(op string, err error, msg string) error {
	var classified *apperr.Error
	if errors.As(err, &classified) {
		return err
	}
	return apperr.BackendUnavailable(op, err, "%s", msg)
}
