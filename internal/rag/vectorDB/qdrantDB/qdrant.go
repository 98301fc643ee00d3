package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/metrics"
	"github.com/akolanti/StudyMentor/internal/resilience"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

var dimension = uint64(config.EmbeddingOutputDimensionality)

type Options struct {
	Host   string
	Port   int
	APIKey string
}

type ClientHolder struct {
	QObj   *qdrant.Client
	guard  *resilience.Guard
	logger *logger_i.Logger
}

func NewClient(opts Options, guard *resilience.Guard) (*ClientHolder, error) {
	if opts.Host == "" {
		opts.Host = config.QdrantHost
	}
	if opts.Port == 0 {
		opts.Port = config.QdrantGrpcPort
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     opts.Host,
		Port:     opts.Port,
		APIKey:   opts.APIKey,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		return nil, apperr.BackendUnavailable("qdrant.new", err, "could not instantiate qdrant client")
	}
	logger := logger_i.NewLogger("Qdrant")
	logger.Info("Qdrant client created", "host", opts.Host, "port", opts.Port)
	return &ClientHolder{QObj: client, guard: guard, logger: logger}, nil
}

// CloseOnDone closes the client once ctx ends.
func (db *ClientHolder) CloseOnDone(ctx context.Context) {
	<-ctx.Done()
	db.logger.Info("Shutting down Qdrant")
	if err := db.QObj.Close(); err != nil {
		db.logger.Error("could not close Qdrant: ", "error:", err)
	}
}

func (db *ClientHolder) EnsureCollection(ctx context.Context, collectionName string) error {
	const op = "qdrant.ensure_collection"
	if collectionName == "" {
		return apperr.Validation(op, "empty collection name")
	}
	_, err := resilience.Do(ctx, db.guard, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, createCollection(ctx, db.QObj, collectionName)
	})
	return err
}

func (db *ClientHolder) Upsert(ctx context.Context, collectionName string, chunks []commonModels.DocChunk, vectors [][]float32) error {
	const op = "qdrant.upsert"
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics(op, time.Since(start)) }()

	points, err := toPoints(chunks, vectors)
	if err != nil {
		return apperr.Internal(op, err)
	}
	_, err = resilience.Do(ctx, db.guard, op, func(ctx context.Context) (*qdrant.UpdateResult, error) {
		return db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collectionName,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
	})
	if err != nil {
		db.logger.WithTrace(ctx).Error("qdrant upsert failed", "collection", collectionName, "error", err)
	}
	return err
}

func (db *ClientHolder) Search(ctx context.Context, collectionName string, vector []float32, topK int) ([]commonModels.DocChunk, error) {
	const op = "qdrant.search"
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics(op, time.Since(start)) }()

	result, err := resilience.Do(ctx, db.guard, op, func(ctx context.Context) ([]*qdrant.ScoredPoint, error) {
		return db.QObj.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collectionName,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(topK)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
	})
	if err != nil {
		db.logger.WithTrace(ctx).Error("Error querying Qdrant: ", "collection", collectionName, "error:", err)
		return nil, err
	}
	return fromPayloads(result), nil
}

func toPoints(chunks []commonModels.DocChunk, vectors [][]float32) ([]*qdrant.PointStruct, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	qdrantPoints := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != int(dimension) {
			return nil, fmt.Errorf("chunk %d: vector has %d dimensions, want %d", i, len(vectors[i]), dimension)
		}
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ChunkId),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"content":     chunk.Chunk,
				"user_id":     chunk.UserId,
				"chunk_order": int64(chunk.ChunkOrder),
				"chunk_id":    chunk.ChunkId,
				"ingested_at": chunk.IngestedAt.Unix(),
			}),
		}
	}
	return qdrantPoints, nil
}

func fromPayloads(result []*qdrant.ScoredPoint) []commonModels.DocChunk {
	chunks := make([]commonModels.DocChunk, 0, len(result))
	for _, hit := range result {
		if hit == nil {
			continue
		}
		chunks = append(chunks, commonModels.DocChunk{
			ChunkId:    hit.Payload["chunk_id"].GetStringValue(),
			UserId:     hit.Payload["user_id"].GetStringValue(),
			Chunk:      hit.Payload["content"].GetStringValue(),
			ChunkOrder: int(hit.Payload["chunk_order"].GetIntegerValue()),
			IngestedAt: time.Unix(hit.Payload["ingested_at"].GetIntegerValue(), 0),
		})
	}
	return chunks
}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}
	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		// a concurrent creator may have won the race
		if ok, existsErr := client.CollectionExists(ctx, collectionName); existsErr == nil && ok {
			return nil
		}
	}
	return err
}
