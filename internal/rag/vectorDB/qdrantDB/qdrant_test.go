package qdrantDB

import (
	"testing"
	"time"

	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/qdrant/go-client/qdrant"
)

func vec(v float32) []float32 {
	out := make([]float32, dimension)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestToPoints(t *testing.T) {
	ingested := time.Unix(1700000000, 0)
	chunks := []commonModels.DocChunk{
		{ChunkId: "6f1c1e2a-0000-4000-8000-000000000001", UserId: "u1", Chunk: "alpha", ChunkOrder: 0, IngestedAt: ingested},
		{ChunkId: "6f1c1e2a-0000-4000-8000-000000000002", UserId: "u1", Chunk: "beta", ChunkOrder: 1, IngestedAt: ingested},
	}

	points, err := toPoints(chunks, [][]float32{vec(0.1), vec(0.2)})
	if err != nil {
		t.Fatalf("toPoints failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if got := points[1].Payload["content"].GetStringValue(); got != "beta" {
		t.Errorf("content payload got %q", got)
	}
	if got := points[1].Payload["chunk_order"].GetIntegerValue(); got != 1 {
		t.Errorf("chunk_order payload got %d", got)
	}
}

func TestToPoints_Mismatch(t *testing.T) {
	tests := []struct {
		name    string
		chunks  []commonModels.DocChunk
		vectors [][]float32
	}{
		{"count", []commonModels.DocChunk{{ChunkId: "a"}}, nil},
		{"dimension", []commonModels.DocChunk{{ChunkId: "a"}}, [][]float32{{1, 2, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := toPoints(tt.chunks, tt.vectors); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestFromPayloads_KeepsOrder(t *testing.T) {
	hits := []*qdrant.ScoredPoint{
		{Score: 0.9, Payload: qdrant.NewValueMap(map[string]any{"content": "best", "chunk_order": int64(4), "user_id": "u1"})},
		nil,
		{Score: 0.5, Payload: qdrant.NewValueMap(map[string]any{"content": "second", "chunk_order": int64(1)})},
	}

	chunks := fromPayloads(hits)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Chunk != "best" || chunks[0].ChunkOrder != 4 || chunks[1].Chunk != "second" {
		t.Errorf("unexpected chunks %+v", chunks)
	}
}
