package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/data/store"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
)

// --- Mocks ---

type mockEmbedder struct {
	OnBatch func(ctx context.Context, chunks []string) ([][]float32, error)
	OnQuery func(ctx context.Context, q string) ([]float32, error)
}

func (m *mockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	return m.OnQuery(ctx, query)
}
func (m *mockEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	return m.OnBatch(ctx, chunks)
}

// memoryVectorDB appends like a real collection and records what it saw.
type memoryVectorDB struct {
	mu          sync.Mutex
	collections map[string][]commonModels.DocChunk
	ensured     int
	inFlight    int
	maxInFlight int
	OnUpsert    func(coll string, chunks []commonModels.DocChunk) error
	OnSearch    func(coll string, topK int) ([]commonModels.DocChunk, error)
}

func newMemoryVectorDB() *memoryVectorDB {
	return &memoryVectorDB{collections: map[string][]commonModels.DocChunk{}}
}

func (m *memoryVectorDB) EnsureCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensured++
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = nil
	}
	return nil
}

func (m *memoryVectorDB) Upsert(ctx context.Context, coll string, chunks []commonModels.DocChunk, vectors [][]float32) error {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.mu.Unlock()
	time.Sleep(2 * time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
	if m.OnUpsert != nil {
		if err := m.OnUpsert(coll, chunks); err != nil {
			return err
		}
	}
	m.collections[coll] = append(m.collections[coll], chunks...)
	return nil
}

func (m *memoryVectorDB) Search(ctx context.Context, coll string, vector []float32, topK int) ([]commonModels.DocChunk, error) {
	if m.OnSearch != nil {
		return m.OnSearch(coll, topK)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collections[coll]
	if len(c) > topK {
		c = c[:topK]
	}
	return c, nil
}

func okEmbedder() *mockEmbedder {
	return &mockEmbedder{
		OnBatch: func(ctx context.Context, ch []string) ([][]float32, error) {
			return make([][]float32, len(ch)), nil
		},
		OnQuery: func(ctx context.Context, q string) ([]float32, error) {
			return []float32{1}, nil
		},
	}
}

// --- Splitter ---

func TestSplitTextIntoChunks_ExactOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 250) // 2500 runes

	chunks := splitTextIntoChunks(text, 1000, 200)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i := 0; i+1 < len(chunks); i++ {
		prev, next := []rune(chunks[i]), []rune(chunks[i+1])
		if len(prev) != 1000 {
			t.Errorf("chunk %d has %d runes, want 1000", i, len(prev))
		}
		if string(prev[len(prev)-200:]) != string(next[:200]) {
			t.Errorf("chunks %d and %d do not overlap by 200", i, i+1)
		}
	}
	if got := len([]rune(chunks[2])); got != 900 {
		t.Errorf("last chunk has %d runes, want 900", got)
	}
}

func TestSplitTextIntoChunks_Runes(t *testing.T) {
	text := strings.Repeat("세포", 600) // 1200 runes, multi-byte

	chunks := splitTextIntoChunks(text, 1000, 200)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if string([]rune(chunks[0])[800:]) != string([]rune(chunks[1])[:200]) {
		t.Error("overlap must be measured in characters, not bytes")
	}
}

func TestSplitTextIntoChunks_Small(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"short", "one fact", 1},
		{"exactly limit", strings.Repeat("x", 1000), 1},
		{"one over", strings.Repeat("x", 1001), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(splitTextIntoChunks(tt.text, 1000, 200)); got != tt.want {
				t.Errorf("got %d chunks, want %d", got, tt.want)
			}
		})
	}
}

// --- BatchIngest ---

func TestBatchIngest(t *testing.T) {
	chunks := PrepareChunks(make([]string, 150), "u1", time.Now()) // 100 + 50
	vDB := newMemoryVectorDB()
	calls := 0
	vDB.OnUpsert = func(coll string, c []commonModels.DocChunk) error {
		calls++
		return nil
	}

	if err := BatchIngest(context.Background(), "c", chunks, 100, vDB, okEmbedder()); err != nil {
		t.Fatalf("BatchIngest failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 batches to be upserted, got %d", calls)
	}
}

func TestBatchIngest_Error(t *testing.T) {
	vDB := newMemoryVectorDB()
	vDB.OnUpsert = func(coll string, c []commonModels.DocChunk) error { return errors.New("upsert failed") }

	err := BatchIngest(context.Background(), "c", PrepareChunks([]string{"hi"}, "u1", time.Now()), 100, vDB, okEmbedder())
	if err == nil {
		t.Error("Expected error from BatchIngest, got nil")
	}
}

func TestPrepareChunks(t *testing.T) {
	at := time.Unix(1700000000, 0)
	chunks := PrepareChunks([]string{"one", "two"}, "u1", at)

	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].ChunkOrder != 1 || chunks[1].UserId != "u1" || !chunks[1].IngestedAt.Equal(at) {
		t.Errorf("Metadata mismatch in chunk 1: %+v", chunks[1])
	}
	if chunks[0].ChunkId == "" || chunks[0].ChunkId == chunks[1].ChunkId {
		t.Error("chunk ids must be unique")
	}
}

// --- Indexer ---

func TestIndex_AppendsOnReindex(t *testing.T) {
	vDB := newMemoryVectorDB()
	ix := NewIndexer(okEmbedder(), vDB, store.NewKeyedMutex())
	text := strings.Repeat("z", 1500)

	for i := 0; i < 2; i++ {
		n, err := ix.Index(context.Background(), "u1", text)
		if err != nil {
			t.Fatalf("Index #%d failed: %v", i, err)
		}
		if n != 2 {
			t.Errorf("Index #%d wrote %d chunks, want 2", i, n)
		}
	}
	if got := len(vDB.collections["user_u1_collection"]); got != 4 {
		t.Errorf("collection holds %d chunks, want 4", got)
	}
}

func TestIndex_SameUserSerialized(t *testing.T) {
	vDB := newMemoryVectorDB()
	ix := NewIndexer(okEmbedder(), vDB, store.NewKeyedMutex())
	ix.batchSize = 1

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ix.Index(context.Background(), "u1", strings.Repeat("q", 2000)); err != nil {
				t.Errorf("Index failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if vDB.maxInFlight != 1 {
		t.Errorf("same-user writes overlapped: max in flight %d", vDB.maxInFlight)
	}
	if got := len(vDB.collections["user_u1_collection"]); got != 12 {
		t.Errorf("collection holds %d chunks, want 12", got)
	}
}

func TestIndex_ErrorsTaggedWithUser(t *testing.T) {
	emb := okEmbedder()
	emb.OnBatch = func(ctx context.Context, ch []string) ([][]float32, error) {
		return nil, errors.New("quota exceeded")
	}
	ix := NewIndexer(emb, newMemoryVectorDB(), store.NewKeyedMutex())

	_, err := ix.Index(context.Background(), "u42", "some text")

	var e *apperr.Error
	if !errors.As(err, &e) {
		t.Fatalf("want *apperr.Error, got %v", err)
	}
	if e.UserID != "u42" || e.Kind != apperr.KindBackendUnavailable {
		t.Errorf("unexpected error %+v", e)
	}
}

func TestIndex_Validation(t *testing.T) {
	ix := NewIndexer(okEmbedder(), newMemoryVectorDB(), store.NewKeyedMutex())
	if _, err := ix.Index(context.Background(), "", "text"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("missing user id: got %v", err)
	}
	n, err := ix.Index(context.Background(), "u1", "   ")
	if err != nil || n != 0 {
		t.Errorf("blank text: got %d, %v", n, err)
	}
}

func TestQuery_RanksFromOne(t *testing.T) {
	vDB := newMemoryVectorDB()
	var gotTopK int
	vDB.OnSearch = func(coll string, topK int) ([]commonModels.DocChunk, error) {
		gotTopK = topK
		return []commonModels.DocChunk{{Chunk: "best"}, {Chunk: "next"}, {Chunk: "third"}}, nil
	}
	ix := NewIndexer(okEmbedder(), vDB, store.NewKeyedMutex())

	hits, err := ix.Query(context.Background(), "u1", "what is ATP?")
	if err != nil {
		t.Fatal(err)
	}
	if gotTopK != config.SearchTopK {
		t.Errorf("topK got %d, want %d", gotTopK, config.SearchTopK)
	}
	want := []commonModels.SearchHit{{Rank: 1, Content: "best"}, {Rank: 2, Content: "next"}, {Rank: 3, Content: "third"}}
	for i := range want {
		if hits[i] != want[i] {
			t.Errorf("hit %d got %+v, want %+v", i, hits[i], want[i])
		}
	}
}

func TestQuery_EmptyCollection(t *testing.T) {
	ix := NewIndexer(okEmbedder(), newMemoryVectorDB(), store.NewKeyedMutex())
	hits, err := ix.Query(context.Background(), "new-user", "anything")
	if err != nil || len(hits) != 0 {
		t.Errorf("got %v, %v", hits, err)
	}
}
