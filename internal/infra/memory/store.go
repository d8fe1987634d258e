package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jinford/portfolio-rag/internal/core/index"
	"github.com/jinford/portfolio-rag/internal/core/ingestion"
)

// Store は世代管理付きのインメモリVectorStore実装。
// 類似度計算は全件走査のコサイン類似度で行う。
// ポートフォリオ規模のコーパス（数百チャンク程度）を前提とする。
type Store struct {
	mu          sync.RWMutex
	generations map[uuid.UUID]*generation
}

// generation は1世代分のチャンクとベクトルを保持する。格納後は変更されない。
type generation struct {
	chunks  []ingestion.Chunk
	vectors [][]float32
}

// NewStore は新しいStoreを作成する
func NewStore() *Store {
	return &Store{
		generations: make(map[uuid.UUID]*generation),
	}
}

// StoreGeneration は index.VectorStore の実装
func (s *Store) StoreGeneration(ctx context.Context, gen uuid.UUID, chunks []ingestion.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	for i := 1; i < len(vectors); i++ {
		if len(vectors[i]) != len(vectors[0]) {
			return fmt.Errorf("vector dimension mismatch at index %d: %d vs %d", i, len(vectors[i]), len(vectors[0]))
		}
	}

	// 呼び出し元のスライス変更から守るためコピーして保持する
	g := &generation{
		chunks:  append([]ingestion.Chunk(nil), chunks...),
		vectors: append([][]float32(nil), vectors...),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[gen] = g
	return nil
}

// Search は index.VectorStore の実装。
// 指定世代のスナップショットに対して検索するため、検索中に別世代が
// 格納・破棄されても結果は一貫する。
func (s *Store) Search(ctx context.Context, gen uuid.UUID, vector []float32, limit int) ([]index.ScoredChunk, error) {
	s.mu.RLock()
	g, ok := s.generations[gen]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", index.ErrGenerationNotFound, gen)
	}

	if limit <= 0 || len(g.chunks) == 0 {
		return nil, nil
	}

	scored := make([]index.ScoredChunk, len(g.chunks))
	for i := range g.chunks {
		scored[i] = index.ScoredChunk{
			Chunk: g.chunks[i],
			Score: cosineSimilarity(g.vectors[i], vector),
		}
	}

	// 同スコアは格納順を維持する
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if limit > len(scored) {
		limit = len(scored)
	}
	return scored[:limit], nil
}

// PruneGenerations は index.VectorStore の実装。
// keep に含まれない世代を破棄する。進行中の検索は取得済みのスナップショットを
// 参照し続けるため影響を受けない。
func (s *Store) PruneGenerations(ctx context.Context, keep ...uuid.UUID) error {
	keepSet := make(map[uuid.UUID]struct{}, len(keep))
	for _, gen := range keep {
		keepSet[gen] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for gen := range s.generations {
		if _, ok := keepSet[gen]; !ok {
			delete(s.generations, gen)
		}
	}
	return nil
}

// GenerationCount は保持している世代数を返す
func (s *Store) GenerationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.generations)
}

// cosineSimilarity は2つのベクトルのコサイン類似度を返す。
// いずれかがゼロベクトルの場合は0を返す。
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// インターフェース実装の確認
var _ index.VectorStore = (*Store)(nil)
