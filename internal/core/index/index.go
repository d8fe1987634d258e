package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jinford/portfolio-rag/internal/core/ingestion"
)

var (
	// ErrGenerationNotFound は存在しない世代への検索要求のエラー
	ErrGenerationNotFound = errors.New("index generation not found")
)

// Embedder はテキストのEmbedding生成インターフェース。
// インデックス構築とクエリで必ず同一の実装を使うこと。
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)

	// BatchEmbed はバッチでEmbeddingを生成する
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension はEmbeddingベクトルの次元数を返す
	Dimension() int

	// MaxBatchSize は1回のAPI呼び出しで処理できる最大件数を返す
	MaxBatchSize() int
}

// ScoredChunk は類似度スコア付きの検索結果チャンクを表す
type ScoredChunk struct {
	ingestion.Chunk
	Score float64
}

// VectorStore は世代単位のベクトル永続化の契約。
// 1回のインデックス構築は新しい世代として丸ごと格納され、
// 切り替え後に古い世代がまとめて破棄される。
type VectorStore interface {
	// StoreGeneration はチャンクとベクトルを新しい世代として格納する。
	// 全件が格納されるまで他の世代からは観測されない。
	StoreGeneration(ctx context.Context, generation uuid.UUID, chunks []ingestion.Chunk, vectors [][]float32) error

	// Search は指定世代の中からクエリベクトルに近い順に最大 limit 件を返す。
	// 同スコアの場合は格納順（チャンクの元の並び）を維持する。
	Search(ctx context.Context, generation uuid.UUID, vector []float32, limit int) ([]ScoredChunk, error)

	// PruneGenerations は keep に含まれない全世代を破棄する。
	// 世代交代の直後は新旧両方の世代を残し、旧世代を参照中の検索を保護する。
	PruneGenerations(ctx context.Context, keep ...uuid.UUID) error
}

// Index は1世代分の検索可能なスナップショットを表す。
// 再構築では新しいIndexが作られ、参照の差し替えで世代交代する。
// Index自体は構築後に変更されない。
type Index struct {
	generation uuid.UUID
	chunkCount int
	embedder   Embedder
	store      VectorStore
}

// Generation は世代識別子を返す
func (idx *Index) Generation() uuid.UUID {
	return idx.generation
}

// ChunkCount はこの世代に含まれるチャンク数を返す
func (idx *Index) ChunkCount() int {
	return idx.chunkCount
}

// Search は質問文をこの世代と同じEmbedderでベクトル化し、
// 類似度の高い順に最大 k 件のチャンクを返す。
// 世代が空の場合はエラーではなく空の結果を返す。
func (idx *Index) Search(ctx context.Context, question string, k int) ([]ScoredChunk, error) {
	if idx.chunkCount == 0 {
		return nil, nil
	}
	if k <= 0 {
		return nil, nil
	}

	vector, err := idx.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := idx.store.Search(ctx, idx.generation, vector, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	return results, nil
}
