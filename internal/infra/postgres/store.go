package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/portfolio-rag/internal/core/index"
	"github.com/jinford/portfolio-rag/internal/core/ingestion"
)

// Store はPostgreSQL + pgvectorによるVectorStore実装。
// 世代ごとにチャンクとベクトルを保持し、コサイン距離で近傍検索する。
// MVCCにより、検索中に別世代が削除されても進行中のクエリは影響を受けない
type Store struct {
	pool      *pgxpool.Pool
	dimension int
}

// NewStore は新しい Store を作成する
func NewStore(pool *pgxpool.Pool, dimension int) *Store {
	return &Store{
		pool:      pool,
		dimension: dimension,
	}
}

// EnsureSchema はテーブルとインデックスを作成する。冪等
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS portfolio_chunks (
			id BIGSERIAL PRIMARY KEY,
			generation UUID NOT NULL,
			source_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.dimension),
		`CREATE INDEX IF NOT EXISTS idx_portfolio_chunks_generation ON portfolio_chunks (generation)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// StoreGeneration は index.VectorStore の実装。
// 1世代分のチャンクを単一トランザクションで格納する。
// 途中で失敗した場合はロールバックされ、部分的な世代は残らない
func (s *Store) StoreGeneration(ctx context.Context, generation uuid.UUID, chunks []ingestion.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		batch.Queue(
			`INSERT INTO portfolio_chunks (generation, source_id, ordinal, content, embedding) VALUES ($1, $2, $3, $4, $5)`,
			generation,
			chunk.SourceID,
			chunk.Ordinal,
			chunk.Text,
			pgvector.NewVector(vectors[i]),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit generation: %w", err)
	}
	return nil
}

// Search は index.VectorStore の実装。
// コサイン距離の昇順、同距離なら挿入順で返す。スコアは 1 - 距離
func (s *Store) Search(ctx context.Context, generation uuid.UUID, vector []float32, limit int) ([]index.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT source_id, ordinal, content, embedding <=> $2 AS distance
		 FROM portfolio_chunks
		 WHERE generation = $1
		 ORDER BY distance, id
		 LIMIT $3`,
		generation,
		pgvector.NewVector(vector),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var results []index.ScoredChunk
	for rows.Next() {
		var chunk ingestion.Chunk
		var distance float64
		if err := rows.Scan(&chunk.SourceID, &chunk.Ordinal, &chunk.Text, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		results = append(results, index.ScoredChunk{
			Chunk: chunk,
			Score: 1 - distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}

	return results, nil
}

// PruneGenerations は index.VectorStore の実装。keep に含まれない世代を削除する
func (s *Store) PruneGenerations(ctx context.Context, keep ...uuid.UUID) error {
	keepIDs := make([]string, len(keep))
	for i, gen := range keep {
		keepIDs[i] = gen.String()
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM portfolio_chunks WHERE NOT (generation = ANY($1::uuid[]))`, keepIDs); err != nil {
		return fmt.Errorf("failed to prune generations: %w", err)
	}
	return nil
}

// インターフェース実装の確認
var _ index.VectorStore = (*Store)(nil)
