package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jinford/portfolio-rag/internal/core/ingestion"
)

const (
	// DefaultBatchTokenBudget は1回のEmbedding APIリクエストに詰めるトークン数の上限
	DefaultBatchTokenBudget = 100_000
)

// TokenCounter はバッチ分割のためのトークン数カウンター
type TokenCounter interface {
	Count(text string) int
}

// Builder は全チャンクをEmbedding化して新しい世代としてVectorStoreに格納する。
// いずれかのバッチでEmbedding生成に失敗した場合は構築全体を失敗させ、
// 部分的なインデックスは一切公開しない。
type Builder struct {
	embedder         Embedder
	store            VectorStore
	tokenCounter     TokenCounter
	batchTokenBudget int
	logger           *slog.Logger
}

type builderOptions struct {
	batchTokenBudget int
	logger           *slog.Logger
}

// BuilderOption は Builder のオプション設定
type BuilderOption func(*builderOptions)

// WithBuilderLogger は Builder にロガーを設定する
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(o *builderOptions) {
		o.logger = logger
	}
}

// WithBatchTokenBudget はバッチあたりのトークン予算を上書きする
func WithBatchTokenBudget(budget int) BuilderOption {
	return func(o *builderOptions) {
		o.batchTokenBudget = budget
	}
}

// NewBuilder は新しいBuilderを作成する
func NewBuilder(embedder Embedder, store VectorStore, tokenCounter TokenCounter, opts ...BuilderOption) *Builder {
	options := builderOptions{
		batchTokenBudget: DefaultBatchTokenBudget,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.batchTokenBudget <= 0 {
		options.batchTokenBudget = DefaultBatchTokenBudget
	}

	return &Builder{
		embedder:         embedder,
		store:            store,
		tokenCounter:     tokenCounter,
		batchTokenBudget: options.batchTokenBudget,
		logger:           options.logger,
	}
}

// Build は全チャンクをEmbedding化し、新しい世代のIndexを返す。
// 返されたIndexはまだアクティブではない。呼び出し側が参照を差し替えることで
// 世代交代が完了する（build-then-swap）。
func (b *Builder) Build(ctx context.Context, chunks []ingestion.Chunk) (*Index, error) {
	generation := uuid.New()

	vectors := make([][]float32, 0, len(chunks))
	batches := b.splitBatches(chunks)
	for i, batch := range batches {
		texts := make([]string, len(batch))
		for j, chunk := range batch {
			texts[j] = chunk.Text
		}

		embeddings, err := b.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d/%d: %w", i+1, len(batches), err)
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch in batch %d: want %d, got %d", i+1, len(batch), len(embeddings))
		}
		vectors = append(vectors, embeddings...)
	}

	if err := b.store.StoreGeneration(ctx, generation, chunks, vectors); err != nil {
		return nil, fmt.Errorf("failed to store index generation: %w", err)
	}

	b.logger.Info("インデックス世代を構築",
		"generation", generation.String(),
		"chunks", len(chunks),
		"batches", len(batches),
	)

	return &Index{
		generation: generation,
		chunkCount: len(chunks),
		embedder:   b.embedder,
		store:      b.store,
	}, nil
}

// splitBatches はチャンク列をEmbedderの最大バッチ件数とトークン予算の
// 両方に収まるバッチへ分割する。単体で予算を超えるチャンクは単独バッチになる。
func (b *Builder) splitBatches(chunks []ingestion.Chunk) [][]ingestion.Chunk {
	if len(chunks) == 0 {
		return nil
	}

	maxItems := b.embedder.MaxBatchSize()
	if maxItems <= 0 {
		maxItems = 1
	}

	var batches [][]ingestion.Chunk
	var current []ingestion.Chunk
	currentTokens := 0

	for _, chunk := range chunks {
		tokens := b.tokenCounter.Count(chunk.Text)
		if len(current) > 0 && (len(current) >= maxItems || currentTokens+tokens > b.batchTokenBudget) {
			batches = append(batches, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, chunk)
		currentTokens += tokens
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
