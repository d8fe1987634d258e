package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/portfolio-rag/internal/core/index"
)

const DefaultTopK = 3

// CompletionClient はプロンプトから回答テキストを生成するLLMクライアント
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Retriever は質問文に関連するチャンクを検索する。*index.Index が実装する
type Retriever interface {
	Search(ctx context.Context, question string, k int) ([]index.ScoredChunk, error)
}

// AnswerResult は1回の回答生成の結果
type AnswerResult struct {
	Answer    string
	SourceIDs []string
}

type answerOptions struct {
	topK   int
	logger *slog.Logger
}

type AnswerOption func(*answerOptions)

// WithTopK は検索で取得するチャンク数を設定する
func WithTopK(k int) AnswerOption {
	return func(o *answerOptions) {
		o.topK = k
	}
}

// WithAnswerLogger はロガーを設定する
func WithAnswerLogger(logger *slog.Logger) AnswerOption {
	return func(o *answerOptions) {
		o.logger = logger
	}
}

// AnswerService は検索とLLM呼び出しを組み合わせて回答を生成する
type AnswerService struct {
	completion CompletionClient
	topK       int
	logger     *slog.Logger
}

// NewAnswerService は新しいAnswerServiceを作成する
func NewAnswerService(completion CompletionClient, opts ...AnswerOption) *AnswerService {
	options := answerOptions{
		topK:   DefaultTopK,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &AnswerService{
		completion: completion,
		topK:       options.topK,
		logger:     options.logger,
	}
}

// Answer は質問に対する回答を生成する。
// 検索結果が空の場合もLLMは呼び出され、コンテキストなしで回答する。
// セッション履歴は読み取るだけで、追記は呼び出し側の責務。
func (s *AnswerService) Answer(ctx context.Context, retriever Retriever, question string, history []Turn) (*AnswerResult, error) {
	chunks, err := retriever.Search(ctx, question, s.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search relevant chunks: %w", err)
	}

	prompt := BuildChatPrompt(question, history, chunks)

	answer, err := s.completion.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	s.logger.Debug("回答を生成",
		slog.Int("retrievedChunks", len(chunks)),
		slog.Int("historyTurns", len(history)),
	)

	return &AnswerResult{
		Answer:    answer,
		SourceIDs: collectSourceIDs(chunks),
	}, nil
}

// collectSourceIDs は検索結果の順序を保ったままSourceIDを重複なしで集める
func collectSourceIDs(chunks []index.ScoredChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	ids := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk.SourceID]; ok {
			continue
		}
		seen[chunk.SourceID] = struct{}{}
		ids = append(ids, chunk.SourceID)
	}
	return ids
}
