package container

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jinford/portfolio-rag/internal/core/chat"
	"github.com/jinford/portfolio-rag/internal/core/index"
	"github.com/jinford/portfolio-rag/internal/core/ingestion"
	"github.com/jinford/portfolio-rag/internal/core/pipeline"
	"github.com/jinford/portfolio-rag/internal/infra/git"
	"github.com/jinford/portfolio-rag/internal/infra/local"
	"github.com/jinford/portfolio-rag/internal/infra/memory"
	"github.com/jinford/portfolio-rag/internal/infra/openai"
	"github.com/jinford/portfolio-rag/internal/infra/postgres"
	infras3 "github.com/jinford/portfolio-rag/internal/infra/s3"
	"github.com/jinford/portfolio-rag/internal/infra/tokenizer"
	"github.com/jinford/portfolio-rag/internal/platform/config"
	"github.com/jinford/portfolio-rag/internal/platform/database"
)

// ServiceContainer はアプリケーションの依存関係を保持する
type ServiceContainer struct {
	Pipeline *pipeline.Service

	logger   *slog.Logger
	database *database.DB
}

type containerOptions struct {
	logger     *slog.Logger
	source     ingestion.DocumentSource
	embedder   index.Embedder
	store      index.VectorStore
	completion chat.CompletionClient
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerSource は DocumentSource を差し替える
func WithContainerSource(source ingestion.DocumentSource) ContainerOption {
	return func(opts *containerOptions) {
		opts.source = source
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder index.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerVectorStore は VectorStore を差し替える
func WithContainerVectorStore(store index.VectorStore) ContainerOption {
	return func(opts *containerOptions) {
		opts.store = store
	}
}

// WithContainerCompletionClient は LLM クライアントを差し替える
func WithContainerCompletionClient(client chat.CompletionClient) ContainerOption {
	return func(opts *containerOptions) {
		opts.completion = client
	}
}

// NewContainer は設定からコンテナを生成する
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	container := &ServiceContainer{
		logger: options.logger,
	}

	embedder := options.embedder
	if embedder == nil {
		embedder = newEmbedder(cfg)
	}

	completion := options.completion
	if completion == nil {
		client, err := newCompletionClient(cfg)
		if err != nil {
			return nil, err
		}
		completion = client
	}

	store := options.store
	if store == nil {
		built, db, err := newVectorStore(ctx, cfg, embedder)
		if err != nil {
			return nil, err
		}
		store = built
		container.database = db
	}

	source := options.source
	if source == nil {
		built, err := newDocumentSource(ctx, cfg)
		if err != nil {
			container.Close()
			return nil, err
		}
		source = built
	}

	splitter, err := ingestion.NewSplitter(cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("チャンク分割設定が不正です: %w", err)
	}

	tokenCounter, err := tokenizer.NewCounter()
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("トークナイザ初期化に失敗しました: %w", err)
	}

	container.Pipeline = pipeline.NewService(
		source,
		splitter,
		index.NewBuilder(embedder, store, tokenCounter,
			index.WithBuilderLogger(options.logger)),
		store,
		chat.NewAnswerService(completion,
			chat.WithTopK(cfg.Pipeline.TopK),
			chat.WithAnswerLogger(options.logger)),
		chat.NewSessionStore(),
		pipeline.WithServiceLogger(options.logger),
	)

	return container, nil
}

// Close はコンテナが保持するリソースを解放する
func (c *ServiceContainer) Close() {
	if c.database != nil {
		c.database.Close()
	}
}

func newEmbedder(cfg *config.Config) *openai.Embedder {
	embedderOpts := []openai.EmbedderOption{
		openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
	}
	if cfg.OpenAI.BaseURL != "" {
		embedderOpts = append(embedderOpts, openai.WithEmbeddingBaseURL(cfg.OpenAI.BaseURL))
	}
	return openai.NewEmbedder(cfg.OpenAI.APIKey, embedderOpts...)
}

func newCompletionClient(cfg *config.Config) (*openai.Client, error) {
	clientOpts := []openai.ClientOption{
		openai.WithChatModel(cfg.OpenAI.ChatModel),
		openai.WithTemperature(cfg.OpenAI.Temperature),
		openai.WithMaxTokens(cfg.OpenAI.MaxTokens),
	}
	if cfg.OpenAI.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}

	client, err := openai.NewClient(cfg.OpenAI.APIKey, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("OpenAIクライアント初期化に失敗しました: %w", err)
	}
	return client, nil
}

func newVectorStore(ctx context.Context, cfg *config.Config, embedder index.Embedder) (index.VectorStore, *database.DB, error) {
	switch cfg.VectorStore {
	case config.VectorStorePostgres:
		db, err := database.New(ctx, database.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}

		store := postgres.NewStore(db.Pool, embedder.Dimension())
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("スキーマ初期化に失敗しました: %w", err)
		}
		return store, db, nil

	default:
		return memory.NewStore(), nil, nil
	}
}

func newDocumentSource(ctx context.Context, cfg *config.Config) (ingestion.DocumentSource, error) {
	switch cfg.Source.Type {
	case config.SourceTypeS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("AWS設定の読み込みに失敗しました: %w", err)
		}
		return infras3.NewSource(
			awss3.NewFromConfig(awsCfg),
			cfg.Source.S3Bucket,
			infras3.WithPrefix(cfg.Source.S3Prefix),
		), nil

	case config.SourceTypeGit:
		client := git.NewClient(cfg.Source.GitSSHKeyPath, cfg.Source.GitSSHPassword)
		return git.NewSource(client, cfg.Source.GitURL, cfg.Source.GitRef, cfg.Source.GitCloneDir), nil

	default:
		return local.NewSource(cfg.Source.DocumentsDir), nil
	}
}
