package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/portfolio-rag/internal/core/chat"
	"github.com/jinford/portfolio-rag/internal/core/index"
	"github.com/jinford/portfolio-rag/internal/core/ingestion"
)

// ChatParams はチャット1リクエストの入力
type ChatParams struct {
	// SessionID が None の場合は新しいセッションを作成する
	SessionID mo.Option[uuid.UUID]
	Message   string
}

// ChatResult はチャット1リクエストの出力
type ChatResult struct {
	SessionID uuid.UUID
	Answer    string
	SourceIDs []string
}

type serviceOptions struct {
	logger *slog.Logger
}

type ServiceOption func(*serviceOptions)

// WithServiceLogger はロガーを設定する
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// Service はドキュメント取り込みから回答生成までのパイプライン全体を束ねる。
// インデックスはbuild-then-swap方式で世代交代し、差し替えはアトミックに行う。
// 進行中の検索は古い世代を参照し続けるため、再構築中も回答は一貫する。
type Service struct {
	source   ingestion.DocumentSource
	splitter *ingestion.Splitter
	builder  *index.Builder
	store    index.VectorStore
	answerer *chat.AnswerService
	sessions *chat.SessionStore
	logger   *slog.Logger

	initMu sync.Mutex
	active atomic.Pointer[index.Index]
}

// NewService は新しいServiceを作成する
func NewService(
	source ingestion.DocumentSource,
	splitter *ingestion.Splitter,
	builder *index.Builder,
	store index.VectorStore,
	answerer *chat.AnswerService,
	sessions *chat.SessionStore,
	opts ...ServiceOption,
) *Service {
	options := serviceOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Service{
		source:   source,
		splitter: splitter,
		builder:  builder,
		store:    store,
		answerer: answerer,
		sessions: sessions,
		logger:   options.logger,
	}
}

// Initialize はドキュメントを読み込み、新しいインデックス世代を構築して
// アクティブな世代と差し替える。再構築にも使う。
// 途中で失敗した場合は既存の世代がそのまま残り、部分的な状態にはならない。
func (s *Service) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	return s.rebuild(ctx)
}

// rebuild は初期化の本体。呼び出し側が initMu を保持していること。
func (s *Service) rebuild(ctx context.Context) error {
	s.logger.Info("ナレッジベースの構築を開始", slog.String("source", s.source.Name()))

	documents, err := s.source.LoadDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to load documents from %s: %w", s.source.Name(), err)
	}
	if len(documents) == 0 {
		return fmt.Errorf("%w: %s", ErrNoDocuments, s.source.Name())
	}

	chunks := s.splitter.Split(documents)

	idx, err := s.builder.Build(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	previous := s.active.Load()
	s.active.Store(idx)

	// 直前まで参照されていた世代は残す。差し替え前にインデックスを取得した
	// 検索が進行中でも、その世代に対して最後まで実行できる
	keep := []uuid.UUID{idx.Generation()}
	if previous != nil {
		keep = append(keep, previous.Generation())
	}

	// 旧世代の破棄に失敗しても新世代は有効なので警告に留める
	if err := s.store.PruneGenerations(ctx, keep...); err != nil {
		s.logger.Warn("旧世代の破棄に失敗", slog.String("error", err.Error()))
	}

	s.logger.Info("ナレッジベースの構築が完了",
		slog.String("generation", idx.Generation().String()),
		slog.Int("documents", len(documents)),
		slog.Int("chunks", idx.ChunkCount()),
	)
	return nil
}

// ensureReady はアクティブなインデックスがなければ構築する。
// 複数リクエストが同時に到達しても構築は一度だけ走る。
func (s *Service) ensureReady(ctx context.Context) (*index.Index, error) {
	if idx := s.active.Load(); idx != nil {
		return idx, nil
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()
	if idx := s.active.Load(); idx != nil {
		return idx, nil
	}

	if err := s.rebuild(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	return s.active.Load(), nil
}

// HandleChat はチャット1リクエストを処理する。
// インデックス未構築なら遅延初期化し、セッション指定がなければ新規作成する。
// 履歴への追記は回答生成が成功した場合のみ行う。
func (s *Service) HandleChat(ctx context.Context, params ChatParams) (*ChatResult, error) {
	idx, err := s.ensureReady(ctx)
	if err != nil {
		return nil, err
	}

	sessionID := params.SessionID.OrElse(uuid.New())
	session := s.sessions.Get(sessionID)

	// 同一セッションのターンは直列に処理する
	session.BeginTurn()
	defer session.EndTurn()

	result, err := s.answerer.Answer(ctx, idx, params.Message, session.History())
	if err != nil {
		return nil, err
	}

	session.Append(params.Message, result.Answer)

	return &ChatResult{
		SessionID: sessionID,
		Answer:    result.Answer,
		SourceIDs: result.SourceIDs,
	}, nil
}

// NewSession は空のセッションを作成してIDを返す
func (s *Service) NewSession() uuid.UUID {
	id := uuid.New()
	s.sessions.Get(id)
	return id
}

// DeleteSession はセッションを破棄する。存在した場合はtrueを返す
func (s *Service) DeleteSession(id uuid.UUID) bool {
	return s.sessions.Delete(id)
}

// Ready はアクティブなインデックスが存在するかを返す
func (s *Service) Ready() bool {
	return s.active.Load() != nil
}

// ActiveSessions は保持しているセッション数を返す
func (s *Service) ActiveSessions() int {
	return s.sessions.Len()
}

// ChunkCount はアクティブなインデックスのチャンク数を返す。未構築なら0
func (s *Service) ChunkCount() int {
	idx := s.active.Load()
	if idx == nil {
		return 0
	}
	return idx.ChunkCount()
}
