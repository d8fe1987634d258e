package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/portfolio-rag/internal/core/pipeline"
)

// ChatBackend はHTTP層が必要とするパイプライン操作のサブセット
type ChatBackend interface {
	Initialize(ctx context.Context) error
	Ready() bool
	HandleChat(ctx context.Context, params pipeline.ChatParams) (*pipeline.ChatResult, error)
	NewSession() uuid.UUID
	DeleteSession(id uuid.UUID) bool
	ActiveSessions() int
	ChunkCount() int
}

// Handler はREST APIのハンドラ
type Handler struct {
	backend ChatBackend
	logger  *slog.Logger
}

// NewHandler は新しい Handler を作成する
func NewHandler(backend ChatBackend, logger *slog.Logger) *Handler {
	return &Handler{
		backend: backend,
		logger:  logger,
	}
}

// NewRouter はルーティングを設定したginエンジンを返す
func NewRouter(handler *Handler, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/", handler.Root)
	router.GET("/health", handler.Health)

	api := router.Group("/api")
	{
		api.POST("/chat", handler.Chat)
		api.POST("/chat/new-session", handler.NewSession)
		api.DELETE("/chat/session/:id", handler.DeleteSession)
		api.POST("/documents/refresh", handler.RefreshDocuments)
	}

	return router
}

type chatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Root はサービス情報を返す
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "portfolio-rag",
		"status":  "running",
	})
}

// Health はヘルスチェックレスポンスを返す。
// インデックスが未構築でもプロセスが生きていれば200を返す
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"index_ready":     h.backend.Ready(),
		"indexed_chunks":  h.backend.ChunkCount(),
		"active_sessions": h.backend.ActiveSessions(),
	})
}

// Chat はチャットリクエストを処理する
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	sessionID := mo.None[uuid.UUID]()
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid session_id"})
			return
		}
		sessionID = mo.Some(id)
	}

	result, err := h.backend.HandleChat(c.Request.Context(), pipeline.ChatParams{
		SessionID: sessionID,
		Message:   req.Message,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrNotReady) || errors.Is(err, pipeline.ErrNoDocuments) {
			status = http.StatusServiceUnavailable
		}
		h.logger.Error("チャット処理に失敗", slog.String("error", err.Error()))
		c.JSON(status, errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, chatResponse{
		SessionID: result.SessionID.String(),
		Answer:    result.Answer,
		Sources:   result.SourceIDs,
	})
}

// NewSession は新しい空のセッションを作成する
func (h *Handler) NewSession(c *gin.Context) {
	id := h.backend.NewSession()
	c.JSON(http.StatusOK, gin.H{
		"session_id": id.String(),
	})
}

// DeleteSession はセッションを破棄する
func (h *Handler) DeleteSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid session id"})
		return
	}

	if !h.backend.DeleteSession(id) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted": true,
	})
}

// RefreshDocuments はドキュメントの再取り込みとインデックス再構築を行う。
// 再構築中も既存のインデックスで回答を継続し、完了時にアトミックに切り替わる
func (h *Handler) RefreshDocuments(c *gin.Context) {
	if err := h.backend.Initialize(c.Request.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrNoDocuments) {
			status = http.StatusServiceUnavailable
		}
		h.logger.Error("インデックス再構築に失敗", slog.String("error", err.Error()))
		c.JSON(status, errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "refreshed",
		"indexed_chunks": h.backend.ChunkCount(),
	})
}
