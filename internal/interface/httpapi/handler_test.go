package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/portfolio-rag/internal/core/pipeline"
)

// stubBackend はテスト用のChatBackend実装
type stubBackend struct {
	ready      bool
	initErr    error
	chatErr    error
	chatResult *pipeline.ChatResult
	sessions   map[uuid.UUID]bool
	chunkCount int
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		ready:    true,
		sessions: make(map[uuid.UUID]bool),
	}
}

func (b *stubBackend) Initialize(ctx context.Context) error {
	return b.initErr
}

func (b *stubBackend) Ready() bool { return b.ready }

func (b *stubBackend) HandleChat(ctx context.Context, params pipeline.ChatParams) (*pipeline.ChatResult, error) {
	if b.chatErr != nil {
		return nil, b.chatErr
	}
	if b.chatResult != nil {
		return b.chatResult, nil
	}
	return &pipeline.ChatResult{
		SessionID: params.SessionID.OrElse(uuid.New()),
		Answer:    "stub answer",
		SourceIDs: []string{"about.md"},
	}, nil
}

func (b *stubBackend) NewSession() uuid.UUID {
	id := uuid.New()
	b.sessions[id] = true
	return id
}

func (b *stubBackend) DeleteSession(id uuid.UUID) bool {
	if !b.sessions[id] {
		return false
	}
	delete(b.sessions, id)
	return true
}

func (b *stubBackend) ActiveSessions() int { return len(b.sessions) }
func (b *stubBackend) ChunkCount() int     { return b.chunkCount }

func newTestRouter(backend ChatBackend) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(backend, slog.Default())
	return NewRouter(handler, []string{"*"})
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestRootReturnsServiceInfo(t *testing.T) {
	router := newTestRouter(newStubBackend())

	recorder := doRequest(router, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "portfolio-rag", body["service"])
}

func TestHealthReportsIndexState(t *testing.T) {
	backend := newStubBackend()
	backend.ready = false
	backend.chunkCount = 0
	router := newTestRouter(backend)

	recorder := doRequest(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["index_ready"])
}

func TestChatReturnsAnswer(t *testing.T) {
	router := newTestRouter(newStubBackend())

	recorder := doRequest(router, http.MethodPost, "/api/chat",
		map[string]string{"message": "What do they do?"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var body chatResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "stub answer", body.Answer)
	assert.Equal(t, []string{"about.md"}, body.Sources)
	assert.NotEmpty(t, body.SessionID)
}

func TestChatEchoesSessionID(t *testing.T) {
	router := newTestRouter(newStubBackend())
	id := uuid.New()

	recorder := doRequest(router, http.MethodPost, "/api/chat",
		map[string]string{"message": "hello", "session_id": id.String()})
	require.Equal(t, http.StatusOK, recorder.Code)

	var body chatResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, id.String(), body.SessionID)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	router := newTestRouter(newStubBackend())

	recorder := doRequest(router, http.MethodPost, "/api/chat", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestChatRejectsInvalidSessionID(t *testing.T) {
	router := newTestRouter(newStubBackend())

	recorder := doRequest(router, http.MethodPost, "/api/chat",
		map[string]string{"message": "hello", "session_id": "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestChatNotReadyReturns503(t *testing.T) {
	backend := newStubBackend()
	backend.chatErr = pipeline.ErrNotReady
	router := newTestRouter(backend)

	recorder := doRequest(router, http.MethodPost, "/api/chat",
		map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

func TestNewSessionCreatesSession(t *testing.T) {
	backend := newStubBackend()
	router := newTestRouter(backend)

	recorder := doRequest(router, http.MethodPost, "/api/chat/new-session", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	id, err := uuid.Parse(body["session_id"])
	require.NoError(t, err)
	assert.True(t, backend.sessions[id])
}

func TestDeleteSession(t *testing.T) {
	backend := newStubBackend()
	router := newTestRouter(backend)
	id := backend.NewSession()

	recorder := doRequest(router, http.MethodDelete, "/api/chat/session/"+id.String(), nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(router, http.MethodDelete, "/api/chat/session/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestDeleteSessionInvalidID(t *testing.T) {
	router := newTestRouter(newStubBackend())

	recorder := doRequest(router, http.MethodDelete, "/api/chat/session/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRefreshDocuments(t *testing.T) {
	backend := newStubBackend()
	backend.chunkCount = 12
	router := newTestRouter(backend)

	recorder := doRequest(router, http.MethodPost, "/api/documents/refresh", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "refreshed", body["status"])
	assert.Equal(t, float64(12), body["indexed_chunks"])
}

func TestRefreshDocumentsNoDocumentsReturns503(t *testing.T) {
	backend := newStubBackend()
	backend.initErr = pipeline.ErrNoDocuments
	router := newTestRouter(backend)

	recorder := doRequest(router, http.MethodPost, "/api/documents/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}
