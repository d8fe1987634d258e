package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/portfolio-rag/internal/core/index"
	"github.com/jinford/portfolio-rag/internal/core/ingestion"
)

// stubRetriever は固定のチャンク列を返すRetriever実装
type stubRetriever struct {
	chunks []index.ScoredChunk
	err    error
	lastK  int
}

func (r *stubRetriever) Search(ctx context.Context, question string, k int) ([]index.ScoredChunk, error) {
	r.lastK = k
	if r.err != nil {
		return nil, r.err
	}
	if k > len(r.chunks) {
		k = len(r.chunks)
	}
	return r.chunks[:k], nil
}

// stubCompletion は受け取ったプロンプトを記録し固定回答を返す
type stubCompletion struct {
	answer     string
	err        error
	lastPrompt string
}

func (c *stubCompletion) Complete(ctx context.Context, prompt string) (string, error) {
	c.lastPrompt = prompt
	if c.err != nil {
		return "", c.err
	}
	return c.answer, nil
}

func scoredChunk(sourceID, text string, score float64) index.ScoredChunk {
	return index.ScoredChunk{
		Chunk: ingestion.Chunk{SourceID: sourceID, Text: text},
		Score: score,
	}
}

func TestAnswerIncludesContextAndHistory(t *testing.T) {
	retriever := &stubRetriever{chunks: []index.ScoredChunk{
		scoredChunk("profile.md", "I work on distributed systems.", 0.9),
	}}
	completion := &stubCompletion{answer: "They work on distributed systems."}
	service := NewAnswerService(completion)

	history := []Turn{{Question: "Hello", Answer: "Hi, how can I help?"}}
	result, err := service.Answer(context.Background(), retriever, "What do they do?", history)
	require.NoError(t, err)

	assert.Equal(t, "They work on distributed systems.", result.Answer)
	assert.Equal(t, []string{"profile.md"}, result.SourceIDs)
	assert.Contains(t, completion.lastPrompt, "I work on distributed systems.")
	assert.Contains(t, completion.lastPrompt, "Human: Hello")
	assert.Contains(t, completion.lastPrompt, "Assistant: Hi, how can I help?")
	assert.Contains(t, completion.lastPrompt, "Question: What do they do?")
}

func TestAnswerEmptyRetrievalStillCallsCompletion(t *testing.T) {
	retriever := &stubRetriever{}
	completion := &stubCompletion{answer: "I do not have that information."}
	service := NewAnswerService(completion)

	result, err := service.Answer(context.Background(), retriever, "What is their shoe size?", nil)
	require.NoError(t, err)

	assert.Equal(t, "I do not have that information.", result.Answer)
	assert.Empty(t, result.SourceIDs)
	assert.Contains(t, completion.lastPrompt, noContextPlaceholder)
	assert.Contains(t, completion.lastPrompt, noHistoryPlaceholder)
}

func TestAnswerUsesConfiguredTopK(t *testing.T) {
	retriever := &stubRetriever{}
	completion := &stubCompletion{answer: "ok"}
	service := NewAnswerService(completion, WithTopK(7))

	_, err := service.Answer(context.Background(), retriever, "q", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, retriever.lastK)
}

func TestAnswerDeduplicatesSourceIDs(t *testing.T) {
	retriever := &stubRetriever{chunks: []index.ScoredChunk{
		scoredChunk("bio.md", "part one", 0.9),
		scoredChunk("projects.md", "project list", 0.8),
		scoredChunk("bio.md", "part two", 0.7),
	}}
	completion := &stubCompletion{answer: "ok"}
	service := NewAnswerService(completion)

	result, err := service.Answer(context.Background(), retriever, "q", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"bio.md", "projects.md"}, result.SourceIDs)
}

func TestAnswerRetrievalError(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("store unavailable")}
	completion := &stubCompletion{answer: "ok"}
	service := NewAnswerService(completion)

	_, err := service.Answer(context.Background(), retriever, "q", nil)
	require.Error(t, err)
	assert.Empty(t, completion.lastPrompt)
}

func TestAnswerCompletionError(t *testing.T) {
	retriever := &stubRetriever{}
	completion := &stubCompletion{err: errors.New("llm unavailable")}
	service := NewAnswerService(completion)

	_, err := service.Answer(context.Background(), retriever, "q", nil)
	assert.Error(t, err)
}

func TestBuildChatPromptHistoryOrder(t *testing.T) {
	history := []Turn{
		{Question: "first?", Answer: "one"},
		{Question: "second?", Answer: "two"},
	}
	prompt := BuildChatPrompt("third?", history, nil)

	firstIdx := strings.Index(prompt, "Human: first?")
	secondIdx := strings.Index(prompt, "Human: second?")
	require.GreaterOrEqual(t, firstIdx, 0)
	require.GreaterOrEqual(t, secondIdx, 0)
	assert.Less(t, firstIdx, secondIdx)
}

func TestBuildChatPromptLabelsChunksWithSource(t *testing.T) {
	chunks := []index.ScoredChunk{
		scoredChunk("skills.md", "Go, Postgres, Kubernetes", 0.9),
	}
	prompt := BuildChatPrompt("What are the skills?", nil, chunks)

	assert.Contains(t, prompt, "[skills.md]")
	assert.Contains(t, prompt, "Go, Postgres, Kubernetes")
}
