package chat

import (
	"fmt"
	"strings"

	"github.com/jinford/portfolio-rag/internal/core/index"
)

const chatPromptTemplate = `You are a knowledgeable AI assistant for a professional portfolio website. Answer questions about the portfolio owner based on the provided context. Be concise, accurate, and professional. If the answer is not in the context, say so honestly instead of guessing.

Context:
%s

Chat History:
%s

Question: %s

Provide a helpful, professional response based on the context and conversation so far.`

const (
	noContextPlaceholder = "(no relevant context found)"
	noHistoryPlaceholder = "(no prior conversation)"
)

// BuildChatPrompt は検索結果と会話履歴から回答生成用のプロンプトを組み立てる。
// 検索結果が空でもプロンプトは成立し、コンテキスト欄にはその旨が入る。
func BuildChatPrompt(question string, history []Turn, chunks []index.ScoredChunk) string {
	return fmt.Sprintf(chatPromptTemplate,
		formatContext(chunks),
		formatHistory(history),
		question,
	)
}

func formatContext(chunks []index.ScoredChunk) string {
	if len(chunks) == 0 {
		return noContextPlaceholder
	}

	var sb strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s]\n%s", chunk.SourceID, chunk.Text)
	}
	return sb.String()
}

func formatHistory(history []Turn) string {
	if len(history) == 0 {
		return noHistoryPlaceholder
	}

	var sb strings.Builder
	for i, turn := range history {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "Human: %s\nAssistant: %s", turn.Question, turn.Answer)
	}
	return sb.String()
}
