package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jinford/portfolio-rag/internal/core/index"
)

// DefaultEncoding はOpenAIのEmbedding/チャットモデルが使うエンコーディング
const DefaultEncoding = "cl100k_base"

// Counter は tiktoken によるトークン数カウンタ。
// Embeddingバッチのトークン予算の見積もりに使う
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter は新しい Counter を作成する
func NewCounter() (*Counter, error) {
	encoding, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %s: %w", DefaultEncoding, err)
	}
	return &Counter{encoding: encoding}, nil
}

// Count はテキストのトークン数を返す
func (c *Counter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// インターフェース実装の確認
var _ index.TokenCounter = (*Counter)(nil)
