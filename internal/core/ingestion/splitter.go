package ingestion

import (
	"fmt"
)

// Splitter はドキュメントを文字数ベースのオーバーラップ付きチャンクに分割する。
// 分割位置は段落 → 改行 → 文末 → 空白の順で自然な境界を優先し、
// 境界が見つからない場合は文字数で強制分割する。
type Splitter struct {
	chunkSize    int // チャンクの最大文字数
	chunkOverlap int // 連続チャンク間で重複させる文字数
}

// NewSplitter は新しいSplitterを作成する。
// chunkOverlap >= chunkSize は設定エラーとして起動時に報告する。
func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", chunkOverlap, chunkSize)
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// ChunkSize はチャンクの最大文字数を返す
func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

// ChunkOverlap はオーバーラップ文字数を返す
func (s *Splitter) ChunkOverlap() int {
	return s.chunkOverlap
}

// Split は全ドキュメントをチャンク化する。
// 出力順は入力ドキュメント順に安定で、Ordinal はドキュメントごとに0から昇順になる。
// 空のドキュメントはチャンクを生成しない。
func (s *Splitter) Split(documents []Document) []Chunk {
	var chunks []Chunk
	for _, doc := range documents {
		for i, text := range s.splitText(doc.Text) {
			chunks = append(chunks, Chunk{
				SourceID: doc.SourceID,
				Ordinal:  i,
				Text:     text,
			})
		}
	}
	return chunks
}

// splitText は1つのテキストをオーバーラップ付きウィンドウに分割する。
// マルチバイト文字の途中で切らないよう rune 単位で処理する。
func (s *Splitter) splitText(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.chunkSize {
		return []string{text}
	}

	var parts []string
	start := 0
	for {
		end := start + s.chunkSize
		if end >= len(runes) {
			parts = append(parts, string(runes[start:]))
			break
		}

		cut := s.findBreak(runes, start, end)
		parts = append(parts, string(runes[start:cut]))

		// 次のウィンドウは境界から chunkOverlap 文字分さかのぼって開始する
		start = cut - s.chunkOverlap
	}
	return parts
}

// findBreak は (start, end] の範囲で分割位置を探す。
// 戻り値 cut は start+chunkOverlap より大きいことが保証されるため、
// 次のウィンドウの開始位置は必ず前進し、重複は chunkOverlap 文字以下に収まる。
func (s *Splitter) findBreak(runes []rune, start, end int) int {
	// チャンクが極端に短くならないよう、探索の下限を設ける
	min := start + s.chunkSize/2
	if min <= start+s.chunkOverlap {
		min = start + s.chunkOverlap + 1
	}
	if min >= end {
		return end
	}

	boundaries := []func([]rune, int) bool{
		isParagraphBreak,
		isLineBreak,
		isSentenceBreak,
		isWordBreak,
	}
	for _, boundary := range boundaries {
		for i := end; i > min; i-- {
			if boundary(runes, i) {
				return i
			}
		}
	}

	// 自然な境界が見つからない場合は文字数で強制分割
	return end
}

// isParagraphBreak は位置 i の直前が空行（段落の切れ目）かを判定する
func isParagraphBreak(runes []rune, i int) bool {
	return i >= 2 && runes[i-1] == '\n' && runes[i-2] == '\n'
}

// isLineBreak は位置 i の直前が改行かを判定する
func isLineBreak(runes []rune, i int) bool {
	return i >= 1 && runes[i-1] == '\n'
}

// isSentenceBreak は位置 i の直前が文末記号かを判定する
func isSentenceBreak(runes []rune, i int) bool {
	if i < 1 {
		return false
	}
	switch runes[i-1] {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

// isWordBreak は位置 i の直前が空白（単語の切れ目）かを判定する
func isWordBreak(runes []rune, i int) bool {
	return i >= 1 && (runes[i-1] == ' ' || runes[i-1] == '\t')
}
