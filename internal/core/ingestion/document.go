package ingestion

import (
	"context"
)

// Document はソースから読み込まれた1つのドキュメントを表す
type Document struct {
	// SourceID はソース内で一意なドキュメントの識別子。
	// ファイルソースならルートからの相対パス、S3ならプレフィックス配下のキー
	SourceID string
	// Text はドキュメント本文
	Text string
}

// Chunk はドキュメントを分割したインデックス対象の断片を表す
type Chunk struct {
	// SourceID は分割元ドキュメントの識別子
	SourceID string
	// Ordinal はドキュメント内の連番（0始まり）
	Ordinal int
	// Text はチャンク本文
	Text string
}

// DocumentSource はドキュメント取得元との契約。
// ローカルファイルシステム、S3、Gitリポジトリなどの実装がある。
type DocumentSource interface {
	// Name はソース種別名を返す
	Name() string

	// LoadDocuments はソースから全ドキュメントを読み込む。
	// ドキュメントが存在しない場合は空のスライスを返し、
	// 取得自体に失敗した場合はエラーを返す。
	LoadDocuments(ctx context.Context) ([]Document, error)
}
