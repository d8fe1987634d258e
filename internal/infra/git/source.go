package git

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-enry/go-enry/v2"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/jinford/portfolio-rag/internal/core/ingestion"
)

// Source はGitリポジトリからドキュメントを読み込むDocumentSource実装。
// リポジトリをローカルにクローンし、指定refのツリーからテキストファイルを集める。
// .gitignore 相当の除外パターンとバイナリファイルはスキップする
type Source struct {
	client       *Client
	url          string
	ref          string
	cloneBaseDir string
}

// NewSource は新しい Source を作成する
func NewSource(client *Client, url, ref, cloneBaseDir string) *Source {
	return &Source{
		client:       client,
		url:          url,
		ref:          ref,
		cloneBaseDir: cloneBaseDir,
	}
}

// Name は ingestion.DocumentSource の実装
func (s *Source) Name() string {
	return fmt.Sprintf("git:%s@%s", s.url, s.ref)
}

// LoadDocuments は ingestion.DocumentSource の実装。
// SourceIDはリポジトリルートからの相対パスで、パスの辞書順で返す
func (s *Source) LoadDocuments(ctx context.Context) ([]ingestion.Document, error) {
	dirName, err := s.client.URLToDirectoryName(s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to derive clone directory from URL: %w", err)
	}

	repoPath := filepath.Join(s.cloneBaseDir, dirName)
	if err := s.client.CloneOrPull(ctx, s.url, repoPath, s.ref); err != nil {
		return nil, fmt.Errorf("failed to clone/pull repository: %w", err)
	}

	matcher := gitignore.CompileIgnoreLines(defaultIgnorePatterns()...)

	var documents []ingestion.Document
	err = s.client.TreeFiles(ctx, repoPath, s.ref, func(path, content string) error {
		if matcher.MatchesPath(path) {
			return nil
		}
		if enry.IsBinary([]byte(content)) {
			return nil
		}
		documents = append(documents, ingestion.Document{
			SourceID: path,
			Text:     content,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read repository tree: %w", err)
	}

	sort.Slice(documents, func(i, j int) bool {
		return strings.Compare(documents[i].SourceID, documents[j].SourceID) < 0
	})
	return documents, nil
}

// defaultIgnorePatterns はインデックス対象から外すパスのパターン。
// 依存関係やビルド成果物、機密情報、メディアファイルを除外する
func defaultIgnorePatterns() []string {
	return []string{
		".git",
		".gitignore",
		".gitattributes",
		".github",

		"node_modules",
		"vendor",
		"dist",
		"build",
		"target",

		".vscode",
		".idea",
		".DS_Store",

		"*.log",
		"*.tmp",

		".env",
		".env.*",
		"*.pem",
		"*.key",

		"*.png",
		"*.jpg",
		"*.jpeg",
		"*.gif",
		"*.ico",
		"*.svg",
		"*.pdf",
		"*.zip",
		"*.tar",
		"*.gz",

		"*.lock",
		"package-lock.json",
	}
}

// インターフェース実装の確認
var _ ingestion.DocumentSource = (*Source)(nil)
