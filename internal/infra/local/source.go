package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"

	"github.com/jinford/portfolio-rag/internal/core/ingestion"
)

// Source はローカルディレクトリ配下のテキストファイルを読み込むDocumentSource実装。
// 隠しファイルとバイナリファイルはスキップする
type Source struct {
	dir string
}

// NewSource は新しい Source を作成する
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// Name は ingestion.DocumentSource の実装
func (s *Source) Name() string {
	return fmt.Sprintf("local:%s", s.dir)
}

// LoadDocuments は ingestion.DocumentSource の実装。
// ディレクトリを再帰的に走査し、ファイルパスの辞書順でドキュメントを返す
func (s *Source) LoadDocuments(ctx context.Context) ([]ingestion.Document, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access documents directory %s: %w", s.dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("documents path %s is not a directory", s.dir)
	}

	var documents []ingestion.Document
	err = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() && path != s.dir {
				return filepath.SkipDir
			}
			if !d.IsDir() {
				return nil
			}
		}
		if d.IsDir() {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		if enry.IsBinary(content) {
			return nil
		}

		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}

		documents = append(documents, ingestion.Document{
			SourceID: filepath.ToSlash(rel),
			Text:     string(content),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk documents directory: %w", err)
	}

	return documents, nil
}

// インターフェース実装の確認
var _ ingestion.DocumentSource = (*Source)(nil)
