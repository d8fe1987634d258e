package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-enry/go-enry/v2"

	"github.com/jinford/portfolio-rag/internal/core/ingestion"
)

// DefaultPrefix はドキュメントを配置するデフォルトのキープレフィックス
const DefaultPrefix = "documents/"

// Client はSourceが必要とするS3操作のサブセット
type Client interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Source はS3バケットからドキュメントを読み込むDocumentSource実装
type Source struct {
	client Client
	bucket string
	prefix string
}

type sourceOptions struct {
	prefix string
}

// SourceOption は Source のオプション設定
type SourceOption func(*sourceOptions)

// WithPrefix はキープレフィックスを上書きする
func WithPrefix(prefix string) SourceOption {
	return func(o *sourceOptions) {
		o.prefix = prefix
	}
}

// NewSource は新しい Source を作成する
func NewSource(client Client, bucket string, opts ...SourceOption) *Source {
	options := sourceOptions{
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Source{
		client: client,
		bucket: bucket,
		prefix: options.prefix,
	}
}

// Name は ingestion.DocumentSource の実装
func (s *Source) Name() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.prefix)
}

// LoadDocuments は ingestion.DocumentSource の実装。
// プレフィックス配下の全オブジェクトをキーの辞書順で読み込む。
// バイナリと空のオブジェクトはスキップする
func (s *Source) LoadDocuments(ctx context.Context) ([]ingestion.Document, error) {
	var documents []ingestion.Document

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in s3://%s/%s: %w", s.bucket, s.prefix, err)
		}

		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			// プレフィックス自体を表すディレクトリマーカーは読み飛ばす
			if strings.HasSuffix(key, "/") {
				continue
			}

			content, err := s.getObject(ctx, key)
			if err != nil {
				return nil, err
			}
			if len(content) == 0 || enry.IsBinary(content) {
				continue
			}

			documents = append(documents, ingestion.Document{
				SourceID: strings.TrimPrefix(key, s.prefix),
				Text:     string(content),
			})
		}
	}

	return documents, nil
}

func (s *Source) getObject(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object s3://%s/%s: %w", s.bucket, key, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object s3://%s/%s: %w", s.bucket, key, err)
	}
	return content, nil
}

// インターフェース実装の確認
var _ ingestion.DocumentSource = (*Source)(nil)
