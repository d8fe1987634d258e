package s3

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient はテスト用のS3クライアント実装
type stubClient struct {
	objects map[string][]byte
	keys    []string
}

func newStubClient() *stubClient {
	return &stubClient{objects: make(map[string][]byte)}
}

func (c *stubClient) put(key string, content []byte) {
	c.objects[key] = content
	c.keys = append(c.keys, key)
}

func (c *stubClient) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var contents []types.Object
	for _, key := range c.keys {
		contents = append(contents, types.Object{Key: aws.String(key)})
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

func (c *stubClient) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	content := c.objects[aws.ToString(params.Key)]
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(content)),
	}, nil
}

func TestSourceLoadDocumentsStripsPrefix(t *testing.T) {
	client := newStubClient()
	client.put("documents/about.md", []byte("Portfolio owner bio."))
	client.put("documents/projects/rag.md", []byte("RAG chat backend project."))

	source := NewSource(client, "portfolio-bucket")
	documents, err := source.LoadDocuments(context.Background())
	require.NoError(t, err)

	require.Len(t, documents, 2)
	assert.Equal(t, "about.md", documents[0].SourceID)
	assert.Equal(t, "projects/rag.md", documents[1].SourceID)
	assert.Equal(t, "Portfolio owner bio.", documents[0].Text)
}

func TestSourceSkipsDirectoryMarkersAndEmptyObjects(t *testing.T) {
	client := newStubClient()
	client.put("documents/", nil)
	client.put("documents/empty.md", nil)
	client.put("documents/real.md", []byte("content"))

	source := NewSource(client, "portfolio-bucket")
	documents, err := source.LoadDocuments(context.Background())
	require.NoError(t, err)

	require.Len(t, documents, 1)
	assert.Equal(t, "real.md", documents[0].SourceID)
}

func TestSourceSkipsBinaryObjects(t *testing.T) {
	client := newStubClient()
	client.put("documents/photo.png", []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0x01})
	client.put("documents/bio.md", []byte("text content"))

	source := NewSource(client, "portfolio-bucket")
	documents, err := source.LoadDocuments(context.Background())
	require.NoError(t, err)

	require.Len(t, documents, 1)
	assert.Equal(t, "bio.md", documents[0].SourceID)
}

func TestSourceNameIncludesBucketAndPrefix(t *testing.T) {
	source := NewSource(newStubClient(), "portfolio-bucket", WithPrefix("kb/"))
	assert.Equal(t, "s3://portfolio-bucket/kb/", source.Name())
}
