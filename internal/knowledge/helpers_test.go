package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// staticResolver 固定返回同一个连接
type staticResolver struct {
	alias string
	store VectorStore
	err   error
}

func (r *staticResolver) Resolve(ctx context.Context, tenant string) (string, VectorStore, error) {
	if r.err != nil {
		return "", nil, r.err
	}
	return r.alias, r.store, nil
}

func (r *staticResolver) Store(alias string) (VectorStore, bool) {
	if r.store == nil || alias != r.alias {
		return nil, false
	}
	return r.store, true
}

var testKeywords = []string{"pump", "seal", "valve", "motor"}

// keywordEmbedder 按关键词出现次数生成4维向量
type keywordEmbedder struct {
	err   error
	calls int
}

func (k *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	k.calls++
	if k.err != nil {
		return nil, k.err
	}
	lower := strings.ToLower(text)
	vec := make([]float32, len(testKeywords))
	for i, kw := range testKeywords {
		vec[i] = float32(strings.Count(lower, kw))
	}
	return vec, nil
}

func (k *keywordEmbedder) Dimensions() int { return len(testKeywords) }
func (k *keywordEmbedder) Ready() bool     { return k.err == nil }

// rawEmbedder 返回固定向量
type rawEmbedder struct {
	vec []float32
}

func (r *rawEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return r.vec, nil
}
func (r *rawEmbedder) Dimensions() int { return len(r.vec) }
func (r *rawEmbedder) Ready() bool     { return true }

var errBoom = errors.New("boom")

func newTestEmbeddings() *EmbeddingService {
	return NewEmbeddingService(&keywordEmbedder{}, len(testKeywords), nil)
}

// seedCollection 建集合并写入文本分块
func seedCollection(t *testing.T, store *MemoryVectorStore, docID string, texts ...string) string {
	t.Helper()
	ctx := context.Background()
	name := NormalizeCollectionName(docID)
	require.NoError(t, store.CreateCollection(ctx, name, len(testKeywords)))

	embeddings := newTestEmbeddings()
	rows := make([]ChunkRecord, 0, len(texts))
	for i, text := range texts {
		page := int64(i + 1)
		rows = append(rows, ChunkRecord{
			ID:         name + "_" + string(rune('a'+i)),
			S3Key:      "docs/" + name + ".pdf",
			TextChunk:  text,
			S3URL:      "https://files.example.com/" + name + ".pdf",
			ChunkIndex: int64(i),
			Metadata:   `{"section":"maintenance"}`,
			Embedding:  embeddings.Embed(ctx, text),
			PageNumber: &page,
		})
	}
	require.NoError(t, store.Insert(ctx, name, rows))
	return name
}
