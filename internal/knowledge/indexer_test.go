package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexer_IndexChunksThenSearch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore()
	resolver := &staticResolver{alias: "default", store: store}
	embeddings := newTestEmbeddings()
	access := NewCollectionAccess(resolver, embeddings.Dimension(), nil)
	indexer := NewIndexer(access, embeddings, nil)

	page := int64(4)
	n, err := indexer.IndexChunks(ctx, "default", "64f1c2a9e4b0a1b2c3d4e5f6", []ChunkInput{
		{S3Key: "manuals/p-101.pdf", FileType: "pdf", Text: "pump seal replaced", ChunkIndex: 0, PageNumber: &page,
			Metadata: map[string]interface{}{"title": "P-101"}},
		{S3Key: "manuals/p-101.pdf", FileType: "pdf", Text: "motor inspection", ChunkIndex: 1,
			Metadata: map[string]interface{}{"page_number": 9}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	engine := NewSearchEngine(resolver, embeddings, nil)
	chunks, err := engine.Search(ctx, "default", "64f1c2a9e4b0a1b2c3d4e5f6", "seal", 5)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "pump seal replaced", chunks[0].Text)
	assert.Equal(t, "manuals/p-101.pdf", chunks[0].Source)
	assert.Equal(t, int64(4), *chunks[0].PageNumber)
	assert.Equal(t, "P-101", chunks[0].Metadata["title"])
	assert.Equal(t, int64(9), *chunks[1].PageNumber)
}

func TestIndexer_IDsAreDeterministic(t *testing.T) {
	ctx := context.Background()
	ix := NewIndexer(nil, newTestEmbeddings(), nil)

	in := ChunkInput{Text: "pump", ChunkIndex: 3}
	a, err := ix.buildRecord(ctx, "doc-1", in)
	require.NoError(t, err)
	b, err := ix.buildRecord(ctx, "doc-1", in)
	require.NoError(t, err)
	c, err := ix.buildRecord(ctx, "doc-2", in)
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.Len(t, a.ContentHash, 64)
	assert.Equal(t, "{}", a.Metadata)
	assert.Equal(t, "[]", a.PageImageURLs)
	assert.Len(t, a.Embedding, len(testKeywords))

	explicit, err := ix.buildRecord(ctx, "doc-1", ChunkInput{ID: "chunk-1", Text: "pump"})
	require.NoError(t, err)
	assert.Equal(t, "chunk-1", explicit.ID)
}

func TestIndexer_EmptyInputIsNoop(t *testing.T) {
	store := NewMemoryVectorStore()
	access := NewCollectionAccess(&staticResolver{alias: "default", store: store}, 4, nil)
	n, err := NewIndexer(access, newTestEmbeddings(), nil).IndexChunks(context.Background(), "default", "doc", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, store.Calls(OpCreate))
}
