package knowledge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusOptions Milvus连接参数
type MilvusOptions struct {
	SearchEf int
	Shards   int
}

type milvusVectorStore struct {
	milvusClient client.Client
	searchEf     int
	shards       int32
}

// NewMilvusDialer 返回基于 milvus-sdk-go 的连接器
// https 地址由SDK自动启用TLS，token 作为 API Key 传入
func NewMilvusDialer(opts MilvusOptions) Dialer {
	if opts.SearchEf <= 0 {
		opts.SearchEf = 64
	}
	if opts.Shards <= 0 {
		opts.Shards = 2
	}

	return func(ctx context.Context, uri, token string) (VectorStore, error) {
		milvusClient, err := client.NewClient(ctx, client.Config{
			Address: uri,
			APIKey:  token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create milvus client: %w", err)
		}

		return &milvusVectorStore{
			milvusClient: milvusClient,
			searchEf:     opts.SearchEf,
			shards:       int32(opts.Shards),
		}, nil
	}
}

func (s *milvusVectorStore) HasCollection(ctx context.Context, name string) (bool, error) {
	ok, err := s.milvusClient.HasCollection(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	return ok, nil
}

func (s *milvusVectorStore) DescribeCollection(ctx context.Context, name string) error {
	if _, err := s.milvusClient.DescribeCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to describe collection %s: %w", name, err)
	}
	return nil
}

func (s *milvusVectorStore) LoadCollection(ctx context.Context, name string) error {
	if err := s.milvusClient.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	return nil
}

func (s *milvusVectorStore) ReleaseCollection(ctx context.Context, name string) error {
	if err := s.milvusClient.ReleaseCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to release collection %s: %w", name, err)
	}
	return nil
}

func (s *milvusVectorStore) CreateCollection(ctx context.Context, name string, dim int) error {
	schema := &entity.Schema{
		CollectionName: name,
		Description:    "Document chunks with embeddings",
		Fields: []*entity.Field{
			varcharField(FieldID, 100, true),
			varcharField(FieldS3Key, 500, false),
			varcharField(FieldFileType, 50, false),
			varcharField(FieldContentHash, 100, false),
			{Name: FieldChunkIndex, DataType: entity.FieldTypeInt64},
			varcharField(FieldTextChunk, 65535, false),
			varcharField(FieldS3URL, 500, false),
			varcharField(FieldMetadata, 1000, false),
			{
				Name:     FieldEmbedding,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
			{Name: FieldPageNumber, DataType: entity.FieldTypeInt64},
			varcharField(FieldPageImageURLs, 5000, false),
			varcharField(FieldPageImageDescriptions, 5000, false),
			varcharField(FieldPageImageEmbeddings, 65535, false),
		},
	}

	if err := s.milvusClient.CreateCollection(ctx, schema, s.shards); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	index, err := entity.NewIndexHNSW(entity.COSINE, 8, 64)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := s.milvusClient.CreateIndex(ctx, name, FieldEmbedding, index, false); err != nil {
		return fmt.Errorf("failed to create index for collection %s: %w", name, err)
	}
	return nil
}

func varcharField(name string, maxLength int, primary bool) *entity.Field {
	return &entity.Field{
		Name:       name,
		DataType:   entity.FieldTypeVarChar,
		PrimaryKey: primary,
		TypeParams: map[string]string{
			"max_length": strconv.Itoa(maxLength),
		},
	}
}

func (s *milvusVectorStore) Insert(ctx context.Context, name string, rows []ChunkRecord) error {
	if len(rows) == 0 {
		return nil
	}

	n := len(rows)
	ids := make([]string, n)
	s3Keys := make([]string, n)
	fileTypes := make([]string, n)
	hashes := make([]string, n)
	chunkIndexes := make([]int64, n)
	texts := make([]string, n)
	urls := make([]string, n)
	metadata := make([]string, n)
	embeddings := make([][]float32, n)
	pages := make([]int64, n)
	imageURLs := make([]string, n)
	imageDescriptions := make([]string, n)
	imageEmbeddings := make([]string, n)

	dim := len(rows[0].Embedding)
	for i, row := range rows {
		if len(row.Embedding) != dim {
			return fmt.Errorf("row %s embedding has dim %d, expected %d", row.ID, len(row.Embedding), dim)
		}
		ids[i] = row.ID
		s3Keys[i] = row.S3Key
		fileTypes[i] = row.FileType
		hashes[i] = row.ContentHash
		chunkIndexes[i] = row.ChunkIndex
		texts[i] = row.TextChunk
		urls[i] = row.S3URL
		metadata[i] = row.Metadata
		embeddings[i] = row.Embedding
		if row.PageNumber != nil {
			pages[i] = *row.PageNumber
		}
		imageURLs[i] = row.PageImageURLs
		imageDescriptions[i] = row.PageImageDescriptions
		imageEmbeddings[i] = row.PageImageEmbeddings
	}

	_, err := s.milvusClient.Insert(ctx, name, "",
		entity.NewColumnVarChar(FieldID, ids),
		entity.NewColumnVarChar(FieldS3Key, s3Keys),
		entity.NewColumnVarChar(FieldFileType, fileTypes),
		entity.NewColumnVarChar(FieldContentHash, hashes),
		entity.NewColumnInt64(FieldChunkIndex, chunkIndexes),
		entity.NewColumnVarChar(FieldTextChunk, texts),
		entity.NewColumnVarChar(FieldS3URL, urls),
		entity.NewColumnVarChar(FieldMetadata, metadata),
		entity.NewColumnFloatVector(FieldEmbedding, dim, embeddings),
		entity.NewColumnInt64(FieldPageNumber, pages),
		entity.NewColumnVarChar(FieldPageImageURLs, imageURLs),
		entity.NewColumnVarChar(FieldPageImageDescriptions, imageDescriptions),
		entity.NewColumnVarChar(FieldPageImageEmbeddings, imageEmbeddings),
	)
	if err != nil {
		return fmt.Errorf("milvus insert failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, name, false); err != nil {
		return fmt.Errorf("failed to flush collection %s: %w", name, err)
	}
	return nil
}

func (s *milvusVectorStore) Search(ctx context.Context, name string, vector []float32, topK int, outputFields []string) ([]SearchHit, error) {
	ef := s.searchEf
	if ef < topK {
		ef = topK
	}
	sp, err := entity.NewIndexHNSWSearchParam(ef)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	searchResults, err := s.milvusClient.Search(
		ctx,
		name,
		[]string{},
		"",
		outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		FieldEmbedding,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	if len(searchResults) == 0 {
		return []SearchHit{}, nil
	}

	// 只有一个查询向量
	result := searchResults[0]
	if result.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", result.Err)
	}

	hits := make([]SearchHit, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		hit := SearchHit{Fields: make(map[string]interface{}, len(result.Fields))}
		if result.IDs != nil {
			if id, err := result.IDs.Get(i); err == nil {
				hit.ID = fmt.Sprint(id)
			}
		}
		if i < len(result.Scores) {
			hit.Score = result.Scores[i]
		}
		for _, col := range result.Fields {
			if col == nil || i >= col.Len() {
				continue
			}
			if value, err := col.Get(i); err == nil {
				hit.Fields[col.Name()] = value
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *milvusVectorStore) Close() error {
	if s.milvusClient == nil {
		return nil
	}
	return s.milvusClient.Close()
}
