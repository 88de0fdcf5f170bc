package knowledge

import "context"

// 集合字段名，入库与检索共用
const (
	FieldID                    = "id"
	FieldS3Key                 = "s3_key"
	FieldFileType              = "file_type"
	FieldContentHash           = "content_hash"
	FieldChunkIndex            = "chunk_index"
	FieldTextChunk             = "text_chunk"
	FieldS3URL                 = "s3_url"
	FieldMetadata              = "metadata"
	FieldEmbedding             = "embedding"
	FieldPageNumber            = "page_number"
	FieldPageImageURLs         = "page_image_urls"
	FieldPageImageDescriptions = "page_image_descriptions"
	FieldPageImageEmbeddings   = "page_image_embeddings"
)

// searchOutputFields 检索时需要取回的字段
var searchOutputFields = []string{
	FieldS3Key, FieldTextChunk, FieldChunkIndex, FieldS3URL, FieldMetadata, FieldPageNumber,
}

// ChunkRecord 一个文档分块在集合中的完整行
type ChunkRecord struct {
	ID                    string
	S3Key                 string
	FileType              string
	ContentHash           string
	ChunkIndex            int64
	TextChunk             string
	S3URL                 string
	Metadata              string // JSON字符串
	Embedding             []float32
	PageNumber            *int64
	PageImageURLs         string
	PageImageDescriptions string
	PageImageEmbeddings   string
}

// SearchHit 原始检索命中，Fields 中缺失的键表示该字段未返回
type SearchHit struct {
	ID     string
	Score  float32
	Fields map[string]interface{}
}

// VectorStore 单个向量库连接上的集合操作
type VectorStore interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	// DescribeCollection 打开集合，集合不可用时返回错误
	DescribeCollection(ctx context.Context, name string) error
	LoadCollection(ctx context.Context, name string) error
	// ReleaseCollection 从内存中释放集合，不删除数据
	ReleaseCollection(ctx context.Context, name string) error
	CreateCollection(ctx context.Context, name string, dim int) error
	Insert(ctx context.Context, name string, rows []ChunkRecord) error
	Search(ctx context.Context, name string, vector []float32, topK int, outputFields []string) ([]SearchHit, error)
	Close() error
}

// ConnectionResolver 把租户解析为连接别名和对应的向量库
type ConnectionResolver interface {
	Resolve(ctx context.Context, tenant string) (string, VectorStore, error)
}

// StoreProvider 按连接别名取已建立的连接
type StoreProvider interface {
	Store(alias string) (VectorStore, bool)
}

// Dialer 建立一个向量库连接
type Dialer func(ctx context.Context, uri, token string) (VectorStore, error)
