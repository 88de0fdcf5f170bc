package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChunkInput 待入库的文档分块
type ChunkInput struct {
	ID                    string                 `json:"id,omitempty"`
	S3Key                 string                 `json:"s3_key"`
	FileType              string                 `json:"file_type"`
	Text                  string                 `json:"text"`
	S3URL                 string                 `json:"s3_url"`
	ChunkIndex            int64                  `json:"chunk_index"`
	PageNumber            *int64                 `json:"page_number,omitempty"`
	Metadata              map[string]interface{} `json:"metadata,omitempty"`
	PageImageURLs         []string               `json:"page_image_urls,omitempty"`
	PageImageDescriptions []string               `json:"page_image_descriptions,omitempty"`
}

// Indexer 文档分块入库
type Indexer struct {
	access     *CollectionAccess
	embeddings *EmbeddingService
	logger     *zap.Logger
}

func NewIndexer(access *CollectionAccess, embeddings *EmbeddingService, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		access:     access,
		embeddings: embeddings,
		logger:     logger,
	}
}

// IndexChunks 建集合（如不存在），向量化并写入全部分块，返回写入行数
func (ix *Indexer) IndexChunks(ctx context.Context, tenant, docID string, inputs []ChunkInput) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}

	h, err := ix.access.Create(ctx, tenant, docID)
	if err != nil {
		return 0, err
	}

	rows := make([]ChunkRecord, 0, len(inputs))
	for _, in := range inputs {
		row, err := ix.buildRecord(ctx, docID, in)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	if err := h.Store().Insert(ctx, h.Name, rows); err != nil {
		return 0, err
	}
	// 下次访问重新加载以看到新数据
	ix.access.Invalidate(tenant, docID)

	ix.logger.Info("chunks indexed",
		zap.String("tenant", tenant),
		zap.String("collection", h.Name),
		zap.Int("rows", len(rows)))
	return len(rows), nil
}

func (ix *Indexer) buildRecord(ctx context.Context, docID string, in ChunkInput) (ChunkRecord, error) {
	sum := sha256.Sum256([]byte(in.Text))
	hash := hex.EncodeToString(sum[:])

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d:%s", docID, in.ChunkIndex, hash))).String()
	}

	metadata, err := encodeJSON(in.Metadata, "{}")
	if err != nil {
		return ChunkRecord{}, fmt.Errorf("encode metadata for chunk %s: %w", id, err)
	}
	imageURLs, err := encodeJSON(in.PageImageURLs, "[]")
	if err != nil {
		return ChunkRecord{}, err
	}
	imageDescriptions, err := encodeJSON(in.PageImageDescriptions, "[]")
	if err != nil {
		return ChunkRecord{}, err
	}

	return ChunkRecord{
		ID:                    id,
		S3Key:                 in.S3Key,
		FileType:              in.FileType,
		ContentHash:           hash,
		ChunkIndex:            in.ChunkIndex,
		TextChunk:             in.Text,
		S3URL:                 in.S3URL,
		Metadata:              metadata,
		Embedding:             ix.embeddings.Embed(ctx, in.Text),
		PageNumber:            in.PageNumber,
		PageImageURLs:         imageURLs,
		PageImageDescriptions: imageDescriptions,
		PageImageEmbeddings:   "[]",
	}, nil
}

func encodeJSON(v interface{}, empty string) (string, error) {
	switch x := v.(type) {
	case map[string]interface{}:
		if len(x) == 0 {
			return empty, nil
		}
	case []string:
		if len(x) == 0 {
			return empty, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
